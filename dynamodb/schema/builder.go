package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/acksell/ddbdecl/dynamodb/table"
)

// KeyOptions configures a primary key declaration.
type KeyOptions struct {
	// Defaults to HASH.
	Role table.KeyRole
	// AutoGenerate marks the attribute to be filled with a new ID on put when empty.
	AutoGenerate bool
}

// IndexOptions configures a secondary index declaration.
type IndexOptions struct {
	// Defaults to the attribute name.
	Name string
	// Defaults to HASH.
	Role table.KeyRole
	// Nil keeps the index projection, KEYS_ONLY for new indexes.
	Projection *table.Projection
}

// Builder accumulates key and index declarations into a single table definition.
//
// Declarations arrive one attribute at a time, before the table itself is named
// or configured. Each declaration merges into the pending definition: key schema
// elements are appended, attribute definitions are merged by name and index
// declarations naming the same index extend that index. Finalize applies the
// table-level settings and validates the result.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	def          table.TableDefinition
	autoGenerate string

	// Indexes whose throughput was inherited from the table when they were created.
	inheritedThroughput map[string]bool
	// Indexes whose projection was explicitly declared.
	explicitProjection map[string]bool

	errs      []error
	finalized bool
}

func NewBuilder() *Builder {
	return &Builder{
		def:                 table.DefaultTableDefinition(),
		inheritedThroughput: make(map[string]bool),
		explicitProjection:  make(map[string]bool),
	}
}

// AddKey declares attr as part of the table's primary key.
func (b *Builder) AddKey(attr string, kind table.KeyKind, opts KeyOptions) *Builder {
	if !b.check(attr, kind) {
		return b
	}
	role := opts.Role
	if role == "" {
		role = table.KeyRoleHash
	}
	if !role.Valid() {
		b.fail(fmt.Errorf("key %q: invalid key role %q", attr, role))
		return b
	}
	for _, el := range b.def.KeySchema {
		if el.AttributeName == attr {
			b.fail(fmt.Errorf("key %q declared more than once", attr))
			return b
		}
	}
	b.def.KeySchema = append(b.def.KeySchema, table.KeySchemaElement{
		AttributeName: attr,
		Role:          role,
	})
	b.mergeAttribute(attr, kind)

	if opts.AutoGenerate {
		if kind != table.KeyKindS {
			b.fail(fmt.Errorf("key %q: only string keys can be auto-generated, got kind %q", attr, kind))
		} else if b.autoGenerate != "" && b.autoGenerate != attr {
			b.fail(fmt.Errorf("key %q: auto-generation already declared for %q", attr, b.autoGenerate))
		} else {
			b.autoGenerate = attr
		}
	}
	return b
}

// AddIndex declares attr as a key of a global secondary index.
// The index is looked up by name and created on first use.
func (b *Builder) AddIndex(attr string, kind table.KeyKind, opts IndexOptions) *Builder {
	if !b.check(attr, kind) {
		return b
	}
	name := opts.Name
	if name == "" {
		name = attr
	}
	role := opts.Role
	if role == "" {
		role = table.KeyRoleHash
	}
	if !role.Valid() {
		b.fail(fmt.Errorf("index %q: attribute %q: invalid key role %q", name, attr, role))
		return b
	}

	gsi := b.index(name)
	if gsi == nil {
		b.def.GSIs = append(b.def.GSIs, table.GSIDefinition{
			Name:       name,
			KeySchema:  []table.KeySchemaElement{},
			Projection: table.KeysOnly(),
			Throughput: b.def.Throughput,
		})
		b.inheritedThroughput[name] = true
		gsi = &b.def.GSIs[len(b.def.GSIs)-1]
	}

	for _, el := range gsi.KeySchema {
		if el.AttributeName == attr {
			b.fail(fmt.Errorf("index %q: attribute %q declared more than once", name, attr))
			return b
		}
	}
	gsi.KeySchema = append(gsi.KeySchema, table.KeySchemaElement{
		AttributeName: attr,
		Role:          role,
	})

	if opts.Projection != nil {
		b.setProjection(gsi, *opts.Projection)
	}
	b.mergeAttribute(attr, kind)
	return b
}

// Finalize names the table, applies table-level options and returns the validated definition.
// The Builder can not be used after Finalize.
func (b *Builder) Finalize(name string, opts ...TableOption) (Definition, error) {
	if b.finalized {
		return Definition{}, errors.New("table definition already finalized")
	}
	b.finalized = true

	o := tableOptions{name: name}
	for _, opt := range opts {
		opt(&o)
	}
	b.def.Name = o.name
	if o.billing != "" {
		b.def.BillingMode = o.billing
	}
	if o.throughput != nil {
		b.def.Throughput = *o.throughput
		for i := range b.def.GSIs {
			if b.inheritedThroughput[b.def.GSIs[i].Name] {
				b.def.GSIs[i].Throughput = *o.throughput
			}
		}
	}
	for _, it := range o.indexThroughput {
		gsi := b.index(it.index)
		if gsi == nil {
			b.fail(fmt.Errorf("throughput for unknown index %q", it.index))
			continue
		}
		gsi.Throughput = it.throughput
	}
	for _, ip := range o.indexProjection {
		gsi := b.index(ip.index)
		if gsi == nil {
			b.fail(fmt.Errorf("projection for unknown index %q", ip.index))
			continue
		}
		b.setProjection(gsi, ip.projection)
	}
	if o.ttl != "" {
		b.def.TimeToLiveKey = o.ttl
	}

	sortHashFirst(b.def.KeySchema)
	for i := range b.def.GSIs {
		sortHashFirst(b.def.GSIs[i].KeySchema)
	}

	if len(b.errs) > 0 {
		return Definition{}, fmt.Errorf("table %q: %w", b.def.Name, errors.Join(b.errs...))
	}
	if err := b.def.Validate(); err != nil {
		return Definition{}, err
	}
	return Definition{
		Table:        b.def,
		AutoGenerate: b.autoGenerate,
	}, nil
}

// Definition is the result of a finalized Builder.
type Definition struct {
	Table table.TableDefinition
	// Attribute name filled on put when empty, or "".
	AutoGenerate string
}

func (b *Builder) check(attr string, kind table.KeyKind) bool {
	if b.finalized {
		b.fail(fmt.Errorf("attribute %q declared after the table was finalized", attr))
		return false
	}
	if attr == "" {
		b.fail(errors.New("attribute name is required"))
		return false
	}
	if !kind.Valid() {
		b.fail(fmt.Errorf("attribute %q: invalid kind %q", attr, kind))
		return false
	}
	return true
}

// mergeAttribute records the attribute type once. The same attribute may back a
// table key and any number of index keys, but always with the same kind.
func (b *Builder) mergeAttribute(attr string, kind table.KeyKind) {
	for _, existing := range b.def.AttributeDefinitions {
		if existing.Name != attr {
			continue
		}
		if existing.Kind != kind {
			b.fail(fmt.Errorf("attribute %q declared with kind %q and %q", attr, existing.Kind, kind))
		}
		return
	}
	b.def.AttributeDefinitions = append(b.def.AttributeDefinitions, table.AttributeDefinition{
		Name: attr,
		Kind: kind,
	})
}

func (b *Builder) setProjection(gsi *table.GSIDefinition, p table.Projection) {
	if b.explicitProjection[gsi.Name] && !sameProjection(gsi.Projection, p) {
		b.fail(fmt.Errorf("index %q: conflicting projections %s and %s", gsi.Name, gsi.Projection.Type, p.Type))
		return
	}
	p.NonKeyAttributes = append([]string(nil), p.NonKeyAttributes...)
	gsi.Projection = p
	b.explicitProjection[gsi.Name] = true
}

func (b *Builder) index(name string) *table.GSIDefinition {
	for i := range b.def.GSIs {
		if b.def.GSIs[i].Name == name {
			return &b.def.GSIs[i]
		}
	}
	return nil
}

func (b *Builder) fail(err error) {
	b.errs = append(b.errs, err)
}

func sortHashFirst(schema []table.KeySchemaElement) {
	sort.SliceStable(schema, func(i, j int) bool {
		return schema[i].Role == table.KeyRoleHash && schema[j].Role != table.KeyRoleHash
	})
}

func sameProjection(a, b table.Projection) bool {
	if a.Type != b.Type || len(a.NonKeyAttributes) != len(b.NonKeyAttributes) {
		return false
	}
	for i := range a.NonKeyAttributes {
		if a.NonKeyAttributes[i] != b.NonKeyAttributes[i] {
			return false
		}
	}
	return true
}
