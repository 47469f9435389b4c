package table

import (
	"errors"
	"fmt"
)

// BillingMode mirrors the DynamoDB billing modes.
type BillingMode string

const (
	BillingProvisioned   BillingMode = "PROVISIONED"
	BillingPayPerRequest BillingMode = "PAY_PER_REQUEST"
)

const (
	DefaultReadCapacityUnits  int64 = 10
	DefaultWriteCapacityUnits int64 = 10
)

type Throughput struct {
	ReadCapacityUnits  int64
	WriteCapacityUnits int64
}

func DefaultThroughput() Throughput {
	return Throughput{
		ReadCapacityUnits:  DefaultReadCapacityUnits,
		WriteCapacityUnits: DefaultWriteCapacityUnits,
	}
}

type KeySchemaElement struct {
	AttributeName string
	Role          KeyRole
}

type AttributeDefinition struct {
	Name string
	Kind KeyKind
}

// TableDefinition is the provisioning shape of one entity table.
// KeySchema and AttributeDefinitions keep the order in which they were declared,
// except that Finalize in package schema moves HASH elements first.
type TableDefinition struct {
	Name                 string
	KeySchema            []KeySchemaElement
	AttributeDefinitions []AttributeDefinition
	GSIs                 []GSIDefinition
	Throughput           Throughput
	BillingMode          BillingMode
	// Attribute holding the expiry epoch, if any. Not part of CreateTable.
	TimeToLiveKey string
}

// DefaultTableDefinition returns an empty definition with default provisioned throughput.
// Every call returns a fresh value.
func DefaultTableDefinition() TableDefinition {
	return TableDefinition{
		KeySchema:            []KeySchemaElement{},
		AttributeDefinitions: []AttributeDefinition{},
		Throughput:           DefaultThroughput(),
		BillingMode:          BillingProvisioned,
	}
}

// GSIDefinition represents a Global Secondary Index definition.
type GSIDefinition struct {
	Name       string
	KeySchema  []KeySchemaElement
	Projection Projection
	Throughput Throughput
}

// GSI returns the index with the given name.
func (t TableDefinition) GSI(name string) (GSIDefinition, bool) {
	for _, gsi := range t.GSIs {
		if gsi.Name == name {
			return gsi, true
		}
	}
	return GSIDefinition{}, false
}

// Attribute returns the attribute definition with the given name.
func (t TableDefinition) Attribute(name string) (AttributeDefinition, bool) {
	for _, attr := range t.AttributeDefinitions {
		if attr.Name == name {
			return attr, true
		}
	}
	return AttributeDefinition{}, false
}

// KeyDefinitions resolves the table key schema into partition and sort key definitions.
func (t TableDefinition) KeyDefinitions() PrimaryKeyDefinition {
	return t.resolveKeys(t.KeySchema)
}

// IndexKeyDefinitions resolves the index key schema using the table's attribute kinds.
func (t TableDefinition) IndexKeyDefinitions(gsi GSIDefinition) PrimaryKeyDefinition {
	return t.resolveKeys(gsi.KeySchema)
}

func (t TableDefinition) resolveKeys(schema []KeySchemaElement) PrimaryKeyDefinition {
	var def PrimaryKeyDefinition
	for _, el := range schema {
		attr, _ := t.Attribute(el.AttributeName)
		kd := KeyDef{Name: el.AttributeName, Kind: attr.Kind}
		switch el.Role {
		case KeyRoleHash:
			def.PartitionKey = kd
		case KeyRoleRange:
			def.SortKey = kd
		}
	}
	return def
}

// Key builds a primary key for this table. The sort value is required when the table has a sort key.
func (t TableDefinition) Key(partition any, sort ...any) (PrimaryKey, error) {
	def := t.KeyDefinitions()
	if len(sort) > 1 {
		return PrimaryKey{}, fmt.Errorf("table %q: expected at most one sort key value, got %d", t.Name, len(sort))
	}
	pk := PrimaryKey{
		Definition: def,
		Values:     PrimaryKeyValues{PartitionKey: partition},
	}
	if def.SortKey.Name == "" {
		if len(sort) == 1 {
			return PrimaryKey{}, fmt.Errorf("table %q has no sort key", t.Name)
		}
		return pk, nil
	}
	if len(sort) == 0 {
		return PrimaryKey{}, fmt.Errorf("table %q requires a value for sort key %q", t.Name, def.SortKey.Name)
	}
	pk.Values.SortKey = sort[0]
	return pk, nil
}

// Validate checks the definition is acceptable to CreateTable.
func (t TableDefinition) Validate() error {
	if t.Name == "" {
		return errors.New("table name is required")
	}
	if err := t.validateKeySchema(t.KeySchema); err != nil {
		return fmt.Errorf("table %q: %w", t.Name, err)
	}
	seen := make(map[string]bool, len(t.AttributeDefinitions))
	for _, attr := range t.AttributeDefinitions {
		if seen[attr.Name] {
			return fmt.Errorf("table %q: attribute %q defined more than once", t.Name, attr.Name)
		}
		seen[attr.Name] = true
		if !attr.Kind.Valid() {
			return fmt.Errorf("table %q: attribute %q has invalid kind %q", t.Name, attr.Name, attr.Kind)
		}
	}
	// CreateTableInput provisions every mode other than PAY_PER_REQUEST, the empty one included.
	provisioned := t.BillingMode != BillingPayPerRequest
	if provisioned {
		if err := t.Throughput.validate(); err != nil {
			return fmt.Errorf("table %q: %w", t.Name, err)
		}
	}
	indexNames := make(map[string]bool, len(t.GSIs))
	for _, gsi := range t.GSIs {
		if gsi.Name == "" {
			return fmt.Errorf("table %q: index name is required", t.Name)
		}
		if indexNames[gsi.Name] {
			return fmt.Errorf("table %q: index %q defined more than once", t.Name, gsi.Name)
		}
		indexNames[gsi.Name] = true
		if err := t.validateKeySchema(gsi.KeySchema); err != nil {
			return fmt.Errorf("table %q: index %q: %w", t.Name, gsi.Name, err)
		}
		if err := gsi.Projection.validate(); err != nil {
			return fmt.Errorf("table %q: index %q: %w", t.Name, gsi.Name, err)
		}
		if provisioned {
			if err := gsi.Throughput.validate(); err != nil {
				return fmt.Errorf("table %q: index %q: %w", t.Name, gsi.Name, err)
			}
		}
	}
	return nil
}

func (t TableDefinition) validateKeySchema(schema []KeySchemaElement) error {
	var hash, rng int
	for _, el := range schema {
		if _, ok := t.Attribute(el.AttributeName); !ok {
			return fmt.Errorf("key attribute %q has no attribute definition", el.AttributeName)
		}
		switch el.Role {
		case KeyRoleHash:
			hash++
		case KeyRoleRange:
			rng++
		default:
			return fmt.Errorf("key attribute %q has invalid role %q", el.AttributeName, el.Role)
		}
	}
	if hash != 1 {
		return fmt.Errorf("expected exactly one HASH key, got %d", hash)
	}
	if rng > 1 {
		return fmt.Errorf("expected at most one RANGE key, got %d", rng)
	}
	if schema[0].Role != KeyRoleHash {
		return fmt.Errorf("HASH key must come first in key schema")
	}
	return nil
}

func (tp Throughput) validate() error {
	if tp.ReadCapacityUnits < 1 || tp.WriteCapacityUnits < 1 {
		return fmt.Errorf("provisioned throughput must be at least 1, got read=%d write=%d", tp.ReadCapacityUnits, tp.WriteCapacityUnits)
	}
	return nil
}
