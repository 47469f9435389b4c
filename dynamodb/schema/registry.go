package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/acksell/ddbdecl/dynamodb/table"
	"go.uber.org/zap"
)

var ErrNotRegistered = errors.New("entity type is not registered")

// TableNamer lets an entity choose its table name. TableName options take precedence.
type TableNamer interface {
	TableName() string
}

// Entity is a registered entity type and the table definition declared by its fields.
type Entity struct {
	Type  reflect.Type
	Table table.TableDefinition
	// Field filled with a generated ID on put when empty. Nil when no key is auto-generated.
	AutoGenerate *FieldRef
}

// FieldRef locates a struct field by attribute name and reflect index path.
type FieldRef struct {
	Attribute string
	Index     []int
}

// FillAutoGenerated sets the auto-generated key of item, a pointer to the entity
// struct, when it holds the zero value. It reports whether a value was generated.
func (e *Entity) FillAutoGenerated(item any, newID func() string) (bool, error) {
	if e.AutoGenerate == nil {
		return false, nil
	}
	v := reflect.ValueOf(item)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Type() != e.Type {
		return false, fmt.Errorf("expected *%s, got %T", e.Type, item)
	}
	f, err := fieldByIndex(v.Elem(), e.AutoGenerate.Index)
	if err != nil {
		return false, fmt.Errorf("auto-generated key %q: %w", e.AutoGenerate.Attribute, err)
	}
	if f.Kind() == reflect.Ptr {
		if !f.IsNil() && f.Elem().String() != "" {
			return false, nil
		}
		p := reflect.New(f.Type().Elem())
		p.Elem().SetString(newID())
		f.Set(p)
		return true, nil
	}
	if f.String() != "" {
		return false, nil
	}
	f.SetString(newID())
	return true, nil
}

// fieldByIndex walks embedded pointers, allocating nil ones so the key can be set.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, fmt.Errorf("nil embedded pointer %s", v.Type())
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}

// Registry holds the table definitions of registered entity types.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Entity
	byName map[string]*Entity
	logger *zap.Logger
}

type RegistryOption func(*Registry)

func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byType: make(map[reflect.Type]*Entity),
		byName: make(map[string]*Entity),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default is the process-wide registry used by Register and MustRegister.
var Default = NewRegistry()

// Register declares the table of entity type T in the Default registry.
func Register[T any](opts ...TableOption) (*Entity, error) {
	return Default.RegisterType(reflect.TypeOf((*T)(nil)).Elem(), opts...)
}

// MustRegister is like Register but panics on an invalid declaration.
// It is intended for package-level variables:
//
//	var Users = schema.MustRegister[User](schema.Throughput(5, 5))
func MustRegister[T any](opts ...TableOption) *Entity {
	e, err := Register[T](opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Register declares the table of the entity's type. entity may be a struct value or pointer.
func (r *Registry) Register(entity any, opts ...TableOption) (*Entity, error) {
	if entity == nil {
		return nil, errors.New("entity is nil")
	}
	return r.RegisterType(reflect.TypeOf(entity), opts...)
}

// RegisterType builds the table definition from the struct tags of t and stores it.
// Registering the same type again replaces its definition.
func (r *Registry) RegisterType(t reflect.Type, opts ...TableOption) (*Entity, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity must be a struct, got %s", t.Kind())
	}

	e, err := buildEntity(t, opts)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", t, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[e.Table.Name]; ok && existing.Type != t {
		return nil, fmt.Errorf("register %s: table %q already registered by %s", t, e.Table.Name, existing.Type)
	}
	if previous, ok := r.byType[t]; ok {
		delete(r.byName, previous.Table.Name)
	}
	r.byType[t] = e
	r.byName[e.Table.Name] = e
	r.logger.Debug("registered table",
		zap.String("table", e.Table.Name),
		zap.String("type", t.String()),
		zap.Int("indexes", len(e.Table.GSIs)))
	return e, nil
}

func buildEntity(t reflect.Type, opts []TableOption) (*Entity, error) {
	fields, err := collectFields(t)
	if err != nil {
		return nil, err
	}
	autogen, err := autoGenerateField(fields)
	if err != nil {
		return nil, err
	}

	b := NewBuilder()
	for _, f := range fields {
		for _, d := range f.decls {
			switch d.kind {
			case declKey:
				b.AddKey(f.attr, f.kind, KeyOptions{
					Role:         d.role,
					AutoGenerate: autogen != nil && autogen.attr == f.attr,
				})
			case declIndex:
				b.AddIndex(f.attr, f.kind, IndexOptions{
					Name:       d.index,
					Role:       d.role,
					Projection: d.projection,
				})
			}
		}
	}

	name := t.Name()
	if namer, ok := reflect.New(t).Interface().(TableNamer); ok {
		if n := namer.TableName(); n != "" {
			name = n
		}
	}
	def, err := b.Finalize(name, opts...)
	if err != nil {
		return nil, err
	}

	e := &Entity{Type: t, Table: def.Table}
	if autogen != nil {
		e.AutoGenerate = &FieldRef{Attribute: autogen.attr, Index: autogen.index}
	}
	return e, nil
}

// autoGenerateField picks the key filled on put. An explicit autogen wins;
// otherwise a string HASH key is auto-generated unless it opts out with noautogen.
func autoGenerateField(fields []fieldDecl) (*fieldDecl, error) {
	var explicit, implicit *fieldDecl
	for i := range fields {
		f := &fields[i]
		for _, d := range f.decls {
			if d.kind != declKey {
				continue
			}
			switch {
			case d.autogen != nil && *d.autogen:
				if !isStringType(f.goTyp) {
					return nil, fmt.Errorf("key %q: only string fields can be auto-generated", f.attr)
				}
				if explicit != nil && explicit != f {
					return nil, fmt.Errorf("keys %q and %q both declare autogen", explicit.attr, f.attr)
				}
				explicit = f
			case d.autogen == nil && (d.role == "" || d.role == table.KeyRoleHash) && isStringType(f.goTyp):
				implicit = f
			}
		}
	}
	if explicit != nil {
		return explicit, nil
	}
	return implicit, nil
}

func isStringType(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.String
}

// Lookup returns the entity registered for t, which may be a pointer type.
func (r *Registry) Lookup(t reflect.Type) (*Entity, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("%s: %w", t, ErrNotRegistered)
	}
	return e, nil
}

// LookupTable returns the entity registered under the table name.
func (r *Registry) LookupTable(name string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, ErrNotRegistered)
	}
	return e, nil
}

// Tables returns every registered table definition sorted by name.
func (r *Registry) Tables() []table.TableDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]table.TableDefinition, 0, len(r.byName))
	for _, e := range r.byName {
		defs = append(defs, e.Table)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Clear removes all registrations. Useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType = make(map[reflect.Type]*Entity)
	r.byName = make(map[string]*Entity)
}
