package ddbsdk

import (
	"fmt"
	"math"
	"reflect"

	"github.com/acksell/ddbdecl/dynamodb/schema"
	"github.com/acksell/ddbdecl/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// Table is a typed handle on the table declared by entity type T.
type Table[T any] struct {
	client *Client
	entity *schema.Entity
}

// TableOf binds T to its registered table definition.
func TableOf[T any](c *Client) (*Table[T], error) {
	e, err := c.registry.Lookup(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	return &Table[T]{client: c, entity: e}, nil
}

// MustTableOf is like TableOf but panics if T is not registered.
func MustTableOf[T any](c *Client) *Table[T] {
	t, err := TableOf[T](c)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table[T]) Definition() table.TableDefinition {
	return t.entity.Table
}

func (t *Table[T]) Name() string {
	return t.entity.Table.Name
}

// Key builds a primary key of this table.
func (t *Table[T]) Key(partition any, sort ...any) (table.PrimaryKey, error) {
	return t.entity.Table.Key(partition, sort...)
}

// MustKey is like Key but panics when the values do not fit the key schema.
func (t *Table[T]) MustKey(partition any, sort ...any) table.PrimaryKey {
	k, err := t.Key(partition, sort...)
	if err != nil {
		panic(err)
	}
	return k
}

func (t *Table[T]) keyDDB(k table.PrimaryKey) (Item, error) {
	if k.Definition != t.entity.Table.KeyDefinitions() {
		return nil, fmt.Errorf("key does not belong to table %q", t.Name())
	}
	return k.DDB()
}

func projection(attrs []string) (expression.ProjectionBuilder, bool) {
	if len(attrs) == 0 {
		return expression.ProjectionBuilder{}, false
	}
	proj := expression.NamesList(expression.Name(attrs[0]))
	for _, attr := range attrs[1:] {
		proj = proj.AddNames(expression.Name(attr))
	}
	return proj, true
}

// pageLimit turns a requested page size into a request Limit. Sizes below 1 keep
// the fallback; sizes beyond int32 are capped.
func pageLimit(n int, fallback int32) int32 {
	switch {
	case n < 1:
		return fallback
	case n > math.MaxInt32:
		return math.MaxInt32
	}
	return int32(n)
}

func ptr[T any](v T) *T {
	return &v
}
