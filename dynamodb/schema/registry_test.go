package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/acksell/ddbdecl/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID       string    `dynamodbav:"id" ddb:"key"`
	Org      string    `dynamodbav:"org" ddb:"index=byOrg"`
	Email    string    `dynamodbav:"email,omitempty" ddb:"index=byOrg,range;index=byEmail,projection=all"`
	JoinedAt time.Time `dynamodbav:"joinedAt"`
}

type event struct {
	Stream string `dynamodbav:"stream" ddb:"key,noautogen"`
	Seq    int64  `dynamodbav:"seq" ddb:"key,range"`
	Kind   string `ddb:"index=byKind"`
}

type namedEntity struct {
	PK string `dynamodbav:"pk" ddb:"key"`
}

func (namedEntity) TableName() string { return "named-entities" }

type Base struct {
	ID string `dynamodbav:"id" ddb:"key"`
}

type withEmbedded struct {
	*Base
	Name string `dynamodbav:"name"`
}

type explicitRangeAutogen struct {
	Tenant string `dynamodbav:"tenant" ddb:"key,noautogen"`
	ID     string `dynamodbav:"id" ddb:"key,range,autogen"`
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	e, err := r.Register(user{})
	require.NoError(t, err)

	require.Equal(t, "user", e.Table.Name)
	require.Equal(t, []table.KeySchemaElement{{AttributeName: "id", Role: table.KeyRoleHash}}, e.Table.KeySchema)
	require.Equal(t, []table.AttributeDefinition{
		{Name: "id", Kind: table.KeyKindS},
		{Name: "org", Kind: table.KeyKindS},
		{Name: "email", Kind: table.KeyKindS},
	}, e.Table.AttributeDefinitions)

	require.Len(t, e.Table.GSIs, 2)
	byOrg, ok := e.Table.GSI("byOrg")
	require.True(t, ok)
	require.Equal(t, []table.KeySchemaElement{
		{AttributeName: "org", Role: table.KeyRoleHash},
		{AttributeName: "email", Role: table.KeyRoleRange},
	}, byOrg.KeySchema)
	require.Equal(t, table.ProjectKeysOnly, byOrg.Projection.Type)

	byEmail, ok := e.Table.GSI("byEmail")
	require.True(t, ok)
	require.Equal(t, table.ProjectAll, byEmail.Projection.Type)

	require.NotNil(t, e.AutoGenerate)
	require.Equal(t, "id", e.AutoGenerate.Attribute)
}

func TestRegistry_RegisterGeneric(t *testing.T) {
	Default.Clear()
	t.Cleanup(Default.Clear)

	e, err := Register[event](Throughput(2, 3))
	require.NoError(t, err)
	require.Equal(t, "event", e.Table.Name)
	require.Nil(t, e.AutoGenerate)
	require.Equal(t, table.Throughput{ReadCapacityUnits: 2, WriteCapacityUnits: 3}, e.Table.Throughput)

	keys := e.Table.KeyDefinitions()
	require.Equal(t, table.KeyDef{Name: "stream", Kind: table.KeyKindS}, keys.PartitionKey)
	require.Equal(t, table.KeyDef{Name: "seq", Kind: table.KeyKindN}, keys.SortKey)

	byKind, ok := e.Table.GSI("byKind")
	require.True(t, ok)
	require.Equal(t, "Kind", byKind.KeySchema[0].AttributeName)

	got, err := Default.Lookup(reflect.TypeOf(&event{}))
	require.NoError(t, err)
	require.Same(t, e, got)
}

func TestRegistry_TableNames(t *testing.T) {
	r := NewRegistry()

	e, err := r.Register(&namedEntity{})
	require.NoError(t, err)
	require.Equal(t, "named-entities", e.Table.Name)

	e, err = r.Register(event{}, TableName("events"))
	require.NoError(t, err)
	require.Equal(t, "events", e.Table.Name)

	_, err = r.LookupTable("events")
	require.NoError(t, err)
	_, err = r.LookupTable("event")
	require.ErrorIs(t, err, ErrNotRegistered)

	_, err = r.Register(user{}, TableName("events"))
	require.ErrorContains(t, err, "already registered")

	// Re-registering a type replaces it and frees its old name.
	_, err = r.Register(event{}, TableName("events-v2"))
	require.NoError(t, err)
	_, err = r.LookupTable("events")
	require.ErrorIs(t, err, ErrNotRegistered)

	names := []string{}
	for _, def := range r.Tables() {
		names = append(names, def.Name)
	}
	require.Equal(t, []string{"events-v2", "named-entities"}, names)

	r.Clear()
	require.Empty(t, r.Tables())
	_, err = r.Lookup(reflect.TypeOf(event{}))
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegistry_Errors(t *testing.T) {
	type noKey struct {
		Name string `dynamodbav:"name"`
	}
	type badTag struct {
		ID string `ddb:"primary"`
	}
	type badOption struct {
		ID string `ddb:"key,projection=all"`
	}
	type mapKey struct {
		ID map[string]string `ddb:"key"`
	}
	type ignored struct {
		ID string `dynamodbav:"-" ddb:"key"`
	}
	type numericAutogen struct {
		ID int `ddb:"key,autogen"`
	}
	type twoAutogen struct {
		A string `ddb:"key,autogen"`
		B string `ddb:"key,range,autogen"`
	}
	type includeTag struct {
		ID  string `ddb:"key"`
		Org string `ddb:"index,projection=include"`
	}

	tests := []struct {
		name   string
		entity any
		errMsg string
	}{
		{"no key", noKey{}, "exactly one HASH"},
		{"unknown declaration", badTag{}, "unknown declaration"},
		{"projection on key", badOption{}, "only applies to indexes"},
		{"unsupported key type", mapKey{}, "can not be used as a key"},
		{"ignored field", ignored{}, "ignored by the marshaler"},
		{"numeric autogen", numericAutogen{}, "only string fields"},
		{"two autogen", twoAutogen{}, "both declare autogen"},
		{"include in tag", includeTag{}, "IndexProjection"},
		{"not a struct", 42, "must be a struct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry().Register(tt.entity)
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestRegistry_ExplicitKind(t *testing.T) {
	type stamped struct {
		ID  string `ddb:"key"`
		Day day    `ddb:"index=byDay,kind=n"`
	}
	e, err := NewRegistry().Register(stamped{})
	require.NoError(t, err)
	attr, ok := e.Table.Attribute("Day")
	require.True(t, ok)
	require.Equal(t, table.KeyKindN, attr.Kind)
}

type day struct{ n int }

type shadowBase struct {
	ID     string `dynamodbav:"id" ddb:"key"`
	Region string `dynamodbav:"region" ddb:"index=byRegion"`
}

type shadowing struct {
	shadowBase
	ID string `dynamodbav:"id" ddb:"key,noautogen"`
}

type leftKey struct {
	Key string `dynamodbav:"key" ddb:"key"`
}

type rightKey struct {
	Key string `dynamodbav:"key" ddb:"key"`
}

type taggedID struct {
	ID string `dynamodbav:"ID" ddb:"key"`
}

type untaggedID struct {
	ID string `ddb:"key,range"`
}

func TestRegistry_AttributeNames(t *testing.T) {
	t.Run("json tag is not consulted", func(t *testing.T) {
		type jsonNamed struct {
			ID string `json:"id" ddb:"key"`
		}
		e, err := NewRegistry().Register(jsonNamed{})
		require.NoError(t, err)
		require.Equal(t, []table.KeySchemaElement{{AttributeName: "ID", Role: table.KeyRoleHash}}, e.Table.KeySchema)

		item, err := attributevalue.MarshalMap(jsonNamed{ID: "x"})
		require.NoError(t, err)
		require.Contains(t, item, "ID")
		require.NotContains(t, item, "id")
	})

	t.Run("outer field hides embedded one", func(t *testing.T) {
		e, err := NewRegistry().Register(shadowing{})
		require.NoError(t, err)
		require.Equal(t, []table.KeySchemaElement{{AttributeName: "id", Role: table.KeyRoleHash}}, e.Table.KeySchema)
		// The outer declaration opts out of auto-generation, so it is the one in effect.
		require.Nil(t, e.AutoGenerate)
		_, ok := e.Table.GSI("byRegion")
		require.True(t, ok)

		item, err := attributevalue.MarshalMap(shadowing{shadowBase: shadowBase{ID: "inner"}, ID: "outer"})
		require.NoError(t, err)
		require.Equal(t, &types.AttributeValueMemberS{Value: "outer"}, item["id"])
	})

	t.Run("ambiguous names at the same depth are hidden", func(t *testing.T) {
		type ambiguous struct {
			leftKey
			rightKey
			Name string `dynamodbav:"name"`
		}
		_, err := NewRegistry().Register(ambiguous{})
		require.ErrorContains(t, err, "exactly one HASH")

		item, err := attributevalue.MarshalMap(ambiguous{leftKey{"l"}, rightKey{"r"}, "n"})
		require.NoError(t, err)
		require.NotContains(t, item, "key")
	})

	t.Run("tagged name wins at the same depth", func(t *testing.T) {
		type mixed struct {
			taggedID
			untaggedID
		}
		e, err := NewRegistry().Register(mixed{})
		require.NoError(t, err)
		require.Equal(t, []table.KeySchemaElement{{AttributeName: "ID", Role: table.KeyRoleHash}}, e.Table.KeySchema)
	})
}

func TestEntity_FillAutoGenerated(t *testing.T) {
	r := NewRegistry()
	newID := func() string { return "generated" }

	t.Run("empty hash key", func(t *testing.T) {
		e, err := r.Register(user{})
		require.NoError(t, err)
		u := &user{}
		filled, err := e.FillAutoGenerated(u, newID)
		require.NoError(t, err)
		require.True(t, filled)
		require.Equal(t, "generated", u.ID)
	})

	t.Run("existing value kept", func(t *testing.T) {
		e, err := r.Register(user{})
		require.NoError(t, err)
		u := &user{ID: "mine"}
		filled, err := e.FillAutoGenerated(u, newID)
		require.NoError(t, err)
		require.False(t, filled)
		require.Equal(t, "mine", u.ID)
	})

	t.Run("explicit range key", func(t *testing.T) {
		e, err := r.Register(explicitRangeAutogen{})
		require.NoError(t, err)
		require.Equal(t, "id", e.AutoGenerate.Attribute)
		v := &explicitRangeAutogen{Tenant: "acme"}
		filled, err := e.FillAutoGenerated(v, newID)
		require.NoError(t, err)
		require.True(t, filled)
		require.Equal(t, "generated", v.ID)
		require.Equal(t, "acme", v.Tenant)
	})

	t.Run("nil embedded pointer", func(t *testing.T) {
		e, err := r.Register(withEmbedded{})
		require.NoError(t, err)
		require.Equal(t, "id", e.AutoGenerate.Attribute)
		v := &withEmbedded{Name: "x"}
		filled, err := e.FillAutoGenerated(v, newID)
		require.NoError(t, err)
		require.True(t, filled)
		require.NotNil(t, v.Base)
		require.Equal(t, "generated", v.ID)
	})

	t.Run("no auto-generated key", func(t *testing.T) {
		e, err := r.Register(event{})
		require.NoError(t, err)
		filled, err := e.FillAutoGenerated(&event{}, newID)
		require.NoError(t, err)
		require.False(t, filled)
	})

	t.Run("wrong type", func(t *testing.T) {
		e, err := r.Register(user{})
		require.NoError(t, err)
		_, err = e.FillAutoGenerated(user{}, newID)
		require.Error(t, err)
	})
}
