package table

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

var pkOnlyTable = TableDefinition{
	Name:                 "users",
	KeySchema:            []KeySchemaElement{{AttributeName: "id", Role: KeyRoleHash}},
	AttributeDefinitions: []AttributeDefinition{{Name: "id", Kind: KeyKindS}},
	Throughput:           DefaultThroughput(),
	BillingMode:          BillingProvisioned,
}

var pkAndSKTable = TableDefinition{
	Name: "events",
	KeySchema: []KeySchemaElement{
		{AttributeName: "stream", Role: KeyRoleHash},
		{AttributeName: "seq", Role: KeyRoleRange},
	},
	AttributeDefinitions: []AttributeDefinition{
		{Name: "stream", Kind: KeyKindS},
		{Name: "seq", Kind: KeyKindN},
		{Name: "kind", Kind: KeyKindS},
	},
	GSIs: []GSIDefinition{
		{
			Name:       "byKind",
			KeySchema:  []KeySchemaElement{{AttributeName: "kind", Role: KeyRoleHash}, {AttributeName: "seq", Role: KeyRoleRange}},
			Projection: KeysOnly(),
			Throughput: DefaultThroughput(),
		},
	},
	Throughput:  DefaultThroughput(),
	BillingMode: BillingProvisioned,
}

func TestDefaultTableDefinition(t *testing.T) {
	a := DefaultTableDefinition()
	b := DefaultTableDefinition()
	a.KeySchema = append(a.KeySchema, KeySchemaElement{AttributeName: "id", Role: KeyRoleHash})
	a.Throughput.ReadCapacityUnits = 99

	require.Empty(t, b.KeySchema, "defaults must not share state")
	require.Equal(t, int64(10), b.Throughput.ReadCapacityUnits)
	require.Equal(t, int64(10), b.Throughput.WriteCapacityUnits)
	require.Empty(t, b.Name)
	require.Empty(t, b.AttributeDefinitions)
}

func TestKeyDefinitions(t *testing.T) {
	def := pkAndSKTable.KeyDefinitions()
	require.Equal(t, KeyDef{Name: "stream", Kind: KeyKindS}, def.PartitionKey)
	require.Equal(t, KeyDef{Name: "seq", Kind: KeyKindN}, def.SortKey)

	gsi, ok := pkAndSKTable.GSI("byKind")
	require.True(t, ok)
	idx := pkAndSKTable.IndexKeyDefinitions(gsi)
	require.Equal(t, KeyDef{Name: "kind", Kind: KeyKindS}, idx.PartitionKey)

	_, ok = pkAndSKTable.GSI("missing")
	require.False(t, ok)
}

func TestTableKey(t *testing.T) {
	t.Run("partition only", func(t *testing.T) {
		pk, err := pkOnlyTable.Key("u1")
		require.NoError(t, err)
		av, err := pk.DDB()
		require.NoError(t, err)
		require.Equal(t, &types.AttributeValueMemberS{Value: "u1"}, av["id"])
		require.Len(t, av, 1)
	})
	t.Run("partition only rejects sort value", func(t *testing.T) {
		_, err := pkOnlyTable.Key("u1", "x")
		require.Error(t, err)
	})
	t.Run("sort key required", func(t *testing.T) {
		_, err := pkAndSKTable.Key("s1")
		require.Error(t, err)
	})
	t.Run("partition and sort", func(t *testing.T) {
		pk, err := pkAndSKTable.Key("s1", 42)
		require.NoError(t, err)
		av, err := pk.DDB()
		require.NoError(t, err)
		require.Equal(t, &types.AttributeValueMemberN{Value: "42"}, av["seq"])
	})
	t.Run("kind mismatch", func(t *testing.T) {
		pk, err := pkAndSKTable.Key("s1", "not-a-number")
		require.NoError(t, err)
		_, err = pk.DDB()
		require.ErrorContains(t, err, "kind does not match")
	})
}

func TestExtractPrimaryKey(t *testing.T) {
	doc := map[string]types.AttributeValue{
		"stream": &types.AttributeValueMemberS{Value: "s1"},
		"seq":    &types.AttributeValueMemberN{Value: "7"},
		"other":  &types.AttributeValueMemberS{Value: "ignored"},
	}
	pk, err := pkAndSKTable.KeyDefinitions().ExtractPrimaryKey(doc)
	require.NoError(t, err)
	require.Equal(t, "s1", pk.Values.PartitionKey)
	require.Equal(t, "7", pk.Values.SortKey)

	delete(doc, "seq")
	_, err = pkAndSKTable.KeyDefinitions().ExtractPrimaryKey(doc)
	require.ErrorContains(t, err, "sort key")
}

func TestValidate(t *testing.T) {
	require.NoError(t, pkOnlyTable.Validate())
	require.NoError(t, pkAndSKTable.Validate())

	tests := []struct {
		name   string
		mutate func(*TableDefinition)
		errMsg string
	}{
		{"no name", func(d *TableDefinition) { d.Name = "" }, "table name is required"},
		{"no hash key", func(d *TableDefinition) { d.KeySchema = d.KeySchema[1:] }, "exactly one HASH"},
		{"range first", func(d *TableDefinition) {
			d.KeySchema = []KeySchemaElement{d.KeySchema[1], d.KeySchema[0]}
		}, "HASH key must come first"},
		{"missing attribute", func(d *TableDefinition) {
			d.AttributeDefinitions = d.AttributeDefinitions[1:]
		}, "has no attribute definition"},
		{"duplicate attribute", func(d *TableDefinition) {
			d.AttributeDefinitions = append(d.AttributeDefinitions, AttributeDefinition{Name: "stream", Kind: KeyKindS})
		}, "defined more than once"},
		{"zero throughput", func(d *TableDefinition) { d.Throughput = Throughput{} }, "provisioned throughput"},
		{"unset billing mode checks throughput", func(d *TableDefinition) {
			d.BillingMode = ""
			d.Throughput = Throughput{}
		}, "provisioned throughput"},
		{"unset billing mode checks index throughput", func(d *TableDefinition) {
			d.BillingMode = ""
			d.GSIs[0].Throughput = Throughput{}
		}, "index \"byKind\""},
		{"duplicate index", func(d *TableDefinition) { d.GSIs = append(d.GSIs, d.GSIs[0]) }, "index \"byKind\" defined more than once"},
		{"include without attributes", func(d *TableDefinition) {
			d.GSIs[0].Projection = Projection{Type: ProjectInclude}
		}, "requires non-key attributes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := clone(pkAndSKTable)
			tt.mutate(&def)
			require.ErrorContains(t, def.Validate(), tt.errMsg)
		})
	}

	t.Run("pay per request ignores throughput", func(t *testing.T) {
		def := clone(pkAndSKTable)
		def.BillingMode = BillingPayPerRequest
		def.Throughput = Throughput{}
		def.GSIs[0].Throughput = Throughput{}
		require.NoError(t, def.Validate())
	})
}

func TestCreateTableInput(t *testing.T) {
	in := pkAndSKTable.CreateTableInput()
	require.Equal(t, "events", aws.ToString(in.TableName))
	require.Equal(t, types.BillingModeProvisioned, in.BillingMode)
	require.Equal(t, int64(10), aws.ToInt64(in.ProvisionedThroughput.ReadCapacityUnits))
	require.Equal(t, []types.KeySchemaElement{
		{AttributeName: aws.String("stream"), KeyType: types.KeyTypeHash},
		{AttributeName: aws.String("seq"), KeyType: types.KeyTypeRange},
	}, in.KeySchema)
	require.Len(t, in.AttributeDefinitions, 3)
	require.Equal(t, types.ScalarAttributeTypeN, in.AttributeDefinitions[1].AttributeType)
	require.Len(t, in.GlobalSecondaryIndexes, 1)
	gsi := in.GlobalSecondaryIndexes[0]
	require.Equal(t, "byKind", aws.ToString(gsi.IndexName))
	require.Equal(t, types.ProjectionTypeKeysOnly, gsi.Projection.ProjectionType)
	require.NotNil(t, gsi.ProvisionedThroughput)

	t.Run("pay per request", func(t *testing.T) {
		def := clone(pkAndSKTable)
		def.BillingMode = BillingPayPerRequest
		in := def.CreateTableInput()
		require.Equal(t, types.BillingModePayPerRequest, in.BillingMode)
		require.Nil(t, in.ProvisionedThroughput)
		require.Nil(t, in.GlobalSecondaryIndexes[0].ProvisionedThroughput)
	})
}

func TestParseProjectionType(t *testing.T) {
	for in, want := range map[string]ProjectionType{
		"all":       ProjectAll,
		"KEYS_ONLY": ProjectKeysOnly,
		"include":   ProjectInclude,
	} {
		got, err := ParseProjectionType(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}
	_, err := ParseProjectionType("some")
	require.Error(t, err)
}

func clone(d TableDefinition) TableDefinition {
	d.KeySchema = append([]KeySchemaElement(nil), d.KeySchema...)
	d.AttributeDefinitions = append([]AttributeDefinition(nil), d.AttributeDefinitions...)
	gsis := make([]GSIDefinition, len(d.GSIs))
	for i, g := range d.GSIs {
		g.KeySchema = append([]KeySchemaElement(nil), g.KeySchema...)
		gsis[i] = g
	}
	d.GSIs = gsis
	return d
}
