package schema

import "github.com/acksell/ddbdecl/dynamodb/table"

// TableOption is a table-level declaration applied when the definition is finalized.
type TableOption func(*tableOptions)

type tableOptions struct {
	name            string
	throughput      *table.Throughput
	billing         table.BillingMode
	ttl             string
	indexThroughput []indexThroughput
	indexProjection []indexProjection
}

type indexThroughput struct {
	index      string
	throughput table.Throughput
}

type indexProjection struct {
	index      string
	projection table.Projection
}

// TableName overrides the table name, which defaults to the entity type name.
func TableName(name string) TableOption {
	return func(o *tableOptions) {
		o.name = name
	}
}

// Throughput sets the provisioned throughput of the table and of every index
// that did not declare its own.
func Throughput(read, write int64) TableOption {
	return func(o *tableOptions) {
		o.throughput = &table.Throughput{ReadCapacityUnits: read, WriteCapacityUnits: write}
		o.billing = table.BillingProvisioned
	}
}

// PayPerRequest switches the table to on-demand billing.
func PayPerRequest() TableOption {
	return func(o *tableOptions) {
		o.billing = table.BillingPayPerRequest
	}
}

// TimeToLive names the attribute holding the item expiry epoch.
func TimeToLive(attr string) TableOption {
	return func(o *tableOptions) {
		o.ttl = attr
	}
}

// IndexThroughput sets the provisioned throughput of a single index.
func IndexThroughput(index string, read, write int64) TableOption {
	return func(o *tableOptions) {
		o.indexThroughput = append(o.indexThroughput, indexThroughput{
			index:      index,
			throughput: table.Throughput{ReadCapacityUnits: read, WriteCapacityUnits: write},
		})
	}
}

// IndexProjection sets the projection of a single index, e.g. to INCLUDE a set of attributes.
func IndexProjection(index string, p table.Projection) TableOption {
	return func(o *tableOptions) {
		o.indexProjection = append(o.indexProjection, indexProjection{index: index, projection: p})
	}
}
