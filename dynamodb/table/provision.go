package table

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CreateTableInput renders the definition in the CreateTable vocabulary.
// Throughput is only sent for provisioned tables, on the table and on each index.
func (t TableDefinition) CreateTableInput() *dynamodb.CreateTableInput {
	in := &dynamodb.CreateTableInput{
		TableName:            aws.String(t.Name),
		KeySchema:            keySchemaDDB(t.KeySchema),
		AttributeDefinitions: make([]types.AttributeDefinition, 0, len(t.AttributeDefinitions)),
	}
	for _, attr := range t.AttributeDefinitions {
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(attr.Name),
			AttributeType: types.ScalarAttributeType(attr.Kind),
		})
	}

	provisioned := t.BillingMode != BillingPayPerRequest
	if provisioned {
		in.BillingMode = types.BillingModeProvisioned
		in.ProvisionedThroughput = t.Throughput.ddb()
	} else {
		in.BillingMode = types.BillingModePayPerRequest
	}

	for _, gsi := range t.GSIs {
		g := types.GlobalSecondaryIndex{
			IndexName:  aws.String(gsi.Name),
			KeySchema:  keySchemaDDB(gsi.KeySchema),
			Projection: gsi.Projection.ddb(),
		}
		if provisioned {
			g.ProvisionedThroughput = gsi.Throughput.ddb()
		}
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, g)
	}
	return in
}

func keySchemaDDB(schema []KeySchemaElement) []types.KeySchemaElement {
	out := make([]types.KeySchemaElement, 0, len(schema))
	for _, el := range schema {
		out = append(out, types.KeySchemaElement{
			AttributeName: aws.String(el.AttributeName),
			KeyType:       types.KeyType(el.Role),
		})
	}
	return out
}

func (tp Throughput) ddb() *types.ProvisionedThroughput {
	return &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(tp.ReadCapacityUnits),
		WriteCapacityUnits: aws.Int64(tp.WriteCapacityUnits),
	}
}

func (p Projection) ddb() *types.Projection {
	out := &types.Projection{
		ProjectionType: types.ProjectionType(p.Type),
	}
	if p.Type == ProjectInclude {
		out.NonKeyAttributes = append([]string(nil), p.NonKeyAttributes...)
	}
	return out
}
