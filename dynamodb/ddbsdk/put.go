package ddbsdk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acksell/ddbdecl/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

type putOptions struct {
	c           expression.ConditionBuilder
	ifNotExists bool
	ttlExpiry   *time.Time
}

type PutOption func(*putOptions)

// WithPutCondition adds a condition expression. Multiple conditions are ANDed.
func WithPutCondition(c expression.ConditionBuilder) PutOption {
	return func(o *putOptions) {
		if o.c.IsSet() {
			o.c = o.c.And(c)
			return
		}
		o.c = c
	}
}

// IfNotExists fails the put with a ConditionalCheckFailedException when an item
// with the same key already exists.
func IfNotExists() PutOption {
	return func(o *putOptions) {
		o.ifNotExists = true
	}
}

// WithTTL sets the time to live attribute of the table on the written item.
func WithTTL(expiry time.Time) PutOption {
	return func(o *putOptions) {
		o.ttlExpiry = &expiry
	}
}

// Put writes item, replacing any item with the same key. When the table has an
// auto-generated key and item leaves it empty, a new ID is assigned first.
// The returned item is item itself, including the generated key.
func (t *Table[T]) Put(ctx context.Context, item *T, opts ...PutOption) (*T, error) {
	if item == nil {
		return nil, errors.New("put: item is nil")
	}
	input, generated, err := t.toPutItem(item, opts)
	if err != nil {
		return nil, fmt.Errorf("put into %q: %w", t.Name(), err)
	}

	t.client.logger.Debug("put item",
		zap.String("table", t.Name()),
		zap.Bool("generatedKey", generated),
		zap.Bool("conditional", input.ConditionExpression != nil))
	if _, err := t.client.awsddb.PutItem(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to put item into %q: %w", t.Name(), err)
	}
	return item, nil
}

func (t *Table[T]) toPutItem(item *T, opts []PutOption) (*dynamodb.PutItemInput, bool, error) {
	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}

	generated, err := t.entity.FillAutoGenerated(item, t.client.ids.NewID)
	if err != nil {
		return nil, false, err
	}
	av, err := t.client.marshalItem(item)
	if err != nil {
		return nil, false, err
	}
	def := t.entity.Table
	if o.ttlExpiry != nil {
		if def.TimeToLiveKey == "" {
			return nil, false, errors.New("table has no time to live attribute")
		}
		av[def.TimeToLiveKey] = ttlDDB(*o.ttlExpiry)
	}
	dropEmptyIndexKeys(def, av)
	keys := def.KeyDefinitions()
	if _, err := keys.ExtractPrimaryKey(av); err != nil {
		return nil, false, fmt.Errorf("invalid item key: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: ptr(def.Name),
		Item:      av,
	}
	c := o.c
	if o.ifNotExists {
		notExists := expression.AttributeNotExists(expression.Name(keys.PartitionKey.Name))
		if c.IsSet() {
			c = notExists.And(c)
		} else {
			c = notExists
		}
	}
	if c.IsSet() {
		expr, err := expression.NewBuilder().WithCondition(c).Build()
		if err != nil {
			return nil, false, fmt.Errorf("build: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}
	return input, generated, nil
}

// dropEmptyIndexKeys leaves items out of indexes whose key they do not set.
// DynamoDB rejects index key attributes that are empty or NULL.
func dropEmptyIndexKeys(def table.TableDefinition, item Item) {
	for _, gsi := range def.GSIs {
		for _, el := range gsi.KeySchema {
			if isEmptyValue(item[el.AttributeName]) {
				delete(item, el.AttributeName)
			}
		}
	}
}

func isEmptyValue(av types.AttributeValue) bool {
	switch v := av.(type) {
	case *types.AttributeValueMemberNULL:
		return true
	case *types.AttributeValueMemberS:
		return v.Value == ""
	case *types.AttributeValueMemberB:
		return len(v.Value) == 0
	}
	return false
}
