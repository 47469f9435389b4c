package ddbsdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/ddbdecl/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

type getOptions struct {
	// default to consistent reads
	// because if you don't know what you're doing you may introduce race conditions.
	eventuallyConsistent bool
	projection           []string
}

type GetOption func(*getOptions)

func WithEventualConsistency() GetOption {
	return func(o *getOptions) {
		o.eventuallyConsistent = true
	}
}

// WithGetProjection limits the attributes returned. Unlisted fields keep their zero value.
func WithGetProjection(attrs ...string) GetOption {
	return func(o *getOptions) {
		o.projection = attrs
	}
}

// Get reads the item with the given key. It returns ErrNotFound when there is none.
func (t *Table[T]) Get(ctx context.Context, key table.PrimaryKey, opts ...GetOption) (*T, error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}
	k, err := t.keyDDB(key)
	if err != nil {
		return nil, fmt.Errorf("get from %q: %w", t.Name(), err)
	}
	input := &dynamodb.GetItemInput{
		TableName:      ptr(t.Name()),
		Key:            k,
		ConsistentRead: ptr(!o.eventuallyConsistent),
	}
	if proj, ok := projection(o.projection); ok {
		expr, err := expression.NewBuilder().WithProjection(proj).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build projection: %w", err)
		}
		input.ProjectionExpression = expr.Projection()
		input.ExpressionAttributeNames = expr.Names()
	}

	t.client.logger.Debug("get item",
		zap.String("table", t.Name()),
		zap.Any("key", key.Values),
		zap.Bool("consistent", !o.eventuallyConsistent))
	res, err := t.client.awsddb.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get item from %q failed: %w", t.Name(), err)
	}
	if len(res.Item) == 0 {
		return nil, fmt.Errorf("get item from %q: %w", t.Name(), ErrNotFound)
	}
	return unmarshalItem[T](res.Item)
}

// Exists reports whether an item with the given key exists.
func (t *Table[T]) Exists(ctx context.Context, key table.PrimaryKey) (bool, error) {
	keys := t.entity.Table.KeyDefinitions()
	attrs := []string{keys.PartitionKey.Name}
	if keys.SortKey.Name != "" {
		attrs = append(attrs, keys.SortKey.Name)
	}
	_, err := t.Get(ctx, key, WithGetProjection(attrs...))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
