package ddbsdk

import (
	"context"
	"fmt"

	"github.com/acksell/ddbdecl/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Delete removes a single item by key.
type Delete struct {
	Key table.PrimaryKey

	c         expression.ConditionBuilder
	returnOld bool
}

func NewDelete(pk table.PrimaryKey) *Delete {
	return &Delete{Key: pk}
}

// WithCondition adds a condition expression. Multiple conditions are ANDed.
func (d *Delete) WithCondition(c expression.ConditionBuilder) *Delete {
	if d.c.IsSet() {
		d.c = d.c.And(c)
		return d
	}
	d.c = c
	return d
}

// WithReturnOld makes Delete return the item as it was before deletion.
func (d *Delete) WithReturnOld() *Delete {
	d.returnOld = true
	return d
}

func (d *Delete) Build() (expression.Expression, error) {
	b := expression.NewBuilder()
	if d.c.IsSet() {
		b = b.WithCondition(d.c)
	}
	e, err := b.Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("build: %w", err)
	}
	return e, nil
}

func (d *Delete) toDeleteItem(tableName string, key Item) (*dynamodb.DeleteItemInput, error) {
	input := &dynamodb.DeleteItemInput{
		TableName: ptr(tableName),
		Key:       key,
	}
	if d.returnOld {
		input.ReturnValues = types.ReturnValueAllOld
	}
	if !d.c.IsSet() {
		return input, nil
	}
	e, err := d.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build delete: %w", err)
	}
	input.ConditionExpression = e.Condition()
	input.ExpressionAttributeValues = e.Values()
	input.ExpressionAttributeNames = e.Names()
	return input, nil
}

// Delete removes the item. With WithReturnOld it returns the deleted item, or
// ErrNotFound when nothing was deleted. Otherwise it returns nil.
func (t *Table[T]) Delete(ctx context.Context, d *Delete) (*T, error) {
	key, err := t.keyDDB(d.Key)
	if err != nil {
		return nil, fmt.Errorf("delete from %q: %w", t.Name(), err)
	}
	input, err := d.toDeleteItem(t.Name(), key)
	if err != nil {
		return nil, fmt.Errorf("delete from %q: %w", t.Name(), err)
	}

	t.client.logger.Debug("delete item",
		zap.String("table", t.Name()),
		zap.Any("key", d.Key.Values),
		zap.Bool("conditional", input.ConditionExpression != nil))
	res, err := t.client.awsddb.DeleteItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to delete item from %q: %w", t.Name(), err)
	}
	if !d.returnOld {
		return nil, nil
	}
	if len(res.Attributes) == 0 {
		return nil, fmt.Errorf("delete from %q: %w", t.Name(), ErrNotFound)
	}
	return unmarshalItem[T](res.Attributes)
}
