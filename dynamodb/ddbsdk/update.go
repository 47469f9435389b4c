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

// Update modifies attributes of a single item by key, creating it if it does not exist.
type Update struct {
	Key table.PrimaryKey

	ops                []UpdateOp
	c                  expression.ConditionBuilder
	raw                *expression.UpdateBuilder
	ttlExpiry          *time.Time
	allowNonIdempotent bool
	returnValues       types.ReturnValue
	err                error
}

func NewUpdate(pk table.PrimaryKey) *Update {
	return &Update{Key: pk}
}

// AddOp adds an operation on a field. Each field can be the target of one operation.
func (u *Update) AddOp(op UpdateOp) *Update {
	if u.raw != nil {
		u.fail(errors.New("cannot use AddOp together with WithRawUpdate"))
		return u
	}
	if v, ok := op.(opValidator); ok {
		if err := v.validate(); err != nil {
			u.fail(err)
			return u
		}
	}
	for _, existing := range u.ops {
		if existing.Field() == op.Field() {
			u.fail(fmt.Errorf("adding operation: field %s already has an operation of type %T", op.Field(), existing))
			return u
		}
	}
	u.ops = append(u.ops, op)
	return u
}

// RefreshTTL sets the time to live attribute of the table.
func (u *Update) RefreshTTL(expiry time.Time) *Update {
	u.ttlExpiry = &expiry
	return u
}

// WithCondition adds a condition expression. Multiple conditions are ANDed.
func (u *Update) WithCondition(c expression.ConditionBuilder) *Update {
	if u.c.IsSet() {
		u.c = u.c.And(c)
		return u
	}
	u.c = c
	return u
}

// WithRawUpdate allows you to use dynamo expressions directly.
// It can not be combined with AddOp.
func (u *Update) WithRawUpdate(up expression.UpdateBuilder) *Update {
	if len(u.ops) > 0 {
		u.fail(errors.New("cannot use WithRawUpdate after AddOp"))
		return u
	}
	u.raw = &up
	return u
}

// WithAccidentalIdempotency allows non-idempotent updates to be executed.
// Operations that are non-idempotent, and thus can only be accidentally idempotent are:
// - AddNumberOp
// - AppendToListOp
//
// A retried request applies them twice. If you're using lists, consider using
// sets instead if possible. If you're using counters, consider recording the
// unique increments instead.
func (u *Update) WithAccidentalIdempotency() *Update {
	u.allowNonIdempotent = true
	return u
}

// WithReturnValues selects which attributes Update returns, e.g. types.ReturnValueAllNew.
func (u *Update) WithReturnValues(rv types.ReturnValue) *Update {
	u.returnValues = rv
	return u
}

func (u *Update) fail(err error) {
	if u.err == nil {
		u.err = err
	}
}

func (u *Update) Build(def table.TableDefinition) (expression.Expression, error) {
	if u.err != nil {
		return expression.Expression{}, u.err
	}
	var up expression.UpdateBuilder
	if u.raw != nil {
		up = *u.raw
	}
	for _, op := range u.ops {
		if !u.allowNonIdempotent && !op.IsIdempotent() {
			return expression.Expression{}, fmt.Errorf("can't apply non-idempotent operation unless explicitly allowed: %T", op)
		}
		up = op.Apply(up)
	}
	if u.ttlExpiry != nil {
		if def.TimeToLiveKey == "" {
			return expression.Expression{}, errors.New("table has no time to live attribute")
		}
		up = up.Set(expression.Name(def.TimeToLiveKey), expression.Value(u.ttlExpiry.Unix()))
	}
	if u.raw == nil && len(u.ops) == 0 && u.ttlExpiry == nil {
		return expression.Expression{}, errors.New("update has no operations")
	}

	b := expression.NewBuilder().WithUpdate(up)
	if u.c.IsSet() {
		b = b.WithCondition(u.c)
	}
	e, err := b.Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("build: %w", err)
	}
	return e, nil
}

func (u *Update) toUpdateItem(def table.TableDefinition, key Item) (*dynamodb.UpdateItemInput, error) {
	e, err := u.Build(def)
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}
	return &dynamodb.UpdateItemInput{
		TableName:                 ptr(def.Name),
		Key:                       key,
		UpdateExpression:          e.Update(),
		ConditionExpression:       e.Condition(),
		ExpressionAttributeValues: e.Values(),
		ExpressionAttributeNames:  e.Names(),
		ReturnValues:              u.returnValues,
	}, nil
}

// Update applies the update. It returns the attributes selected by
// WithReturnValues decoded into T, or nil when none were requested.
func (t *Table[T]) Update(ctx context.Context, u *Update) (*T, error) {
	key, err := t.keyDDB(u.Key)
	if err != nil {
		return nil, fmt.Errorf("update %q: %w", t.Name(), err)
	}
	input, err := u.toUpdateItem(t.entity.Table, key)
	if err != nil {
		return nil, fmt.Errorf("update %q: %w", t.Name(), err)
	}

	t.client.logger.Debug("update item",
		zap.String("table", t.Name()),
		zap.Any("key", u.Key.Values),
		zap.Stringp("update", input.UpdateExpression),
		zap.Bool("conditional", input.ConditionExpression != nil))
	res, err := t.client.awsddb.UpdateItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to update item in %q: %w", t.Name(), err)
	}
	if u.returnValues == "" || u.returnValues == types.ReturnValueNone || len(res.Attributes) == 0 {
		return nil, nil
	}
	return unmarshalItem[T](res.Attributes)
}
