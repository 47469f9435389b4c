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

const defaultPageSize = 100

// KeyCondition selects the items of one partition, optionally narrowed by the sort key.
type KeyCondition struct {
	partition any
	strategy  *SortKeyStrategy
}

// NewKeyCondition matches all items whose partition key equals partition.
// A nil strategy matches every sort key.
func NewKeyCondition(partition any, strategy *SortKeyStrategy) KeyCondition {
	return KeyCondition{
		partition: partition,
		strategy:  strategy,
	}
}

// Page is one page of decoded items.
type Page[T any] struct {
	Items  []T
	IsDone bool
}

// Querier pages through the results of a query. It is not safe for concurrent use.
type Querier[T any] struct {
	t       *Table[T]
	keyCond KeyCondition

	//internal, not exposed to user
	lastCursor map[string]types.AttributeValue
	done       bool

	opts queryOptions
}

type queryOptions struct {
	// default to consistent reads on the table. Index reads are always eventually consistent.
	eventuallyConsistent bool
	pageSize             int32
	descending           bool
	indexName            string
	filter               expression.ConditionBuilder
	projectionAttributes []string
}

// NewQuery starts a query on the table, or on an index with WithIndex.
func (t *Table[T]) NewQuery(kc KeyCondition) *Querier[T] {
	return &Querier[T]{
		t:       t,
		keyCond: kc,
		opts: queryOptions{
			pageSize: defaultPageSize,
		},
	}
}

func (q *Querier[T]) WithEventuallyConsistentReads() *Querier[T] {
	q.opts.eventuallyConsistent = true
	return q
}

func (q *Querier[T]) WithDescending() *Querier[T] {
	q.opts.descending = true
	return q
}

func (q *Querier[T]) WithPageSize(limit int) *Querier[T] {
	q.opts.pageSize = pageLimit(limit, defaultPageSize)
	return q
}

// WithIndex queries the named global secondary index instead of the table.
func (q *Querier[T]) WithIndex(indexName string) *Querier[T] {
	q.opts.indexName = indexName
	return q
}

// WithFilter drops matching items after they are read. Filtered items still count against the page size.
func (q *Querier[T]) WithFilter(c expression.ConditionBuilder) *Querier[T] {
	q.opts.filter = c
	return q
}

// WithProjection limits the attributes returned in the response.
// Only the specified attributes will be retrieved from DynamoDB.
func (q *Querier[T]) WithProjection(attrs ...string) *Querier[T] {
	q.opts.projectionAttributes = attrs
	return q
}

func (q *Querier[T]) keys() (table.PrimaryKeyDefinition, error) {
	def := q.t.entity.Table
	if q.opts.indexName == "" {
		return def.KeyDefinitions(), nil
	}
	gsi, ok := def.GSI(q.opts.indexName)
	if !ok {
		return table.PrimaryKeyDefinition{}, fmt.Errorf("table %q has no index %q", def.Name, q.opts.indexName)
	}
	return def.IndexKeyDefinitions(gsi), nil
}

func (q *Querier[T]) input() (*dynamodb.QueryInput, error) {
	keys, err := q.keys()
	if err != nil {
		return nil, err
	}
	key := expression.KeyEqual(expression.Key(keys.PartitionKey.Name), expression.Value(q.keyCond.partition))
	if q.keyCond.strategy != nil {
		sk, err := q.keyCond.strategy.condition(keys.SortKey)
		if err != nil {
			return nil, err
		}
		key = key.And(sk)
	}
	b := expression.NewBuilder().WithKeyCondition(key)
	if q.opts.filter.IsSet() {
		b = b.WithFilter(q.opts.filter)
	}
	if proj, ok := projection(q.opts.projectionAttributes); ok {
		b = b.WithProjection(proj)
	}
	expr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 ptr(q.t.Name()),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeValues: expr.Values(),
		ExpressionAttributeNames:  expr.Names(),
		Limit:                     ptr(q.opts.pageSize),
		ScanIndexForward:          ptr(!q.opts.descending),
		ExclusiveStartKey:         q.lastCursor,
	}
	if q.opts.indexName != "" {
		input.IndexName = ptr(q.opts.indexName)
	} else {
		input.ConsistentRead = ptr(!q.opts.eventuallyConsistent)
	}
	return input, nil
}

// Next fetches the next page. Once a page reports IsDone, further calls return empty pages.
func (q *Querier[T]) Next(ctx context.Context) (*Page[T], error) {
	if q.done {
		return &Page[T]{IsDone: true}, nil
	}
	input, err := q.input()
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", q.t.Name(), err)
	}

	q.t.client.logger.Debug("query",
		zap.String("table", q.t.Name()),
		zap.String("index", q.opts.indexName),
		zap.Stringp("keyCondition", input.KeyConditionExpression),
		zap.Bool("resumed", q.lastCursor != nil))
	res, err := q.t.client.awsddb.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	items, err := unmarshalItems[T](res.Items)
	if err != nil {
		return nil, err
	}
	q.lastCursor = res.LastEvaluatedKey
	q.done = len(res.LastEvaluatedKey) == 0
	return &Page[T]{
		Items:  items,
		IsDone: q.done,
	}, nil
}

// All fetches the remaining pages.
func (q *Querier[T]) All(ctx context.Context) ([]T, error) {
	var all []T
	for {
		res, err := q.Next(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Items...)
		if res.IsDone {
			return all, nil
		}
	}
}
