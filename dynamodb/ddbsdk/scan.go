package ddbsdk

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const defaultScanLimit = 100

// Scanner pages through every item of a table or index. It is not safe for concurrent use.
type Scanner[T any] struct {
	t *Table[T]

	lastCursor map[string]types.AttributeValue
	done       bool

	limit                int32
	indexName            string
	consistent           bool
	filter               expression.ConditionBuilder
	projectionAttributes []string
}

func (t *Table[T]) NewScan() *Scanner[T] {
	return &Scanner[T]{
		t:     t,
		limit: defaultScanLimit,
	}
}

// WithLimit sets the number of items read per page.
func (s *Scanner[T]) WithLimit(limit int) *Scanner[T] {
	s.limit = pageLimit(limit, defaultScanLimit)
	return s
}

func (s *Scanner[T]) WithIndex(indexName string) *Scanner[T] {
	s.indexName = indexName
	return s
}

// WithConsistentReads makes table scans strongly consistent. Ignored for index scans.
func (s *Scanner[T]) WithConsistentReads() *Scanner[T] {
	s.consistent = true
	return s
}

func (s *Scanner[T]) WithFilter(c expression.ConditionBuilder) *Scanner[T] {
	s.filter = c
	return s
}

func (s *Scanner[T]) WithProjection(attrs ...string) *Scanner[T] {
	s.projectionAttributes = attrs
	return s
}

func (s *Scanner[T]) input() (*dynamodb.ScanInput, error) {
	input := &dynamodb.ScanInput{
		TableName:         ptr(s.t.Name()),
		Limit:             ptr(s.limit),
		ExclusiveStartKey: s.lastCursor,
	}
	if s.indexName != "" {
		if _, ok := s.t.entity.Table.GSI(s.indexName); !ok {
			return nil, fmt.Errorf("table %q has no index %q", s.t.Name(), s.indexName)
		}
		input.IndexName = ptr(s.indexName)
	} else if s.consistent {
		input.ConsistentRead = ptr(true)
	}

	proj, hasProj := projection(s.projectionAttributes)
	if !s.filter.IsSet() && !hasProj {
		return input, nil
	}
	b := expression.NewBuilder()
	if s.filter.IsSet() {
		b = b.WithFilter(s.filter)
	}
	if hasProj {
		b = b.WithProjection(proj)
	}
	expr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scan expression: %w", err)
	}
	input.FilterExpression = expr.Filter()
	input.ProjectionExpression = expr.Projection()
	input.ExpressionAttributeNames = expr.Names()
	input.ExpressionAttributeValues = expr.Values()
	return input, nil
}

// Next fetches the next page. Once a page reports IsDone, further calls return empty pages.
func (s *Scanner[T]) Next(ctx context.Context) (*Page[T], error) {
	if s.done {
		return &Page[T]{IsDone: true}, nil
	}
	input, err := s.input()
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", s.t.Name(), err)
	}

	s.t.client.logger.Debug("scan",
		zap.String("table", s.t.Name()),
		zap.String("index", s.indexName),
		zap.Int32("limit", s.limit),
		zap.Bool("resumed", s.lastCursor != nil))
	res, err := s.t.client.awsddb.Scan(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	items, err := unmarshalItems[T](res.Items)
	if err != nil {
		return nil, err
	}
	s.lastCursor = res.LastEvaluatedKey
	s.done = len(res.LastEvaluatedKey) == 0
	return &Page[T]{
		Items:  items,
		IsDone: s.done,
	}, nil
}

// All fetches the remaining pages.
func (s *Scanner[T]) All(ctx context.Context) ([]T, error) {
	var all []T
	for {
		page, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.IsDone {
			return all, nil
		}
	}
}
