package ddbsdk

import (
	"fmt"

	"github.com/acksell/ddbdecl/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

type sortKeyOp string

const (
	opEqual        sortKeyOp = "="
	opBeginsWith   sortKeyOp = "begins_with"
	opBetween      sortKeyOp = "BETWEEN"
	opLess         sortKeyOp = "<"
	opLessEqual    sortKeyOp = "<="
	opGreater      sortKeyOp = ">"
	opGreaterEqual sortKeyOp = ">="
)

// SortKeyStrategy narrows a query to part of a partition by its sort key.
// The operands are checked against the kind of the sort key of the queried
// table or index before the request is sent.
type SortKeyStrategy struct {
	op       sortKeyOp
	operands []any
}

// Equals returns items where the sort key equals the provided value.
func Equals[T any](v T) *SortKeyStrategy {
	return &SortKeyStrategy{op: opEqual, operands: []any{v}}
}

// BeginsWith returns items where the sort key starts with the provided prefix.
// Only string and binary sort keys support it.
func BeginsWith(prefix string) *SortKeyStrategy {
	return &SortKeyStrategy{op: opBeginsWith, operands: []any{prefix}}
}

// Between returns items where the sort key is between start and end (inclusive).
func Between[T any](start, end T) *SortKeyStrategy {
	return &SortKeyStrategy{op: opBetween, operands: []any{start, end}}
}

func GreaterThan[T any](v T) *SortKeyStrategy {
	return &SortKeyStrategy{op: opGreater, operands: []any{v}}
}

func GreaterThanOrEqual[T any](v T) *SortKeyStrategy {
	return &SortKeyStrategy{op: opGreaterEqual, operands: []any{v}}
}

func LessThan[T any](v T) *SortKeyStrategy {
	return &SortKeyStrategy{op: opLess, operands: []any{v}}
}

func LessThanOrEqual[T any](v T) *SortKeyStrategy {
	return &SortKeyStrategy{op: opLessEqual, operands: []any{v}}
}

// condition renders the strategy for the sort key sk.
func (s *SortKeyStrategy) condition(sk table.KeyDef) (expression.KeyConditionBuilder, error) {
	if sk.Name == "" {
		return expression.KeyConditionBuilder{}, fmt.Errorf("sort key condition %s on a key schema without sort key", s.op)
	}
	if s.op == opBeginsWith && sk.Kind == table.KeyKindN {
		return expression.KeyConditionBuilder{}, fmt.Errorf("begins_with on number sort key %q", sk.Name)
	}
	if s.op != opBeginsWith {
		for _, v := range s.operands {
			if err := checkKeyValue(sk, v); err != nil {
				return expression.KeyConditionBuilder{}, err
			}
		}
	}

	key := expression.Key(sk.Name)
	switch s.op {
	case opEqual:
		return expression.KeyEqual(key, expression.Value(s.operands[0])), nil
	case opBeginsWith:
		return expression.KeyBeginsWith(key, s.operands[0].(string)), nil
	case opBetween:
		return expression.KeyBetween(key, expression.Value(s.operands[0]), expression.Value(s.operands[1])), nil
	case opLess:
		return expression.KeyLessThan(key, expression.Value(s.operands[0])), nil
	case opLessEqual:
		return expression.KeyLessThanEqual(key, expression.Value(s.operands[0])), nil
	case opGreater:
		return expression.KeyGreaterThan(key, expression.Value(s.operands[0])), nil
	case opGreaterEqual:
		return expression.KeyGreaterThanEqual(key, expression.Value(s.operands[0])), nil
	}
	return expression.KeyConditionBuilder{}, fmt.Errorf("unknown sort key operator %q", s.op)
}

// checkKeyValue marshals v and compares its type with the declared key kind.
func checkKeyValue(k table.KeyDef, v any) error {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return fmt.Errorf("key %q: %w", k.Name, err)
	}
	if err := k.Kind.Check(av); err != nil {
		return fmt.Errorf("key %q: %w", k.Name, err)
	}
	return nil
}
