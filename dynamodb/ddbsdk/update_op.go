package ddbsdk

import (
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/exp/constraints"
)

// UpdateOp is a single clause of an update expression, applied to one field.
type UpdateOp interface {
	Field() string
	Apply(expression.UpdateBuilder) expression.UpdateBuilder
	IsIdempotent() bool
}

// opValidator is implemented by operations that can be rejected before a request is made.
type opValidator interface {
	validate() error
}

type number interface {
	constraints.Integer | constraints.Float
}

// Sets the value of a field regardless of any existing value
type setFieldOp[T any] struct {
	field string
	value T
}

var _ UpdateOp = setFieldOp[string]{}

func SetFieldOp[T any](field string, value T) setFieldOp[T] {
	return setFieldOp[T]{
		field: field,
		value: value,
	}
}

func (o setFieldOp[T]) Field() string {
	return o.field
}

func (o setFieldOp[T]) IsIdempotent() bool {
	return true
}

func (o setFieldOp[T]) Apply(expr expression.UpdateBuilder) expression.UpdateBuilder {
	return expr.Set(expression.Name(o.field), expression.Value(o.value))
}

// Sets the value only when the field does not exist yet.
type setIfNotExistsOp[T any] struct {
	field string
	value T
}

func SetIfNotExistsOp[T any](field string, value T) setIfNotExistsOp[T] {
	return setIfNotExistsOp[T]{
		field: field,
		value: value,
	}
}

func (o setIfNotExistsOp[T]) Field() string {
	return o.field
}

func (o setIfNotExistsOp[T]) IsIdempotent() bool {
	return true
}

func (o setIfNotExistsOp[T]) Apply(expr expression.UpdateBuilder) expression.UpdateBuilder {
	name := expression.Name(o.field)
	return expr.Set(name, expression.IfNotExists(name, expression.Value(o.value)))
}

type removeFieldOp struct {
	field string
}

func RemoveFieldOp(field string) removeFieldOp {
	return removeFieldOp{
		field: field,
	}
}

func (o removeFieldOp) IsIdempotent() bool {
	return true
}

func (o removeFieldOp) Field() string {
	return o.field
}

func (o removeFieldOp) Apply(expr expression.UpdateBuilder) expression.UpdateBuilder {
	return expr.Remove(expression.Name(o.field))
}

// setElement is a type that can be stored in a DynamoDB string or number set.
type setElement interface {
	~string | number
}

// set marshals as a string set or a number set depending on its element type.
type set[T setElement] []T

func (s set[T]) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	values := make([]string, 0, len(s))
	for _, v := range s {
		values = append(values, fmt.Sprint(v))
	}
	var zero T
	if reflect.TypeOf(zero).Kind() == reflect.String {
		return &types.AttributeValueMemberSS{Value: values}, nil
	}
	return &types.AttributeValueMemberNS{Value: values}, nil
}

// Adds elements to a set. Adding an element twice leaves the set unchanged.
type addToSetOp[T setElement] struct {
	field  string
	values set[T]
}

func AddToSetOp[T setElement](field string, values ...T) addToSetOp[T] {
	return addToSetOp[T]{
		field:  field,
		values: values,
	}
}

func (o addToSetOp[T]) Field() string {
	return o.field
}

func (addToSetOp[T]) IsIdempotent() bool {
	return true
}

func (o addToSetOp[T]) validate() error {
	if len(o.values) == 0 {
		return fmt.Errorf("add to set %s: no values, DynamoDB sets can not be empty", o.field)
	}
	return nil
}

func (o addToSetOp[T]) Apply(expr expression.UpdateBuilder) expression.UpdateBuilder {
	return expr.Add(expression.Name(o.field), expression.Value(o.values))
}

type deleteFromSetOp[T setElement] struct {
	field  string
	values set[T]
}

func DeleteFromSetOp[T setElement](field string, values ...T) deleteFromSetOp[T] {
	return deleteFromSetOp[T]{
		field:  field,
		values: values,
	}
}

func (o deleteFromSetOp[T]) Field() string {
	return o.field
}

func (deleteFromSetOp[T]) IsIdempotent() bool {
	return true
}

func (o deleteFromSetOp[T]) validate() error {
	if len(o.values) == 0 {
		return fmt.Errorf("delete from set %s: no values, DynamoDB sets can not be empty", o.field)
	}
	return nil
}

func (o deleteFromSetOp[T]) Apply(expr expression.UpdateBuilder) expression.UpdateBuilder {
	return expr.Delete(expression.Name(o.field), expression.Value(o.values))
}

type appendToListOp[T any] struct {
	field  string
	values []T
}

func AppendToListOp[T any](field string, values ...T) appendToListOp[T] {
	return appendToListOp[T]{
		field:  field,
		values: values,
	}
}

func (appendToListOp[T]) IsIdempotent() bool {
	return false
}

func (o appendToListOp[T]) Field() string {
	return o.field
}

func (o appendToListOp[T]) Apply(expr expression.UpdateBuilder) expression.UpdateBuilder {
	name := expression.Name(o.field)
	empty := expression.Value([]T{})
	return expr.Set(name, expression.ListAppend(expression.IfNotExists(name, empty), expression.Value(o.values)))
}

type addNumberOp[T number] struct {
	field string
	value T
}

func AddNumberOp[T number](field string, value T) addNumberOp[T] {
	return addNumberOp[T]{
		field: field,
		value: value,
	}
}

func (addNumberOp[T]) IsIdempotent() bool {
	return false
}

func (o addNumberOp[T]) Field() string {
	return o.field
}

func (o addNumberOp[T]) Apply(expr expression.UpdateBuilder) expression.UpdateBuilder {
	return expr.Add(expression.Name(o.field), expression.Value(o.value))
}
