package ddbsdk

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func (c *Client) marshalItem(v any) (Item, error) {
	item, err := attributevalue.MarshalMapWithOptions(v, func(o *attributevalue.EncoderOptions) {
		o.NullEmptySets = true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity to dynamodb map: %w", err)
	}
	if c.convertEmptyValues {
		for k, av := range item {
			item[k] = nullEmptyValues(av)
		}
	}
	return item, nil
}

func unmarshalItem[T any](item Item) (*T, error) {
	out := new(T)
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item into %T: %w", out, err)
	}
	return out, nil
}

func unmarshalItems[T any](items []Item) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := unmarshalItem[T](item)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// nullEmptyValues replaces empty strings and binaries with NULL, descending into maps and lists.
func nullEmptyValues(av types.AttributeValue) types.AttributeValue {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		if v.Value == "" {
			return &types.AttributeValueMemberNULL{Value: true}
		}
	case *types.AttributeValueMemberB:
		if len(v.Value) == 0 {
			return &types.AttributeValueMemberNULL{Value: true}
		}
	case *types.AttributeValueMemberM:
		for k, e := range v.Value {
			v.Value[k] = nullEmptyValues(e)
		}
	case *types.AttributeValueMemberL:
		for i, e := range v.Value {
			v.Value[i] = nullEmptyValues(e)
		}
	}
	return av
}

func ttlDDB(expiry time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{
		Value: strconv.FormatInt(expiry.Unix(), 10),
	}
}
