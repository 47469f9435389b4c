package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type PrimaryKeyDefinition struct {
	PartitionKey KeyDef
	SortKey      KeyDef // zero value when the table has no sort key
}

type KeyDef struct {
	Name string
	Kind KeyKind
}

type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

func (k KeyKind) Valid() bool {
	switch k {
	case KeyKindS, KeyKindN, KeyKindB:
		return true
	}
	return false
}

// KeyRole is the role an attribute plays in a key schema.
type KeyRole string

const (
	KeyRoleHash  KeyRole = "HASH"
	KeyRoleRange KeyRole = "RANGE"
)

func (r KeyRole) Valid() bool {
	return r == KeyRoleHash || r == KeyRoleRange
}

type PrimaryKeyValues struct {
	PartitionKey any
	SortKey      any
}

type PrimaryKey struct {
	Definition PrimaryKeyDefinition
	Values     PrimaryKeyValues
}

// DDB marshals the key into the attribute map expected by GetItem, DeleteItem and UpdateItem.
func (k PrimaryKey) DDB() (map[string]types.AttributeValue, error) {
	pk, err := attributevalue.Marshal(k.Values.PartitionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal partition key of type %T with value %v: %w", k.Values.PartitionKey, k.Values.PartitionKey, err)
	}
	if err := attributeMatchesDefinition(k.Definition.PartitionKey.Kind, pk); err != nil {
		return nil, fmt.Errorf("partition key %q kind does not match dynamo value: %w", k.Definition.PartitionKey.Name, err)
	}
	if k.Definition.SortKey.Name == "" {
		return map[string]types.AttributeValue{
			k.Definition.PartitionKey.Name: pk,
		}, nil
	}
	if k.Values.SortKey == nil {
		return nil, fmt.Errorf("sort key %q is required but got nil", k.Definition.SortKey.Name)
	}
	sk, err := attributevalue.Marshal(k.Values.SortKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sort key of type %T with value %v: %w", k.Values.SortKey, k.Values.SortKey, err)
	}
	if err := attributeMatchesDefinition(k.Definition.SortKey.Kind, sk); err != nil {
		return nil, fmt.Errorf("sort key %q kind does not match dynamo value: %w", k.Definition.SortKey.Name, err)
	}
	return map[string]types.AttributeValue{
		k.Definition.PartitionKey.Name: pk,
		k.Definition.SortKey.Name:      sk,
	}, nil
}

// ExtractPrimaryKey reads the key attributes of the definition from an item.
func (k PrimaryKeyDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	part, ok := doc[k.PartitionKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("partition key %q not found", k.PartitionKey.Name)
	}
	if err := attributeMatchesDefinition(k.PartitionKey.Kind, part); err != nil {
		return PrimaryKey{}, fmt.Errorf("document key %q kind does not match definition: %w", k.PartitionKey.Name, err)
	}
	pk := PrimaryKey{
		Definition: k,
		Values: PrimaryKeyValues{
			PartitionKey: keyValueFromAV(part),
		},
	}
	if k.SortKey.Name == "" {
		return pk, nil
	}
	sort, ok := doc[k.SortKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("sort key %q not found on document", k.SortKey.Name)
	}
	if err := attributeMatchesDefinition(k.SortKey.Kind, sort); err != nil {
		return PrimaryKey{}, fmt.Errorf("sort key %q kind does not match definition: %w", k.SortKey.Name, err)
	}
	pk.Values.SortKey = keyValueFromAV(sort)
	return pk, nil
}

// Check reports whether v is an attribute value of kind k.
func (k KeyKind) Check(v types.AttributeValue) error {
	return attributeMatchesDefinition(k, v)
}

func attributeMatchesDefinition(want KeyKind, v types.AttributeValue) error {
	var got KeyKind
	switch v.(type) {
	case *types.AttributeValueMemberS:
		got = KeyKindS
	case *types.AttributeValueMemberN:
		got = KeyKindN
	case *types.AttributeValueMemberB:
		got = KeyKindB
	default:
		return fmt.Errorf("unexpected key attribute type %T", v)
	}
	if got != want {
		return fmt.Errorf("got KeyKind %q want %q", got, want)
	}
	return nil
}

// keyValueFromAV is only called after attributeMatchesDefinition succeeded.
func keyValueFromAV(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberB:
		return v.Value
	default:
		panic(fmt.Sprintf("unsupported attribute value %T for dynamodb keys", v))
	}
}
