package ddbsdk

import (
	"context"
	"fmt"

	"github.com/acksell/ddbdecl/dynamodb/schema"
	"github.com/truora/minidyn/aws-v2/client"
)

// NewMock returns a Client backed by an in-memory DynamoDB emulator holding an
// empty table for every table in the registry.
func NewMock(ctx context.Context, registry *schema.Registry, opts ...Option) (*Client, error) {
	fake := client.NewClient()
	for _, def := range registry.Tables() {
		if _, err := fake.CreateTable(ctx, def.CreateTableInput()); err != nil {
			return nil, fmt.Errorf("create mock table %q: %w", def.Name, err)
		}
	}
	return New(fake, append([]Option{WithRegistry(registry)}, opts...)...), nil
}
