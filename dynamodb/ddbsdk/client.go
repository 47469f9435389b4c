package ddbsdk

import (
	"github.com/acksell/ddbdecl/dynamodb/idgen"
	"github.com/acksell/ddbdecl/dynamodb/schema"
	"go.uber.org/zap"
)

// Client executes item operations against the tables declared in a schema registry.
type Client struct {
	awsddb   AWSDynamoClientV2
	registry *schema.Registry
	logger   *zap.Logger
	ids      idgen.Generator

	convertEmptyValues bool
}

type Option func(*Client)

// WithRegistry sets the registry tables are resolved from. Defaults to schema.Default.
func WithRegistry(r *schema.Registry) Option {
	return func(c *Client) {
		c.registry = r
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithIDGenerator sets the generator for auto-generated keys. Defaults to ULIDs.
func WithIDGenerator(g idgen.Generator) Option {
	return func(c *Client) {
		c.ids = g
	}
}

// WithConvertEmptyValues controls whether empty strings and binaries are written as NULL.
// Enabled by default. Empty sets are always written as NULL since DynamoDB rejects them.
func WithConvertEmptyValues(on bool) Option {
	return func(c *Client) {
		c.convertEmptyValues = on
	}
}

func New(awsddb AWSDynamoClientV2, opts ...Option) *Client {
	c := &Client{
		awsddb:             awsddb,
		registry:           schema.Default,
		logger:             zap.NewNop(),
		ids:                idgen.Default(),
		convertEmptyValues: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// API returns the underlying DynamoDB client.
func (c *Client) API() AWSDynamoClientV2 {
	return c.awsddb
}

func (c *Client) Registry() *schema.Registry {
	return c.registry
}
