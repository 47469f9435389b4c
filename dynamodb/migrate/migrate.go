// Package migrate provisions the tables of a schema registry.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/acksell/ddbdecl/dynamodb/schema"
	"github.com/acksell/ddbdecl/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// API is the subset of *dynamodb.Client needed to create tables.
type API interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// ttlAPI is implemented by clients that can enable time to live, like *dynamodb.Client.
type ttlAPI interface {
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

const defaultTTLWait = 5 * time.Minute

// Status is the outcome of provisioning one table.
type Status string

const (
	StatusCreated Status = "created"
	StatusExists  Status = "exists"
	// The journal holds the same definition, no request was made.
	StatusJournaled Status = "journaled"
)

type Result struct {
	Table  string
	Status Status
}

// Migrator creates the tables declared in a registry. Run is a no-op after it
// has succeeded once.
type Migrator struct {
	client   API
	registry *schema.Registry
	defs     []table.TableDefinition
	logger   *zap.Logger
	journal  *Journal
	wait     time.Duration

	mu       sync.Mutex
	migrated bool
}

type Option func(*Migrator)

// WithRegistry sets the registry whose tables are created. Defaults to schema.Default.
func WithRegistry(r *schema.Registry) Option {
	return func(m *Migrator) {
		m.registry = r
	}
}

// WithDefinitions creates the given tables instead of those of a registry.
func WithDefinitions(defs ...table.TableDefinition) Option {
	return func(m *Migrator) {
		m.defs = defs
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Migrator) {
		m.logger = logger
	}
}

// WithJournal skips tables whose definition the journal already holds.
func WithJournal(j *Journal) Option {
	return func(m *Migrator) {
		m.journal = j
	}
}

// WithWaitForActive waits up to timeout for each created table to become ACTIVE.
func WithWaitForActive(timeout time.Duration) Option {
	return func(m *Migrator) {
		m.wait = timeout
	}
}

func New(client API, opts ...Option) *Migrator {
	m := &Migrator{
		client:   client,
		registry: schema.Default,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Migrated reports whether Run has succeeded.
func (m *Migrator) Migrated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.migrated
}

// Run creates every table concurrently. Tables that already exist count as
// success. Errors of all failed tables are joined.
func (m *Migrator) Run(ctx context.Context) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.migrated {
		return nil, nil
	}

	defs := m.defs
	if defs == nil {
		defs = m.registry.Tables()
	}
	results := make([]Result, len(defs))
	errs := make([]error, len(defs))

	// A plain Group keeps going after a failure, so every table gets its attempt
	// and its own error in errs.
	var g errgroup.Group
	for i, def := range defs {
		g.Go(func() error {
			status, err := m.provision(ctx, def)
			results[i] = Result{Table: def.Name, Status: status}
			errs[i] = err
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return results, errors.Join(errs...)
	}
	m.migrated = true
	return results, nil
}

func (m *Migrator) provision(ctx context.Context, def table.TableDefinition) (Status, error) {
	logger := m.logger.With(zap.String("table", def.Name))
	if err := def.Validate(); err != nil {
		return "", err
	}
	if m.journal != nil {
		recorded, err := m.journal.Recorded(def)
		if err != nil {
			return "", err
		}
		if recorded {
			logger.Debug("table journaled, skipping")
			return StatusJournaled, nil
		}
	}

	status := StatusCreated
	_, err := m.client.CreateTable(ctx, def.CreateTableInput())
	switch {
	case isTableExists(err):
		logger.Info("table exists")
		status = StatusExists
	case err != nil:
		return "", fmt.Errorf("create table %q: %w", def.Name, err)
	default:
		logger.Info("successfully created table",
			zap.Int("indexes", len(def.GSIs)),
			zap.String("billingMode", string(def.BillingMode)))
	}

	if err := m.afterCreate(ctx, def, status); err != nil {
		return "", err
	}
	if m.journal != nil {
		if err := m.journal.Record(def); err != nil {
			return "", err
		}
	}
	return status, nil
}

func (m *Migrator) afterCreate(ctx context.Context, def table.TableDefinition, status Status) error {
	ttl, canTTL := m.client.(ttlAPI)
	enableTTL := def.TimeToLiveKey != "" && canTTL && status == StatusCreated

	wait := m.wait
	if wait == 0 && enableTTL {
		wait = defaultTTLWait
	}
	if wait > 0 {
		waiter := dynamodb.NewTableExistsWaiter(m.client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(def.Name)}, wait); err != nil {
			return fmt.Errorf("wait for table %q to exist: %w", def.Name, err)
		}
	}
	if !enableTTL {
		return nil
	}
	_, err := ttl.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(def.Name),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(def.TimeToLiveKey),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("enable time to live on %q: %w", def.Name, err)
	}
	m.logger.Info("enabled time to live", zap.String("table", def.Name), zap.String("attribute", def.TimeToLiveKey))
	return nil
}

// isTableExists reports whether CreateTable failed because the table already exists.
func isTableExists(err error) bool {
	if err == nil {
		return false
	}
	var riu *types.ResourceInUseException
	if errors.As(err, &riu) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ResourceInUseException"
}
