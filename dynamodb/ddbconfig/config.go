// Package ddbconfig loads the settings shared by the ddb CLI and applications
// embedding the client: AWS connection, logging and provisioning options.
package ddbconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/acksell/ddbdecl/dynamodb/ddbsdk"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileName is searched for from the working directory up to the filesystem root.
const FileName = "ddb.yaml"

// Config holds configuration loaded from ddb.yaml and DDB_* environment variables.
type Config struct {
	Region string `yaml:"region"`
	// Endpoint overrides the DynamoDB endpoint, e.g. http://localhost:8000 for DynamoDB Local.
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"accessKeyId" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `yaml:"secretAccessKey" validate:"required_with=AccessKeyID"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`

	// ConvertEmptyValues stores empty strings and binaries as NULL. Defaults to true.
	ConvertEmptyValues *bool `yaml:"convertEmptyValues"`

	// JournalDir is where the migration journal is kept. Empty disables the journal.
	JournalDir string `yaml:"journalDir"`

	// WaitTimeout bounds how long migrate waits for created tables to become active.
	// Zero means don't wait.
	WaitTimeout time.Duration `yaml:"waitTimeout" validate:"gte=0"`
}

var validate = validator.New()

// Validate checks the field constraints declared in the validate tags.
func (c Config) Validate() error {
	err := validate.Struct(c)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		case "required_with":
			msgs = append(msgs, fmt.Sprintf("%s is required with %s", field, strings.ToLower(e.Param())))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// EmptyValuesAsNull reports the effective ConvertEmptyValues setting.
func (c Config) EmptyValuesAsNull() bool {
	return c.ConvertEmptyValues == nil || *c.ConvertEmptyValues
}

// ClientOptions returns the ddbsdk options implied by the configuration.
func (c Config) ClientOptions(logger *zap.Logger) []ddbsdk.Option {
	return []ddbsdk.Option{
		ddbsdk.WithLogger(logger),
		ddbsdk.WithConvertEmptyValues(c.EmptyValuesAsNull()),
	}
}

// Load reads the nearest ddb.yaml, if any, and applies environment overrides.
func Load() (Config, error) {
	var cfg Config
	if path := findConfigFile(); path != "" {
		var err error
		cfg, err = LoadFile(path)
		if err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads configuration from path without environment overrides.
func LoadFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DDB_REGION":            &c.Region,
		"DDB_ENDPOINT":          &c.Endpoint,
		"DDB_PROFILE":           &c.Profile,
		"DDB_ACCESS_KEY_ID":     &c.AccessKeyID,
		"DDB_SECRET_ACCESS_KEY": &c.SecretAccessKey,
		"DDB_LOG_LEVEL":         &c.LogLevel,
		"DDB_JOURNAL_DIR":       &c.JournalDir,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	if v, ok := lookup("DDB_CONVERT_EMPTY_VALUES"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DDB_CONVERT_EMPTY_VALUES: %w", err)
		}
		c.ConvertEmptyValues = &b
	}
	if v, ok := lookup("DDB_WAIT_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DDB_WAIT_TIMEOUT: %w", err)
		}
		c.WaitTimeout = d
	}
	return nil
}

// findConfigFile searches for ddb.yaml walking up from current directory.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}

// LoadAWS builds the AWS configuration. Static credentials are used when both
// keys are set, otherwise the default credential chain applies.
func LoadAWS(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// NewDynamoClient creates a DynamoDB client, pointed at cfg.Endpoint when set.
func NewDynamoClient(awsCfg aws.Config, cfg Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
}

// NewLogger builds a console logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	zapConfig := zap.NewDevelopmentConfig()
	switch level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "", "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	zapConfig.DisableStacktrace = true
	return zapConfig.Build()
}
