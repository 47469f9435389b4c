package ddbconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/acksell/ddbdecl/dynamodb/ddbsdk"
	"github.com/acksell/ddbdecl/dynamodb/schema"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleConfig = `region: eu-north-1
endpoint: http://localhost:8000
accessKeyId: local
secretAccessKey: secret
logLevel: debug
convertEmptyValues: false
journalDir: .ddb/journal
waitTimeout: 30s
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "eu-north-1", cfg.Region)
	require.Equal(t, "http://localhost:8000", cfg.Endpoint)
	require.Equal(t, "debug", cfg.LogLevel)
	require.False(t, cfg.EmptyValuesAsNull())
	require.Equal(t, ".ddb/journal", cfg.JournalDir)
	require.Equal(t, 30*time.Second, cfg.WaitTimeout)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "reading config file")

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("region: ["), 0o644))
	_, err = LoadFile(path)
	require.ErrorContains(t, err, "parsing config file")
}

func TestLoad_WalksUpAndAppliesEnv(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(sampleConfig), 0o644))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	t.Setenv("DDB_REGION", "us-east-1")
	t.Setenv("DDB_CONVERT_EMPTY_VALUES", "true")
	t.Setenv("DDB_WAIT_TIMEOUT", "2m")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "us-east-1", cfg.Region)
	require.Equal(t, "http://localhost:8000", cfg.Endpoint)
	require.True(t, cfg.EmptyValuesAsNull())
	require.Equal(t, 2*time.Minute, cfg.WaitTimeout)
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{"bool", map[string]string{"DDB_CONVERT_EMPTY_VALUES": "maybe"}, "DDB_CONVERT_EMPTY_VALUES"},
		{"duration", map[string]string{"DDB_WAIT_TIMEOUT": "soon"}, "DDB_WAIT_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			err := cfg.applyEnv(func(k string) (string, bool) {
				v, ok := tt.env[k]
				return v, ok
			})
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{"empty", Config{}, ""},
		{"valid", Config{Endpoint: "http://localhost:8000", LogLevel: "warn", AccessKeyID: "a", SecretAccessKey: "b"}, ""},
		{"bad endpoint", Config{Endpoint: "localhost"}, "endpoint is invalid"},
		{"bad level", Config{LogLevel: "loud"}, "loglevel must be one of"},
		{"key without secret", Config{AccessKeyID: "a"}, "secretaccesskey is required with accesskeyid"},
		{"negative wait", Config{WaitTimeout: -time.Second}, "waittimeout is invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DDB_LOG_LEVEL", "loud")
	_, err := Load()
	require.ErrorContains(t, err, "invalid config")
}

func TestEmptyValuesAsNull_Default(t *testing.T) {
	require.True(t, Config{}.EmptyValuesAsNull())
}

func TestLoadAWS_StaticCredentials(t *testing.T) {
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))
	cfg := Config{Region: "eu-west-1", AccessKeyID: "AKID", SecretAccessKey: "SECRET", Endpoint: "http://localhost:8000"}
	awsCfg, err := LoadAWS(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, "eu-west-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "AKID", creds.AccessKeyID)
	require.Equal(t, "SECRET", creds.SecretAccessKey)

	client := NewDynamoClient(awsCfg, cfg)
	require.Equal(t, "http://localhost:8000", *client.Options().BaseEndpoint)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		logger, err := NewLogger(level)
		require.NoError(t, err, level)
		require.NotNil(t, logger)
	}
	_, err := NewLogger("loud")
	require.ErrorContains(t, err, "unknown log level")
}

type note struct {
	ID   string `dynamodbav:"id" ddb:"key"`
	Body string `dynamodbav:"body"`
}

func TestClientOptions(t *testing.T) {
	ctx := context.Background()
	registry := schema.NewRegistry()
	_, err := registry.Register(note{}, schema.TableName("notes"))
	require.NoError(t, err)

	off := false
	cfg := Config{ConvertEmptyValues: &off}
	client, err := ddbsdk.NewMock(ctx, registry, cfg.ClientOptions(zap.NewNop())...)
	require.NoError(t, err)

	notes := ddbsdk.MustTableOf[note](client)
	n, err := notes.Put(ctx, &note{})
	require.NoError(t, err)
	got, err := notes.Get(ctx, notes.MustKey(n.ID))
	require.NoError(t, err)
	require.Equal(t, "", got.Body)
}
