package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/acksell/ddbdecl/dynamodb/ddbconfig"
	"github.com/acksell/ddbdecl/dynamodb/migrate"
	"github.com/acksell/ddbdecl/dynamodb/schema"
	"github.com/acksell/ddbdecl/dynamodb/table"
	"go.uber.org/zap"
)

// env holds the process dependencies of a command so tests can replace them.
type env struct {
	stdout    io.Writer
	stderr    io.Writer
	loadCfg   func() (ddbconfig.Config, error)
	newClient func(ctx context.Context, cfg ddbconfig.Config) (migrate.API, error)
	newLogger func(level string) (*zap.Logger, error)
}

func newEnv() env {
	return env{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		loadCfg: ddbconfig.Load,
		newClient: func(ctx context.Context, cfg ddbconfig.Config) (migrate.API, error) {
			awsCfg, err := ddbconfig.LoadAWS(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return ddbconfig.NewDynamoClient(awsCfg, cfg), nil
		},
		newLogger: ddbconfig.NewLogger,
	}
}

// schemaFlags collects repeated -schema flags.
type schemaFlags []string

func (s *schemaFlags) String() string { return strings.Join(*s, ",") }

func (s *schemaFlags) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// loadDefinitions reads and validates the given schema files, or the discovered
// ones when none are given. Table names must be unique across files.
func loadDefinitions(paths []string) ([]table.TableDefinition, error) {
	if len(paths) == 0 {
		found, err := discoverSchemas(".")
		if err != nil {
			return nil, fmt.Errorf("discover schema files: %w", err)
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no %s found, pass -schema", schemaFilename)
		}
		paths = found
	}

	var defs []table.TableDefinition
	seen := make(map[string]string)
	for _, path := range paths {
		doc, err := schema.LoadDocument(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		fileDefs, err := doc.Definitions()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, def := range fileDefs {
			if prev, ok := seen[def.Name]; ok {
				return nil, fmt.Errorf("table %q declared in both %s and %s", def.Name, prev, path)
			}
			seen[def.Name] = path
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}

func runSchema(e env, args []string) error {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	var paths schemaFlags
	fs.Var(&paths, "schema", "schema file to validate (repeatable)")
	fs.Usage = func() {
		fmt.Fprintln(e.stderr, `ddb schema - Validate schema files and print the normalized schema

Usage:
  ddb schema [-schema file]...

Flags:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	defs, err := loadDefinitions(paths)
	if err != nil {
		return err
	}
	data, err := schema.NewDocument(defs...).Marshal()
	if err != nil {
		return err
	}
	_, err = e.stdout.Write(data)
	return err
}

func runMigrate(e env, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	var paths schemaFlags
	fs.Var(&paths, "schema", "schema file to migrate (repeatable)")
	var (
		wait    = fs.Duration("wait", 0, "wait up to this long for created tables to become active (default from ddb.yaml)")
		journal = fs.String("journal", "", "directory of the migration journal, empty disables it (default from ddb.yaml)")
		dryRun  = fs.Bool("dry-run", false, "print the tables that would be created")
		timeout = fs.Duration("timeout", 10*time.Minute, "overall timeout")
	)
	fs.Usage = func() {
		fmt.Fprintln(e.stderr, `ddb migrate - Create the tables declared in schema files

Usage:
  ddb migrate [flags]

Tables that already exist are left untouched.

Flags:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	defs, err := loadDefinitions(paths)
	if err != nil {
		return err
	}
	if *dryRun {
		for _, def := range defs {
			fmt.Fprintf(e.stdout, "%s\twould create (%d indexes)\n", def.Name, len(def.GSIs))
		}
		return nil
	}

	// ddb.yaml is read after parsing so -h and -dry-run work without a valid one.
	cfg, err := e.loadCfg()
	if err != nil {
		return err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["wait"] {
		*wait = cfg.WaitTimeout
	}
	if !set["journal"] {
		*journal = cfg.JournalDir
	}

	logger, err := e.newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := e.newClient(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []migrate.Option{
		migrate.WithDefinitions(defs...),
		migrate.WithLogger(logger),
		migrate.WithWaitForActive(*wait),
	}
	if *journal != "" {
		j, err := migrate.OpenJournal(migrate.JournalOptions{Path: *journal})
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, migrate.WithJournal(j))
	}

	results, runErr := migrate.New(client, opts...).Run(ctx)
	for _, r := range results {
		if r.Status != "" {
			fmt.Fprintf(e.stdout, "%s\t%s\n", r.Table, r.Status)
		}
	}
	if runErr != nil {
		return errors.Join(errors.New("migration incomplete"), runErr)
	}
	return nil
}
