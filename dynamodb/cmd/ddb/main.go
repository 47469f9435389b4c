// ddb provisions DynamoDB tables from declarative schema files.
//
// # Installation
//
//	go install github.com/acksell/ddbdecl/dynamodb/cmd/ddb@latest
//
// # Commands
//
//	ddb migrate   Create the tables of one or more schema files
//	ddb schema    Validate schema files and print the normalized form
//
// Schema files are the YAML documents written by schema.Registry.Document.
// Without -schema, every ddb.schema.yaml below the working directory is used.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "migrate":
		err = runMigrate(newEnv(), args)
	case "schema":
		err = runSchema(newEnv(), args)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	case "version", "-v", "--version":
		fmt.Printf("ddb version %s\n", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "ddb: unknown command %q\n\n", cmd)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddb %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `ddb - DynamoDB table provisioning

Usage:
  ddb <command> [flags]

Commands:
  migrate   Create the tables declared in schema files
  schema    Validate schema files and print the normalized schema
  version   Print the version

Examples:
  # Create tables against DynamoDB Local:
  DDB_ENDPOINT=http://localhost:8000 ddb migrate -schema ./ddb.schema.yaml

  # Check every ddb.schema.yaml in the repository:
  ddb schema

Configuration (optional):
  Create ddb.yaml for defaults, DDB_* environment variables override it:

    region: eu-north-1
    endpoint: http://localhost:8000   # DDB_ENDPOINT
    logLevel: info                    # DDB_LOG_LEVEL
    journalDir: .ddb/journal          # DDB_JOURNAL_DIR
    waitTimeout: 2m                   # DDB_WAIT_TIMEOUT

Run 'ddb <command> -h' for more information on a command.`)
}
