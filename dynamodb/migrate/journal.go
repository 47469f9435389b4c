package migrate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/acksell/ddbdecl/dynamodb/schema"
	"github.com/acksell/ddbdecl/dynamodb/table"
	"github.com/dgraph-io/badger/v4"
)

// Journal remembers which table definitions have been created, so later runs
// can skip them without calling DynamoDB.
type Journal struct {
	db *badger.DB
}

// JournalOptions configures the BadgerDB journal.
type JournalOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger for BadgerDB. If nil, logging is disabled.
	Logger badger.Logger
}

func OpenJournal(opts JournalOptions) (*Journal, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)

	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(opts.Logger)
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func journalKey(tableName string) []byte {
	return []byte("table/" + tableName)
}

// Recorded reports whether the table was created with exactly this definition.
func (j *Journal) Recorded(def table.TableDefinition) (bool, error) {
	fp, err := Fingerprint(def)
	if err != nil {
		return false, err
	}
	var recorded bool
	err = j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(journalKey(def.Name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			recorded = string(val) == fp
			return nil
		})
	})
	if err != nil {
		return false, fmt.Errorf("read journal for table %q: %w", def.Name, err)
	}
	return recorded, nil
}

// Record stores the fingerprint of the definition under its table name.
func (j *Journal) Record(def table.TableDefinition) error {
	fp, err := Fingerprint(def)
	if err != nil {
		return err
	}
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(journalKey(def.Name), []byte(fp))
	})
	if err != nil {
		return fmt.Errorf("write journal for table %q: %w", def.Name, err)
	}
	return nil
}

// Forget removes the table from the journal, e.g. after it was deleted.
func (j *Journal) Forget(tableName string) error {
	err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(journalKey(tableName))
	})
	if err != nil {
		return fmt.Errorf("forget table %q: %w", tableName, err)
	}
	return nil
}

// Fingerprint hashes the normalized document form of a table definition.
func Fingerprint(def table.TableDefinition) (string, error) {
	data, err := schema.NewDocument(def).Marshal()
	if err != nil {
		return "", fmt.Errorf("fingerprint table %q: %w", def.Name, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
