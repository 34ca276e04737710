// Package storage provides the local persistence layer for Couponvault.
//
// Records live in a Badger key-value store. Each collection is a key prefix
// ("coupons:<id>", "stores:<name>", ...) and values are JSON documents.
// A *DB is opened once by the caller and passed to every consumer.
package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	badger "github.com/dgraph-io/badger/v4"

	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/model"
)

const (
	// AppName is the application name used for data directories.
	AppName = "couponvault"

	// SchemaVersion is written to the meta record on first open.
	SchemaVersion = 1

	metaSchemaKey = "meta:schema"
)

// DB wraps a Badger database connection.
type DB struct {
	db   *badger.DB
	path string
	lock *FileLock
}

// Options configures the database connection.
type Options struct {
	// Path is the database directory path. Empty string uses in-memory mode.
	Path string
	// InMemory forces in-memory mode regardless of Path.
	InMemory bool
	// LockTimeout bounds how long Open waits for another process to release the
	// database. Zero fails immediately.
	LockTimeout time.Duration
	// MinFreeBytes is the free-space floor checked before opening on disk.
	// Zero uses MinFreeSpace.
	MinFreeBytes uint64
}

// DefaultPath returns the default database path following the XDG spec.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, AppName, "db")
}

// schemaRecord marks a provisioned database.
type schemaRecord struct {
	Version     int       `json:"version"`
	Collections []string  `json:"collections"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Open opens or creates a database. Every failure is an *errors.InitializationError.
func Open(opts Options) (*DB, error) {
	var (
		badgerOpts badger.Options
		lock       *FileLock
	)

	if opts.InMemory || opts.Path == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := EnsureDirectory(opts.Path, opts.MinFreeBytes); err != nil {
			return nil, &errors.InitializationError{Path: opts.Path, Err: err}
		}
		lock = NewFileLock(filepath.Dir(opts.Path))
		if err := lock.AcquireWithTimeout(opts.LockTimeout); err != nil {
			return nil, &errors.InitializationError{Path: opts.Path, Err: NewLockError(err)}
		}
		badgerOpts = badger.DefaultOptions(opts.Path)
	}

	badgerOpts = badgerOpts.WithLoggingLevel(badger.ERROR)

	bdb, err := badger.Open(badgerOpts)
	if err != nil {
		if lock != nil {
			_ = lock.Release()
		}
		return nil, &errors.InitializationError{Path: opts.Path, Err: err}
	}

	d := &DB{db: bdb, path: opts.Path, lock: lock}
	if err := d.provision(); err != nil {
		_ = d.Close()
		return nil, &errors.InitializationError{Path: opts.Path, Err: err}
	}
	return d, nil
}

// provision writes the schema record the first time a database is opened.
func (d *DB) provision() error {
	return d.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(metaSchemaKey))
		if err == nil {
			return nil
		}
		if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := json.Marshal(schemaRecord{
			Version:     SchemaVersion,
			Collections: model.Collections(),
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		logging.Debug("provisioning database", logging.KeyCount, len(model.Collections()))
		return txn.Set([]byte(metaSchemaKey), data)
	})
}

// SchemaVersion returns the version stored in the meta record.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var rec schemaRecord
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaSchemaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return 0, &errors.PersistenceError{Op: "get", Collection: "meta", Key: "schema", Err: err}
	}
	return rec.Version, ctx.Err()
}

// Path returns the on-disk directory, or "" for in-memory databases.
func (d *DB) Path() string {
	return d.path
}

// Close closes the database connection and releases the process lock.
func (d *DB) Close() error {
	err := d.db.Close()
	if d.lock != nil {
		if lerr := d.lock.Release(); err == nil {
			err = lerr
		}
	}
	return err
}

// Ping verifies the database answers a read transaction.
func (d *DB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(metaSchemaKey))
		return err
	})
}

// Badger returns the underlying Badger database for advanced operations.
func (d *DB) Badger() *badger.DB {
	return d.db
}
