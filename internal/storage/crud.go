package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/manav03panchal/couponvault/internal/errors"
)

// ErrDuplicateKey is returned by Add when the key is already present.
var ErrDuplicateKey = errors.ErrDuplicateKey

// recordKey builds the Badger key for a record.
func recordKey(collection, key string) []byte {
	return []byte(collection + ":" + key)
}

func collectionPrefix(collection string) []byte {
	return []byte(collection + ":")
}

// Txn is a read-write transaction handed to Batch callbacks.
// Writes become visible together when the callback returns nil.
type Txn struct {
	txn *badger.Txn
}

// Get loads the record at collection/key into v. A missing key is reported
// as found == false with a nil error.
func (t *Txn) Get(collection, key string, v any) (found bool, err error) {
	item, err := t.txn.Get(recordKey(collection, key))
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, &errors.PersistenceError{Op: "get", Collection: collection, Key: key, Err: err}
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
	if err != nil {
		return false, &errors.PersistenceError{Op: "get", Collection: collection, Key: key, Err: err}
	}
	return true, nil
}

// Exists reports whether collection/key is present.
func (t *Txn) Exists(collection, key string) (bool, error) {
	_, err := t.txn.Get(recordKey(collection, key))
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, &errors.PersistenceError{Op: "get", Collection: collection, Key: key, Err: err}
}

// Add inserts v under collection/key and fails with ErrDuplicateKey if the key exists.
func (t *Txn) Add(collection, key string, v any) error {
	exists, err := t.Exists(collection, key)
	if err != nil {
		return err
	}
	if exists {
		return &errors.PersistenceError{Op: "add", Collection: collection, Key: key, Err: ErrDuplicateKey}
	}
	return t.put("add", collection, key, v)
}

// Put inserts or replaces v under collection/key.
func (t *Txn) Put(collection, key string, v any) error {
	return t.put("update", collection, key, v)
}

func (t *Txn) put(op, collection, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &errors.PersistenceError{Op: op, Collection: collection, Key: key, Err: err}
	}
	if err := t.txn.Set(recordKey(collection, key), data); err != nil {
		return &errors.PersistenceError{Op: op, Collection: collection, Key: key, Err: err}
	}
	return nil
}

// Delete removes collection/key. Deleting an absent key is not an error.
func (t *Txn) Delete(collection, key string) error {
	if err := t.txn.Delete(recordKey(collection, key)); err != nil {
		return &errors.PersistenceError{Op: "remove", Collection: collection, Key: key, Err: err}
	}
	return nil
}

// Keys lists every key in a collection, without the collection prefix.
func (t *Txn) Keys(collection string) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := t.txn.NewIterator(opts)
	defer it.Close()

	prefix := collectionPrefix(collection)
	keys := []string{}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, string(it.Item().Key()[len(prefix):]))
	}
	return keys, nil
}

// ListTxn decodes every record of a collection inside an open transaction.
func ListTxn[T any](t *Txn, collection string) ([]T, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 100
	it := t.txn.NewIterator(opts)
	defer it.Close()

	prefix := collectionPrefix(collection)
	results := []T{}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var v T
		err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
		if err != nil {
			return nil, &errors.PersistenceError{
				Op:         "list",
				Collection: collection,
				Key:        string(item.Key()[len(prefix):]),
				Err:        err,
			}
		}
		results = append(results, v)
	}
	return results, nil
}

// GetAll returns every record in a collection, in key order. An empty
// collection yields an empty slice.
func GetAll[T any](ctx context.Context, d *DB, collection string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var results []T
	err := d.db.View(func(txn *badger.Txn) error {
		var err error
		results, err = ListTxn[T](&Txn{txn: txn}, collection)
		return err
	})
	if err != nil {
		return nil, wrapEngine("list", collection, "", err)
	}
	return results, nil
}

// Get loads collection/key into v. Absence is reported as found == false.
func (d *DB) Get(ctx context.Context, collection, key string, v any) (found bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err = d.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = (&Txn{txn: txn}).Get(collection, key, v)
		return err
	})
	if err != nil {
		return false, wrapEngine("get", collection, key, err)
	}
	return found, nil
}

// Keys lists the keys of a collection.
func (d *DB) Keys(ctx context.Context, collection string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := d.db.View(func(txn *badger.Txn) error {
		var err error
		keys, err = (&Txn{txn: txn}).Keys(collection)
		return err
	})
	if err != nil {
		return nil, wrapEngine("list", collection, "", err)
	}
	return keys, nil
}

// Add inserts v and fails with ErrDuplicateKey if collection/key exists.
func (d *DB) Add(ctx context.Context, collection, key string, v any) error {
	return d.Batch(ctx, func(t *Txn) error {
		return t.Add(collection, key, v)
	})
}

// Update inserts or replaces v under collection/key.
func (d *DB) Update(ctx context.Context, collection, key string, v any) error {
	return d.Batch(ctx, func(t *Txn) error {
		return t.Put(collection, key, v)
	})
}

// Remove deletes collection/key; absent keys are ignored.
func (d *DB) Remove(ctx context.Context, collection, key string) error {
	return d.Batch(ctx, func(t *Txn) error {
		return t.Delete(collection, key)
	})
}

// Batch runs fn in a single read-write transaction. Either every write made
// through t is committed or none is.
func (d *DB) Batch(ctx context.Context, fn func(t *Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var fnErr error
	err := d.db.Update(func(txn *badger.Txn) error {
		fnErr = fn(&Txn{txn: txn})
		return fnErr
	})
	switch {
	case err == nil:
		return nil
	case fnErr != nil && err == fnErr:
		return err
	}
	return wrapEngine("batch", "", "", err)
}

// wrapEngine wraps every engine failure (commit conflicts, closed DB, value
// log I/O) in a PersistenceError. Errors that already are one, and context
// errors, pass through.
func wrapEngine(op, collection, key string, err error) error {
	var pe *errors.PersistenceError
	if stderrors.As(err, &pe) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &errors.PersistenceError{Op: op, Collection: collection, Key: key, Err: err}
}
