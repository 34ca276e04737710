package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/model"
)

// IntegrityReport summarizes a full scan of the database.
type IntegrityReport struct {
	CheckedAt   time.Time      `json:"checkedAt"`
	Healthy     bool           `json:"healthy"`
	Schema      int            `json:"schema"`
	Counts      map[string]int `json:"counts"`
	Undecodable []string       `json:"undecodable,omitempty"`
	Unknown     []string       `json:"unknown,omitempty"`
}

// CheckIntegrity reads every record and reports values that are not valid
// JSON and keys outside the known collections.
func CheckIntegrity(ctx context.Context, d *DB) (*IntegrityReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &IntegrityReport{
		CheckedAt: time.Now(),
		Counts:    make(map[string]int),
	}
	known := make(map[string]bool)
	for _, c := range model.Collections() {
		known[c] = true
		report.Counts[c] = 0
	}

	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if key == metaSchemaKey {
				continue
			}

			collection, _, ok := strings.Cut(key, ":")
			if !ok || !known[collection] {
				report.Unknown = append(report.Unknown, key)
				continue
			}

			err := item.Value(func(val []byte) error {
				if !json.Valid(val) {
					return fmt.Errorf("invalid JSON")
				}
				return nil
			})
			if err != nil {
				logging.Warn("undecodable record", logging.KeyRecord, key, logging.KeyError, err)
				report.Undecodable = append(report.Undecodable, key)
				continue
			}
			report.Counts[collection]++
		}
		return nil
	})
	if err != nil {
		return nil, &errors.PersistenceError{Op: "scan", Err: err}
	}

	if v, err := d.SchemaVersion(ctx); err == nil {
		report.Schema = v
	}
	report.Healthy = len(report.Undecodable) == 0 && report.Schema == SchemaVersion
	return report, nil
}

// Backup streams a full Badger backup of the database to w.
func Backup(ctx context.Context, d *DB, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.db.Backup(w, 0); err != nil {
		return &errors.PersistenceError{Op: "backup", Err: err}
	}
	return nil
}

// Restore loads a backup produced by Backup into d.
func Restore(ctx context.Context, d *DB, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.db.Load(r, 256); err != nil {
		return &errors.PersistenceError{Op: "restore", Err: err}
	}
	return nil
}
