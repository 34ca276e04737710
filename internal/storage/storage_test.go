package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/model"
)

// Helper to create an in-memory database for testing
func setupTestDB(t *testing.T) *DB {
	db, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func coupon(id, store string) model.Coupon {
	return model.Coupon{ID: id, Store: store, Code: "CODE-" + id, Discount: "10%", ExpiryDate: model.NoExpiry}
}

// =============================================================================
// DB Tests
// =============================================================================

func TestOpenClose(t *testing.T) {
	t.Run("in_memory", func(t *testing.T) {
		db, err := Open(Options{InMemory: true})
		require.NoError(t, err)
		assert.Equal(t, "", db.Path())
		assert.NotNil(t, db.Badger())
		assert.NoError(t, db.Close())
	})

	t.Run("on_disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "db")
		db, err := Open(Options{Path: path})
		require.NoError(t, err)
		assert.Equal(t, path, db.Path())
		assert.NoError(t, db.Close())
	})

	t.Run("unusable_path_is_initialization_error", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "not-a-dir")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

		_, err := Open(Options{Path: filepath.Join(file, "db")})
		require.Error(t, err)
		var ie *errors.InitializationError
		assert.ErrorAs(t, err, &ie)
	})
}

func TestProvisioning(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	v, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
	assert.NoError(t, db.Ping(ctx))

	// Collections start out empty and the meta record is not part of any of them.
	for _, c := range model.Collections() {
		keys, err := db.Keys(ctx, c)
		require.NoError(t, err)
		assert.Empty(t, keys, c)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db")

	db, err := Open(Options{Path: path})
	require.NoError(t, err)
	c := coupon("c1", "Acme")
	require.NoError(t, db.Add(ctx, model.CollectionCoupons, c.ID, c))
	require.NoError(t, db.Close())

	db, err = Open(Options{Path: path})
	require.NoError(t, err)
	defer db.Close()

	var got model.Coupon
	found, err := db.Get(ctx, model.CollectionCoupons, "c1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, c, got)
}

// =============================================================================
// CRUD Tests
// =============================================================================

func TestGetMissingIsNotAnError(t *testing.T) {
	db := setupTestDB(t)

	var c model.Coupon
	found, err := db.Get(context.Background(), model.CollectionCoupons, "nope", &c)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestAddDuplicateKey(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, db.Add(ctx, model.CollectionStores, "Acme", model.Store{Name: "Acme"}))

	err := db.Add(ctx, model.CollectionStores, "Acme", model.Store{Name: "Acme"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	var pe *errors.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "add", pe.Op)
	assert.Equal(t, model.CollectionStores, pe.Collection)
	assert.Equal(t, "Acme", pe.Key)
}

func TestUpdateIsUpsert(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	c := coupon("c1", "Acme")
	require.NoError(t, db.Update(ctx, model.CollectionCoupons, c.ID, c))

	c.Discount = "20%"
	require.NoError(t, db.Update(ctx, model.CollectionCoupons, c.ID, c))

	all, err := GetAll[model.Coupon](ctx, db, model.CollectionCoupons)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "20%", all[0].Discount)
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	assert.NoError(t, db.Remove(ctx, model.CollectionCoupons, "ghost"))

	c := coupon("c1", "Acme")
	require.NoError(t, db.Add(ctx, model.CollectionCoupons, c.ID, c))
	require.NoError(t, db.Remove(ctx, model.CollectionCoupons, c.ID))

	found, err := db.Get(ctx, model.CollectionCoupons, c.ID, &model.Coupon{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetAllIsolatesCollections(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, db.Add(ctx, model.CollectionCoupons, "a", coupon("a", "Acme")))
	require.NoError(t, db.Add(ctx, model.CollectionCoupons, "b", coupon("b", "Beta")))
	require.NoError(t, db.Add(ctx, model.CollectionStores, "Acme", model.Store{Name: "Acme"}))

	coupons, err := GetAll[model.Coupon](ctx, db, model.CollectionCoupons)
	require.NoError(t, err)
	assert.Len(t, coupons, 2)

	stores, err := GetAll[model.Store](ctx, db, model.CollectionStores)
	require.NoError(t, err)
	assert.Equal(t, []model.Store{{Name: "Acme"}}, stores)

	empty, err := GetAll[model.Webhook](ctx, db, model.CollectionWebhooks)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestCancelledContext(t *testing.T) {
	db := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.Add(ctx, model.CollectionStores, "Acme", model.Store{Name: "Acme"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = GetAll[model.Store](ctx, db, model.CollectionStores)
	assert.ErrorIs(t, err, context.Canceled)

	keys, err := db.Keys(context.Background(), model.CollectionStores)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

// =============================================================================
// Batch Tests
// =============================================================================

func TestBatchCommitsTogether(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	c := coupon("c1", "Acme")
	err := db.Batch(ctx, func(tx *Txn) error {
		if err := tx.Add(model.CollectionCoupons, c.ID, c); err != nil {
			return err
		}
		return tx.Put(model.CollectionStores, c.Store, model.Store{Name: c.Store})
	})
	require.NoError(t, err)

	coupons, _ := GetAll[model.Coupon](ctx, db, model.CollectionCoupons)
	stores, _ := GetAll[model.Store](ctx, db, model.CollectionStores)
	assert.Len(t, coupons, 1)
	assert.Len(t, stores, 1)
}

func TestBatchRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, db.Add(ctx, model.CollectionCoupons, "dup", coupon("dup", "Acme")))

	err := db.Batch(ctx, func(tx *Txn) error {
		if err := tx.Put(model.CollectionStores, "Beta", model.Store{Name: "Beta"}); err != nil {
			return err
		}
		return tx.Add(model.CollectionCoupons, "dup", coupon("dup", "Beta"))
	})
	require.ErrorIs(t, err, ErrDuplicateKey)

	stores, err := GetAll[model.Store](ctx, db, model.CollectionStores)
	require.NoError(t, err)
	assert.Empty(t, stores, "store write must not survive the failed batch")
}

func TestBatchPassesCallbackErrors(t *testing.T) {
	sentinel := stderrors.New("stop")
	err := setupTestDB(t).Batch(context.Background(), func(tx *Txn) error {
		return sentinel
	})
	assert.Same(t, sentinel, err)
}

func TestEngineFailuresArePersistenceErrors(t *testing.T) {
	vlog := stderrors.New("vlog: write: input/output error")
	err := wrapEngine("batch", "", "", vlog)
	var pe *errors.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "batch", pe.Op)
	assert.ErrorIs(t, err, vlog)
	assert.True(t, errors.IsPersistence(err))

	inner := &errors.PersistenceError{Op: "get", Collection: "coupons", Key: "a", Err: vlog}
	assert.Same(t, inner, wrapEngine("batch", "", "", inner))
	assert.Equal(t, context.Canceled, wrapEngine("get", "coupons", "a", context.Canceled))
}

func TestBatchOnClosedDB(t *testing.T) {
	db, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = db.Update(context.Background(), model.CollectionStores, "Acme", model.Store{Name: "Acme"})
	assert.True(t, errors.IsPersistence(err))
}

func TestBatchReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	err := db.Batch(ctx, func(tx *Txn) error {
		require.NoError(t, tx.Put(model.CollectionStores, "Acme", model.Store{Name: "Acme"}))
		stores, err := ListTxn[model.Store](tx, model.CollectionStores)
		require.NoError(t, err)
		assert.Len(t, stores, 1)
		return nil
	})
	require.NoError(t, err)
}

// =============================================================================
// Webhook Repo Tests
// =============================================================================

func TestWebhookRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewWebhookRepo(setupTestDB(t))

	wh := model.NewWebhook("phone", model.WebhookTypeDiscord, "https://discord.com/api/webhooks/1/x")
	require.NoError(t, repo.Create(ctx, wh))
	assert.ErrorIs(t, repo.Create(ctx, wh), ErrDuplicateKey)

	got, err := repo.Get(ctx, "phone")
	require.NoError(t, err)
	assert.Equal(t, wh.URL, got.URL)

	require.NoError(t, repo.SetEnabled(ctx, "phone", false))
	enabled, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, repo.RecordDelivery(ctx, "phone", stderrors.New("429")))
	got, err = repo.Get(ctx, "phone")
	require.NoError(t, err)
	assert.Equal(t, "429", got.LastError)
	assert.False(t, got.LastUsed.IsZero())

	require.NoError(t, repo.Delete(ctx, "phone"))
	_, err = repo.Get(ctx, "phone")
	assert.ErrorIs(t, err, errors.ErrWebhookNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "phone"), errors.ErrWebhookNotFound)
	assert.ErrorIs(t, repo.SetEnabled(ctx, "phone", true), errors.ErrWebhookNotFound)
}

// =============================================================================
// Integrity / Backup Tests
// =============================================================================

func TestCheckIntegrity(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, db.Add(ctx, model.CollectionCoupons, "c1", coupon("c1", "Acme")))
	require.NoError(t, db.Badger().Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte("coupons:broken"), []byte("{not json")); err != nil {
			return err
		}
		return txn.Set([]byte("legacy:thing"), []byte("{}"))
	}))

	report, err := CheckIntegrity(ctx, db)
	require.NoError(t, err)
	assert.False(t, report.Healthy)
	assert.Equal(t, 1, report.Counts[model.CollectionCoupons])
	assert.Equal(t, []string{"coupons:broken"}, report.Undecodable)
	assert.Equal(t, []string{"legacy:thing"}, report.Unknown)
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	src := setupTestDB(t)
	require.NoError(t, src.Add(ctx, model.CollectionCoupons, "c1", coupon("c1", "Acme")))

	var buf bytes.Buffer
	require.NoError(t, Backup(ctx, src, &buf))

	dst := setupTestDB(t)
	require.NoError(t, Restore(ctx, dst, &buf))

	coupons, err := GetAll[model.Coupon](ctx, dst, model.CollectionCoupons)
	require.NoError(t, err)
	require.Len(t, coupons, 1)
	assert.Equal(t, "Acme", coupons[0].Store)
}
