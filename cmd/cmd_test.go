package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/coupons"
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/storage"
)

// cli runs commands in-process against one database directory.
type cli struct {
	t  *testing.T
	db string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("COUPONVAULT_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("COUPONVAULT_DB_PATH", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Cleanup(config.Global.Reset)
	return &cli{t: t, db: filepath.Join(dir, "db")}
}

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--db", c.db, "--color", "never"}, args...))
	defer func() {
		_ = closeContext()
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func (c *cli) json(v any, args ...string) {
	c.t.Helper()
	out := c.mustRun(append(args, "--format", "json")...)
	require.NoError(c.t, json.Unmarshal([]byte(out), v), out)
}

// storeDirectory reads the persisted store list straight from the database.
func (c *cli) storeDirectory() []string {
	c.t.Helper()
	db, err := storage.Open(storage.Options{Path: c.db})
	require.NoError(c.t, err)
	defer db.Close()
	return coupons.NewService(db).GetStores(context.Background())
}

type couponJSON struct {
	ID         string `json:"id"`
	Store      string `json:"store"`
	Code       string `json:"code"`
	Discount   string `json:"discount"`
	ExpiryDate string `json:"expiryDate"`
	Expired    bool   `json:"expired"`
}

type listJSON struct {
	Coupons []couponJSON `json:"coupons"`
	Total   int          `json:"total"`
	Expired int          `json:"expired"`
}

func (c *cli) add(store, code, discount, expires string) couponJSON {
	c.t.Helper()
	var got couponJSON
	c.json(&got, "add", "--store", store, "--code", code, "--discount", discount, "--expires", expires)
	return got
}

// =============================================================================
// Coupon Commands
// =============================================================================

func TestAddListShow(t *testing.T) {
	c := newCLI(t)

	added := c.add("  Acme ", "SAVE10", "10%", "+3d")
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "Acme", added.Store)
	assert.False(t, added.Expired)

	c.add("Bistro", "FREECOFFEE", "free coffee", "none")

	var list listJSON
	c.json(&list, "list")
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "Acme", list.Coupons[0].Store)
	assert.Equal(t, "No Expiry", list.Coupons[1].ExpiryDate)

	var shown couponJSON
	c.json(&shown, "show", added.ID[:6])
	assert.Equal(t, added.ID, shown.ID)

	out := c.mustRun("list", "--format", "plain")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestAddRejectsMissingFields(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("add", "--store", "Acme", "--discount", "10%")
	require.Error(t, err)
	assert.True(t, errors.IsUserError(err))

	_, err = c.run("add", "--store", "Acme", "--code", "X", "--discount", "1%", "--expires", "someday maybe")
	assert.ErrorIs(t, err, errors.ErrInvalidExpiry)
}

func TestEditMovesStore(t *testing.T) {
	c := newCLI(t)
	added := c.add("Acme", "SAVE10", "10%", "+10d")

	var edited couponJSON
	c.json(&edited, "edit", added.ID, "--store", "Bolt", "--discount", "15%")
	assert.Equal(t, "Bolt", edited.Store)
	assert.Equal(t, "15%", edited.Discount)
	assert.Equal(t, "SAVE10", edited.Code)

	var stores struct {
		Stores []struct {
			Name    string `json:"name"`
			Coupons int    `json:"coupons"`
		} `json:"stores"`
	}
	c.json(&stores, "stores")
	require.Len(t, stores.Stores, 1)
	assert.Equal(t, "Bolt", stores.Stores[0].Name)
	assert.Equal(t, 1, stores.Stores[0].Coupons)

	assert.Equal(t, []string{"Bolt"}, c.storeDirectory())
}

func TestEditStoreKeepsSharedStore(t *testing.T) {
	c := newCLI(t)
	first := c.add("Acme", "A1", "10%", "none")
	c.add("Acme", "A2", "20%", "none")

	c.mustRun("edit", first.ID, "--store", "Bolt", "--code", "B1")
	assert.Equal(t, []string{"Acme", "Bolt"}, c.storeDirectory())
}

func TestListHintsAtExpired(t *testing.T) {
	c := newCLI(t)
	c.add("Acme", "LIVE", "10%", "+5d")

	out := c.mustRun("list")
	assert.NotContains(t, out, "couponvault purge")

	c.add("Acme", "OLD", "5%", "2020-01-01")
	out = c.mustRun("list")
	assert.Contains(t, out, "couponvault purge")
}

func TestPurgeAndExpiring(t *testing.T) {
	c := newCLI(t)
	c.add("Acme", "OLD", "5%", "2020-01-01")
	c.add("Acme", "SOON", "10%", "+2d")
	c.add("Acme", "LATER", "20%", "+60d")

	var soon listJSON
	c.json(&soon, "expiring", "7")
	require.Len(t, soon.Coupons, 1)
	assert.Equal(t, "SOON", soon.Coupons[0].Code)

	var expired listJSON
	c.json(&expired, "list", "--expired")
	require.Len(t, expired.Coupons, 1)
	assert.Equal(t, "OLD", expired.Coupons[0].Code)

	var purged struct {
		Count int `json:"count"`
	}
	c.json(&purged, "purge")
	assert.Equal(t, 1, purged.Count)

	var list listJSON
	c.json(&list, "list")
	assert.Equal(t, 2, list.Total)

	_, err := c.run("expiring", "lots")
	assert.True(t, errors.IsUserError(err))
}

func TestDelete(t *testing.T) {
	c := newCLI(t)
	a := c.add("Acme", "A", "1%", "none")
	b := c.add("Acme", "B", "2%", "none")

	c.mustRun("delete", a.ID, b.ID)

	var list listJSON
	c.json(&list, "list")
	assert.Zero(t, list.Total)

	_, err := c.run("delete", a.ID)
	assert.ErrorIs(t, err, errors.ErrCouponNotFound)
}

// =============================================================================
// Preferences, Webhooks, Transfer
// =============================================================================

func TestPrefs(t *testing.T) {
	c := newCLI(t)

	var prefs struct {
		DaysBeforeExpiry int    `json:"daysBeforeExpiry"`
		NotificationTime string `json:"notificationTime"`
	}
	c.json(&prefs, "prefs")
	assert.Equal(t, 3, prefs.DaysBeforeExpiry)

	c.json(&prefs, "prefs", "set", "--days", "5", "--time", "8:30")
	assert.Equal(t, 5, prefs.DaysBeforeExpiry)
	assert.Equal(t, "08:30", prefs.NotificationTime)

	_, err := c.run("prefs", "set", "--days", "400")
	assert.True(t, errors.IsUserError(err))
	_, err = c.run("prefs", "set")
	assert.True(t, errors.IsUserError(err))
}

func TestWebhookLifecycle(t *testing.T) {
	c := newCLI(t)

	c.mustRun("webhook", "add", "local", "http://localhost:9/hook")
	_, err := c.run("webhook", "add", "local", "http://localhost:9/other")
	assert.True(t, errors.IsUserError(err))
	_, err = c.run("webhook", "add", "lan", "https://192.168.1.2/hook")
	assert.True(t, errors.IsUserError(err))
	_, err = c.run("webhook", "add", "bad", "http://localhost:9/x", "--template", "{{.Title}}", "--type", "slack")
	assert.True(t, errors.IsUserError(err))

	c.mustRun("webhook", "disable", "local")

	var hooks struct {
		Webhooks []struct {
			Name    string `json:"name"`
			Enabled bool   `json:"enabled"`
		} `json:"webhooks"`
	}
	c.json(&hooks, "webhook", "list")
	require.Len(t, hooks.Webhooks, 1)
	assert.False(t, hooks.Webhooks[0].Enabled)

	c.mustRun("webhook", "remove", "local", "--force")
	c.json(&hooks, "webhook", "list")
	assert.Empty(t, hooks.Webhooks)
}

func TestExportImport(t *testing.T) {
	src := newCLI(t)
	src.add("Acme", "SAVE10", "10%", "+5d")
	src.add("Bistro", "COFFEE", "free coffee", "none")

	file := filepath.Join(t.TempDir(), "coupons.yaml")
	src.mustRun("export", "-o", file)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SAVE10")

	dst := &cli{t: t, db: filepath.Join(t.TempDir(), "db")}
	var res struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}
	dst.json(&res, "import", file)
	assert.Equal(t, 2, res.Imported)

	dst.json(&res, "import", file)
	assert.Zero(t, res.Imported)
	assert.Equal(t, 2, res.Skipped)
}

func TestDoctorBackupRestore(t *testing.T) {
	c := newCLI(t)
	c.add("Acme", "SAVE10", "10%", "none")

	out := c.mustRun("doctor")
	assert.Contains(t, out, "healthy")

	file := filepath.Join(t.TempDir(), "vault.bak")
	c.mustRun("backup", file)

	dst := &cli{t: t, db: filepath.Join(t.TempDir(), "db")}
	dst.mustRun("restore", file, "--force")

	var list listJSON
	dst.json(&list, "list")
	assert.Equal(t, 1, list.Total)
}

// =============================================================================
// Commands Without a Database
// =============================================================================

func TestVersionAndConfig(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("version")
	assert.Contains(t, out, "couponvault "+Version)

	out = c.mustRun("config", "path")
	assert.Contains(t, out, "missing.yaml")

	out = c.mustRun("config", "show")
	assert.Contains(t, out, "storage:")
}

func TestScanWithoutKey(t *testing.T) {
	c := newCLI(t)
	img := filepath.Join(t.TempDir(), "coupon.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(t, os.WriteFile(img, buf.Bytes(), 0o644))

	_, err := c.run("scan", img)
	assert.ErrorIs(t, err, errors.ErrMissingAPIKey)
}
