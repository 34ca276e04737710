// Package runtime provides the per-command application context for couponvault.
package runtime

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/coupons"
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/model"
	"github.com/manav03panchal/couponvault/internal/output"
	"github.com/manav03panchal/couponvault/internal/storage"
)

// MemoryPath selects an in-memory database when used as DBPath.
const MemoryPath = ":memory:"

// Context holds the application runtime context.
type Context struct {
	DB        *storage.DB
	Formatter *output.Formatter

	Coupons  *coupons.Service
	Webhooks *storage.WebhookRepo

	Debug bool
}

// Options configures the runtime context.
type Options struct {
	DBPath    string
	InMemory  bool
	Format    output.Format
	ColorMode output.ColorMode
	Debug     bool
}

// DefaultOptions returns options derived from config.Global.
func DefaultOptions() Options {
	path := config.Global.Storage.Path
	if path == "" {
		path = storage.DefaultPath()
	}
	return Options{
		DBPath:    path,
		Format:    output.FormatCLI,
		ColorMode: output.ColorAuto,
	}
}

// StorageOptions maps opts onto storage.Options using config.Global limits.
func (opts Options) StorageOptions() storage.Options {
	s := storage.Options{
		Path:         opts.DBPath,
		InMemory:     opts.InMemory,
		LockTimeout:  config.Global.Storage.LockTimeout,
		MinFreeBytes: config.Global.Storage.MinFreeSpace,
	}
	if s.Path == MemoryPath {
		s.Path = ""
		s.InMemory = true
	}
	return s
}

// New creates a new runtime context.
func New(opts Options) (*Context, error) {
	db, err := storage.Open(opts.StorageOptions())
	if err != nil {
		return nil, errors.WithContextAndStack(err, "open database")
	}

	formatter := output.NewFormatter()
	formatter.Format = opts.Format
	formatter.ColorMode = opts.ColorMode

	return &Context{
		DB:        db,
		Formatter: formatter,
		Coupons:   coupons.NewService(db),
		Webhooks:  storage.NewWebhookRepo(db),
		Debug:     opts.Debug,
	}, nil
}

// Close closes the runtime context.
func (c *Context) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// CLIFormatter returns a CLI formatter.
func (c *Context) CLIFormatter() *output.CLIFormatter {
	return output.NewCLIFormatter(c.Formatter)
}

// JSONFormatter returns a JSON formatter.
func (c *Context) JSONFormatter() *output.JSONFormatter {
	return output.NewJSONFormatter(c.Formatter)
}

// PlainFormatter returns a plain formatter.
func (c *Context) PlainFormatter() *output.PlainFormatter {
	return output.NewPlainFormatter(c.Formatter)
}

func (c *Context) IsJSON() bool {
	return c.Formatter.IsJSON()
}

func (c *Context) IsPlain() bool {
	return c.Formatter.IsPlain()
}

// Debugf prints debug output to stderr if debug mode is enabled.
func (c *Context) Debugf(format string, args ...any) {
	if c.Debug {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// FindCoupon resolves id, or a unique prefix of at least four characters,
// to a stored coupon.
func (c *Context) FindCoupon(ctx context.Context, id string) (model.Coupon, error) {
	cp, err := c.Coupons.GetCoupon(ctx, id)
	if err == nil || !errors.Is(err, errors.ErrCouponNotFound) {
		return cp, err
	}
	if len(id) < MinPrefixLength {
		return model.Coupon{}, err
	}

	all, listErr := c.Coupons.GetCoupons(ctx)
	if listErr != nil {
		return model.Coupon{}, listErr
	}
	var matches []model.Coupon
	for _, candidate := range all {
		if strings.HasPrefix(candidate.ID, id) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return model.Coupon{}, err
	case 1:
		return matches[0], nil
	default:
		return model.Coupon{}, errors.NewUserErrorWithField("id", id,
			fmt.Sprintf("ID prefix matches %d coupons", len(matches)),
			"Use more characters of the id. 'couponvault list --format plain' prints full ids.")
	}
}
