package coupons

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/model"
)

// ExportVersion identifies the export document layout.
const ExportVersion = 1

// Format selects the export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is the portable form of a coupon collection.
type Document struct {
	Version     int                            `json:"version" yaml:"version"`
	ExportedAt  time.Time                      `json:"exportedAt" yaml:"exportedAt"`
	Coupons     []model.Coupon                 `json:"coupons" yaml:"coupons"`
	Preferences *model.NotificationPreferences `json:"preferences,omitempty" yaml:"preferences,omitempty"`
}

// Export writes every coupon and the notification preferences to w.
func (s *Service) Export(ctx context.Context, w io.Writer, format Format) (int, error) {
	coupons, err := s.GetCoupons(ctx)
	if err != nil {
		return 0, err
	}
	SortByExpiry(coupons)
	prefs := s.GetNotificationPreferences(ctx)

	doc := Document{
		Version:     ExportVersion,
		ExportedAt:  s.now().UTC(),
		Coupons:     coupons,
		Preferences: &prefs,
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return 0, err
		}
		err = enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(doc)
	}
	return len(coupons), err
}

// ImportResult counts what Import did.
type ImportResult struct {
	Imported int
	Skipped  int      // ids already present
	Invalid  []string // coupons that failed validation
}

// Import reads a Document (JSON or YAML) and adds each coupon through
// AddCoupon. Coupons whose id already exists are skipped. Preferences are
// applied only when setPrefs is true.
func (s *Service) Import(ctx context.Context, r io.Reader, setPrefs bool) (ImportResult, error) {
	var res ImportResult

	data, err := io.ReadAll(r)
	if err != nil {
		return res, err
	}
	var doc Document
	if err := decodeDocument(data, &doc); err != nil {
		return res, errors.NewUserError(fmt.Sprintf("cannot read import file: %v", err),
			"Pass a file produced by 'couponvault export'.")
	}
	if doc.Version > ExportVersion {
		return res, errors.NewUserError(
			fmt.Sprintf("import file version %d is newer than supported version %d", doc.Version, ExportVersion), "")
	}

	for _, c := range doc.Coupons {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := s.AddCoupon(ctx, c)
		var verr *model.ValidationError
		switch {
		case err == nil:
			res.Imported++
		case stderrors.Is(err, errors.ErrDuplicateKey):
			res.Skipped++
		case stderrors.As(err, &verr):
			res.Invalid = append(res.Invalid, fmt.Sprintf("%s (%s)", c.Code, verr.Error()))
		default:
			return res, err
		}
	}

	if setPrefs && doc.Preferences != nil {
		if err := s.SetNotificationPreferences(ctx, *doc.Preferences); err != nil {
			return res, err
		}
	}

	logging.InfoContext(ctx, "coupons imported",
		logging.KeyCount, res.Imported,
		"skipped", res.Skipped,
		"invalid", len(res.Invalid))
	return res, nil
}

func decodeDocument(data []byte, doc *Document) error {
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		return json.Unmarshal(data, doc)
	}
	return yaml.Unmarshal(data, doc)
}
