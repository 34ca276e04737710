package vision

import (
	"strings"

	"github.com/manav03panchal/couponvault/internal/model"
)

// Extraction holds the coupon fields recognized in a photo. Fields that were
// not found are empty.
type Extraction struct {
	Code       string `json:"code"`
	Discount   string `json:"discount"`
	Store      string `json:"store"`
	ExpiryDate string `json:"expiryDate"`
}

// Empty reports whether nothing was recognized.
func (e Extraction) Empty() bool {
	return e.Code == "" && e.Discount == "" && e.Store == "" && e.ExpiryDate == ""
}

func (e Extraction) trimmed() Extraction {
	return Extraction{
		Code:       strings.TrimSpace(e.Code),
		Discount:   strings.TrimSpace(e.Discount),
		Store:      strings.TrimSpace(e.Store),
		ExpiryDate: strings.TrimSpace(e.ExpiryDate),
	}
}

// Apply copies recognized fields into c, leaving fields c already has.
func (e Extraction) Apply(c *model.Coupon) {
	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" && v != "" {
			*dst = v
		}
	}
	e = e.trimmed()
	fill(&c.Code, e.Code)
	fill(&c.Discount, e.Discount)
	fill(&c.Store, e.Store)
	fill(&c.ExpiryDate, e.ExpiryDate)
}
