package output

import (
	"strings"
	"time"

	"github.com/manav03panchal/couponvault/internal/coupons"
	"github.com/manav03panchal/couponvault/internal/model"
)

// JSONFormatter provides JSON-specific formatting.
type JSONFormatter struct {
	*Formatter
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(f *Formatter) *JSONFormatter {
	return &JSONFormatter{Formatter: f}
}

// CouponOutput is a coupon plus derived expiry information.
type CouponOutput struct {
	ID         string `json:"id"`
	Store      string `json:"store"`
	Code       string `json:"code"`
	Discount   string `json:"discount"`
	ExpiryDate string `json:"expiryDate"`
	CodeType   string `json:"codeType,omitempty"`
	HasImage   bool   `json:"hasImage"`
	Urgency    string `json:"urgency"`
	Expired    bool   `json:"expired"`
	DaysLeft   *int   `json:"daysLeft,omitempty"`
}

// NewCouponOutput derives the output view of c at now.
func NewCouponOutput(c model.Coupon, now time.Time) *CouponOutput {
	out := &CouponOutput{
		ID:         c.ID,
		Store:      c.Store,
		Code:       c.Code,
		Discount:   c.Discount,
		ExpiryDate: c.ExpiryDate,
		CodeType:   c.CodeType,
		HasImage:   c.CodeImage != "",
		Urgency:    coupons.UrgencyAt(c, now).String(),
		Expired:    c.IsExpiredAt(now),
	}
	if days, ok := c.DaysUntilExpiry(now); ok {
		out.DaysLeft = &days
	}
	return out
}

// CouponsResponse is the list output.
type CouponsResponse struct {
	Coupons []*CouponOutput `json:"coupons"`
	Total   int             `json:"total"`
	Expired int             `json:"expired"`
}

// NewCouponsResponse builds the list output in store then expiry order.
func NewCouponsResponse(list []model.Coupon, now time.Time) *CouponsResponse {
	resp := &CouponsResponse{Coupons: make([]*CouponOutput, 0, len(list)), Total: len(list)}
	groups := coupons.GroupByStore(list)
	for _, store := range coupons.StoreNames(groups) {
		for _, c := range groups[store] {
			out := NewCouponOutput(c, now)
			if out.Expired {
				resp.Expired++
			}
			resp.Coupons = append(resp.Coupons, out)
		}
	}
	return resp
}

// StoreOutput is a store directory entry with its coupon count.
type StoreOutput struct {
	Name    string `json:"name"`
	Coupons int    `json:"coupons"`
}

// ErrorResponse represents an error in JSON.
type ErrorResponse struct {
	Status     string `json:"status"`
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ResultResponse reports the outcome of a mutating command.
type ResultResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count,omitempty"`
	ID     string `json:"id,omitempty"`
}

func (j *JSONFormatter) PrintCoupons(list []model.Coupon, now time.Time) error {
	return j.JSON(NewCouponsResponse(list, now))
}

func (j *JSONFormatter) PrintCoupon(c model.Coupon, now time.Time) error {
	return j.JSON(NewCouponOutput(c, now))
}

func (j *JSONFormatter) PrintStores(stores []string, counts map[string]int) error {
	out := make([]StoreOutput, 0, len(stores))
	for _, s := range stores {
		out = append(out, StoreOutput{Name: s, Coupons: counts[s]})
	}
	return j.JSON(map[string]any{"stores": out})
}

func (j *JSONFormatter) PrintPreferences(p model.NotificationPreferences) error {
	return j.JSON(p)
}

func (j *JSONFormatter) PrintWebhooks(hooks []*model.Webhook) error {
	if hooks == nil {
		hooks = []*model.Webhook{}
	}
	return j.JSON(map[string]any{"webhooks": hooks})
}

func (j *JSONFormatter) PrintResult(status string, count int, id string) error {
	return j.JSON(ResultResponse{Status: status, Count: count, ID: id})
}

// PrintError outputs an error in JSON format.
func (j *JSONFormatter) PrintError(errMsg, suggestion string) error {
	return j.JSON(ErrorResponse{Status: "error", Error: errMsg, Suggestion: suggestion})
}

// PlainFormatter writes one tab-separated record per line.
type PlainFormatter struct {
	*Formatter
}

// NewPlainFormatter creates a plain formatter.
func NewPlainFormatter(f *Formatter) *PlainFormatter {
	return &PlainFormatter{Formatter: f}
}

func (p *PlainFormatter) row(cols ...string) {
	for i, c := range cols {
		cols[i] = strings.NewReplacer("\t", " ", "\n", " ").Replace(c)
	}
	p.Println(strings.Join(cols, "\t"))
}

// PrintCoupons writes id, store, code, discount, expiry and urgency.
func (p *PlainFormatter) PrintCoupons(list []model.Coupon, now time.Time) {
	for _, c := range NewCouponsResponse(list, now).Coupons {
		p.row(c.ID, c.Store, c.Code, c.Discount, c.ExpiryDate, c.Urgency)
	}
}

// PrintStores writes one store name per line.
func (p *PlainFormatter) PrintStores(stores []string) {
	for _, s := range stores {
		p.row(s)
	}
}
