package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/couponvault/internal/coupons"
	"github.com/manav03panchal/couponvault/internal/model"
	"github.com/manav03panchal/couponvault/internal/parser"
)

// SummaryComponent shows coupon totals by urgency.
type SummaryComponent struct {
	Total    int
	Stores   int
	Expiring int
	Expired  int
	Width    int
}

// NewSummaryComponent counts coupons at now. A coupon counts as expiring when
// it is not expired and falls within days days.
func NewSummaryComponent(list []model.Coupon, now time.Time, days, width int) *SummaryComponent {
	sc := &SummaryComponent{
		Total:    len(list),
		Stores:   len(coupons.GroupByStore(list)),
		Expiring: len(coupons.FilterExpiringWithin(list, now, days)),
		Expired:  len(coupons.Expired(list, now)),
		Width:    width,
	}
	return sc
}

// View renders the summary component.
func (sc *SummaryComponent) View() string {
	var content strings.Builder
	fmt.Fprintf(&content, "%s coupons in %s stores",
		StyleCode.Render(fmt.Sprint(sc.Total)), StyleCode.Render(fmt.Sprint(sc.Stores)))
	content.WriteString("   ")
	content.WriteString(StyleWarning.Render(fmt.Sprintf("%d expiring soon", sc.Expiring)))
	content.WriteString("   ")
	content.WriteString(StyleError.Render(fmt.Sprintf("%d expired", sc.Expired)))

	if sc.Total > 0 {
		barWidth := sc.Width - 12
		if barWidth < 10 {
			barWidth = 10
		}
		content.WriteString("\n")
		content.WriteString(CountBar(sc.Expired+sc.Expiring, sc.Total, barWidth))
	}

	box := StyleSummaryBox
	if sc.Expired > 0 {
		box = StyleAlertSummaryBox
	}
	return box.Width(sc.Width - 4).Render(content.String())
}

// ListComponent shows coupons grouped by store with a cursor.
type ListComponent struct {
	Coupons []model.Coupon
	Cursor  int
	Now     time.Time
	Width   int
}

// Ordered returns coupons in display order: stores alphabetically, soonest
// expiry first within a store.
func Ordered(list []model.Coupon) []model.Coupon {
	groups := coupons.GroupByStore(list)
	out := make([]model.Coupon, 0, len(list))
	for _, store := range coupons.StoreNames(groups) {
		out = append(out, groups[store]...)
	}
	return out
}

// View renders the list component. Coupons must already be in Ordered order.
func (lc *ListComponent) View() string {
	var content strings.Builder
	content.WriteString(StyleTitle.Render("Coupons"))
	content.WriteString("\n")

	if len(lc.Coupons) == 0 {
		content.WriteString(StyleSubtitle.Render("No coupons yet"))
		return StyleListBox.Width(lc.Width - 4).Render(content.String())
	}

	store := ""
	for i, c := range lc.Coupons {
		if c.Store != store {
			if store != "" {
				content.WriteString("\n")
			}
			store = c.Store
			content.WriteString(StyleStore.Render(store))
			content.WriteString("\n")
		}
		content.WriteString(lc.renderRow(c, i == lc.Cursor))
		content.WriteString("\n")
	}
	return StyleListBox.Width(lc.Width - 4).Render(strings.TrimRight(content.String(), "\n"))
}

func (lc *ListComponent) renderRow(c model.Coupon, selected bool) string {
	marker := "  "
	if selected {
		marker = StyleCursor.Render("> ")
	}
	badge := UrgencyStyle(coupons.UrgencyAt(c, lc.Now)).Render(parser.FormatExpiry(c, lc.Now))
	return lipgloss.JoinHorizontal(lipgloss.Top,
		marker, StyleCode.Render(c.Code), "  ", StyleDiscount.Render(c.Discount), "  ", badge)
}

// DetailComponent shows every field of the selected coupon.
type DetailComponent struct {
	Coupon *model.Coupon
	Width  int
}

// View renders the detail component, or nothing without a selection.
func (dc *DetailComponent) View() string {
	if dc.Coupon == nil {
		return ""
	}
	c := dc.Coupon
	lines := []string{
		StyleStore.Render(c.Store),
		"Code:     " + StyleCode.Render(c.Code),
		"Discount: " + c.Discount,
		"Expires:  " + c.ExpiryDate,
	}
	if c.CodeType != "" {
		lines = append(lines, "Type:     "+c.CodeType)
	}
	lines = append(lines, StyleSubtitle.Render("ID: "+c.ID))
	return StyleDetailBox.Width(dc.Width - 4).Render(strings.Join(lines, "\n"))
}

// HelpBar renders the help bar at the bottom. The purge key is only
// offered while expired coupons exist.
func HelpBar(hasExpired bool) string {
	type binding struct {
		key  string
		desc string
	}
	keys := []binding{
		{"↑/↓", "move"},
		{"r", "refresh"},
	}
	if hasExpired {
		keys = append(keys, binding{"p", "purge expired"})
	}
	keys = append(keys, binding{"q", "quit"})

	var parts []string
	for _, k := range keys {
		part := StyleHelpKey.Render(k.key) + " " + StyleHelpDesc.Render(k.desc)
		parts = append(parts, part)
	}

	return StyleHelp.Render(strings.Join(parts, "  •  "))
}
