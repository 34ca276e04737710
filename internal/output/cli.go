package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/couponvault/internal/coupons"
	"github.com/manav03panchal/couponvault/internal/model"
	"github.com/manav03panchal/couponvault/internal/parser"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6B7280")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorSuccess = lipgloss.Color("#10B981")

	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning)
	styleError   = lipgloss.NewStyle().Foreground(colorError)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleBold    = lipgloss.NewStyle().Bold(true)
	styleStore   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	styleCode    = lipgloss.NewStyle().Bold(true)

	badgeBase = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	badges    = map[coupons.Urgency]lipgloss.Style{
		coupons.UrgencyExpired: badgeBase.Background(lipgloss.Color("#7F1D1D")),
		coupons.UrgencyHigh:    badgeBase.Background(colorError),
		coupons.UrgencyMedium:  badgeBase.Background(colorWarning),
		coupons.UrgencyLow:     badgeBase.Background(colorSuccess),
		coupons.UrgencyNone:    badgeBase.Background(colorMuted),
	}
)

// CLIFormatter provides CLI-specific formatting.
type CLIFormatter struct {
	*Formatter
}

// NewCLIFormatter creates a new CLI formatter.
func NewCLIFormatter(f *Formatter) *CLIFormatter {
	return &CLIFormatter{Formatter: f}
}

func (c *CLIFormatter) styled(s lipgloss.Style, text string) string {
	if c.IsColorEnabled() {
		return s.Render(text)
	}
	return text
}

// Title prints a title.
func (c *CLIFormatter) Title(text string) {
	c.Println(c.styled(styleTitle, text))
}

// Success prints a success message.
func (c *CLIFormatter) Success(text string) {
	c.Println(c.styled(styleSuccess, "✓ "+text))
}

// Warning prints a warning message.
func (c *CLIFormatter) Warning(text string) {
	c.Println(c.styled(styleWarning, "⚠ "+text))
}

// Error prints an error message.
func (c *CLIFormatter) Error(text string) {
	c.Println(c.styled(styleError, "✗ "+text))
}

// Muted prints muted text.
func (c *CLIFormatter) Muted(text string) {
	c.Println(c.styled(styleMuted, text))
}

// Badge renders the expiry label for c, colored by urgency.
func (c *CLIFormatter) Badge(cp model.Coupon, now time.Time) string {
	label := parser.FormatExpiry(cp, now)
	u := coupons.UrgencyAt(cp, now)
	if !c.IsColorEnabled() {
		return "[" + label + "]"
	}
	return badges[u].Render(label)
}

// PrintCouponList prints coupons grouped by store, soonest expiry first.
func (c *CLIFormatter) PrintCouponList(list []model.Coupon, now time.Time) {
	if len(list) == 0 {
		c.Muted("No coupons yet.")
		c.Muted("Use 'couponvault add --store <store> --code <code> --discount <discount>' to add one.")
		return
	}

	groups := coupons.GroupByStore(list)
	names := coupons.StoreNames(groups)
	width := c.Width()
	for i, store := range names {
		if i > 0 {
			c.Println()
		}
		c.Printf("%s %s\n", c.styled(styleStore, store), c.styled(styleMuted, fmt.Sprintf("(%d)", len(groups[store]))))
		for _, cp := range groups[store] {
			c.Println(c.couponLine(cp, now, width))
		}
	}
}

func (c *CLIFormatter) couponLine(cp model.Coupon, now time.Time, width int) string {
	left := fmt.Sprintf("  %s  %s", c.styled(styleCode, cp.Code), cp.Discount)
	right := c.Badge(cp, now)
	id := c.styled(styleMuted, shortID(cp.ID))

	line := left + "  " + right + "  " + id
	if gap := width - lipgloss.Width(line); gap > 0 && width > 0 {
		line = left + strings.Repeat(" ", gap+2) + right + "  " + id
	}
	return line
}

// PrintCoupon prints one coupon with all fields.
func (c *CLIFormatter) PrintCoupon(cp model.Coupon, now time.Time) {
	c.Printf("%s  %s\n", c.styled(styleStore, cp.Store), c.Badge(cp, now))
	c.Printf("  Code:     %s\n", c.styled(styleCode, cp.Code))
	c.Printf("  Discount: %s\n", cp.Discount)
	c.Printf("  Expires:  %s\n", cp.ExpiryDate)
	if cp.CodeType != "" {
		c.Printf("  Type:     %s\n", cp.CodeType)
	}
	if cp.CodeImage != "" {
		c.Printf("  Image:    %s\n", c.styled(styleMuted, fmt.Sprintf("%d bytes", len(cp.CodeImage))))
	}
	c.Printf("  ID:       %s\n", c.styled(styleMuted, cp.ID))
}

// PrintCouponAdded confirms a new coupon.
func (c *CLIFormatter) PrintCouponAdded(cp model.Coupon, now time.Time) {
	c.Success(fmt.Sprintf("Added %s coupon for %s", cp.Discount, cp.Store))
	c.PrintCoupon(cp, now)
}

// PrintStores prints the store directory with coupon counts.
func (c *CLIFormatter) PrintStores(stores []string, counts map[string]int) {
	if len(stores) == 0 {
		c.Muted("No stores yet.")
		return
	}
	c.Title("Stores")
	for _, s := range stores {
		c.Printf("  %s %s\n", c.styled(styleStore, s), c.styled(styleMuted, fmt.Sprintf("(%d)", counts[s])))
	}
}

// PrintPreferences prints the notification preferences.
func (c *CLIFormatter) PrintPreferences(p model.NotificationPreferences) {
	c.Title("Notification preferences")
	c.Printf("  Days before expiry: %d\n", p.DaysBeforeExpiry)
	c.Printf("  Notification time:  %s\n", p.NotificationTime)
}

// PrintWebhooks prints configured webhooks.
func (c *CLIFormatter) PrintWebhooks(hooks []*model.Webhook) {
	if len(hooks) == 0 {
		c.Muted("No webhooks configured.")
		return
	}
	rows := make([]TableRow, 0, len(hooks))
	for _, w := range hooks {
		state := "enabled"
		if !w.Enabled {
			state = "disabled"
		}
		last := "-"
		if !w.LastUsed.IsZero() {
			last = w.LastUsed.Local().Format("2006-01-02 15:04")
		}
		if w.LastError != "" {
			last += " (error)"
		}
		rows = append(rows, TableRow{Columns: []string{w.Name, w.Type, state, last}})
	}
	c.PrintTable([]string{"NAME", "TYPE", "STATE", "LAST USED"}, rows)
}

// TableRow is one row of PrintTable.
type TableRow struct {
	Columns []string
}

// PrintTable prints left-aligned columns under a bold header.
func (c *CLIFormatter) PrintTable(headers []string, rows []TableRow) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, col := range row.Columns {
			if i < len(widths) && lipgloss.Width(col) > widths[i] {
				widths[i] = lipgloss.Width(col)
			}
		}
	}

	line := func(cols []string) string {
		var b strings.Builder
		for i, col := range cols {
			if i < len(widths) {
				b.WriteString(col + strings.Repeat(" ", widths[i]-lipgloss.Width(col)+2))
			}
		}
		return strings.TrimRight(b.String(), " ")
	}
	c.Println(c.styled(styleBold, line(headers)))
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	c.Println(line(sep))
	for _, row := range rows {
		c.Println(line(row.Columns))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
