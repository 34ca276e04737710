package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/couponvault/internal/coupons"
	"github.com/manav03panchal/couponvault/internal/model"
)

var refNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func day(offset int) string {
	return refNow.AddDate(0, 0, offset).Format(model.DateLayout)
}

type fakeSource struct {
	coupons []model.Coupon
	err     error
	purged  int
}

func (f *fakeSource) GetCoupons(context.Context) ([]model.Coupon, error) {
	return f.coupons, f.err
}

func (f *fakeSource) GetNotificationPreferences(context.Context) model.NotificationPreferences {
	return model.DefaultNotificationPreferences()
}

func (f *fakeSource) DeleteExpiredCoupons(context.Context) (int, error) {
	var kept []model.Coupon
	n := 0
	for _, c := range f.coupons {
		if c.IsExpiredAt(refNow) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	f.coupons = kept
	f.purged += n
	return n, nil
}

func (f *fakeSource) HasExpiredCoupons(context.Context) bool {
	for _, c := range f.coupons {
		if c.IsExpiredAt(refNow) {
			return true
		}
	}
	return false
}

func (f *fakeSource) Now() time.Time { return refNow }

func sample() []model.Coupon {
	return []model.Coupon{
		{ID: "b1", Store: "Beta", Code: "BETA5", Discount: "$5", ExpiryDate: model.NoExpiry},
		{ID: "a2", Store: "Acme", Code: "ACME20", Discount: "20%", ExpiryDate: day(10)},
		{ID: "a1", Store: "Acme", Code: "ACME10", Discount: "10%", ExpiryDate: day(2)},
		{ID: "a0", Store: "Acme", Code: "OLD", Discount: "5%", ExpiryDate: day(-3)},
	}
}

func loaded(t *testing.T, src *fakeSource) *DashboardModel {
	t.Helper()
	m := NewDashboardModel(DashboardConfig{Source: src})
	m.Update(refreshMsg{})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// =============================================================================
// Component Tests
// =============================================================================

func TestCountBar(t *testing.T) {
	assert.Empty(t, CountBar(1, 2, 0))
	assert.Equal(t, 10, strings.Count(CountBar(3, 4, 10), "█")+strings.Count(CountBar(3, 4, 10), "░"))
	assert.Equal(t, 10, strings.Count(CountBar(9, 4, 10), "█"))
	assert.Equal(t, 0, strings.Count(CountBar(1, 0, 10), "█"))
}

func TestUrgencyStyleDistinct(t *testing.T) {
	assert.NotEqual(t,
		UrgencyStyle(coupons.UrgencyExpired).GetBackground(),
		UrgencyStyle(coupons.UrgencyLow).GetBackground())
}

func TestOrdered(t *testing.T) {
	got := Ordered(sample())
	require.Len(t, got, 4)
	codes := []string{got[0].Code, got[1].Code, got[2].Code, got[3].Code}
	assert.Equal(t, []string{"OLD", "ACME10", "ACME20", "BETA5"}, codes)
}

func TestSummaryComponent(t *testing.T) {
	sc := NewSummaryComponent(sample(), refNow, 3, 80)
	assert.Equal(t, 4, sc.Total)
	assert.Equal(t, 2, sc.Stores)
	assert.Equal(t, 1, sc.Expiring)
	assert.Equal(t, 1, sc.Expired)
	assert.Contains(t, sc.View(), "1 expired")
}

func TestListComponentEmpty(t *testing.T) {
	lc := &ListComponent{Now: refNow, Width: 80}
	assert.Contains(t, lc.View(), "No coupons yet")
}

func TestDetailComponent(t *testing.T) {
	assert.Empty(t, (&DetailComponent{Width: 80}).View())

	c := model.Coupon{ID: "x1", Store: "Acme", Code: "SAVE", Discount: "10%", ExpiryDate: day(4), CodeType: model.CodeTypeBarcode}
	view := (&DetailComponent{Coupon: &c, Width: 80}).View()
	assert.Contains(t, view, "SAVE")
	assert.Contains(t, view, "barcode")
	assert.Contains(t, view, "x1")
}

// =============================================================================
// Dashboard Tests
// =============================================================================

func TestDashboardLoadingBeforeResize(t *testing.T) {
	m := NewDashboardModel(DashboardConfig{Source: &fakeSource{}})
	assert.Equal(t, "Loading...", m.View())
	assert.NotNil(t, m.Init())
}

func TestDashboardView(t *testing.T) {
	m := loaded(t, &fakeSource{coupons: sample()})
	view := m.View()

	assert.Contains(t, view, "CouponVault")
	assert.Contains(t, view, "Acme")
	assert.Contains(t, view, "Beta")
	assert.Contains(t, view, "expired 3 days ago")
	assert.Contains(t, view, "purge expired")
	assert.Less(t, strings.Index(view, "Acme"), strings.Index(view, "Beta"))
}

func TestDashboardCursor(t *testing.T) {
	m := loaded(t, &fakeSource{coupons: sample()})
	require.NotNil(t, m.Selected())
	assert.Equal(t, "OLD", m.Selected().Code)

	m.Update(key("k"))
	assert.Equal(t, "OLD", m.Selected().Code)

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(key("j"))
	assert.Equal(t, "ACME20", m.Selected().Code)

	for i := 0; i < 5; i++ {
		m.Update(key("j"))
	}
	assert.Equal(t, "BETA5", m.Selected().Code)
}

func TestDashboardPurge(t *testing.T) {
	src := &fakeSource{coupons: sample()}
	m := loaded(t, src)

	m.Update(key("p"))
	assert.Equal(t, 1, src.purged)
	assert.Len(t, m.coupons, 3)
	assert.Contains(t, m.View(), "Deleted 1 expired coupon(s)")

	m.Update(key("p"))
	assert.Contains(t, m.View(), "No expired coupons")
	assert.NotContains(t, m.View(), "purge expired")
}

func TestDashboardCursorClampsAfterReload(t *testing.T) {
	src := &fakeSource{coupons: sample()}
	m := loaded(t, src)
	for i := 0; i < 3; i++ {
		m.Update(key("j"))
	}
	src.coupons = src.coupons[:1]
	m.Update(key("r"))
	require.NotNil(t, m.Selected())
	assert.Equal(t, "BETA5", m.Selected().Code)
}

func TestDashboardLoadError(t *testing.T) {
	m := loaded(t, &fakeSource{err: errors.New("database locked")})
	assert.Contains(t, m.View(), "database locked")
	assert.Nil(t, m.Selected())
}

func TestDashboardQuit(t *testing.T) {
	m := loaded(t, &fakeSource{})
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
