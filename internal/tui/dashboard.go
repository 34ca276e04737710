package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/couponvault/internal/model"
)

// Source is what the dashboard reads from and purges through.
// *coupons.Service satisfies it.
type Source interface {
	GetCoupons(ctx context.Context) ([]model.Coupon, error)
	GetNotificationPreferences(ctx context.Context) model.NotificationPreferences
	DeleteExpiredCoupons(ctx context.Context) (int, error)
	HasExpiredCoupons(ctx context.Context) bool
	Now() time.Time
}

// tickMsg is sent when the timer ticks.
type tickMsg time.Time

// refreshMsg is sent when data needs to be refreshed.
type refreshMsg struct{}

// errMsg is sent when an error occurs.
type errMsg struct {
	err error
}

// DashboardModel is the main bubbletea model for the dashboard.
type DashboardModel struct {
	source Source

	coupons    []model.Coupon
	prefs      model.NotificationPreferences
	now        time.Time
	cursor     int
	hasExpired bool

	width      int
	height     int
	err        error
	message    string
	messageExp time.Time

	refreshInterval time.Duration
}

// DashboardConfig holds configuration for the dashboard.
type DashboardConfig struct {
	Source          Source
	RefreshInterval time.Duration
}

// NewDashboardModel creates a new dashboard model.
func NewDashboardModel(config DashboardConfig) *DashboardModel {
	if config.RefreshInterval == 0 {
		config.RefreshInterval = time.Minute
	}
	return &DashboardModel{
		source:          config.Source,
		refreshInterval: config.RefreshInterval,
		prefs:           model.DefaultNotificationPreferences(),
	}
}

// Init initializes the model.
func (m *DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
		m.refreshCmd(),
	)
}

// Update handles messages and updates the model.
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if !m.messageExp.IsZero() && time.Time(msg).After(m.messageExp) {
			m.message = ""
			m.messageExp = time.Time{}
		}
		// Urgency badges change at midnight, so reload on every tick.
		m.loadData()
		return m, m.tickCmd()

	case refreshMsg:
		m.loadData()
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m *DashboardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.coupons)-1 {
			m.cursor++
		}
		return m, nil

	case "p":
		n, err := m.source.DeleteExpiredCoupons(context.Background())
		if err != nil {
			m.err = err
			return m, nil
		}
		if n == 0 {
			m.setMessage("No expired coupons", 2*time.Second)
		} else {
			m.setMessage(fmt.Sprintf("Deleted %d expired coupon(s)", n), 2*time.Second)
		}
		m.loadData()
		return m, nil

	case "r":
		m.loadData()
		m.setMessage("Refreshed", time.Second)
		return m, nil
	}

	return m, nil
}

// Selected returns the coupon under the cursor, if any.
func (m *DashboardModel) Selected() *model.Coupon {
	if m.cursor < 0 || m.cursor >= len(m.coupons) {
		return nil
	}
	c := m.coupons[m.cursor]
	return &c
}

// View renders the dashboard.
func (m *DashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	if m.err != nil {
		sections = append(sections, StyleError.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	if m.message != "" {
		sections = append(sections, StyleWarning.Render(m.message))
	}

	summary := NewSummaryComponent(m.coupons, m.now, m.prefs.DaysBeforeExpiry, m.width)
	sections = append(sections, summary.View())

	list := &ListComponent{Coupons: m.coupons, Cursor: m.cursor, Now: m.now, Width: m.width}
	sections = append(sections, list.View())

	if detail := (&DetailComponent{Coupon: m.Selected(), Width: m.width}).View(); detail != "" {
		sections = append(sections, detail)
	}

	sections = append(sections, HelpBar(m.hasExpired))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *DashboardModel) renderHeader() string {
	title := StyleTitle.Render("CouponVault")
	timeStr := StyleSubtitle.Render(m.now.Format("Mon Jan 2, 15:04"))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", timeStr) + "\n"
}

func (m *DashboardModel) loadData() {
	ctx := context.Background()
	list, err := m.source.GetCoupons(ctx)
	if err != nil {
		m.err = err
		return
	}
	m.now = m.source.Now()
	m.prefs = m.source.GetNotificationPreferences(ctx)
	m.coupons = Ordered(list)
	m.hasExpired = m.source.HasExpiredCoupons(ctx)
	if m.cursor >= len(m.coupons) {
		m.cursor = len(m.coupons) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.err = nil
}

func (m *DashboardModel) setMessage(msg string, duration time.Duration) {
	m.message = msg
	m.messageExp = time.Now().Add(duration)
}

func (m *DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *DashboardModel) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return refreshMsg{}
	}
}

// Run starts the dashboard TUI.
func Run(config DashboardConfig) error {
	p := tea.NewProgram(NewDashboardModel(config), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
