package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/paperless-tasks/internal/core"
	"github.com/valter-silva-au/paperless-tasks/internal/observability"
)

const (
	panelOutcomes = iota
	panelSweeps
	panelFailures
	panelAlerts
	panelCount
)

var panelTitles = [panelCount]string{"Webhook outcomes", "Sweeps", "Failures", "Alerts"}

var (
	dashboardSince   string
	dashboardRefresh time.Duration
)

type dashboardModel struct {
	active  int
	width   int
	window  string
	refresh time.Duration

	metrics  *observability.Metrics
	alerts   []observability.Alert
	loadedAt time.Time

	loading bool
	err     error
}

// dashboardData is the result of one load of the event log.
type dashboardData struct {
	metrics *observability.Metrics
	alerts  []observability.Alert
	at      time.Time
	err     error
}

// dashboardTick fires every refresh interval.
type dashboardTick struct{}

var (
	accent = lipgloss.Color("62")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(accent).
			Padding(0, 1)
	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// outcomeOrder is the display order of webhook outcomes.
var outcomeOrder = []core.SyncOutcome{
	core.OutcomeCreated,
	core.OutcomeReconciled,
	core.OutcomeAlreadySynchronized,
	core.OutcomeNoTaskNeeded,
	core.OutcomeAlreadyDone,
}

var outcomeColors = map[core.SyncOutcome]lipgloss.Color{
	core.OutcomeCreated:             "46",
	core.OutcomeReconciled:          "226",
	core.OutcomeAlreadySynchronized: "141",
	core.OutcomeNoTaskNeeded:        "245",
	core.OutcomeAlreadyDone:         "240",
}

var severityStyles = map[observability.AlertSeverity]lipgloss.Style{
	observability.SeverityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	observability.SeverityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
	observability.SeverityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
}

func newDashboardModel(window string, refresh time.Duration) dashboardModel {
	return dashboardModel{
		active:  panelOutcomes,
		window:  window,
		refresh: refresh,
		loading: true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.tick())
}

// load re-reads the event log. The window is parsed on every load so a
// relative window such as 7d keeps sliding while the dashboard is open.
func (m dashboardModel) load() tea.Cmd {
	window := m.window
	return func() tea.Msg {
		return fetchDashboard(window, time.Now().UTC())
	}
}

func (m dashboardModel) tick() tea.Cmd {
	if m.refresh <= 0 {
		return nil
	}
	return tea.Tick(m.refresh, func(time.Time) tea.Msg { return dashboardTick{} })
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab", "right", "l":
			m.active = (m.active + 1) % panelCount
		case "shift+tab", "left", "h":
			m.active = (m.active + panelCount - 1) % panelCount
		case "r":
			m.loading = true
			return m, m.load()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case dashboardTick:
		if m.loading {
			return m, m.tick()
		}
		m.loading = true
		return m, tea.Batch(m.load(), m.tick())

	case dashboardData:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.metrics, m.alerts, m.loadedAt = msg.metrics, msg.alerts, msg.at
		}
		return m, nil
	}
	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := titleStyle.Render(" ptsync Dashboard ") + dimStyle.Render("  window: "+m.window)
	footer := "tab/←/→: switch panel | r: refresh | q: quit"
	if !m.loadedAt.IsZero() {
		footer = "updated " + m.loadedAt.Format("15:04:05") + " | " + footer
	}
	footer = dimStyle.Render(footer)

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", header, m.err, footer)
	}
	if m.loading && m.metrics == nil {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", header, footer)
	}

	bodies := [panelCount]string{
		m.outcomesPanel(),
		m.sweepsPanel(),
		m.failuresPanel(),
		m.alertsPanel(),
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", header, m.layout(bodies), footer)
}

// layout arranges the panels in a 2x2 grid on wide terminals and stacks
// them otherwise.
func (m dashboardModel) layout(bodies [panelCount]string) string {
	available := m.width - 2
	if available > 100 {
		w := available/2 - 4
		top := lipgloss.JoinHorizontal(lipgloss.Top, m.box(panelOutcomes, bodies, w), m.box(panelSweeps, bodies, w))
		bottom := lipgloss.JoinHorizontal(lipgloss.Top, m.box(panelFailures, bodies, w), m.box(panelAlerts, bodies, w))
		return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
	}

	w := max(available-4, 20)
	boxes := make([]string, panelCount)
	for i := range boxes {
		boxes[i] = m.box(i, bodies, w)
	}
	return lipgloss.JoinVertical(lipgloss.Left, boxes...)
}

func (m dashboardModel) box(panel int, bodies [panelCount]string, width int) string {
	style := boxStyle
	if panel == m.active {
		style = style.BorderForeground(accent)
	}
	return style.Width(width).Render(headingStyle.Render(panelTitles[panel]) + "\n" + bodies[panel])
}

func (m dashboardModel) outcomesPanel() string {
	if m.metrics == nil || len(m.metrics.OutcomesByKind) == 0 {
		return "  No webhook events."
	}
	counts := m.metrics.OutcomesByKind

	var b strings.Builder
	total := 0
	known := make(map[string]bool, len(outcomeOrder))
	for _, outcome := range outcomeOrder {
		known[string(outcome)] = true
		n := counts[string(outcome)]
		if n == 0 {
			continue
		}
		total += n
		line := fmt.Sprintf("  %-22s %d", outcome, n)
		b.WriteString(lipgloss.NewStyle().Foreground(outcomeColors[outcome]).Render(line) + "\n")
	}
	for _, kind := range sortedKeys(counts) {
		if known[kind] {
			continue
		}
		total += counts[kind]
		fmt.Fprintf(&b, "  %-22s %d\n", kind, counts[kind])
	}
	fmt.Fprintf(&b, "\n  Total: %d", total)
	return b.String()
}

func (m dashboardModel) sweepsPanel() string {
	if m.metrics == nil {
		return "  Last sweep: never"
	}
	md := m.metrics

	var b strings.Builder
	for _, row := range []struct {
		label string
		value int
	}{
		{"Sweeps", md.Sweeps},
		{"Reconciled", md.DocumentsReconciled},
		{"Skipped", md.SweepTasksSkipped},
		{"Failed", md.SweepTasksFailed},
		{"Tasks created", md.TasksCreated},
		{"Status synced", md.StatusSyncs},
		{"Set manually", md.StatusSetManually},
	} {
		fmt.Fprintf(&b, "  %-16s %d\n", row.label, row.value)
	}

	last := "never"
	if md.LastSweep != nil {
		last = md.LastSweep.UTC().Format("2006-01-02 15:04 UTC")
	}
	fmt.Fprintf(&b, "\n  Last sweep: %s", last)
	return b.String()
}

func (m dashboardModel) failuresPanel() string {
	if m.metrics == nil || (m.metrics.CredentialFailures == 0 && m.metrics.UpstreamFailures == 0) {
		return "  No failures recorded."
	}
	md := m.metrics

	var b strings.Builder
	credential := fmt.Sprintf("  %-16s %d", "Credential", md.CredentialFailures)
	if md.CredentialFailures > 0 {
		credential = warnStyle.Render(credential)
	}
	b.WriteString(credential + "\n")
	fmt.Fprintf(&b, "  %-16s %d\n", "Upstream", md.UpstreamFailures)
	if len(md.FailuresByOp) > 0 {
		b.WriteString("\n")
		for _, op := range sortedKeys(md.FailuresByOp) {
			fmt.Fprintf(&b, "  %-26s %d\n", op, md.FailuresByOp[op])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m dashboardModel) alertsPanel() string {
	if len(m.alerts) == 0 {
		return "  No active alerts."
	}

	var b strings.Builder
	for _, a := range m.alerts {
		tag := fmt.Sprintf("[%s]", strings.ToUpper(string(a.Severity)))
		if style, ok := severityStyles[a.Severity]; ok {
			tag = style.Render(tag)
		}
		fmt.Fprintf(&b, "  %s %s\n", tag, a.Message)
	}
	fmt.Fprintf(&b, "\n  Total: %d alert(s)", len(m.alerts))
	return b.String()
}

// fetchDashboard computes the metrics for window and evaluates the alerts,
// most severe first.
func fetchDashboard(window string, now time.Time) dashboardData {
	data := dashboardData{at: now}

	if MetricsCalc != nil {
		since, err := observability.ParseSince(window, now)
		if err != nil {
			data.err = err
			return data
		}
		data.metrics, err = MetricsCalc.Calculate(since)
		if err != nil {
			data.err = fmt.Errorf("loading metrics: %w", err)
			return data
		}
	}

	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			data.err = fmt.Errorf("loading alerts: %w", err)
			return data
		}
		sort.SliceStable(alerts, func(i, j int) bool {
			return severityRank(alerts[i].Severity) < severityRank(alerts[j].Severity)
		})
		data.alerts = alerts
	}
	return data
}

func severityRank(s observability.AlertSeverity) int {
	switch s {
	case observability.SeverityHigh:
		return 0
	case observability.SeverityMedium:
		return 1
	case observability.SeverityLow:
		return 2
	default:
		return 3
	}
}

func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for sync metrics and alerts",
	Long: `Launch an interactive terminal dashboard showing webhook outcomes,
sweep results, upstream failures and alerts from the event log.

The view refreshes every --refresh interval (0 disables it). Switch panels
with Tab or the arrow keys, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}
		if _, err := observability.ParseSince(dashboardSince, time.Now().UTC()); err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}
		p := tea.NewProgram(newDashboardModel(dashboardSince, dashboardRefresh), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardSince, "since", "7d", "Time window: 7d, 2w, 24h or a date such as 2025-06-01")
	dashboardCmd.Flags().DurationVar(&dashboardRefresh, "refresh", 30*time.Second, "Auto-refresh interval (0 disables)")
	rootCmd.AddCommand(dashboardCmd)
}
