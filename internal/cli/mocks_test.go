package cli

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/valter-silva-au/paperless-tasks/internal/core"
	"github.com/valter-silva-au/paperless-tasks/internal/observability"
)

// mockMetrics implements observability.MetricsCalculator.
type mockMetrics struct {
	metrics *observability.Metrics
	err     error
	since   time.Time
}

func (m *mockMetrics) Calculate(since time.Time) (*observability.Metrics, error) {
	m.since = since
	return m.metrics, m.err
}

// mockAlerts implements observability.AlertEngine.
type mockAlerts struct {
	alerts []observability.Alert
	err    error
}

func (m *mockAlerts) Evaluate() ([]observability.Alert, error) {
	return m.alerts, m.err
}

// mockNotifier implements observability.Notifier.
type mockNotifier struct {
	sent [][]observability.Alert
	err  error
}

func (m *mockNotifier) Notify(_ context.Context, alerts []observability.Alert) error {
	m.sent = append(m.sent, alerts)
	return m.err
}

// mockEngine implements core.SyncEngine.
type mockEngine struct {
	mu       sync.Mutex
	outcome  core.SyncOutcome
	eventErr error
	events   []int

	report   core.SweepReport
	sweepErr error
	sweeps   int

	setDate   string
	setErr    error
	setLabels []string

	state     *core.DocumentState
	statusErr error
}

func (m *mockEngine) OnDocumentEvent(_ context.Context, id int) (core.SyncOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, id)
	return m.outcome, m.eventErr
}

func (m *mockEngine) SweepCompletedTasks(context.Context) (core.SweepReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	return m.report, m.sweepErr
}

func (m *mockEngine) SetDocumentStatus(_ context.Context, _ int, label string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLabels = append(m.setLabels, label)
	return m.setDate, m.setErr
}

func (m *mockEngine) DocumentStatus(context.Context, int) (*core.DocumentState, error) {
	return m.state, m.statusErr
}

// captureStdout runs fn and returns what it printed.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan string)
	go func() {
		data, _ := io.ReadAll(r)
		done <- string(data)
	}()

	runErr := fn()
	w.Close()
	os.Stdout = orig
	return <-done, runErr
}
