package observability

import (
	"strings"
	"testing"
	"time"
)

var alertNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestAlertEngine(log EventLog, thresholds AlertThresholds) AlertEngine {
	ae := NewAlertEngine(log, thresholds).(*alertEngine)
	ae.now = func() time.Time { return alertNow }
	return ae
}

func conditions(alerts []Alert) map[string]Alert {
	out := make(map[string]Alert, len(alerts))
	for _, a := range alerts {
		out[a.Condition] = a
	}
	return out
}

func TestAlertEngine_EmptyLogHasNoAlerts(t *testing.T) {
	alerts, err := newTestAlertEngine(newTestLog(t), DefaultAlertThresholds()).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("expected no alerts, got %+v", alerts)
	}
}

func TestAlertEngine_CredentialExpired(t *testing.T) {
	log := newTestLog(t)
	writeEvents(t, log,
		Event{Time: alertNow.Add(-10 * time.Minute), Type: "sweep.completed"},
		Event{Time: alertNow.Add(-2 * time.Minute), Type: "credential.failed", Data: map[string]any{"error": "token refresh failed"}},
	)

	alerts, err := newTestAlertEngine(log, DefaultAlertThresholds()).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	a, ok := conditions(alerts)[ConditionCredentialExpired]
	if !ok {
		t.Fatalf("expected credential alert, got %+v", alerts)
	}
	if a.Severity != SeverityHigh {
		t.Errorf("severity = %s, want high", a.Severity)
	}
	if !strings.Contains(a.Message, "token refresh failed") {
		t.Errorf("message = %q", a.Message)
	}
}

func TestAlertEngine_CredentialRecoveredBySweep(t *testing.T) {
	log := newTestLog(t)
	writeEvents(t, log,
		Event{Time: alertNow.Add(-10 * time.Minute), Type: "credential.failed"},
		Event{Time: alertNow.Add(-time.Minute), Type: "sweep.completed"},
	)

	alerts, err := newTestAlertEngine(log, DefaultAlertThresholds()).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	if _, ok := conditions(alerts)[ConditionCredentialExpired]; ok {
		t.Error("credential alert should clear after a successful sweep")
	}
}

func TestAlertEngine_UpstreamFailures(t *testing.T) {
	log := newTestLog(t)
	writeEvents(t, log, Event{Time: alertNow.Add(-time.Minute), Type: "sweep.completed"})
	for i := 0; i < 3; i++ {
		writeEvents(t, log, Event{Time: alertNow.Add(-2 * time.Hour), Type: "upstream.failed"})
	}
	for i := 0; i < 3; i++ {
		writeEvents(t, log, Event{Time: alertNow.Add(-10 * time.Minute), Type: "upstream.failed"})
	}

	thresholds := DefaultAlertThresholds()
	thresholds.UpstreamFailuresPerHour = 3
	alerts, err := newTestAlertEngine(log, thresholds).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	if _, ok := conditions(alerts)[ConditionUpstreamFailures]; ok {
		t.Error("3 recent failures with threshold 3 should not alert")
	}

	writeEvents(t, log, Event{Time: alertNow.Add(-5 * time.Minute), Type: "upstream.failed"})
	alerts, err = newTestAlertEngine(log, thresholds).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	a, ok := conditions(alerts)[ConditionUpstreamFailures]
	if !ok || a.Severity != SeverityMedium {
		t.Errorf("expected medium upstream alert, got %+v", alerts)
	}
}

func TestAlertEngine_SweepStale(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   bool
	}{
		{
			name:   "recent sweep",
			events: []Event{{Time: alertNow.Add(-10 * time.Minute), Type: "sweep.completed"}},
			want:   false,
		},
		{
			name:   "old sweep",
			events: []Event{{Time: alertNow.Add(-20 * time.Minute), Type: "sweep.completed"}},
			want:   true,
		},
		{
			name:   "never swept, recent activity",
			events: []Event{{Time: alertNow.Add(-5 * time.Minute), Type: "task.created"}},
			want:   false,
		},
		{
			name:   "never swept, old activity",
			events: []Event{{Time: alertNow.Add(-time.Hour), Type: "task.created"}},
			want:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := newTestLog(t)
			writeEvents(t, log, tt.events...)
			alerts, err := newTestAlertEngine(log, DefaultAlertThresholds()).Evaluate()
			if err != nil {
				t.Fatalf("evaluating alerts: %v", err)
			}
			a, got := conditions(alerts)[ConditionSweepStale]
			if got != tt.want {
				t.Errorf("stale alert = %v, want %v (%+v)", got, tt.want, alerts)
			}
			if got && a.Severity != SeverityLow {
				t.Errorf("severity = %s, want low", a.Severity)
			}
		})
	}
}
