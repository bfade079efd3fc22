package observability

import (
	"fmt"
	"time"
)

// Metrics holds synchronization metrics derived from the event log.
type Metrics struct {
	TasksCreated        int            `json:"tasks_created"`
	StatusSyncs         int            `json:"status_syncs"`
	StatusSetManually   int            `json:"status_set_manually"`
	DocumentsReconciled int            `json:"documents_reconciled"`
	Sweeps              int            `json:"sweeps"`
	SweepTasksSkipped   int            `json:"sweep_tasks_skipped"`
	SweepTasksFailed    int            `json:"sweep_tasks_failed"`
	CredentialFailures  int            `json:"credential_failures"`
	UpstreamFailures    int            `json:"upstream_failures"`
	OutcomesByKind      map[string]int `json:"outcomes_by_kind"`
	FailuresByOp        map[string]int `json:"failures_by_op"`
	EventCount          int            `json:"event_count"`
	LastSweep           *time.Time     `json:"last_sweep,omitempty"`
	OldestEvent         *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent         *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator that reads from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		OutcomesByKind: make(map[string]int),
		FailuresByOp:   make(map[string]int),
		EventCount:     len(events),
	}

	for i, event := range events {
		t := event.Time
		if i == 0 {
			m.OldestEvent = &t
		}
		m.NewestEvent = &t

		switch event.Type {
		case eventTaskCreated:
			m.TasksCreated++
			m.OutcomesByKind["created"]++
		case eventTaskStatusSynced:
			m.StatusSyncs++
			m.OutcomesByKind["reconciled"]++
		case eventDocumentStatusSet:
			m.StatusSetManually++
		case eventDocumentReconciled:
			m.DocumentsReconciled++
		case eventSweepCompleted:
			m.Sweeps++
			m.SweepTasksSkipped += intValue(event.Data["skipped"])
			m.SweepTasksFailed += intValue(event.Data["failed"])
			m.LastSweep = &t
		case eventWebhookSkipped:
			if outcome, ok := event.Data["outcome"].(string); ok && outcome != "" {
				m.OutcomesByKind[outcome]++
			}
		case eventCredentialFailed:
			m.CredentialFailures++
			countOp(m.FailuresByOp, event)
		case eventUpstreamFailed:
			m.UpstreamFailures++
			countOp(m.FailuresByOp, event)
		}
	}

	return m, nil
}

func countOp(byOp map[string]int, event Event) {
	op, _ := event.Data["op"].(string)
	if op == "" {
		op = "unknown"
	}
	byOp[op]++
}

// intValue reads a JSON-decoded counter. Events read back from disk carry
// float64, freshly built ones carry int.
func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
