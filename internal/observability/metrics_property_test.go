package observability

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// For any mix of sync events, every counter equals the number of events of
// its type and EventCount equals the total.
func TestProperty_MetricsCountsMatchEvents(t *testing.T) {
	types := []string{
		eventTaskCreated, eventTaskStatusSynced, eventDocumentStatusSet,
		eventDocumentReconciled, eventSweepCompleted, eventCredentialFailed,
		eventUpstreamFailed, eventWebhookSkipped,
	}
	rapid.Check(t, func(rt *rapid.T) {
		el, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
		if err != nil {
			rt.Fatalf("creating event log: %v", err)
		}
		defer el.Close()

		n := rapid.IntRange(0, 40).Draw(rt, "n")
		base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
		want := make(map[string]int)
		for i := 0; i < n; i++ {
			eventType := rapid.SampledFrom(types).Draw(rt, fmt.Sprintf("type_%d", i))
			want[eventType]++
			if err := el.Write(Event{Time: base.Add(time.Duration(i) * time.Minute), Type: eventType}); err != nil {
				rt.Fatalf("writing event: %v", err)
			}
		}

		m, err := NewMetricsCalculator(el).Calculate(base)
		if err != nil {
			rt.Fatalf("calculating metrics: %v", err)
		}
		if m.EventCount != n {
			rt.Errorf("EventCount = %d, want %d", m.EventCount, n)
		}
		got := map[string]int{
			eventTaskCreated:        m.TasksCreated,
			eventTaskStatusSynced:   m.StatusSyncs,
			eventDocumentStatusSet:  m.StatusSetManually,
			eventDocumentReconciled: m.DocumentsReconciled,
			eventSweepCompleted:     m.Sweeps,
			eventCredentialFailed:   m.CredentialFailures,
			eventUpstreamFailed:     m.UpstreamFailures,
		}
		for eventType, count := range got {
			if count != want[eventType] {
				rt.Errorf("%s: got %d, want %d", eventType, count, want[eventType])
			}
		}
	})
}
