package observability

import (
	"fmt"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert conditions.
const (
	ConditionCredentialExpired = "credential_expired"
	ConditionUpstreamFailures  = "upstream_failures"
	ConditionSweepStale        = "sweep_stale"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	// UpstreamFailuresPerHour is the number of upstream failures within the
	// last hour that is still tolerated.
	UpstreamFailuresPerHour int `yaml:"upstream_failures_per_hour" json:"upstream_failures_per_hour"`
	// SweepInterval is the configured reconciler period. A sweep older than
	// three intervals is stale.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// DefaultAlertThresholds returns the thresholds used when nothing is
// configured.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		UpstreamFailuresPerHour: 5,
		SweepInterval:           5 * time.Minute,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine with the given EventLog and
// thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate reads the event log once and checks every condition.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("reading events for alerts: %w", err)
	}
	now := ae.now()

	var lastSweep, lastCredFailure, firstEvent time.Time
	var credErr string
	recentUpstream := 0
	for i, event := range events {
		if i == 0 {
			firstEvent = event.Time
		}
		switch event.Type {
		case eventSweepCompleted:
			if event.Time.After(lastSweep) {
				lastSweep = event.Time
			}
		case eventCredentialFailed:
			if event.Time.After(lastCredFailure) {
				lastCredFailure = event.Time
				credErr, _ = event.Data["error"].(string)
			}
		case eventUpstreamFailed:
			if now.Sub(event.Time) <= time.Hour {
				recentUpstream++
			}
		}
	}

	var alerts []Alert
	if !lastCredFailure.IsZero() && lastCredFailure.After(lastSweep) {
		msg := "task backend credential is unusable, re-authorization required"
		if credErr != "" {
			msg += ": " + credErr
		}
		alerts = append(alerts, Alert{
			ID:          "credential-expired",
			Condition:   ConditionCredentialExpired,
			Severity:    SeverityHigh,
			Message:     msg,
			TriggeredAt: now,
		})
	}

	if recentUpstream > ae.thresholds.UpstreamFailuresPerHour {
		alerts = append(alerts, Alert{
			ID:          "upstream-failures",
			Condition:   ConditionUpstreamFailures,
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("%d upstream failures in the last hour, exceeding the maximum of %d", recentUpstream, ae.thresholds.UpstreamFailuresPerHour),
			TriggeredAt: now,
		})
	}

	if len(events) > 0 && ae.thresholds.SweepInterval > 0 {
		limit := 3 * ae.thresholds.SweepInterval
		reference := lastSweep
		if reference.IsZero() {
			reference = firstEvent
		}
		if now.Sub(reference) > limit {
			msg := fmt.Sprintf("no sweep has completed for more than %s", limit)
			if !lastSweep.IsZero() {
				msg += fmt.Sprintf(" (last at %s)", lastSweep.Format(time.RFC3339))
			}
			alerts = append(alerts, Alert{
				ID:          "sweep-stale",
				Condition:   ConditionSweepStale,
				Severity:    SeverityLow,
				Message:     msg,
				TriggeredAt: now,
			})
		}
	}

	return alerts, nil
}
