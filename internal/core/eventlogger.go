package core

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Event types written by the synchronization engine and the reconciler.
const (
	EventTaskCreated        = "task.created"
	EventTaskStatusSynced   = "task.status_synced"
	EventDocumentStatusSet  = "document.status_set"
	EventDocumentReconciled = "document.reconciled"
	EventSweepCompleted     = "sweep.completed"
	EventCredentialFailed   = "credential.failed"
	EventUpstreamFailed     = "upstream.failed"
	EventWebhookSkipped     = "webhook.skipped"
)
