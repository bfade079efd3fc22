package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event types written by the sync engine. They mirror the core event
// constants; the log itself accepts any type.
const (
	eventTaskCreated        = "task.created"
	eventTaskStatusSynced   = "task.status_synced"
	eventDocumentStatusSet  = "document.status_set"
	eventDocumentReconciled = "document.reconciled"
	eventSweepCompleted     = "sweep.completed"
	eventCredentialFailed   = "credential.failed"
	eventUpstreamFailed     = "upstream.failed"
	eventWebhookSkipped     = "webhook.skipped"
)

// maxEventLine bounds a single JSONL record when reading.
const maxEventLine = 1 << 20

// Event represents a single observable event in the system.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO, WARN, ERROR
	Type    string         `json:"type"`  // e.g. "task.created", "sweep.completed"
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// NewEvent builds an event stamped with the current UTC time. Failure types
// are logged at ERROR, everything else at INFO.
func NewEvent(eventType string, data map[string]any) Event {
	level := "INFO"
	switch eventType {
	case eventCredentialFailed, eventUpstreamFailed:
		level = "ERROR"
	case eventWebhookSkipped:
		level = "WARN"
	}
	return Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: eventMessage(eventType),
		Data:    data,
	}
}

func eventMessage(eventType string) string {
	switch eventType {
	case eventTaskCreated:
		return "task created for document"
	case eventTaskStatusSynced:
		return "task status line synchronized"
	case eventDocumentStatusSet:
		return "document status set manually"
	case eventDocumentReconciled:
		return "completed task applied to document"
	case eventSweepCompleted:
		return "sweep of completed tasks finished"
	case eventCredentialFailed:
		return "task backend credential unavailable"
	case eventUpstreamFailed:
		return "upstream call failed"
	case eventWebhookSkipped:
		return "webhook produced no task"
	default:
		return eventType
	}
}

// EventFilter specifies criteria for reading events.
type EventFilter struct {
	Since *time.Time
	Until *time.Time
	Type  string
	Level string
}

// EventLog defines the interface for writing and reading events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// jsonlEventLog implements EventLog using an append-only JSONL file.
type jsonlEventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLEventLog creates an EventLog backed by a JSONL file at the given
// path. Missing parent directories are created.
func NewJSONLEventLog(path string) (EventLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating event log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{
		path: path,
		file: f,
	}, nil
}

// Write appends a JSON-encoded event followed by a newline to the log file.
func (l *jsonlEventLog) Write(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Read scans the log file and returns the events matching filter, oldest
// first. Malformed lines are skipped.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}

		if matchesEventFilter(event, filter) {
			events = append(events, event)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}

	return events, nil
}

// Close closes the underlying log file.
func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func matchesEventFilter(event Event, filter EventFilter) bool {
	if filter.Since != nil && event.Time.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && event.Time.After(*filter.Until) {
		return false
	}
	if filter.Type != "" && event.Type != filter.Type {
		return false
	}
	if filter.Level != "" && event.Level != filter.Level {
		return false
	}
	return true
}
