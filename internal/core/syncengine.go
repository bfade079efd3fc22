package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// dateLayout is the format of the processed-date field and note dates.
const dateLayout = "2006-01-02"

// ErrUnknownStatus is returned when a status label is not configured.
var ErrUnknownStatus = errors.New("unknown status label")

// DocumentStore reads and patches documents in Paperless.
type DocumentStore interface {
	FetchDocument(ctx context.Context, documentID int) (*models.Document, error)
	PatchCustomField(ctx context.Context, documentID, fieldID int, value any) error
	PatchCustomFields(ctx context.Context, documentID int, updates []models.CustomField) error
}

// TaskBackend is an authenticated handle on the task service.
type TaskBackend interface {
	ListTaskLists(ctx context.Context) ([]models.TaskList, error)
	ListTasks(ctx context.Context, listID string) ([]models.Task, error)
	CreateTask(ctx context.Context, listID, title, notes string) (*models.Task, error)
	PatchTaskNotes(ctx context.Context, listID, taskID, notes string) error
}

// TaskBackendProvider acquires credentials and returns a TaskBackend. It
// fails with a *models.CredentialError when a human has to re-authorize.
type TaskBackendProvider interface {
	Open(ctx context.Context) (TaskBackend, error)
}

// SyncOutcome is the result of handling one document event.
type SyncOutcome string

const (
	OutcomeCreated             SyncOutcome = "created"
	OutcomeReconciled          SyncOutcome = "reconciled"
	OutcomeAlreadySynchronized SyncOutcome = "already_synchronized"
	OutcomeNoTaskNeeded        SyncOutcome = "no_task_needed"
	OutcomeAlreadyDone         SyncOutcome = "already_done"
)

// SweepFailure describes one completed task the sweep could not reconcile.
type SweepFailure struct {
	DocumentID int    `json:"document_id"`
	TaskID     string `json:"task_id"`
	ListID     string `json:"list_id"`
	Error      string `json:"error"`
}

// SweepReport summarises one sweep over all task lists.
type SweepReport struct {
	Lists      int            `json:"lists"`
	Completed  int            `json:"completed"`
	Processed  int            `json:"processed"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Failures   []SweepFailure `json:"failures,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// DocumentState is what the status page, the CLI and MCP show for a
// document.
type DocumentState struct {
	DocumentID    int          `json:"document_id"`
	Title         string       `json:"title"`
	Label         string       `json:"label"`
	ActionScore   float64      `json:"action_score"`
	ProcessedDate string       `json:"processed_date,omitempty"`
	Labels        []string     `json:"labels"`
	Task          *models.Task `json:"task,omitempty"`
	TaskError     string       `json:"task_error,omitempty"`
}

// SyncEngine keeps Paperless documents and Google Tasks consistent.
type SyncEngine interface {
	// OnDocumentEvent handles a webhook for one document.
	OnDocumentEvent(ctx context.Context, documentID int) (SyncOutcome, error)
	// SweepCompletedTasks writes completed tasks back to their documents.
	SweepCompletedTasks(ctx context.Context) (SweepReport, error)
	// SetDocumentStatus sets a document's status and processed date and
	// rewrites the linked task's status line. It returns the date applied.
	SetDocumentStatus(ctx context.Context, documentID int, label string) (string, error)
	// DocumentStatus returns the current state of a document.
	DocumentStatus(ctx context.Context, documentID int) (*DocumentState, error)
}

// SyncEngineDeps are the collaborators of a SyncEngine. Events, Logger and
// Now are optional.
type SyncEngineDeps struct {
	Config    ConfigStore
	Documents DocumentStore
	Tasks     TaskBackendProvider
	Events    EventLogger
	Logger    *slog.Logger
	Now       func() time.Time
}

type syncEngine struct {
	config    ConfigStore
	documents DocumentStore
	tasks     TaskBackendProvider
	events    EventLogger
	logger    *slog.Logger
	now       func() time.Time
	locks     *DocumentLocks
}

// NewSyncEngine creates a SyncEngine.
func NewSyncEngine(deps SyncEngineDeps) SyncEngine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &syncEngine{
		config:    deps.Config,
		documents: deps.Documents,
		tasks:     deps.Tasks,
		events:    deps.Events,
		logger:    logger,
		now:       now,
		locks:     NewDocumentLocks(),
	}
}

// FindTaskAcrossLists scans every task list in backend order and returns
// the first task carrying the marker of documentID, or nil.
func FindTaskAcrossLists(ctx context.Context, backend TaskBackend, documentID int) (*models.Task, error) {
	lists, err := backend.ListTaskLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing task lists: %w", err)
	}
	for _, list := range lists {
		tasks, err := backend.ListTasks(ctx, list.ID)
		if err != nil {
			return nil, fmt.Errorf("listing tasks of %s: %w", list.ID, err)
		}
		for i := range tasks {
			if HasDocumentMarker(tasks[i].Notes, documentID) {
				task := tasks[i]
				if task.ListID == "" {
					task.ListID = list.ID
				}
				return &task, nil
			}
		}
	}
	return nil, nil
}

func (e *syncEngine) today() string {
	return e.now().Format(dateLayout)
}

func (e *syncEngine) OnDocumentEvent(ctx context.Context, documentID int) (SyncOutcome, error) {
	unlock := e.locks.Lock(documentID)
	defer unlock()

	cfg := e.config.Current()
	mapper := NewStateMapper(cfg, e.logger)
	log := e.logger.With("document_id", documentID, "op", "document_event")

	doc, err := e.documents.FetchDocument(ctx, documentID)
	if err != nil {
		e.recordFailure("fetch_document", documentID, err)
		return "", fmt.Errorf("fetching document %d: %w", documentID, err)
	}
	score := mapper.ActionScore(doc)
	label := mapper.LabelForStatus(doc)

	backend, err := e.tasks.Open(ctx)
	if err != nil {
		e.recordFailure("open_task_backend", documentID, err)
		return "", err
	}

	task, err := FindTaskAcrossLists(ctx, backend, documentID)
	if err != nil {
		e.recordFailure("find_task", documentID, err)
		return "", err
	}

	if task != nil {
		log = log.With("task_id", task.ID, "list_id", task.ListID)
		noteLabel, ok := ExtractStatusLabel(task.Notes)
		if mapper.SameStatus(noteLabel, ok, label) {
			log.Info("task status already synchronized", "label", label)
			return OutcomeAlreadySynchronized, nil
		}
		notes := UpdateStatusLine(task.Notes, label, e.today())
		if err := backend.PatchTaskNotes(ctx, task.ListID, task.ID, notes); err != nil {
			e.recordFailure("patch_task_notes", documentID, err)
			return "", fmt.Errorf("updating task %s: %w", task.ID, err)
		}
		log.Info("task status updated", "from", noteLabel, "to", label)
		e.logEvent(EventTaskStatusSynced, map[string]any{
			"document_id": documentID,
			"task_id":     task.ID,
			"list_id":     task.ListID,
			"from":        noteLabel,
			"to":          label,
		})
		return OutcomeReconciled, nil
	}

	if !mapper.NeedsTask(score) {
		log.Info("document needs no task", "action_score", score, "threshold", cfg.ActionThreshold)
		e.logEvent(EventWebhookSkipped, map[string]any{
			"document_id":  documentID,
			"outcome":      string(OutcomeNoTaskNeeded),
			"action_score": score,
		})
		return OutcomeNoTaskNeeded, nil
	}
	if label == mapper.DoneLabel() {
		log.Info("document already done, no task created", "label", label)
		e.logEvent(EventWebhookSkipped, map[string]any{
			"document_id": documentID,
			"outcome":     string(OutcomeAlreadyDone),
		})
		return OutcomeAlreadyDone, nil
	}

	notes := mapper.ComposeNotes(doc, mapper.NewLabel(), mapper.Links(documentID))
	if statusID, ok := mapper.StatusID(mapper.NewLabel()); ok {
		if err := e.documents.PatchCustomField(ctx, documentID, cfg.CustomFieldStatus, statusID); err != nil {
			// The task is still created; the next webhook or status edit
			// brings the field in line.
			e.recordFailure("set_status", documentID, err)
		}
	}

	created, err := backend.CreateTask(ctx, cfg.ActionTaskListID, mapper.TaskTitle(doc), notes)
	if err != nil {
		e.recordFailure("create_task", documentID, err)
		return "", fmt.Errorf("creating task for document %d: %w", documentID, err)
	}
	log.Info("task created", "task_id", created.ID, "list_id", cfg.ActionTaskListID, "action_score", score)
	e.logEvent(EventTaskCreated, map[string]any{
		"document_id":  documentID,
		"task_id":      created.ID,
		"list_id":      cfg.ActionTaskListID,
		"action_score": score,
	})
	return OutcomeCreated, nil
}

func (e *syncEngine) SweepCompletedTasks(ctx context.Context) (SweepReport, error) {
	report := SweepReport{StartedAt: e.now()}
	cfg := e.config.Current()
	mapper := NewStateMapper(cfg, e.logger)
	today := e.today()

	backend, err := e.tasks.Open(ctx)
	if err != nil {
		e.recordFailure("open_task_backend", 0, err)
		return report, err
	}
	lists, err := backend.ListTaskLists(ctx)
	if err != nil {
		e.recordFailure("list_task_lists", 0, err)
		return report, fmt.Errorf("listing task lists: %w", err)
	}
	report.Lists = len(lists)

	for _, list := range lists {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		tasks, err := backend.ListTasks(ctx, list.ID)
		if err != nil {
			e.recordFailure("list_tasks", 0, err)
			if models.IsCredentialError(err) {
				return report, err
			}
			report.Failed++
			report.Failures = append(report.Failures, SweepFailure{ListID: list.ID, Error: err.Error()})
			continue
		}
		for _, task := range tasks {
			if !task.IsCompleted() {
				continue
			}
			report.Completed++
			if task.ListID == "" {
				task.ListID = list.ID
			}
			documentID, ok := ExtractDocumentID(task.Notes)
			if !ok {
				report.Skipped++
				continue
			}
			if err := e.reconcileCompleted(ctx, backend, mapper, cfg, task, documentID, today); err != nil {
				report.Failed++
				report.Failures = append(report.Failures, SweepFailure{
					DocumentID: documentID,
					TaskID:     task.ID,
					ListID:     task.ListID,
					Error:      err.Error(),
				})
				if models.IsCredentialError(err) {
					return report, err
				}
				continue
			}
			report.Processed++
		}
	}

	report.FinishedAt = e.now()
	e.logger.Info("sweep finished",
		"op", "sweep",
		"lists", report.Lists,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	e.logEvent(EventSweepCompleted, map[string]any{
		"lists":       report.Lists,
		"completed":   report.Completed,
		"processed":   report.Processed,
		"skipped":     report.Skipped,
		"failed":      report.Failed,
		"duration_ms": report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	})
	return report, nil
}

// reconcileCompleted applies the done state of a completed task to its
// document and to the task's status line.
func (e *syncEngine) reconcileCompleted(ctx context.Context, backend TaskBackend, mapper *StateMapper, cfg models.Config, task models.Task, documentID int, today string) error {
	unlock := e.locks.Lock(documentID)
	defer unlock()

	log := e.logger.With("document_id", documentID, "task_id", task.ID, "list_id", task.ListID, "op", "sweep")
	done := mapper.DoneLabel()
	previous, ok := ExtractStatusLabel(task.Notes)
	if !ok {
		previous = done
	}

	doc, err := e.documents.FetchDocument(ctx, documentID)
	if err != nil {
		e.recordFailure("fetch_document", documentID, err)
		return fmt.Errorf("fetching document %d: %w", documentID, err)
	}

	statusID, _ := mapper.StatusID(done)
	currentDate, _ := doc.FieldValue(cfg.CustomFieldProcessedDate)
	currentStatus, _ := doc.FieldValue(cfg.CustomFieldStatus)
	if currentDate != today || currentStatus != statusID {
		updates := []models.CustomField{
			{Field: cfg.CustomFieldProcessedDate, Value: today},
			{Field: cfg.CustomFieldStatus, Value: statusID},
		}
		if err := e.documents.PatchCustomFields(ctx, documentID, updates); err != nil {
			e.recordFailure("patch_document", documentID, err)
			return fmt.Errorf("marking document %d done: %w", documentID, err)
		}
	}

	notes := UpdateStatusLine(task.Notes, done, today)
	if notes != task.Notes {
		if err := backend.PatchTaskNotes(ctx, task.ListID, task.ID, notes); err != nil {
			e.recordFailure("patch_task_notes", documentID, err)
			return fmt.Errorf("updating task %s: %w", task.ID, err)
		}
	}

	log.Info("completed task reconciled", "previous_label", previous, "date", today)
	e.logEvent(EventDocumentReconciled, map[string]any{
		"document_id":    documentID,
		"task_id":        task.ID,
		"list_id":        task.ListID,
		"previous_label": previous,
		"date":           today,
	})
	return nil
}

func (e *syncEngine) SetDocumentStatus(ctx context.Context, documentID int, label string) (string, error) {
	unlock := e.locks.Lock(documentID)
	defer unlock()

	cfg := e.config.Current()
	mapper := NewStateMapper(cfg, e.logger)
	statusID, ok := mapper.StatusID(label)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, label)
	}
	today := e.today()
	log := e.logger.With("document_id", documentID, "op", "set_status")

	updates := []models.CustomField{
		{Field: cfg.CustomFieldProcessedDate, Value: today},
		{Field: cfg.CustomFieldStatus, Value: statusID},
	}
	if err := e.documents.PatchCustomFields(ctx, documentID, updates); err != nil {
		e.recordFailure("patch_document", documentID, err)
		return "", fmt.Errorf("setting status of document %d: %w", documentID, err)
	}

	backend, err := e.tasks.Open(ctx)
	if err != nil {
		e.recordFailure("open_task_backend", documentID, err)
		return today, err
	}
	task, err := FindTaskAcrossLists(ctx, backend, documentID)
	if err != nil {
		e.recordFailure("find_task", documentID, err)
		return today, err
	}
	taskID := ""
	if task != nil {
		taskID = task.ID
		notes := UpdateStatusLine(task.Notes, label, today)
		if err := backend.PatchTaskNotes(ctx, task.ListID, task.ID, notes); err != nil {
			e.recordFailure("patch_task_notes", documentID, err)
			return today, fmt.Errorf("updating task %s: %w", task.ID, err)
		}
	}

	log.Info("document status set", "label", label, "date", today, "task_id", taskID)
	e.logEvent(EventDocumentStatusSet, map[string]any{
		"document_id": documentID,
		"label":       label,
		"date":        today,
		"task_id":     taskID,
	})
	return today, nil
}

func (e *syncEngine) DocumentStatus(ctx context.Context, documentID int) (*DocumentState, error) {
	cfg := e.config.Current()
	mapper := NewStateMapper(cfg, e.logger)

	doc, err := e.documents.FetchDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetching document %d: %w", documentID, err)
	}
	state := &DocumentState{
		DocumentID:  documentID,
		Title:       doc.Title,
		Label:       mapper.LabelForStatus(doc),
		ActionScore: mapper.ActionScore(doc),
		Labels:      mapper.Labels(),
	}
	if v, ok := doc.FieldValue(cfg.CustomFieldProcessedDate); ok && v != nil {
		state.ProcessedDate = fmt.Sprint(v)
	}

	backend, err := e.tasks.Open(ctx)
	if err == nil {
		state.Task, err = FindTaskAcrossLists(ctx, backend, documentID)
	}
	if err != nil {
		e.logger.Warn("task lookup failed", "document_id", documentID, "error", err)
		state.TaskError = err.Error()
	}
	return state, nil
}

// recordFailure logs err and writes the matching credential or upstream
// event.
func (e *syncEngine) recordFailure(op string, documentID int, err error) {
	data := map[string]any{"op": op, "error": err.Error()}
	if documentID > 0 {
		data["document_id"] = documentID
	}
	if models.IsCredentialError(err) {
		e.logger.Error("task backend credential unavailable", "op", op, "document_id", documentID, "error", err)
		e.logEvent(EventCredentialFailed, data)
		return
	}
	var upstream *models.UpstreamError
	if errors.As(err, &upstream) {
		data["status_code"] = upstream.StatusCode
	}
	e.logger.Error("upstream call failed", "op", op, "document_id", documentID, "error", err)
	e.logEvent(EventUpstreamFailed, data)
}

func (e *syncEngine) logEvent(eventType string, data map[string]any) {
	if e.events == nil {
		return
	}
	if err := e.events.LogEvent(eventType, data); err != nil {
		e.logger.Warn("writing event failed", "type", eventType, "error", err)
	}
}
