// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the synchronization operations as tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/paperless-tasks/internal/core"
	"github.com/valter-silva-au/paperless-tasks/internal/observability"
	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// Sweeper runs one sweep of completed tasks. *core.Reconciler implements
// it, so sweeps started over MCP never overlap the periodic ones.
type Sweeper interface {
	RunOnce(ctx context.Context) (core.SweepReport, error)
}

// Server wraps the sync engine and exposes it as MCP tools.
type Server struct {
	server      *gomcp.Server
	engine      core.SyncEngine
	sweeper     Sweeper
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates an MCP server. sweeper, metricsCalc and alertEngine may
// be nil; without a sweeper the engine is swept directly.
func NewServer(engine core.SyncEngine, sweeper Sweeper, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		engine:      engine,
		sweeper:     sweeper,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "ptsync", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves MCP over stdio, blocking until the client disconnects or the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type documentInput struct {
	DocumentID int `json:"document_id" jsonschema:"the numeric Paperless document id"`
}

type syncDocumentOutput struct {
	DocumentID int    `json:"document_id"`
	Outcome    string `json:"outcome"`
}

type sweepInput struct{}

type sweepFailureOutput struct {
	DocumentID int    `json:"document_id"`
	TaskID     string `json:"task_id"`
	Error      string `json:"error"`
}

type sweepOutput struct {
	Lists      int                  `json:"lists"`
	Completed  int                  `json:"completed"`
	Processed  int                  `json:"processed"`
	Skipped    int                  `json:"skipped"`
	Failed     int                  `json:"failed"`
	Failures   []sweepFailureOutput `json:"failures,omitempty"`
	DurationMS int64                `json:"duration_ms"`
}

type documentStatusOutput struct {
	DocumentID    int      `json:"document_id"`
	Title         string   `json:"title"`
	Status        string   `json:"status"`
	ActionScore   float64  `json:"action_score"`
	ProcessedDate string   `json:"processed_date,omitempty"`
	Labels        []string `json:"labels"`
	TaskID        string   `json:"task_id,omitempty"`
	TaskListID    string   `json:"task_list_id,omitempty"`
	TaskCompleted bool     `json:"task_completed"`
	TaskError     string   `json:"task_error,omitempty"`
}

type setDocumentStatusInput struct {
	DocumentID int    `json:"document_id" jsonschema:"the numeric Paperless document id"`
	Status     string `json:"status" jsonschema:"a configured status label, e.g. Erledigt"`
}

type setDocumentStatusOutput struct {
	Message string `json:"message"`
	Date    string `json:"date"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics: 7d, 2w, 24h or a date such as 2025-06-01. Defaults to 7d."`
}

type metricsOutput struct {
	TasksCreated        int            `json:"tasks_created"`
	StatusSyncs         int            `json:"status_syncs"`
	StatusSetManually   int            `json:"status_set_manually"`
	DocumentsReconciled int            `json:"documents_reconciled"`
	Sweeps              int            `json:"sweeps"`
	CredentialFailures  int            `json:"credential_failures"`
	UpstreamFailures    int            `json:"upstream_failures"`
	OutcomesByKind      map[string]int `json:"outcomes_by_kind"`
	EventCount          int            `json:"event_count"`
	LastSweep           string         `json:"last_sweep,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "sync_document",
		Description: "Synchronize one Paperless document with Google Tasks, as the webhook does. Creates a task or updates its status line.",
	}, s.handleSyncDocument)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "sweep_completed_tasks",
		Description: "Scan all task lists for completed tasks and mark their documents as done.",
	}, s.handleSweep)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_document_status",
		Description: "Get a document's status label, action score, processed date and linked task.",
	}, s.handleGetDocumentStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "set_document_status",
		Description: "Set a document's status label and processed date, and update the linked task's status line.",
	}, s.handleSetDocumentStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated sync metrics from the event log: tasks created, status syncs, sweeps and failures.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (expired credential, upstream failures, stale sweeps).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleSyncDocument(ctx context.Context, _ *gomcp.CallToolRequest, input documentInput) (*gomcp.CallToolResult, syncDocumentOutput, error) {
	if input.DocumentID <= 0 {
		return errorResult("document_id must be a positive integer"), syncDocumentOutput{}, nil
	}
	outcome, err := s.engine.OnDocumentEvent(ctx, input.DocumentID)
	if err != nil {
		return errorResult(fmt.Sprintf("syncing document %d: %s", input.DocumentID, describe(err))), syncDocumentOutput{}, nil
	}
	return nil, syncDocumentOutput{DocumentID: input.DocumentID, Outcome: string(outcome)}, nil
}

func (s *Server) handleSweep(ctx context.Context, _ *gomcp.CallToolRequest, _ sweepInput) (*gomcp.CallToolResult, sweepOutput, error) {
	var report core.SweepReport
	var err error
	if s.sweeper != nil {
		report, err = s.sweeper.RunOnce(ctx)
	} else {
		report, err = s.engine.SweepCompletedTasks(ctx)
	}
	if err != nil {
		return errorResult(fmt.Sprintf("sweeping completed tasks: %s", describe(err))), sweepOutput{}, nil
	}
	out := sweepOutput{
		Lists:      report.Lists,
		Completed:  report.Completed,
		Processed:  report.Processed,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
		DurationMS: report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	}
	for _, f := range report.Failures {
		out.Failures = append(out.Failures, sweepFailureOutput{DocumentID: f.DocumentID, TaskID: f.TaskID, Error: f.Error})
	}
	return nil, out, nil
}

func (s *Server) handleGetDocumentStatus(ctx context.Context, _ *gomcp.CallToolRequest, input documentInput) (*gomcp.CallToolResult, documentStatusOutput, error) {
	if input.DocumentID <= 0 {
		return errorResult("document_id must be a positive integer"), documentStatusOutput{}, nil
	}
	state, err := s.engine.DocumentStatus(ctx, input.DocumentID)
	if err != nil {
		return errorResult(fmt.Sprintf("loading document %d: %s", input.DocumentID, describe(err))), documentStatusOutput{}, nil
	}
	out := documentStatusOutput{
		DocumentID:    state.DocumentID,
		Title:         state.Title,
		Status:        state.Label,
		ActionScore:   state.ActionScore,
		ProcessedDate: state.ProcessedDate,
		Labels:        state.Labels,
		TaskError:     state.TaskError,
	}
	if state.Task != nil {
		out.TaskID = state.Task.ID
		out.TaskListID = state.Task.ListID
		out.TaskCompleted = state.Task.IsCompleted()
	}
	return nil, out, nil
}

func (s *Server) handleSetDocumentStatus(ctx context.Context, _ *gomcp.CallToolRequest, input setDocumentStatusInput) (*gomcp.CallToolResult, setDocumentStatusOutput, error) {
	if input.DocumentID <= 0 {
		return errorResult("document_id must be a positive integer"), setDocumentStatusOutput{}, nil
	}
	if input.Status == "" {
		return errorResult("status is required"), setDocumentStatusOutput{}, nil
	}
	date, err := s.engine.SetDocumentStatus(ctx, input.DocumentID, input.Status)
	if err != nil {
		return errorResult(fmt.Sprintf("setting status of document %d: %s", input.DocumentID, describe(err))), setDocumentStatusOutput{}, nil
	}
	return nil, setDocumentStatusOutput{
		Message: fmt.Sprintf("document %d status set to %s", input.DocumentID, input.Status),
		Date:    date,
	}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log disabled)"), emptyMetricsOutput(), nil
	}

	sinceTime, err := observability.ParseSince(input.Since, time.Now().UTC())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		TasksCreated:        metrics.TasksCreated,
		StatusSyncs:         metrics.StatusSyncs,
		StatusSetManually:   metrics.StatusSetManually,
		DocumentsReconciled: metrics.DocumentsReconciled,
		Sweeps:              metrics.Sweeps,
		CredentialFailures:  metrics.CredentialFailures,
		UpstreamFailures:    metrics.UpstreamFailures,
		OutcomesByKind:      metrics.OutcomesByKind,
		EventCount:          metrics.EventCount,
	}
	if metrics.LastSweep != nil {
		out.LastSweep = metrics.LastSweep.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (event log disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{OutcomesByKind: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// describe adds the remedy to errors a human has to act on.
func describe(err error) string {
	if models.IsCredentialError(err) {
		return err.Error() + " (re-authorize the Google account and replace the token file)"
	}
	return err.Error()
}
