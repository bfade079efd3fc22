// Package internal provides the App struct that wires all components of
// ptsync together and initializes the CLI layer.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/paperless-tasks/internal/cli"
	"github.com/valter-silva-au/paperless-tasks/internal/core"
	"github.com/valter-silva-au/paperless-tasks/internal/httpapi"
	"github.com/valter-silva-au/paperless-tasks/internal/integration"
	"github.com/valter-silva-au/paperless-tasks/internal/observability"
	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// upstreamTimeout bounds a single request to Paperless or Google.
const upstreamTimeout = 30 * time.Second

// App holds all service dependencies of ptsync.
type App struct {
	// BaseDir is the directory of the configuration file. Relative
	// TOKEN_FILE and EVENT_LOG paths are resolved against it.
	BaseDir string

	// Configuration
	Config  core.ConfigStore
	Watcher *core.ConfigWatcher

	// Integration services
	Documents *paperlessAdapter
	Tasks     *tasksProvider

	// Core services
	Engine     core.SyncEngine
	Reconciler *core.Reconciler

	// Transport
	HTTPServer *httpapi.Server

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp loads the configuration at configPath (creating it with defaults
// on first run) and wires every component.
func NewApp(configPath string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{BaseDir: filepath.Dir(configPath)}

	// --- Configuration ---
	store, err := core.NewConfigStore(configPath, logger)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	app.Config = store
	cfg := store.Current()

	// --- Integration services ---
	httpClient := &http.Client{Timeout: upstreamTimeout}
	app.Documents = &paperlessAdapter{config: store, httpClient: httpClient, logger: logger}
	app.Tasks = &tasksProvider{config: store, baseDir: app.BaseDir, httpClient: httpClient, logger: logger}

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(resolvePath(app.BaseDir, cfg.EventLog))
	if err != nil {
		// Non-fatal: disable observability if the log can't be created.
		logger.Warn("event log disabled", "path", cfg.EventLog, "error", err)
		app.EventLog = nil
	}
	if app.EventLog != nil {
		thresholds := observability.DefaultAlertThresholds()
		thresholds.SweepInterval = cfg.SweepEvery()
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.SlackWebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.SlackWebhookURL)
	}

	// --- Core services ---
	var events core.EventLogger
	if app.EventLog != nil {
		events = &eventLogAdapter{log: app.EventLog}
	}
	app.Engine = core.NewSyncEngine(core.SyncEngineDeps{
		Config:    store,
		Documents: app.Documents,
		Tasks:     app.Tasks,
		Events:    events,
		Logger:    logger,
	})
	app.Reconciler = core.NewReconciler(app.Engine, store, &observability.OutageNotifier{Notifier: app.Notifier}, logger)

	// A reload may change SWEEP_INTERVAL; an immediate sweep re-arms the
	// timer with the new value.
	app.Watcher = core.NewConfigWatcher(store, logger, app.Reconciler.Trigger)

	// --- Transport ---
	app.HTTPServer = httpapi.NewServer(app.Engine, store, logger)

	// --- Wire CLI package-level variables ---
	cli.Config = app.Config
	cli.Engine = app.Engine
	cli.Reconciler = app.Reconciler
	cli.Watcher = app.Watcher
	cli.HTTPServer = app.HTTPServer
	cli.Catalog = app.Documents

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier
	cli.Cleanup = app.Close

	return app, nil
}

// Close releases resources held by the App, such as the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// resolvePath makes p absolute relative to base unless it already is.
func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// --- Adapters ---

// paperlessAdapter builds a Paperless client from the current configuration
// snapshot for every call, so a reloaded URL or token applies immediately.
// It satisfies core.DocumentStore and core.FieldCatalog.
type paperlessAdapter struct {
	config     core.ConfigStore
	httpClient *http.Client
	logger     *slog.Logger
}

func (a *paperlessAdapter) client() *integration.PaperlessClient {
	cfg := a.config.Current()
	return integration.NewPaperlessClient(cfg.PaperlessURL, cfg.PaperlessToken, a.httpClient, a.logger)
}

func (a *paperlessAdapter) FetchDocument(ctx context.Context, documentID int) (*models.Document, error) {
	return a.client().FetchDocument(ctx, documentID)
}

func (a *paperlessAdapter) PatchCustomField(ctx context.Context, documentID, fieldID int, value any) error {
	return a.client().PatchCustomField(ctx, documentID, fieldID, value)
}

func (a *paperlessAdapter) PatchCustomFields(ctx context.Context, documentID int, updates []models.CustomField) error {
	return a.client().PatchCustomFields(ctx, documentID, updates)
}

func (a *paperlessAdapter) ListCustomFields(ctx context.Context) ([]models.CustomFieldDefinition, error) {
	return a.client().ListCustomFields(ctx)
}

// tasksProvider adapts integration.TokenFileCredentials to
// core.TaskBackendProvider, reading TOKEN_FILE and SCOPES per call.
type tasksProvider struct {
	config     core.ConfigStore
	baseDir    string
	httpClient *http.Client
	logger     *slog.Logger
}

func (p *tasksProvider) Open(ctx context.Context) (core.TaskBackend, error) {
	cfg := p.config.Current()
	creds := &integration.TokenFileCredentials{
		TokenFile:  resolvePath(p.baseDir, cfg.TokenFile),
		Scopes:     cfg.Scopes,
		TasksURL:   cfg.TasksAPIURL,
		HTTPClient: p.httpClient,
		Logger:     p.logger,
	}
	client, err := creds.Open(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Write(observability.NewEvent(eventType, data))
}
