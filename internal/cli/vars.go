package cli

import (
	"log/slog"

	"github.com/valter-silva-au/paperless-tasks/internal/core"
	"github.com/valter-silva-au/paperless-tasks/internal/httpapi"
	"github.com/valter-silva-au/paperless-tasks/internal/observability"
)

// Service instances, set by the Initialize hook during app initialization
// in app.go.
var (
	Config     core.ConfigStore
	Engine     core.SyncEngine
	Reconciler *core.Reconciler
	Watcher    *core.ConfigWatcher
	HTTPServer *httpapi.Server
	Catalog    core.FieldCatalog
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)

// Initialize builds the services above from the configuration file at
// configPath. main sets it; commands annotated with skipInit never call it.
var Initialize func(configPath string, logger *slog.Logger) error

// Cleanup, if set by Initialize, releases what Initialize opened.
var Cleanup func() error
