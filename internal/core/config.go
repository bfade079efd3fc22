// Package core contains the synchronization logic between Paperless
// documents and Google Tasks: configuration, the state mapper, note parsing,
// the synchronization engine and the periodic reconciler.
package core

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/valter-silva-au/paperless-tasks/internal/storage"
	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// EnvPrefix is prepended to upper-case config keys for environment
// overrides, e.g. PTSYNC_PAPERLESS_TOKEN.
const EnvPrefix = "PTSYNC"

// ConfigStore owns the process-wide configuration. Components take a
// snapshot with Current() per operation; the file is only re-read through
// Reload or Update.
type ConfigStore interface {
	Current() models.Config
	Reload() error
	Update(fn func(cfg *models.Config) error) error
	Path() string
}

// fileConfigStore implements ConfigStore on top of a JSON or YAML file.
type fileConfigStore struct {
	path   string
	logger *slog.Logger

	mu  sync.RWMutex
	cfg models.Config
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() models.Config {
	return models.Config{
		PaperlessURL:             "http://qnapserver:8010",
		PaperlessToken:           "DeinTokenHier",
		Scopes:                   []string{"https://www.googleapis.com/auth/tasks"},
		ActionTaskListID:         "LISTE_ID_HIER",
		ActionThreshold:          49,
		CustomFieldStatus:        4,
		CustomFieldAction:        5,
		CustomFieldProcessedDate: 3,
		StatusLabelToID: models.NewStatusMap(
			[2]string{"Unbearbeitet", "WBdb3hOCyFRkINdn"},
			[2]string{"Weitergeleitet", "mn1jNm0aR7zWhQgx"},
			[2]string{"Erledigt", "g6Nl8hQ56BDasAER"},
			[2]string{"keine Aktion", "WjcuDvnb9wWhkSEz"},
			[2]string{"Gelöscht", "iJEaIedgGFmn72dI"},
		),
		StatusNewLabel:  "Unbearbeitet",
		StatusDoneLabel: "Erledigt",
		TokenFile:       "token.json",
		TasksAPIURL:     "https://tasks.googleapis.com",
		PublicBaseURL:   "",
		ReauthorizeURL:  "",
		SweepInterval:   "5m",
		EventLog:        ".ptsync_events.jsonl",
		ServerHost:      "0.0.0.0",
		ServerPort:      8080,
	}
}

// NewConfigStore loads the configuration at path, creating it with defaults
// when it does not exist yet. The loaded configuration must validate.
func NewConfigStore(path string, logger *slog.Logger) (ConfigStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := storage.WriteConfigFile(path, DefaultConfig()); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
		logger.Info("created default configuration", "path", path)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &fileConfigStore{path: path, logger: logger, cfg: cfg}, nil
}

// NewStaticConfigStore returns a ConfigStore that serves cfg without a
// backing file. Reload is a no-op and Update only changes memory.
func NewStaticConfigStore(cfg models.Config) ConfigStore {
	return &fileConfigStore{logger: slog.Default(), cfg: cfg.Clone()}
}

func (s *fileConfigStore) Path() string { return s.path }

// Current returns a deep copy of the active configuration.
func (s *fileConfigStore) Current() models.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Reload re-reads the file. An invalid file leaves the previous snapshot in
// place and returns the validation error.
func (s *fileConfigStore) Reload() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := LoadConfig(s.path)
	if err != nil {
		return err
	}
	if err := ValidateConfig(cfg); err != nil {
		s.logger.Warn("keeping previous configuration", "path", s.path, "error", err)
		return err
	}
	s.cfg = cfg
	s.logger.Info("configuration reloaded", "path", s.path)
	return nil
}

// Update applies fn to the configuration as stored on disk and writes the
// result atomically. Environment overrides are not persisted.
func (s *fileConfigStore) Update(fn func(cfg *models.Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		cfg := s.cfg.Clone()
		if err := fn(&cfg); err != nil {
			return err
		}
		if err := ValidateConfig(cfg); err != nil {
			return err
		}
		s.cfg = cfg
		return nil
	}

	unlock, err := storage.LockFile(s.path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	onDisk, err := loadConfig(s.path, false)
	if err != nil {
		return err
	}
	if err := fn(&onDisk); err != nil {
		return err
	}
	if err := ValidateConfig(onDisk); err != nil {
		return err
	}
	if err := storage.WriteConfigFile(s.path, onDisk); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	cfg, err := LoadConfig(s.path)
	if err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

// LoadConfig reads the configuration file at path with environment
// overrides applied. Missing keys fall back to DefaultConfig.
func LoadConfig(path string) (models.Config, error) {
	return loadConfig(path, true)
}

func loadConfig(path string, withEnv bool) (models.Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	if storage.IsYAML(path) {
		v.SetConfigType("yaml")
	} else {
		v.SetConfigType("json")
	}

	v.SetDefault("paperless_url", def.PaperlessURL)
	v.SetDefault("paperless_token", def.PaperlessToken)
	v.SetDefault("scopes", def.Scopes)
	v.SetDefault("action_task_list_id", def.ActionTaskListID)
	v.SetDefault("action_threshold", def.ActionThreshold)
	v.SetDefault("custom_field_status", def.CustomFieldStatus)
	v.SetDefault("custom_field_aktion", def.CustomFieldAction)
	v.SetDefault("custom_field_processed_date", def.CustomFieldProcessedDate)
	v.SetDefault("status_new_label", def.StatusNewLabel)
	v.SetDefault("status_done_label", def.StatusDoneLabel)
	v.SetDefault("token_file", def.TokenFile)
	v.SetDefault("tasks_api_url", def.TasksAPIURL)
	v.SetDefault("public_base_url", def.PublicBaseURL)
	v.SetDefault("reauthorize_url", def.ReauthorizeURL)
	v.SetDefault("sweep_interval", def.SweepInterval)
	v.SetDefault("event_log", def.EventLog)
	v.SetDefault("slack_webhook_url", def.SlackWebhookURL)
	v.SetDefault("server_host", def.ServerHost)
	v.SetDefault("server_port", def.ServerPort)

	if withEnv {
		v.SetEnvPrefix(EnvPrefix)
		v.AutomaticEnv()
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return models.Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return models.Config{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	statusMap, ok, err := storage.ReadStatusMap(path)
	if err != nil {
		return models.Config{}, err
	}
	if !ok {
		statusMap = def.StatusLabelToID
	}
	cfg.StatusLabelToID = statusMap
	return cfg, nil
}

// ValidateConfig checks cfg for values the synchronization logic cannot work
// with. Every problem is reported, not only the first.
func ValidateConfig(cfg models.Config) error {
	var errs []string

	if u, err := url.Parse(cfg.PaperlessURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("PAPERLESS_URL %q must be an absolute http(s) URL", cfg.PaperlessURL))
	}
	if cfg.PaperlessToken == "" {
		errs = append(errs, "PAPERLESS_TOKEN must not be empty")
	}
	if cfg.ActionTaskListID == "" {
		errs = append(errs, "ACTION_TASK_LIST_ID must not be empty")
	}
	if math.IsNaN(cfg.ActionThreshold) || math.IsInf(cfg.ActionThreshold, 0) {
		errs = append(errs, "ACTION_THRESHOLD must be a finite number")
	}

	fields := map[string]int{
		"CUSTOM_FIELD_STATUS":         cfg.CustomFieldStatus,
		"CUSTOM_FIELD_AKTION":         cfg.CustomFieldAction,
		"CUSTOM_FIELD_PROCESSED_DATE": cfg.CustomFieldProcessedDate,
	}
	seen := make(map[int]string)
	for _, key := range []string{"CUSTOM_FIELD_STATUS", "CUSTOM_FIELD_AKTION", "CUSTOM_FIELD_PROCESSED_DATE"} {
		id := fields[key]
		if id <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be a positive field id, got %d", key, id))
			continue
		}
		if other, dup := seen[id]; dup {
			errs = append(errs, fmt.Sprintf("%s and %s both use field id %d", other, key, id))
			continue
		}
		seen[id] = key
	}

	if cfg.StatusLabelToID.Len() == 0 {
		errs = append(errs, "STATUS_LABEL_TO_ID must map at least one label")
	}
	byID := make(map[string]string)
	for _, label := range cfg.StatusLabelToID.Labels() {
		id, _ := cfg.StatusLabelToID.ID(label)
		if strings.TrimSpace(label) == "" {
			errs = append(errs, "STATUS_LABEL_TO_ID contains an empty label")
		}
		if id == "" {
			errs = append(errs, fmt.Sprintf("STATUS_LABEL_TO_ID[%s] has an empty id", label))
			continue
		}
		if other, dup := byID[id]; dup {
			errs = append(errs, fmt.Sprintf("STATUS_LABEL_TO_ID labels %q and %q share id %q", other, label, id))
			continue
		}
		byID[id] = label
	}
	if _, ok := cfg.StatusLabelToID.ID(cfg.StatusNewLabel); !ok {
		errs = append(errs, fmt.Sprintf("STATUS_NEW_LABEL %q is not in STATUS_LABEL_TO_ID", cfg.StatusNewLabel))
	}
	if _, ok := cfg.StatusLabelToID.ID(cfg.StatusDoneLabel); !ok {
		errs = append(errs, fmt.Sprintf("STATUS_DONE_LABEL %q is not in STATUS_LABEL_TO_ID", cfg.StatusDoneLabel))
	}

	if cfg.TokenFile == "" {
		errs = append(errs, "TOKEN_FILE must not be empty")
	}
	if cfg.TasksAPIURL != "" {
		if u, err := url.Parse(cfg.TasksAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("TASKS_API_URL %q must be an absolute URL", cfg.TasksAPIURL))
		}
	}
	if d, err := time.ParseDuration(cfg.SweepInterval); err != nil || d <= 0 {
		errs = append(errs, fmt.Sprintf("SWEEP_INTERVAL %q must be a positive duration such as 5m", cfg.SweepInterval))
	}
	if cfg.ServerPort < 1 || cfg.ServerPort > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT %d must be between 1 and 65535", cfg.ServerPort))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
