package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// --- Helper ---

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// --- NewConfigStore tests ---

func TestNewConfigStore_CreatesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	store, err := NewConfigStore(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}

	cfg := store.Current()
	if cfg.PaperlessURL != "http://qnapserver:8010" {
		t.Errorf("PaperlessURL = %q", cfg.PaperlessURL)
	}
	if cfg.ActionThreshold != 49 {
		t.Errorf("ActionThreshold = %v, want 49", cfg.ActionThreshold)
	}
	if cfg.CustomFieldStatus != 4 || cfg.CustomFieldAction != 5 || cfg.CustomFieldProcessedDate != 3 {
		t.Errorf("field ids = %d/%d/%d, want 4/5/3", cfg.CustomFieldStatus, cfg.CustomFieldAction, cfg.CustomFieldProcessedDate)
	}
	want := "Unbearbeitet,Weitergeleitet,Erledigt,keine Aktion,Gelöscht"
	if got := strings.Join(cfg.StatusLabelToID.Labels(), ","); got != want {
		t.Errorf("labels = %s, want %s", got, want)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
}

func TestLoadConfig_ReadsUpperCaseKeysAndPreservesLabelCase(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{
  "PAPERLESS_URL": "https://paperless.example",
  "PAPERLESS_TOKEN": "abc",
  "ACTION_TASK_LIST_ID": "list-1",
  "ACTION_THRESHOLD": 70,
  "CUSTOM_FIELD_STATUS": 11,
  "CUSTOM_FIELD_AKTION": 12,
  "STATUS_LABEL_TO_ID": {"Offen": "o1", "Fertig": "f1"},
  "STATUS_NEW_LABEL": "Offen",
  "STATUS_DONE_LABEL": "Fertig"
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PaperlessURL != "https://paperless.example" || cfg.PaperlessToken != "abc" {
		t.Errorf("unexpected connection settings: %+v", cfg)
	}
	if cfg.ActionThreshold != 70 {
		t.Errorf("ActionThreshold = %v, want 70", cfg.ActionThreshold)
	}
	if id, ok := cfg.StatusLabelToID.ID("Offen"); !ok || id != "o1" {
		t.Errorf("ID(Offen) = %q,%v", id, ok)
	}
	if _, ok := cfg.StatusLabelToID.ID("offen"); ok {
		t.Error("labels must keep their case")
	}
	// Unset keys fall back to defaults.
	if cfg.CustomFieldProcessedDate != 3 {
		t.Errorf("CustomFieldProcessedDate = %d, want default 3", cfg.CustomFieldProcessedDate)
	}
	if cfg.SweepInterval != "5m" {
		t.Errorf("SweepInterval = %q, want default 5m", cfg.SweepInterval)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
PAPERLESS_URL: http://paperless:8000
ACTION_THRESHOLD: 10
STATUS_LABEL_TO_ID:
  Unbearbeitet: a
  Erledigt: b
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ActionThreshold != 10 {
		t.Errorf("ActionThreshold = %v, want 10", cfg.ActionThreshold)
	}
	if got := strings.Join(cfg.StatusLabelToID.Labels(), ","); got != "Unbearbeitet,Erledigt" {
		t.Errorf("labels = %s", got)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"PAPERLESS_TOKEN": "from-file"}`)
	t.Setenv("PTSYNC_PAPERLESS_TOKEN", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PaperlessToken != "from-env" {
		t.Errorf("PaperlessToken = %q, want from-env", cfg.PaperlessToken)
	}
}

func TestConfigStore_UpdatePersistsWithoutEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("PTSYNC_PAPERLESS_TOKEN", "env-secret")

	store, err := NewConfigStore(path, nil)
	if err != nil {
		t.Fatalf("NewConfigStore: %v", err)
	}
	err = store.Update(func(cfg *models.Config) error {
		cfg.ActionThreshold = 60
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got := store.Current().ActionThreshold; got != 60 {
		t.Errorf("ActionThreshold = %v, want 60", got)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "env-secret") {
		t.Error("environment override must not be written to the config file")
	}
	if !strings.Contains(string(data), `"ACTION_THRESHOLD": 60`) {
		t.Errorf("expected updated threshold in file, got:\n%s", data)
	}
}

func TestConfigStore_UpdateRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store, err := NewConfigStore(path, nil)
	if err != nil {
		t.Fatalf("NewConfigStore: %v", err)
	}
	before, _ := os.ReadFile(path)

	err = store.Update(func(cfg *models.Config) error {
		cfg.StatusDoneLabel = "Unbekannt"
		return nil
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("invalid update must not touch the file")
	}
	if store.Current().StatusDoneLabel != "Erledigt" {
		t.Error("invalid update must not change the snapshot")
	}
}

func TestConfigStore_ReloadKeepsPreviousOnInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	store, err := NewConfigStore(path, nil)
	if err != nil {
		t.Fatalf("NewConfigStore: %v", err)
	}

	writeFile(t, dir, "config.json", `{"PAPERLESS_URL": "not a url", "STATUS_LABEL_TO_ID": {"A": "x", "B": "x"}}`)
	if err := store.Reload(); err == nil {
		t.Fatal("expected Reload to fail")
	}
	if store.Current().PaperlessURL != "http://qnapserver:8010" {
		t.Error("snapshot changed after failed reload")
	}

	writeFile(t, dir, "config.json", `{"PAPERLESS_URL": "http://new:8000"}`)
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if store.Current().PaperlessURL != "http://new:8000" {
		t.Errorf("PaperlessURL = %q after reload", store.Current().PaperlessURL)
	}
}

func TestConfigStore_CurrentIsACopy(t *testing.T) {
	store := NewStaticConfigStore(DefaultConfig())
	cfg := store.Current()
	cfg.Scopes[0] = "mutated"
	cfg.StatusLabelToID.Set("Neu", "n")

	again := store.Current()
	if again.Scopes[0] == "mutated" {
		t.Error("Scopes shared between snapshots")
	}
	if _, ok := again.StatusLabelToID.ID("Neu"); ok {
		t.Error("StatusLabelToID shared between snapshots")
	}
}

// --- ValidateConfig tests ---

func TestValidateConfig_DefaultsAreValid(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidateConfig_CollectsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PaperlessURL = "paperless"
	cfg.CustomFieldAction = cfg.CustomFieldStatus
	cfg.CustomFieldProcessedDate = 0
	cfg.StatusLabelToID = models.NewStatusMap([2]string{"Unbearbeitet", "x"}, [2]string{"Erledigt", "x"})
	cfg.SweepInterval = "soon"
	cfg.ServerPort = 0

	err := ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{
		"PAPERLESS_URL",
		"both use field id 4",
		"CUSTOM_FIELD_PROCESSED_DATE must be a positive field id",
		`share id "x"`,
		"SWEEP_INTERVAL",
		"SERVER_PORT",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestValidateConfig_NewAndDoneLabelsMustBeMapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StatusNewLabel = "Neu"
	err := ValidateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "STATUS_NEW_LABEL") {
		t.Errorf("expected STATUS_NEW_LABEL error, got %v", err)
	}
}

// --- Schema tests ---

func TestValidateConfigFile_SchemaErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"CUSTOM_FIELD_STATUS": "vier", "STATUS_LABEL_TO_ID": {"A": 1}}`)

	err := ValidateConfigFile(path)
	if err == nil {
		t.Fatal("expected schema error")
	}
	if !strings.Contains(err.Error(), "schema") {
		t.Errorf("expected schema error, got %v", err)
	}
}

func TestValidateConfigFile_DefaultFileIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if _, err := NewConfigStore(path, nil); err != nil {
		t.Fatal(err)
	}
	if err := ValidateConfigFile(path); err != nil {
		t.Errorf("default file should validate: %v", err)
	}
}

func TestValidateConfigDocument_AcceptsStringPortAndThreshold(t *testing.T) {
	doc := map[string]any{
		"SERVER_PORT":      "8080",
		"ACTION_THRESHOLD": "49.5",
	}
	if err := ValidateConfigDocument(doc); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
