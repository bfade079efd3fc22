package cli

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/spf13/cobra"
)

func TestCompleteStatusLabels_FromLoadedConfig(t *testing.T) {
	withConfigStore(t)

	labels, directive := completeStatusLabels(statusCmd, []string{"12"}, "")
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("directive = %v", directive)
	}
	want := []string{"Unbearbeitet", "Weitergeleitet", "Erledigt", "keine Aktion", "Gelöscht"}
	if !slices.Equal(labels, want) {
		t.Errorf("labels = %v, want %v", labels, want)
	}
}

func TestCompleteStatusLabels_PrefixIsCaseInsensitive(t *testing.T) {
	withConfigStore(t)

	labels, _ := completeStatusLabels(statusCmd, []string{"12"}, "er")
	if !slices.Equal(labels, []string{"Erledigt"}) {
		t.Errorf("labels = %v, want [Erledigt]", labels)
	}
}

func TestCompleteStatusLabels_OnlySecondArgument(t *testing.T) {
	withConfigStore(t)

	if labels, _ := completeStatusLabels(statusCmd, nil, ""); labels != nil {
		t.Errorf("expected no completion for the document id, got %v", labels)
	}
}

func TestCompleteStatusLabels_WithoutConfigFileUsesDefaults(t *testing.T) {
	origConfig := Config
	origPath := configPath
	defer func() {
		Config = origConfig
		configPath = origPath
	}()
	Config = nil
	configPath = filepath.Join(t.TempDir(), "missing.json")

	labels, _ := completeStatusLabels(statusCmd, []string{"1"}, "Unb")
	if !slices.Equal(labels, []string{"Unbearbeitet"}) {
		t.Errorf("labels = %v", labels)
	}
}

func TestCompleteConfigKeys(t *testing.T) {
	keys, _ := completeConfigKeys(configSetCmd, nil, "custom_field")
	want := []string{"CUSTOM_FIELD_AKTION", "CUSTOM_FIELD_PROCESSED_DATE", "CUSTOM_FIELD_STATUS"}
	if !slices.Equal(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}

	if keys, _ := completeConfigKeys(configSetCmd, []string{"SERVER_PORT"}, ""); keys != nil {
		t.Errorf("expected no completion for VALUE, got %v", keys)
	}
}

func TestCompleteLogLevels(t *testing.T) {
	levels, directive := completeLogLevels(rootCmd, nil, "")
	if len(levels) != 4 {
		t.Errorf("expected 4 levels, got %d", len(levels))
	}
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("directive = %v", directive)
	}
}
