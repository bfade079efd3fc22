package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/paperless-tasks/internal/core"
	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

var configShowJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change the configuration",
	Long: `Commands for the ptsync configuration file (config.json by default).

Keys use the file's upper-case names, for example PAPERLESS_URL or
STATUS_LABEL_TO_ID. Environment variables prefixed with PTSYNC_ override
file values at load time but are never written back.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Config == nil {
			return fmt.Errorf("configuration not initialized")
		}
		cfg := maskSecrets(Config.Current())

		if configShowJSON {
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting config as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("formatting config: %w", err)
		}
		if path := Config.Path(); path != "" {
			fmt.Printf("# %s\n", path)
		}
		fmt.Print(string(data))
		for _, note := range externalRouteNotes(cfg) {
			fmt.Printf("# %s\n", note)
		}
		return nil
	},
}

// externalRouteNotes explains the routes task notes and credential failures
// point at. ptsync serves neither /view_pdf nor an authorization flow.
func externalRouteNotes(cfg models.Config) []string {
	notes := []string{
		"PDF-Ansicht links (PUBLIC_BASE_URL + /view_pdf/<id>) are not served by ptsync; point PUBLIC_BASE_URL at a service that serves them.",
	}
	if cfg.ReauthorizeURL == "" {
		notes = append(notes, "REAUTHORIZE_URL is empty: credential failures answer 503 until the token file is renewed.")
	} else {
		notes = append(notes, "REAUTHORIZE_URL must be served by an external authorization service; ptsync only redirects to it.")
	}
	return notes
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a configuration file without loading it",
	Long: `Check a configuration file against the schema and the semantic rules
(distinct field ids, injective status mapping, mapped new and done labels).
Every problem is reported. Defaults to the file ptsync would load.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipInit: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if err := core.ValidateConfigFile(path); err != nil {
			return err
		}
		fmt.Printf("%s is valid.\n", path)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare the configuration with the Paperless custom fields",
	Long: `Ask Paperless for its custom fields and verify that the configured field
ids exist and that every STATUS_LABEL_TO_ID entry matches a select option
of the status field.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Config == nil || Catalog == nil {
			return fmt.Errorf("configuration not initialized")
		}

		findings, err := core.CheckConfig(context.Background(), Config.Current(), Catalog)
		if err != nil {
			return err
		}
		if len(findings) == 0 {
			fmt.Println("Configuration matches Paperless.")
			return nil
		}

		fmt.Printf("%d problem(s) found:\n\n", len(findings))
		for _, f := range findings {
			fmt.Printf("  %-28s %s\n", f.Key, f.Message)
		}
		return fmt.Errorf("configuration does not match Paperless")
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change one configuration value",
	Long: `Set KEY to VALUE and write the file atomically. VALUE is read as JSON
when it parses (numbers, lists, objects, quoted strings) and as a plain
string otherwise. The result must still validate.

Examples:
  ptsync config set ACTION_THRESHOLD 60
  ptsync config set PAPERLESS_URL https://paperless.example
  ptsync config set STATUS_LABEL_TO_ID '{"Neu":"a1","Erledigt":"b2"}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Config == nil {
			return fmt.Errorf("configuration not initialized")
		}
		key := strings.ToUpper(args[0])
		err := Config.Update(func(cfg *models.Config) error {
			return core.SetConfigValue(cfg, key, args[1])
		})
		if err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
		fmt.Printf("%s updated.\n", key)
		return nil
	},
}

func maskSecrets(cfg models.Config) models.Config {
	cfg.PaperlessToken = mask(cfg.PaperlessToken)
	cfg.SlackWebhookURL = mask(cfg.SlackWebhookURL)
	return cfg
}

func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "Output configuration as JSON")
	configCmd.AddCommand(configShowCmd, configValidateCmd, configCheckCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
