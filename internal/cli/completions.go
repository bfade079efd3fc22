package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/paperless-tasks/internal/core"
	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// completionConfig returns the loaded configuration, or reads the file
// without creating it when completion runs before initialization.
func completionConfig() models.Config {
	if Config != nil {
		return Config.Current()
	}
	cfg, err := core.LoadConfig(resolveConfigPath())
	if err != nil {
		return core.DefaultConfig()
	}
	return cfg
}

// completeStatusLabels completes the label argument of `status <id> <label>`
// with the labels of STATUS_LABEL_TO_ID in file order.
func completeStatusLabels(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var labels []string
	for _, label := range completionConfig().StatusLabelToID.Labels() {
		if toComplete == "" || strings.HasPrefix(strings.ToLower(label), strings.ToLower(toComplete)) {
			labels = append(labels, label)
		}
	}
	return labels, cobra.ShellCompDirectiveNoFileComp
}

// completeConfigKeys completes the KEY argument of `config set`.
func completeConfigKeys(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var keys []string
	for _, key := range core.ConfigKeys() {
		if strings.HasPrefix(key, strings.ToUpper(toComplete)) {
			keys = append(keys, key)
		}
	}
	return keys, cobra.ShellCompDirectiveNoFileComp
}

// completeLogLevels completes --log-level.
func completeLogLevels(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"debug\tVerbose request and sync details",
		"info\tDefault",
		"warn\tOnly problems",
		"error\tOnly failures",
	}, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	statusCmd.ValidArgsFunction = completeStatusLabels
	configSetCmd.ValidArgsFunction = completeConfigKeys
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", completeLogLevels)
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "text"}, cobra.ShellCompDirectiveNoFileComp
	})
}
