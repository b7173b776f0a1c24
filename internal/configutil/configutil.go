package configutil

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// FlagOrViperString prefers an explicitly set flag over the config key.
func FlagOrViperString(cmd *cobra.Command, flagName, viperKey string) string {
	if cmd != nil {
		if f := cmd.Flags().Lookup(flagName); f != nil && f.Changed {
			return strings.TrimSpace(f.Value.String())
		}
	}
	return strings.TrimSpace(viper.GetString(viperKey))
}

func FlagOrViperBool(cmd *cobra.Command, flagName, viperKey string) bool {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		if v, err := cmd.Flags().GetBool(flagName); err == nil {
			return v
		}
	}
	return viper.GetBool(viperKey)
}

func FlagOrViperDuration(cmd *cobra.Command, flagName, viperKey string) time.Duration {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		if v, err := cmd.Flags().GetDuration(flagName); err == nil {
			return v
		}
	}
	return viper.GetDuration(viperKey)
}

func FlagOrViperInt(cmd *cobra.Command, flagName, viperKey string) int {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		if v, err := cmd.Flags().GetInt(flagName); err == nil {
			return v
		}
	}
	return viper.GetInt(viperKey)
}

// FlagOrViperStringArray drops blank entries and splits comma separated
// values, as environment variables can only carry one string.
func FlagOrViperStringArray(cmd *cobra.Command, flagName, viperKey string) []string {
	var raw []string
	if cmd != nil && cmd.Flags().Changed(flagName) {
		raw, _ = cmd.Flags().GetStringArray(flagName)
	} else {
		raw = viper.GetStringSlice(viperKey)
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, item := range strings.Split(entry, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
