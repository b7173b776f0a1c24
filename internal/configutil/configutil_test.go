package configutil

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestFlagOrViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("health.listen", ":8080")
	viper.Set("relay.backfill_window", "2h")

	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("health-listen", "", "")
	cmd.Flags().Duration("backfill-window", 0, "")

	if got := FlagOrViperString(cmd, "health-listen", "health.listen"); got != ":8080" {
		t.Fatalf("unset flag = %q, want config value", got)
	}
	if got := FlagOrViperDuration(cmd, "backfill-window", "relay.backfill_window"); got != 2*time.Hour {
		t.Fatalf("duration = %v", got)
	}
	if err := cmd.Flags().Set("health-listen", ":9090"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if got := FlagOrViperString(cmd, "health-listen", "health.listen"); got != ":9090" {
		t.Fatalf("set flag = %q, want flag value", got)
	}
}

func TestFlagOrViperStringArray(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("relay.prefixes", []string{"!", " ", "?"})
	if got := FlagOrViperStringArray(nil, "trigger-prefix", "relay.prefixes"); len(got) != 2 || got[0] != "!" || got[1] != "?" {
		t.Fatalf("FlagOrViperStringArray() = %v", got)
	}
	viper.Set("relay.commands", "reply, r")
	if got := FlagOrViperStringArray(nil, "trigger-command", "relay.commands"); len(got) != 2 || got[0] != "reply" || got[1] != "r" {
		t.Fatalf("FlagOrViperStringArray(csv) = %v", got)
	}
}

func TestFlagOrViperStringArrayPrefersFlag(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("relay.prefixes", []string{"!"})

	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().StringArray("trigger-prefix", nil, "")
	_ = cmd.Flags().Set("trigger-prefix", "?")
	_ = cmd.Flags().Set("trigger-prefix", ".")
	if got := FlagOrViperStringArray(cmd, "trigger-prefix", "relay.prefixes"); len(got) != 2 || got[0] != "?" || got[1] != "." {
		t.Fatalf("FlagOrViperStringArray() = %v", got)
	}
}
