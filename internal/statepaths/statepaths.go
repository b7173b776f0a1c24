package statepaths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const defaultStateDir = "~/.modmail"

// FileStateDir is where local state such as the SQLite database lives.
func FileStateDir() string {
	return ResolveStateDir(viper.GetString("file_state_dir"))
}

func ResolveStateDir(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = defaultStateDir
	}
	return filepath.Clean(ExpandHomePath(raw))
}

func ExpandHomePath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}
