package statepaths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveStateDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cases := map[string]string{
		"":            filepath.Join(home, ".modmail"),
		"~":           home,
		"~/state/":    filepath.Join(home, "state"),
		"/var/lib/mm": "/var/lib/mm",
		"relative/./": "relative",
	}
	for in, want := range cases {
		if got := ResolveStateDir(in); got != want {
			t.Errorf("ResolveStateDir(%q) = %q, want %q", in, got, want)
		}
	}
}
