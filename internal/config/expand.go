package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands $VAR references and a leading ~ or ~/ to the
// current user's home. ~username is left alone.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	path = os.ExpandEnv(path)

	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// expandSecret resolves a value written as ${VAR} or $VAR so tokens can
// stay out of the file. Anything else is returned as written.
func expandSecret(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	return os.ExpandEnv(s)
}
