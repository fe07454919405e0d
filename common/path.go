package common

import (
	"os"
	"regexp"
	"strings"
)

var windowsEnvPattern = regexp.MustCompile(`%([A-Za-z0-9_]+)%`)

// expandLogDirPath resolves $VAR and %VAR% placeholders in the log directory flag.
func expandLogDirPath(path string) string {
	if path == "" {
		return ""
	}

	return windowsEnvPattern.ReplaceAllStringFunc(os.ExpandEnv(path), func(match string) string {
		if val, ok := os.LookupEnv(strings.Trim(match, "%")); ok && val != "" {
			return val
		}
		return match
	})
}
