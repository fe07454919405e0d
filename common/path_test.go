package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandLogDirPath(t *testing.T) {
	t.Setenv("APP_ROOT", "/srv/app")
	t.Setenv("LOG_HOME", "/var/log/ml")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "unix style", input: "$APP_ROOT/logs", expected: "/srv/app/logs"},
		{name: "windows style", input: "%LOG_HOME%/qgen", expected: "/var/log/ml/qgen"},
		{name: "unknown windows style passthrough", input: "%UNKNOWN_VAR%/logs", expected: "%UNKNOWN_VAR%/logs"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, expandLogDirPath(tc.input))
		})
	}
}
