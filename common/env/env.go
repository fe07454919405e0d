// Package env reads typed values from environment variables with defaults.
package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// String returns the value of key, or defaultValue when unset or empty.
func String(key string, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

// Int returns key parsed as an int. Unparsable values fall back to defaultValue.
func Int(key string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// Bool returns key parsed with strconv.ParseBool.
func Bool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// Float64 returns key parsed as a float64.
func Float64(key string, defaultValue float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// Millis reads an integer number of milliseconds.
func Millis(key string, defaultValue time.Duration) time.Duration {
	return time.Duration(Int(key, int(defaultValue/time.Millisecond))) * time.Millisecond
}

// Seconds reads an integer number of seconds.
func Seconds(key string, defaultValue time.Duration) time.Duration {
	return time.Duration(Int(key, int(defaultValue/time.Second))) * time.Second
}
