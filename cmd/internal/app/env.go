package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Typed environment lookups. All of them fall back to the default on
// unset, blank, or unparseable values so a typo in deployment config
// degrades to defaults instead of crashing the process.

func envRaw(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func EnvString(key, def string) string {
	if v := envRaw(key); v != "" {
		return v
	}
	return def
}

func EnvBool(key string, def bool) bool {
	v := envRaw(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// EnvInt accepts only positive values.
func EnvInt(key string, def int) int {
	v := envRaw(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// EnvInt32 accepts only non-negative values. Zero is meaningful for
// pool minimums.
func EnvInt32(key string, def int32) int32 {
	v := envRaw(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		return def
	}
	return int32(n)
}

func EnvDuration(key string, def time.Duration) time.Duration {
	v := envRaw(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// EnvCSV splits a comma-separated value, dropping blank entries so
// trailing commas are harmless.
func EnvCSV(key, def string) []string {
	raw := envRaw(key)
	if raw == "" {
		raw = def
	}
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
