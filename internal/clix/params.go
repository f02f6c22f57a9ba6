// Package clix holds small shared helpers for parsing command flags.
package clix

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// ParseServerURL reads the --server flag and normalizes it into a base URL:
// a bare host gets an http scheme, a trailing slash is dropped.
func ParseServerURL(flags *pflag.FlagSet) (string, error) {
	raw, _ := flags.GetString("server")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("--server must not be empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "", fmt.Errorf("--server must be an http or https URL, got %q", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

// ParsePageCount reads a page-count flag and clamps it into [1, max].
func ParsePageCount(flags *pflag.FlagSet, name string, max int) (int, error) {
	n, _ := flags.GetInt(name)
	if n <= 0 {
		return 0, fmt.Errorf("--%s must be positive", name)
	}
	if n > max {
		return 0, fmt.Errorf("--%s must be %d or fewer", name, max)
	}
	return n, nil
}
