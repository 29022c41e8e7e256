// Package testutil provides shared helpers for package tests: a structured
// logger that writes through t.Log and an in-memory Host with gates for
// forcing completion order.
package testutil

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

// NewTestLogger returns a debug-level logger formatted like the nsbrowse
// binary's, with each record routed to t.Log. Output shows only on failure
// or under -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	handler := log.NewWithOptions(testWriter{t}, log.Options{
		Level:  log.DebugLevel,
		Prefix: t.Name(),
	})
	handler.SetTimeFormat("")
	return slog.New(handler)
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
