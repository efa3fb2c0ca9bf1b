package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"deckforge/internal/logging"
	"deckforge/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := services.WithJobID(context.Background(), 7)
	ctx = services.WithStage(ctx, "generating")

	logging.WithContext(ctx, logger).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "job_id=7") {
		t.Fatalf("expected job_id field, got %q", out)
	}
	if !strings.Contains(out, "stage=generating") {
		t.Fatalf("expected stage field, got %q", out)
	}
}

func TestNewComponentLoggerNilBase(t *testing.T) {
	logger := logging.NewComponentLogger(nil, "dispatcher")
	// Must not panic and must swallow output.
	logger.Info("noop")
}
