package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestHandler_NonTerminalWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(Handler(false, &buf))
	logger.Info("payment initiated", "reference", "PAY-1-ABCDEF")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "payment initiated" || line["reference"] != "PAY-1-ABCDEF" {
		t.Fatalf("unexpected log line %v", line)
	}
}

func TestHandler_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	slog.New(Handler(false, &buf)).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug suppressed, got %q", buf.String())
	}
	slog.New(Handler(true, &buf)).Debug("shown")
	if buf.Len() == 0 {
		t.Fatal("expected debug output when enabled")
	}
}
