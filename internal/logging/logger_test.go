package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "directory", "not-a-level")
	logger.Debug("hidden")
	logger.Info("visible", "login", "anna")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single json line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "directory" {
		t.Fatalf("expected service attribute, got %v", entry["service"])
	}
	if entry["login"] != "anna" {
		t.Fatalf("expected login attribute, got %v", entry["login"])
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatalf("expected discard logger for nil input")
	}
}
