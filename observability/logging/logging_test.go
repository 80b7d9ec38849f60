package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestJSONAttrsRenameAndRedact(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: jsonAttr}))
	logger.Info("claimed", slog.String("token", "abc.def"), slog.String("user", "nhb1xyz"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if line["message"] != "claimed" || line["severity"] != "INFO" {
		t.Fatalf("unexpected envelope %v", line)
	}
	if line["token"] != RedactedValue || line["user"] != "nhb1xyz" {
		t.Fatalf("redaction mismatch %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("timestamp missing")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("nope") != slog.LevelInfo {
		t.Fatalf("unexpected level mapping")
	}
	if MaskValue("") != "" {
		t.Fatalf("empty values must stay empty")
	}
}
