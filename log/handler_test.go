package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestFormatterHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	h := NewFormatterHandler(&buf, slog.LevelDebug, &JSONFormatter{})
	slog.New(h).With("module", "gas").WithGroup("step").Warn("high cost", "op", "CALL", "gas", 36700)

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if entry["level"] != "WARN" || entry["msg"] != "high cost" {
		t.Errorf("entry = %v", entry)
	}
	if entry["module"] != "gas" || entry["step.op"] != "CALL" {
		t.Errorf("attributes = %v", entry)
	}
}

func TestFormatterHandler_GroupAttr(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewFormatterHandler(&buf, slog.LevelInfo, nil))
	l.Info("ctx", slog.Group("mem", "size", 32, "words", 1))
	if !strings.Contains(buf.String(), "mem.size=32 mem.words=1") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFormatterHandler_Enabled(t *testing.T) {
	var lvl slog.LevelVar
	lvl.Set(slog.LevelError)
	h := NewFormatterHandler(&bytes.Buffer{}, &lvl, nil)
	if h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be filtered at error level")
	}
	lvl.Set(slog.LevelDebug)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("level var change not observed")
	}
}
