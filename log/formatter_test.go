package log

import (
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

// fixed timestamp used across tests for deterministic output.
var testTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func makeEntry(level LogLevel, msg string, fields map[string]interface{}) LogEntry {
	return LogEntry{
		Timestamp: testTime,
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
}

// withColor forces color output on for the duration of a test.
func withColor(t *testing.T) {
	t.Helper()
	saved := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = saved })
}

// ---------------------------------------------------------------------------
// LogLevel
// ---------------------------------------------------------------------------

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{FATAL, "FATAL"},
		{LogLevel(42), "LEVEL(42)"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", int(tt.level), got, tt.want)
		}
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"trace", DEBUG},
		{" Info ", INFO},
		{"warning", WARN},
		{"ERROR", ERROR},
		{"crit", FATAL},
		{"bogus", INFO},
	}
	for _, tt := range tests {
		if got := LevelFromString(tt.in); got != tt.want {
			t.Errorf("LevelFromString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogLevel_SlogRoundTrip(t *testing.T) {
	for _, l := range []LogLevel{DEBUG, INFO, WARN, ERROR} {
		if got := levelFromSlog(l.Slog()); got != l {
			t.Errorf("levelFromSlog(%v.Slog()) = %v", l, got)
		}
	}
	if FATAL.Slog() != slog.LevelError {
		t.Error("FATAL should map to slog.LevelError")
	}
	if levelFromSlog(slog.LevelInfo+2) != INFO {
		t.Error("intermediate levels should round down")
	}
}

func TestFormatterByName(t *testing.T) {
	for name, want := range map[string]LogFormatter{
		"":         &TextFormatter{},
		"TEXT":     &TextFormatter{},
		"json":     &JSONFormatter{},
		"terminal": &ColorFormatter{},
	} {
		got, err := FormatterByName(name)
		if err != nil {
			t.Fatalf("FormatterByName(%q): %v", name, err)
		}
		if got == nil || typeName(got) != typeName(want) {
			t.Errorf("FormatterByName(%q) = %T, want %T", name, got, want)
		}
	}
	if _, err := FormatterByName("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func typeName(f LogFormatter) string {
	switch f.(type) {
	case *TextFormatter:
		return "text"
	case *JSONFormatter:
		return "json"
	case *ColorFormatter:
		return "color"
	}
	return "?"
}

// ---------------------------------------------------------------------------
// TextFormatter
// ---------------------------------------------------------------------------

func TestTextFormatter_Layout(t *testing.T) {
	f := &TextFormatter{}
	got := f.Format(makeEntry(INFO, "sequence analyzed", map[string]interface{}{
		"steps": 6,
		"gas":   21018,
		"fork":  "London",
	}))
	want := "[2024-01-01 12:00:00] INFO  sequence analyzed fork=London gas=21018 steps=6"
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestTextFormatter_CustomTimeFormat(t *testing.T) {
	f := &TextFormatter{TimeFormat: time.Kitchen}
	if got := f.Format(makeEntry(ERROR, "x", nil)); !strings.HasPrefix(got, "[12:00PM] ERROR x") {
		t.Errorf("got %q", got)
	}
}

// ---------------------------------------------------------------------------
// JSONFormatter
// ---------------------------------------------------------------------------

func TestJSONFormatter_Fields(t *testing.T) {
	f := &JSONFormatter{}
	out := f.Format(makeEntry(WARN, "cold access", map[string]interface{}{"op": "SLOAD", "gas": 2100}))

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if parsed["level"] != "WARN" || parsed["msg"] != "cold access" || parsed["op"] != "SLOAD" {
		t.Errorf("parsed = %v", parsed)
	}
	if parsed["time"] != "2024-01-01T12:00:00Z" {
		t.Errorf("time = %v", parsed["time"])
	}
	if v, ok := parsed["gas"].(float64); !ok || v != 2100 {
		t.Errorf("gas = %v", parsed["gas"])
	}
}

func TestJSONFormatter_ReservedKeysWin(t *testing.T) {
	out := (&JSONFormatter{}).Format(makeEntry(INFO, "real", map[string]interface{}{"msg": "shadow"}))
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed["msg"] != "real" {
		t.Errorf("msg = %v, want real", parsed["msg"])
	}
}

func TestJSONFormatter_Unmarshalable(t *testing.T) {
	out := (&JSONFormatter{}).Format(makeEntry(INFO, "bad", map[string]interface{}{"ch": make(chan int)}))
	if !strings.Contains(out, `"error":"marshal failed"`) {
		t.Errorf("got %q", out)
	}
}

// ---------------------------------------------------------------------------
// ColorFormatter
// ---------------------------------------------------------------------------

func TestColorFormatter_Escapes(t *testing.T) {
	withColor(t)
	f := &ColorFormatter{}
	for _, lvl := range []LogLevel{DEBUG, INFO, WARN, ERROR, FATAL} {
		out := f.Format(makeEntry(lvl, "test", nil))
		if !strings.Contains(out, "\x1b[") {
			t.Errorf("level %v: no escape sequence in %q", lvl, out)
		}
		if !strings.Contains(out, lvl.String()) {
			t.Errorf("level %v: missing level name in %q", lvl, out)
		}
	}
}

func TestColorFormatter_NoColor(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = saved }()

	entry := makeEntry(WARN, "plain", map[string]interface{}{"key": "value"})
	if got, want := (&ColorFormatter{}).Format(entry), (&TextFormatter{}).Format(entry); got != want {
		t.Errorf("NoColor output %q differs from text %q", got, want)
	}
}

func TestColorFormatter_DistinctColors(t *testing.T) {
	withColor(t)
	seen := make(map[string]LogLevel)
	for _, lvl := range []LogLevel{DEBUG, INFO, WARN, ERROR, FATAL} {
		s := colorForLevel(lvl).Sprint("x")
		if prev, ok := seen[s]; ok {
			t.Errorf("levels %v and %v render identically", prev, lvl)
		}
		seen[s] = lvl
	}
	if colorForLevel(LogLevel(9)) != nil {
		t.Error("unnamed level should have no color")
	}
}

func TestFormatterInterfaceCompliance(t *testing.T) {
	var _ LogFormatter = (*TextFormatter)(nil)
	var _ LogFormatter = (*JSONFormatter)(nil)
	var _ LogFormatter = (*ColorFormatter)(nil)
}
