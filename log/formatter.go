package log

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
)

// LogLevel represents the severity of a log entry.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	// FATAL is rendered like ERROR by the slog bridge; nothing in this
	// package exits the process.
	FATAL
)

// String returns the uppercase name of the level.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// Slog maps the level onto the slog scale.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case INFO:
		return slog.LevelInfo
	case WARN:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// levelFromSlog is the inverse of LogLevel.Slog. Levels between the named
// slog levels round down.
func levelFromSlog(l slog.Level) LogLevel {
	switch {
	case l >= slog.LevelError:
		return ERROR
	case l >= slog.LevelWarn:
		return WARN
	case l >= slog.LevelInfo:
		return INFO
	}
	return DEBUG
}

// LevelFromString parses a log level from its string representation.
// The match is case-insensitive. Unrecognised strings return INFO.
func LevelFromString(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL", "CRIT":
		return FATAL
	default:
		return INFO
	}
}

// LogEntry holds all data for a single log event.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Fields    map[string]interface{}
}

// LogFormatter formats a LogEntry into a printable string.
type LogFormatter interface {
	Format(entry LogEntry) string
}

// FormatterByName resolves "text", "json" or "color".
func FormatterByName(name string) (LogFormatter, error) {
	switch strings.ToLower(name) {
	case "", "text", "plain":
		return &TextFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "color", "colour", "terminal":
		return &ColorFormatter{}, nil
	}
	return nil, fmt.Errorf("log: unknown format %q", name)
}

const defaultTextTime = "2006-01-02 15:04:05"

// TextFormatter renders log entries as plain text in the format:
//
//	[2024-01-01 12:00:00] INFO  message key=value
type TextFormatter struct {
	// TimeFormat defaults to "2006-01-02 15:04:05" when empty.
	TimeFormat string
}

// Format produces a plain-text line for the given entry.
func (f *TextFormatter) Format(entry LogEntry) string {
	return formatLine(entry, f.TimeFormat, func(s string) string { return s })
}

// JSONFormatter renders log entries as a single JSON object per line.
type JSONFormatter struct {
	// TimeFormat defaults to time.RFC3339 when empty.
	TimeFormat string
}

// Format produces a JSON string for the given entry.
func (f *JSONFormatter) Format(entry LogEntry) string {
	tf := f.TimeFormat
	if tf == "" {
		tf = time.RFC3339
	}
	obj := make(map[string]interface{}, 3+len(entry.Fields))
	for k, v := range entry.Fields {
		obj[k] = v
	}
	obj["time"] = entry.Timestamp.Format(tf)
	obj["level"] = entry.Level.String()
	obj["msg"] = entry.Message

	data, err := json.Marshal(obj)
	if err != nil {
		// Logging never fails: fall back to the fixed keys only.
		return fmt.Sprintf(`{"time":%q,"level":%q,"msg":%q,"error":"marshal failed"}`,
			entry.Timestamp.Format(tf), entry.Level.String(), entry.Message)
	}
	return string(data)
}

// ColorFormatter is TextFormatter with the level name colored per severity.
// It honours color.NoColor, so redirected output stays plain.
type ColorFormatter struct {
	TimeFormat string
}

// levelColors are shared; color.Color is safe for concurrent use.
var levelColors = map[LogLevel]*color.Color{
	DEBUG: color.New(color.FgHiBlack),
	INFO:  color.New(color.FgGreen),
	WARN:  color.New(color.FgYellow),
	ERROR: color.New(color.FgRed),
	FATAL: color.New(color.FgRed, color.Bold),
}

// colorForLevel returns the color of level, or nil for unnamed levels.
func colorForLevel(level LogLevel) *color.Color {
	return levelColors[level]
}

// Format produces a colored text line for the given entry.
func (f *ColorFormatter) Format(entry LogEntry) string {
	paint := func(s string) string { return s }
	if c := colorForLevel(entry.Level); c != nil {
		paint = func(s string) string { return c.Sprint(s) }
	}
	return formatLine(entry, f.TimeFormat, paint)
}

// formatLine is the layout shared by the text formatters. The level name is
// padded to five columns before paint is applied so escapes do not break
// alignment.
func formatLine(entry LogEntry, tf string, paint func(string) string) string {
	if tf == "" {
		tf = defaultTextTime
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(entry.Timestamp.Format(tf))
	b.WriteString("] ")
	b.WriteString(paint(fmt.Sprintf("%-5s", entry.Level.String())))
	b.WriteString(" ")
	b.WriteString(entry.Message)
	for _, k := range sortedKeys(entry.Fields) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}
	return b.String()
}

// sortedKeys returns the map keys in sorted order.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
