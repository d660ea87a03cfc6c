package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// SetupLogger tests
// ---------------------------------------------------------------------------

func TestSetupLogger_DoesNotPanicForAllCombinations(t *testing.T) {
	formats := []string{"json", "text", "JSON", "TEXT", "", "unknown"}
	levels := []string{"debug", "info", "warn", "warning", "error", "ERROR", "", "unknown"}

	for _, format := range formats {
		for _, lvl := range levels {
			t.Run(format+"/"+lvl, func(t *testing.T) {
				defer func() {
					if r := recover(); r != nil {
						t.Errorf("SetupLogger(%q, %q) panicked: %v", format, lvl, r)
					}
				}()
				SetupLogger(format, lvl)
			})
		}
	}
	// Restore a sensible default so other tests in this binary are unaffected.
	SetupLogger("text", "error")
}

func TestSetupLogger_JSONFormat_ProducesValidJSON(t *testing.T) {
	var buf bytes.Buffer
	setupLogger(&buf, "json", "info")
	t.Cleanup(func() { SetupLogger("text", "error") })
	buf.Reset()

	slog.Info("test message", "key", "value")

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("JSON handler produced no output")
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		t.Fatalf("JSON handler output is not valid JSON: %v\noutput: %s", err, line)
	}
	if obj["msg"] != "test message" {
		t.Errorf("expected msg=test message, got %v", obj["msg"])
	}
	if obj["key"] != "value" {
		t.Errorf("expected key=value, got %v", obj["key"])
	}
}

func TestSetupLogger_TextFormat_ProducesKeyValuePairs(t *testing.T) {
	var buf bytes.Buffer
	setupLogger(&buf, "text", "info")
	t.Cleanup(func() { SetupLogger("text", "error") })

	slog.Info("text test", "env", "development")

	line := buf.String()
	if !strings.Contains(line, "text test") {
		t.Errorf("text handler output does not contain message: %q", line)
	}
	if !strings.Contains(line, "env=development") {
		t.Errorf("text handler output does not contain env=development: %q", line)
	}
}

func TestSetupLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	setupLogger(&buf, "json", "warn")
	t.Cleanup(func() { SetupLogger("text", "error") })

	slog.Info("should be suppressed")
	slog.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should be suppressed") {
		t.Error("Info record appeared despite warn level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("Warn record was unexpectedly suppressed")
	}
}

// ---------------------------------------------------------------------------
// SetLogLevel tests
// ---------------------------------------------------------------------------

func TestSetLogLevel_AppliesWithoutNewHandler(t *testing.T) {
	var buf bytes.Buffer
	setupLogger(&buf, "text", "error")
	t.Cleanup(func() { SetupLogger("text", "error") })

	slog.Debug("hidden")
	SetLogLevel("debug")
	slog.Debug("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record logged before level change")
	}
	if !strings.Contains(out, "visible") {
		t.Error("debug record not logged after SetLogLevel(debug)")
	}
}

func TestSetLogLevel_SameLevelIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	setupLogger(&buf, "text", "info")
	t.Cleanup(func() { SetupLogger("text", "error") })
	buf.Reset()

	SetLogLevel("INFO")
	if strings.Contains(buf.String(), "log level changed") {
		t.Errorf("unexpected change record: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
