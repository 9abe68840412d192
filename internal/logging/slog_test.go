package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler("json", slog.LevelInfo, &buf))
	logger.Info("search finished", Status(StatusSuccess))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "search finished" {
		t.Errorf("msg = %v, want %q", entry["msg"], "search finished")
	}
	if entry[KeyStatus] != StatusSuccess {
		t.Errorf("status = %v, want %q", entry[KeyStatus], StatusSuccess)
	}
}

func TestNewHandler_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler("bogus", slog.LevelWarn, &buf))
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level, got %q", out)
	}
	if !strings.Contains(out, "msg=shown") {
		t.Errorf("expected text output, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"loud", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.name); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestWithHelpers(t *testing.T) {
	logger := slog.Default()
	if WithOperation(logger, "availability.search") == nil {
		t.Error("WithOperation returned nil")
	}
	if WithTool(logger, "calendar_check_availability") == nil {
		t.Error("WithTool returned nil")
	}
	if WithRequestID(logger, "") != logger {
		t.Error("WithRequestID with empty id should return the same logger")
	}
	if WithRequestID(logger, "abc") == logger {
		t.Error("WithRequestID should return a derived logger")
	}
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{Operation("book"), KeyOperation, "book"},
		{Tool("calendar_book_slot"), KeyTool, "calendar_book_slot"},
		{Status(StatusError), KeyStatus, StatusError},
		{Timezone("America/Denver"), KeyTimezone, "America/Denver"},
	}

	for _, tt := range tests {
		t.Run(tt.wantKey, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value.String() != tt.wantVal {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.wantVal)
			}
		})
	}
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("test error"))
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "test error" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "test error")
	}

	// Empty Group has empty key
	if attr := Err(nil); attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty string (empty group)", attr.Key)
	}
}

func TestAnonymizeCalendar(t *testing.T) {
	got := AnonymizeCalendar("room-a@example.com")
	if len(got) != 20 || !strings.HasPrefix(got, "cal:") {
		t.Errorf("AnonymizeCalendar = %q, want cal: plus 16 hex chars", got)
	}
	if got != AnonymizeCalendar("room-a@example.com") {
		t.Error("AnonymizeCalendar should be deterministic")
	}
	if got == AnonymizeCalendar("room-b@example.com") {
		t.Error("different calendars should produce different hashes")
	}
	if AnonymizeCalendar("") != "" {
		t.Error("empty calendar ID should stay empty")
	}

	attr := CalendarHash("room-a@example.com")
	if attr.Key != KeyCalendarHash || attr.Value.String() != got {
		t.Errorf("CalendarHash = %v, want %s=%s", attr, KeyCalendarHash, got)
	}
}

func TestCalendars(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler("json", slog.LevelInfo, &buf))
	logger.Info("search", Calendars([]string{"a@example.com", "b@example.com", "c@other.org", "primary"}))

	var entry struct {
		Calendar struct {
			Count   int    `json:"count"`
			Domains string `json:"domains"`
		} `json:"calendar"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.Calendar.Count != 4 {
		t.Errorf("count = %d, want 4", entry.Calendar.Count)
	}
	if entry.Calendar.Domains != "example.com,other.org" {
		t.Errorf("domains = %q, want %q", entry.Calendar.Domains, "example.com,other.org")
	}
	if strings.Contains(buf.String(), "a@example.com") {
		t.Error("full calendar IDs must not be logged")
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"abc123", "[token:6 chars]"},
		{"a_very_long_token_string", "[token:24 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := SanitizeToken(tt.token); result != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, result, tt.expected)
			}
		})
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		id       string
		expected string
	}{
		{"jane@example.com", "example.com"},
		{"en.usa#holiday@group.v.calendar.google.com", "group.v.calendar.google.com"},
		{"primary", ""},
		{"", ""},
		{"@", ""},
		{"user@", ""},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if result := ExtractDomain(tt.id); result != tt.expected {
				t.Errorf("ExtractDomain(%q) = %q, want %q", tt.id, result, tt.expected)
			}
		})
	}
}
