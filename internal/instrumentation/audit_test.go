package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	testCalendarA = "room-a@example.com"
	testCalendarB = "room-b@example.org"
	testTool      = "calendar_find_earliest_availability"
)

func newTestAuditLogger(config AuditLoggingConfig) (*AuditLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewAuditLoggerWithConfig(logger, config), &buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log entry %q: %v", buf.String(), err)
	}
	return entry
}

func TestInvocation_NewAndComplete(t *testing.T) {
	inv := NewInvocation(testTool, SourceMCP)

	if inv.Name != testTool {
		t.Errorf("Name = %q, want %q", inv.Name, testTool)
	}
	if inv.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}

	inv.CompleteSuccess()

	if !inv.Success || inv.Status() != StatusSuccess {
		t.Error("invocation should be successful")
	}
	if inv.Duration < 0 {
		t.Error("Duration should not be negative")
	}
}

func TestInvocation_CompleteWithError(t *testing.T) {
	inv := NewInvocation("POST /api/book", SourceHTTP)
	inv.CompleteWithError(errors.New("permission denied"))

	if inv.Success {
		t.Error("Success should be false")
	}
	if inv.Status() != StatusError {
		t.Errorf("Status = %q, want %q", inv.Status(), StatusError)
	}
	if inv.Error != "permission denied" {
		t.Errorf("Error = %q, want %q", inv.Error, "permission denied")
	}
}

func TestInvocation_WithSpanContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	inv := NewInvocation(testTool, SourceMCP).WithSpanContext(ctx)
	if inv.TraceID == "" || inv.SpanID == "" {
		t.Errorf("expected trace and span IDs, got %q/%q", inv.TraceID, inv.SpanID)
	}

	empty := NewInvocation(testTool, SourceMCP).WithSpanContext(context.Background())
	if empty.TraceID != "" {
		t.Errorf("expected no trace ID without a span, got %q", empty.TraceID)
	}
}

func TestAuditLogger_LogInvocation_HidesCalendars(t *testing.T) {
	al, buf := newTestAuditLogger(AuditLoggingConfig{Enabled: true})

	inv := NewInvocation(testTool, SourceMCP).
		WithCaller(APIKeyFingerprint("k")).
		WithCalendars(testCalendarA, testCalendarB).
		WithOperation(OperationSearch).
		CompleteSuccess()
	al.LogInvocation(inv)

	entry := decodeEntry(t, buf)
	if entry["msg"] != "invocation_completed" {
		t.Errorf("msg = %v, want invocation_completed", entry["msg"])
	}
	if entry["calendar_domains"] != "example.com,example.org" {
		t.Errorf("calendar_domains = %v", entry["calendar_domains"])
	}
	if strings.Contains(buf.String(), testCalendarA) {
		t.Error("full calendar IDs must not be logged by default")
	}
	if entry["caller"] != APIKeyFingerprint("k") {
		t.Errorf("caller = %v", entry["caller"])
	}
}

func TestAuditLogger_LogInvocation_IncludeCalendars(t *testing.T) {
	al, buf := newTestAuditLogger(AuditLoggingConfig{Enabled: true, IncludeCalendars: true})

	inv := NewInvocation(testTool, SourceHTTP).
		WithCalendars(testCalendarA).
		CompleteWithError(errors.New("boom"))
	al.LogInvocation(inv)

	entry := decodeEntry(t, buf)
	if entry["msg"] != "invocation_failed" {
		t.Errorf("msg = %v, want invocation_failed", entry["msg"])
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry["calendars"] != testCalendarA {
		t.Errorf("calendars = %v, want %q", entry["calendars"], testCalendarA)
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
}

func TestAuditLogger_LogAudit(t *testing.T) {
	al, buf := newTestAuditLogger(AuditLoggingConfig{Enabled: true})

	inv := NewInvocation("calendar_book_slot", SourceMCP).
		WithCalendars(testCalendarA).
		WithOperation(OperationBook).
		CompleteSuccess()
	al.LogAudit(inv)

	entry := decodeEntry(t, buf)
	if entry["msg"] != "audit" {
		t.Errorf("msg = %v, want audit", entry["msg"])
	}
	if entry["calendars"] != testCalendarA {
		t.Errorf("calendars = %v, want %q", entry["calendars"], testCalendarA)
	}
	if entry["operation"] != OperationBook {
		t.Errorf("operation = %v, want %q", entry["operation"], OperationBook)
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	al, buf := newTestAuditLogger(AuditLoggingConfig{Enabled: false})

	inv := NewInvocation(testTool, SourceMCP).CompleteSuccess()
	al.LogInvocation(inv)
	al.LogAudit(inv)

	if buf.Len() != 0 {
		t.Errorf("expected no output when disabled, got %q", buf.String())
	}

	al.SetEnabled(true)
	al.LogInvocation(inv)
	if buf.Len() == 0 {
		t.Error("expected output after enabling")
	}
}

func TestAuditLogger_NilSafe(t *testing.T) {
	var al *AuditLogger
	// Should not panic
	al.LogInvocation(NewInvocation(testTool, SourceMCP))
	al.LogAudit(NewInvocation(testTool, SourceMCP))

	if NewAuditLogger(nil) == nil {
		t.Fatal("NewAuditLogger(nil) returned nil")
	}
}
