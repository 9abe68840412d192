package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation    = "operation"
	KeyCalendar     = "calendar"
	KeyCalendarHash = "calendar_hash"
	KeyTimezone     = "timezone"
	KeyDuration     = "duration"
	KeyStatus       = "status"
	KeyError        = "error"
	KeyTool         = "tool"
	KeyRequestID    = "request_id"
)

// Status values for consistent logging. They match the status labels used
// by the instrumentation package.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Output formats accepted by NewHandler.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewHandler builds the slog handler used by the commands. format is "text"
// or "json"; anything else falls back to text.
func NewHandler(format string, level slog.Level, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, FormatJSON) {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithTool returns a logger with the tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

// WithRequestID returns a logger tagged with an HTTP request ID.
func WithRequestID(logger *slog.Logger, id string) *slog.Logger {
	if id == "" {
		return logger
	}
	return logger.With(slog.String(KeyRequestID, id))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Timezone returns a slog attribute for an IANA zone name.
func Timezone(name string) slog.Attr {
	return slog.String(KeyTimezone, name)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
// This allows safely passing Err(maybeNilErr) without adding empty attributes.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		// Return an empty Group that slog will omit from output
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeCalendar returns a hashed representation of a calendar ID.
// Calendar IDs are usually email addresses, so they are hashed to allow
// correlation of log entries without exposing PII.
func AnonymizeCalendar(id string) string {
	if id == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(id))
	return "cal:" + hex.EncodeToString(hash[:8])
}

// CalendarHash returns a slog attribute with the anonymized calendar ID.
//
// Usage:
//
//	logger.Warn("freebusy error", logging.CalendarHash(id))
func CalendarHash(id string) slog.Attr {
	return slog.String(KeyCalendarHash, AnonymizeCalendar(id))
}

// Calendars returns a slog attribute summarising a calendar list by count and
// domains, never the full addresses.
func Calendars(ids []string) slog.Attr {
	domains := make(map[string]struct{})
	var list []string
	for _, id := range ids {
		d := ExtractDomain(id)
		if d == "" {
			continue
		}
		if _, ok := domains[d]; !ok {
			domains[d] = struct{}{}
			list = append(list, d)
		}
	}
	return slog.Group(KeyCalendar,
		slog.Int("count", len(ids)),
		slog.String("domains", strings.Join(list, ",")))
}

// SanitizeToken returns a masked version of a secret for logging.
// It returns a length indicator without exposing any content.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ExtractDomain extracts the domain part from an email-style calendar ID.
// This is useful for lower-cardinality logging where the full ID would
// create too many unique values.
func ExtractDomain(id string) string {
	if id == "" {
		return ""
	}
	parts := strings.Split(id, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
