package instrumentation

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics explosion.
//
// Always use these helpers when recording metrics or audit entries with
// calendar IDs or credentials.

// ExtractCalendarDomain extracts the domain part from an email-style calendar ID.
//
// Example:
//
//	ExtractCalendarDomain("room-1@example.com")  // "example.com"
//	ExtractCalendarDomain("primary")             // "unknown"
//	ExtractCalendarDomain("")                    // "unknown"
func ExtractCalendarDomain(id string) string {
	if id == "" {
		return "unknown"
	}

	parts := strings.Split(id, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// CalendarDomains returns the distinct domains of ids in first-seen order.
func CalendarDomains(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var domains []string
	for _, id := range ids {
		d := ExtractCalendarDomain(id)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}
	return domains
}

// APIKeyFingerprint identifies a caller by a short hash of its API key, so
// audit entries can be correlated without storing the key.
func APIKeyFingerprint(key string) string {
	if key == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(key))
	return "key:" + hex.EncodeToString(sum[:4])
}

// Operation types used as metric labels and span names.
// Status and Service constants are defined in config.go.
const (
	OperationFreeBusy = "freebusy"
	OperationInsert   = "insert"
	OperationList     = "list"
	OperationSearch   = "search"
	OperationCheck    = "check"
	OperationBook     = "book"
)
