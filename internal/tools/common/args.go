package common

import (
	"fmt"
	"strings"
)

// GetCalendarsFromArgs reads the "calendars" argument. Clients send either a
// JSON array of IDs or a comma-separated string; both are accepted.
func GetCalendarsFromArgs(args map[string]interface{}) []string {
	var ids []string
	switch v := args["calendars"].(type) {
	case string:
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	case []interface{}:
		for _, item := range v {
			if id, ok := item.(string); ok && strings.TrimSpace(id) != "" {
				ids = append(ids, strings.TrimSpace(id))
			}
		}
	case []string:
		for _, id := range v {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// GetStringArg returns a string argument, or "" when absent or mistyped.
func GetStringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

// GetIntArg returns a whole-number argument. JSON numbers arrive as float64.
// Absent arguments yield 0; fractional or mistyped ones are an error.
func GetIntArg(args map[string]interface{}, key string) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be a whole number, got %v", key, v)
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

// GetBoolArg returns a boolean argument, false when absent.
func GetBoolArg(args map[string]interface{}, key string) bool {
	b, _ := args[key].(bool)
	return b
}
