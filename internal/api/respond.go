package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/teemow/slotfinder/internal/logging"
)

// Response messages. Unexpected failures never echo error details.
const (
	msgInvalidAPIKey      = "Unauthorized: Invalid API Key"
	msgNoCalendars        = "Please provide a non-empty array of calendar IDs."
	msgNoSlots            = "No available slots found"
	msgSearchFailed       = "Failed to find earliest availability."
	msgCheckFailed        = "Failed to check calendar availability."
	msgBookFailed         = "Failed to book the slot."
	msgSlotTaken          = "The requested slot is no longer available."
	msgBookingDisabled    = "Booking is not enabled on this server."
	msgInvalidRequestBody = "Request body must be a JSON object."
	msgRateLimited        = "Too many requests, please retry later."
)

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", logging.Err(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
