package scheduler

import (
	"errors"
	"fmt"

	"github.com/teemow/slotfinder/internal/availability"
)

var (
	// ErrBadRequest marks request errors that are the caller's fault.
	ErrBadRequest = errors.New("bad request")

	// ErrSlotTaken is returned by BookSlot when the slot is no longer free.
	ErrSlotTaken = errors.New("slot is not available")

	// ErrBookingDisabled is returned when no event creator is configured.
	ErrBookingDisabled = errors.New("booking is not enabled")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// IsClientError reports whether err was caused by invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrBadRequest) || errors.Is(err, availability.ErrValidation)
}
