package calendar_tools

import (
	"fmt"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/slotfinder/internal/scheduler"
	"github.com/teemow/slotfinder/internal/server"
)

// displayLayout renders instants in tool output next to their RFC 3339 form.
const displayLayout = scheduler.HumanLayout

// RegisterCalendarTools registers all Calendar-related tools with the MCP server
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	// Register availability tools
	if err := RegisterAvailabilityTools(s, sc); err != nil {
		return fmt.Errorf("failed to register availability tools: %w", err)
	}

	// Listing needs the Google client; a static busy file has no calendar list.
	if sc.CalendarClient() != nil {
		if err := RegisterCalendarListTools(s, sc); err != nil {
			return fmt.Errorf("failed to register calendar list tools: %w", err)
		}
	}

	// Booking writes to calendars and is only offered outside read-only mode.
	if !readOnly && sc.Service().CanBook() {
		if err := RegisterBookingTools(s, sc); err != nil {
			return fmt.Errorf("failed to register booking tools: %w", err)
		}
	}

	return nil
}

func formatRange(start, end time.Time, loc *time.Location) string {
	return fmt.Sprintf("%s to %s", start.In(loc).Format(displayLayout), end.In(loc).Format(displayLayout))
}
