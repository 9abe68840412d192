package calendar_tools

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/slotfinder/internal/calendar"
	"github.com/teemow/slotfinder/internal/instrumentation"
	"github.com/teemow/slotfinder/internal/server"
	"github.com/teemow/slotfinder/internal/tools/common"
)

// RegisterCalendarListTools registers calendar_list_calendars. It needs a
// Google client; with a static busy file there is nothing to list.
func RegisterCalendarListTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	tool := mcp.NewTool("calendar_list_calendars",
		mcp.WithDescription("List the calendars the service credentials can see, to find IDs for availability searches and bookings"),
		mcp.WithBoolean("bookableOnly",
			mcp.Description("Only list calendars the credentials may create events in (owner or writer access)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, common.InstrumentedToolHandler(
		"calendar_list_calendars", instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListCalendars(ctx, request, sc)
		}))

	return nil
}

func handleListCalendars(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client := sc.CalendarClient()
	if client == nil {
		return mcp.NewToolResultError("Google Calendar is not configured"), nil
	}
	calendars, err := client.ListCalendars(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list calendars: %v", err)), nil
	}
	bookableOnly := common.GetBoolArg(request.GetArguments(), "bookableOnly")
	return mcp.NewToolResultText(formatCalendarList(calendars, bookableOnly)), nil
}

func bookable(c calendar.CalendarInfo) bool {
	return c.AccessRole == "owner" || c.AccessRole == "writer"
}

// formatCalendarList renders the primary calendar first, then the rest by
// summary.
func formatCalendarList(calendars []calendar.CalendarInfo, bookableOnly bool) string {
	shown := make([]calendar.CalendarInfo, 0, len(calendars))
	for _, c := range calendars {
		if !bookableOnly || bookable(c) {
			shown = append(shown, c)
		}
	}
	slices.SortStableFunc(shown, func(a, b calendar.CalendarInfo) int {
		if a.Primary != b.Primary {
			if a.Primary {
				return -1
			}
			return 1
		}
		return strings.Compare(strings.ToLower(a.Summary), strings.ToLower(b.Summary))
	})

	if len(shown) == 0 {
		return "No calendars found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d calendar(s):\n", len(shown))
	for i, c := range shown {
		title := c.Summary
		if c.Primary {
			title += " (primary)"
		}
		fmt.Fprintf(&b, "\n%d. %s\n   ID: %s\n   Access: %s\n", i+1, title, c.ID, c.AccessRole)
		if c.TimeZone != "" {
			fmt.Fprintf(&b, "   Time zone: %s\n", c.TimeZone)
		}
		if c.AccessRole == "freeBusyReader" {
			b.WriteString("   Free/busy only: usable for searches, not for booking\n")
		}
	}
	return b.String()
}
