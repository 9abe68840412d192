package calendar_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/slotfinder/internal/availability"
	"github.com/teemow/slotfinder/internal/instrumentation"
	"github.com/teemow/slotfinder/internal/scheduler"
	"github.com/teemow/slotfinder/internal/server"
	"github.com/teemow/slotfinder/internal/tools/common"
)

// RegisterBookingTools registers the slot booking tool with the MCP server
func RegisterBookingTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	bookTool := mcp.NewTool("calendar_book_slot",
		mcp.WithDescription("Book a slot found by calendar_find_earliest_availability as a calendar event"),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("calendarId",
			mcp.Required(),
			mcp.Description("Calendar to create the event in"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Slot start (RFC3339 format, e.g., '2026-03-10T09:00:00-06:00')"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Description("Event length in minutes (default: the service duration)"),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone for the event (default: the service timezone)"),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated list of attendee email addresses"),
		),
		mcp.WithBoolean("addMeet",
			mcp.Description("Attach a Google Meet link (default: false)"),
		),
		mcp.WithBoolean("skipCheck",
			mcp.Description("Book without re-checking that the slot is still free (default: false)"),
		),
	)

	s.AddTool(bookTool, common.InstrumentedToolHandler(
		"calendar_book_slot", instrumentation.OperationBook, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleBookSlot(ctx, request, sc)
		}))

	return nil
}

func handleBookSlot(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if !sc.CanBook() {
		return mcp.NewToolResultError(scheduler.ErrBookingDisabled.Error()), nil
	}

	args := request.GetArguments()

	start, err := scheduler.ParseTime("start", common.GetStringArg(args, "start"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	minutes, err := common.GetIntArg(args, "durationMinutes")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var attendees []string
	for _, a := range strings.Split(common.GetStringArg(args, "attendees"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			attendees = append(attendees, a)
		}
	}

	req := scheduler.BookingRequest{
		CalendarID:  common.GetStringArg(args, "calendarId"),
		Start:       start,
		Duration:    scheduler.Minutes(minutes),
		Timezone:    common.GetStringArg(args, "timezone"),
		Summary:     common.GetStringArg(args, "summary"),
		Description: common.GetStringArg(args, "description"),
		Attendees:   attendees,
		AddMeet:     common.GetBoolArg(args, "addMeet"),
		SkipCheck:   common.GetBoolArg(args, "skipCheck"),
		Source:      instrumentation.SourceMCP,
	}

	event, err := sc.Service().BookSlot(ctx, req)
	switch {
	case errors.Is(err, scheduler.ErrSlotTaken):
		return mcp.NewToolResultError("The requested slot is no longer available. Search again for open slots."), nil
	case err != nil:
		return toolError("book slot", err), nil
	}

	tz := req.Timezone
	if tz == "" {
		tz = sc.Service().Settings().Timezone
	}
	loc, err := availability.ResolveLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	var b strings.Builder
	b.WriteString("Slot booked successfully!\n\n")
	fmt.Fprintf(&b, "Event ID: %s\n", event.ID)
	fmt.Fprintf(&b, "Summary: %s\n", event.Summary)
	fmt.Fprintf(&b, "Time: %s\n", formatRange(event.Start, event.End, loc))
	if len(event.Attendees) > 0 {
		fmt.Fprintf(&b, "Attendees: %s\n", strings.Join(event.Attendees, ", "))
	}
	if event.MeetLink != "" {
		fmt.Fprintf(&b, "Google Meet: %s\n", event.MeetLink)
	}
	if event.HTMLLink != "" {
		fmt.Fprintf(&b, "Link: %s\n", event.HTMLLink)
	}

	return mcp.NewToolResultText(b.String()), nil
}
