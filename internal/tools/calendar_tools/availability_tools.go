package calendar_tools

import (
	"context"
	"fmt"
	"sort"
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

const calendarsDescription = "Comma-separated list of calendar IDs or email addresses"

// RegisterAvailabilityTools registers search, check and free/busy tools with the MCP server
func RegisterAvailabilityTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	defaults := sc.Service().Settings()

	findTool := mcp.NewTool("calendar_find_earliest_availability",
		mcp.WithDescription("Find the earliest open slots on each calendar inside a daily booking window"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("calendars",
			mcp.Required(),
			mcp.Description(calendarsDescription),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Description(fmt.Sprintf("Slot length in minutes (default: %d)", int(defaults.Duration/time.Minute))),
		),
		mcp.WithNumber("intervalMinutes",
			mcp.Description(fmt.Sprintf("Step between candidate start times in minutes (default: %d)", int(defaults.Interval/time.Minute))),
		),
		mcp.WithString("timezone",
			mcp.Description(fmt.Sprintf("IANA timezone of the booking window (default: %s)", defaults.Timezone)),
		),
		mcp.WithString("windowStart",
			mcp.Description(fmt.Sprintf("Daily window open, HH:MM (default: %s)", defaults.WindowStart)),
		),
		mcp.WithString("windowEnd",
			mcp.Description(fmt.Sprintf("Daily window close, HH:MM, 24:00 allowed (default: %s)", defaults.WindowEnd)),
		),
		mcp.WithNumber("slotsPerCalendar",
			mcp.Description(fmt.Sprintf("Maximum slots per calendar (default: %d)", defaults.SlotsPerCalendar)),
		),
		mcp.WithString("timeMin",
			mcp.Description("Search range start (RFC3339, default: now)"),
		),
		mcp.WithString("timeMax",
			mcp.Description(fmt.Sprintf("Search range end (RFC3339, default: %d days after timeMin)", defaults.SearchDays)),
		),
	)

	s.AddTool(findTool, common.InstrumentedToolHandler(
		"calendar_find_earliest_availability", instrumentation.OperationSearch, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindEarliestAvailability(ctx, request, sc)
		}))

	checkTool := mcp.NewTool("calendar_check_availability",
		mcp.WithDescription("Check whether every calendar is free for the whole of a time range"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("calendars",
			mcp.Required(),
			mcp.Description(calendarsDescription),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Range start (RFC3339 format, e.g., '2026-03-10T09:00:00-06:00')"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("Range end (RFC3339 format)"),
		),
	)

	s.AddTool(checkTool, common.InstrumentedToolHandler(
		"calendar_check_availability", instrumentation.OperationCheck, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckAvailability(ctx, request, sc)
		}))

	queryFreeBusyTool := mcp.NewTool("calendar_query_freebusy",
		mcp.WithDescription("List the busy periods of one or more calendars in a time range"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("calendars",
			mcp.Required(),
			mcp.Description(calendarsDescription),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start time for the range (RFC3339 format, e.g., '2026-03-10T00:00:00Z')"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End time for the range (RFC3339 format, e.g., '2026-03-17T00:00:00Z')"),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone used to display times (default: the service timezone)"),
		),
	)

	s.AddTool(queryFreeBusyTool, common.InstrumentedToolHandler(
		"calendar_query_freebusy", instrumentation.OperationFreeBusy, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleQueryFreeBusy(ctx, request, sc)
		}))

	return nil
}

// toolError turns a service error into a tool error result.
func toolError(action string, err error) *mcp.CallToolResult {
	if scheduler.IsClientError(err) {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", action, err))
}

func handleFindEarliestAvailability(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	calendars := common.GetCalendarsFromArgs(args)
	if len(calendars) == 0 {
		return mcp.NewToolResultError("calendars is required"), nil
	}

	req := scheduler.Request{
		Calendars:   calendars,
		Timezone:    common.GetStringArg(args, "timezone"),
		WindowStart: common.GetStringArg(args, "windowStart"),
		WindowEnd:   common.GetStringArg(args, "windowEnd"),
		Source:      instrumentation.SourceMCP,
	}

	for key, dst := range map[string]*time.Duration{"durationMinutes": &req.Duration, "intervalMinutes": &req.Interval} {
		n, err := common.GetIntArg(args, key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		*dst = scheduler.Minutes(n)
	}

	slots, err := common.GetIntArg(args, "slotsPerCalendar")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req.SlotsPerCalendar = slots

	if req.TimeMin, err = scheduler.ParseOptionalTime("timeMin", common.GetStringArg(args, "timeMin")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.TimeMax, err = scheduler.ParseOptionalTime("timeMax", common.GetStringArg(args, "timeMax")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := sc.Service().FindAvailability(ctx, req)
	if err != nil {
		return toolError("find availability", err), nil
	}

	var b strings.Builder
	if result.Empty() {
		fmt.Fprintf(&b, "No available slots found between %s and %s (%s)\n", result.TimeMin, result.TimeMax, result.Timezone)
	} else {
		fmt.Fprintf(&b, "Found %d available slot(s) in %s:\n\n", len(result.Slots), result.Timezone)
		for i, slot := range result.Slots {
			fmt.Fprintf(&b, "%d. %s\n", i+1, slot.CalendarID)
			fmt.Fprintf(&b, "   %s to %s\n", slot.StartTime, slot.EndTime)
			fmt.Fprintf(&b, "   start: %s\n", slot.Start)
		}
	}
	writeCalendarErrors(&b, result.CalendarErrors)

	return mcp.NewToolResultText(b.String()), nil
}

func handleCheckAvailability(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	calendars := common.GetCalendarsFromArgs(args)
	if len(calendars) == 0 {
		return mcp.NewToolResultError("calendars is required"), nil
	}
	start, err := scheduler.ParseTime("start", common.GetStringArg(args, "start"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := scheduler.ParseTime("end", common.GetStringArg(args, "end"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	free, err := sc.Service().CheckAvailability(ctx, calendars, start, end)
	if err != nil {
		return toolError("check availability", err), nil
	}

	loc, _ := availability.ResolveLocation(sc.Service().Settings().Timezone)
	if free {
		return mcp.NewToolResultText(fmt.Sprintf("Available: all %d calendar(s) are free from %s",
			len(calendars), formatRange(start, end, loc))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Not available: at least one calendar is busy between %s",
		formatRange(start, end, loc))), nil
}

func handleQueryFreeBusy(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	calendars := common.GetCalendarsFromArgs(args)
	if len(calendars) == 0 {
		return mcp.NewToolResultError("calendars is required"), nil
	}
	timeMin, err := scheduler.ParseTime("timeMin", common.GetStringArg(args, "timeMin"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	timeMax, err := scheduler.ParseTime("timeMax", common.GetStringArg(args, "timeMax"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tz := common.GetStringArg(args, "timezone")
	if tz == "" {
		tz = sc.Service().Settings().Timezone
	}
	loc, err := availability.ResolveLocation(tz)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	busy, err := sc.Service().QueryBusy(ctx, calendars, timeMin, timeMax)
	if err != nil {
		return toolError("query free/busy", err), nil
	}

	ids := make([]string, 0, len(busy))
	for id := range busy {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "Free/Busy information for %d calendar(s):\n\n", len(ids))
	for _, id := range ids {
		info := busy[id]
		fmt.Fprintf(&b, "Calendar: %s\n", id)

		if len(info.Errors) > 0 {
			fmt.Fprintf(&b, "  Errors: %s\n", strings.Join(info.Errors, ", "))
		}

		var valid []availability.BusyInterval
		for _, interval := range info.Intervals {
			if interval.Valid() {
				valid = append(valid, interval)
			}
		}

		if len(valid) == 0 && len(info.Errors) == 0 {
			b.WriteString("  Status: FREE for entire range\n")
		} else if len(valid) > 0 {
			fmt.Fprintf(&b, "  Busy periods: %d\n", len(valid))
			for i, interval := range valid {
				fmt.Fprintf(&b, "  %d. %s\n", i+1, formatRange(*interval.Start, *interval.End, loc))
			}
		}
		b.WriteString("\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}

func writeCalendarErrors(b *strings.Builder, calendarErrors map[string][]string) {
	if len(calendarErrors) == 0 {
		return
	}
	ids := make([]string, 0, len(calendarErrors))
	for id := range calendarErrors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b.WriteString("\nExcluded calendars:\n")
	for _, id := range ids {
		fmt.Fprintf(b, "  - %s: %s\n", id, strings.Join(calendarErrors[id], ", "))
	}
}
