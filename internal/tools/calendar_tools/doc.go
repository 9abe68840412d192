// Package calendar_tools exposes slot search over MCP (Model Context Protocol).
//
// The availability tools (calendar_find_earliest_availability,
// calendar_check_availability and calendar_query_freebusy) are always
// registered. calendar_list_calendars needs a Google client, and
// calendar_book_slot is only offered when the server runs with writes
// enabled and an event creator is configured.
package calendar_tools
