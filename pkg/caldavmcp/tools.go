package caldavmcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/caldev/caldav-mcp/pkg/caldav"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// AddTools registers every CalDAV tool to the MCP server.
func AddTools(s *server.MCPServer, api caldav.API) {
	s.AddTool(ListCalendarsTool(), ListCalendarsHandler(api))
	s.AddTool(ListEventsTool(), ListEventsHandler(api))
	s.AddTool(CreateEventTool(), CreateEventHandler(api))
	s.AddTool(UpdateEventTool(), UpdateEventHandler(api))
	s.AddTool(DeleteEventTool(), DeleteEventHandler(api))
	s.AddTool(ListTasksTool(), ListTasksHandler(api))
	s.AddTool(CreateTaskTool(), CreateTaskHandler(api))
	s.AddTool(UpdateTaskTool(), UpdateTaskHandler(api))
	s.AddTool(DeleteTaskTool(), DeleteTaskHandler(api))
}

// Registry maps tool names to their registration functions, for
// config-driven gating in the server main.
func Registry() map[string]func(*server.MCPServer, caldav.API) {
	return map[string]func(*server.MCPServer, caldav.API){
		"caldav_list_calendars": func(s *server.MCPServer, api caldav.API) {
			s.AddTool(ListCalendarsTool(), ListCalendarsHandler(api))
		},
		"caldav_list_events": func(s *server.MCPServer, api caldav.API) {
			s.AddTool(ListEventsTool(), ListEventsHandler(api))
		},
		"caldav_create_event": func(s *server.MCPServer, api caldav.API) {
			s.AddTool(CreateEventTool(), CreateEventHandler(api))
		},
		"caldav_update_event": func(s *server.MCPServer, api caldav.API) {
			s.AddTool(UpdateEventTool(), UpdateEventHandler(api))
		},
		"caldav_delete_event": func(s *server.MCPServer, api caldav.API) {
			s.AddTool(DeleteEventTool(), DeleteEventHandler(api))
		},
		"caldav_list_tasks": func(s *server.MCPServer, api caldav.API) {
			s.AddTool(ListTasksTool(), ListTasksHandler(api))
		},
		"caldav_create_task": func(s *server.MCPServer, api caldav.API) {
			s.AddTool(CreateTaskTool(), CreateTaskHandler(api))
		},
		"caldav_update_task": func(s *server.MCPServer, api caldav.API) {
			s.AddTool(UpdateTaskTool(), UpdateTaskHandler(api))
		},
		"caldav_delete_task": func(s *server.MCPServer, api caldav.API) {
			s.AddTool(DeleteTaskTool(), DeleteTaskHandler(api))
		},
	}
}

// Helper to get arguments map
func getArgs(req mcp.CallToolRequest) map[string]interface{} {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return make(map[string]interface{})
	}
	return args
}

// parseDateArg interprets a date-only tool argument as UTC midnight. An
// empty string yields the zero time, which the gateway replaces with its
// defaults.
func parseDateArg(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", value)
}

type eventResult struct {
	Status   string `json:"status"`
	EventURL string `json:"event_url"`
}

type taskResult struct {
	Status  string `json:"status"`
	TaskURL string `json:"task_url"`
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result to JSON: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func ListCalendarsTool() mcp.Tool {
	return mcp.NewTool("caldav_list_calendars",
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDescription("List all calendars across every configured CalDAV account. Each entry carries the account_identifier needed by the other tools."),
	)
}

func ListCalendarsHandler(api caldav.API) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		calendars := api.ListAllCalendars(ctx)
		if len(calendars) == 0 {
			return mcp.NewToolResultText("[]"), nil
		}
		return jsonResult(calendars)
	}
}

func ListEventsTool() mcp.Tool {
	return mcp.NewTool("caldav_list_events",
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDescription("List events from one calendar within an optional date range."),
		mcp.WithString("account_identifier", mcp.Required(), mcp.Description("The base URL identifying the CalDAV account, as returned by caldav_list_calendars.")),
		mcp.WithString("calendar_url", mcp.Required(), mcp.Description("The URL of the calendar to query.")),
		mcp.WithString("start_date", mcp.Description("Start date in YYYY-MM-DD format (UTC). Defaults to 30 days ago.")),
		mcp.WithString("end_date", mcp.Description("End date in YYYY-MM-DD format (UTC). Defaults to 1 year from now.")),
	)
}

func ListEventsHandler(api caldav.API) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := getArgs(request)
		accountID, _ := args["account_identifier"].(string)
		calendarURL, _ := args["calendar_url"].(string)
		startStr, _ := args["start_date"].(string)
		endStr, _ := args["end_date"].(string)

		start, err := parseDateArg(startStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid start_date: %v", err)), nil
		}
		end, err := parseDateArg(endStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid end_date: %v", err)), nil
		}

		events, err := api.ListEvents(ctx, accountID, calendarURL, start, end)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list events: %v", err)), nil
		}
		if len(events) == 0 {
			return mcp.NewToolResultText("[]"), nil
		}
		return jsonResult(events)
	}
}

func CreateEventTool() mcp.Tool {
	return mcp.NewTool("caldav_create_event",
		mcp.WithDescription("Create a new event from a full iCalendar (VCALENDAR/VEVENT) document, optionally attaching a display reminder."),
		mcp.WithString("account_identifier", mcp.Required(), mcp.Description("The base URL identifying the CalDAV account.")),
		mcp.WithString("calendar_url", mcp.Required(), mcp.Description("The URL of the calendar to create the event in.")),
		mcp.WithString("ical_content", mcp.Required(), mcp.Description("The full iCalendar text of the event.")),
		mcp.WithNumber("reminder_minutes_before", mcp.Description("Minutes before the event start to trigger a display reminder. Omit or pass 0 for no reminder.")),
		mcp.WithString("reminder_description", mcp.Description("Text shown by the reminder. Defaults to 'Reminder'.")),
	)
}

func CreateEventHandler(api caldav.API) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := getArgs(request)
		accountID, _ := args["account_identifier"].(string)
		calendarURL, _ := args["calendar_url"].(string)
		icalText, ok := args["ical_content"].(string)
		if !ok || icalText == "" {
			return mcp.NewToolResultError("ical_content is required"), nil
		}
		minutes := 0
		if val, ok := args["reminder_minutes_before"].(float64); ok {
			minutes = int(val)
		}
		description, _ := args["reminder_description"].(string)

		url, err := api.CreateEvent(ctx, accountID, calendarURL, icalText, minutes, description)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create event: %v", err)), nil
		}
		return jsonResult(eventResult{Status: "success", EventURL: url})
	}
}

func UpdateEventTool() mcp.Tool {
	return mcp.NewTool("caldav_update_event",
		mcp.WithDescription("Update an existing event. When ical_content is omitted the stored event is used as the base, which allows changing or clearing just the reminder."),
		mcp.WithString("account_identifier", mcp.Required(), mcp.Description("The base URL identifying the CalDAV account.")),
		mcp.WithString("event_url", mcp.Required(), mcp.Description("The URL of the event to update.")),
		mcp.WithString("ical_content", mcp.Description("The new full iCalendar text. Omit to keep the stored content.")),
		mcp.WithNumber("reminder_minutes_before", mcp.Description("Minutes before the event start to trigger a display reminder. Omit or pass 0 to remove reminders.")),
		mcp.WithString("reminder_description", mcp.Description("Text shown by the reminder. Defaults to 'Reminder'.")),
	)
}

func UpdateEventHandler(api caldav.API) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := getArgs(request)
		accountID, _ := args["account_identifier"].(string)
		eventURL, _ := args["event_url"].(string)
		icalText, _ := args["ical_content"].(string)
		minutes := 0
		if val, ok := args["reminder_minutes_before"].(float64); ok {
			minutes = int(val)
		}
		description, _ := args["reminder_description"].(string)

		url, err := api.UpdateEvent(ctx, accountID, eventURL, icalText, minutes, description)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to update event: %v", err)), nil
		}
		return jsonResult(eventResult{Status: "success", EventURL: url})
	}
}

func DeleteEventTool() mcp.Tool {
	return mcp.NewTool("caldav_delete_event",
		mcp.WithDescription("Delete an event by its URL."),
		mcp.WithString("account_identifier", mcp.Required(), mcp.Description("The base URL identifying the CalDAV account.")),
		mcp.WithString("event_url", mcp.Required(), mcp.Description("The URL of the event to delete.")),
	)
}

func DeleteEventHandler(api caldav.API) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := getArgs(request)
		accountID, _ := args["account_identifier"].(string)
		eventURL, _ := args["event_url"].(string)

		if err := api.DeleteEvent(ctx, accountID, eventURL); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to delete event: %v", err)), nil
		}
		return jsonResult(eventResult{Status: "success", EventURL: eventURL})
	}
}

func ListTasksTool() mcp.Tool {
	return mcp.NewTool("caldav_list_tasks",
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDescription("List tasks (VTODOs) from one calendar. Completed tasks are filtered out unless include_completed is true."),
		mcp.WithString("account_identifier", mcp.Required(), mcp.Description("The base URL identifying the CalDAV account.")),
		mcp.WithString("calendar_url", mcp.Required(), mcp.Description("The URL of the calendar to query.")),
		mcp.WithBoolean("include_completed", mcp.Description("Include tasks whose STATUS is COMPLETED. Defaults to false.")),
	)
}

func ListTasksHandler(api caldav.API) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := getArgs(request)
		accountID, _ := args["account_identifier"].(string)
		calendarURL, _ := args["calendar_url"].(string)
		includeCompleted, _ := args["include_completed"].(bool)

		tasks, err := api.ListTasks(ctx, accountID, calendarURL, includeCompleted)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
		}
		if len(tasks) == 0 {
			return mcp.NewToolResultText("[]"), nil
		}
		return jsonResult(tasks)
	}
}

func CreateTaskTool() mcp.Tool {
	return mcp.NewTool("caldav_create_task",
		mcp.WithDescription("Create a new task from a full iCalendar (VCALENDAR/VTODO) document."),
		mcp.WithString("account_identifier", mcp.Required(), mcp.Description("The base URL identifying the CalDAV account.")),
		mcp.WithString("calendar_url", mcp.Required(), mcp.Description("The URL of the calendar to create the task in.")),
		mcp.WithString("ical_content", mcp.Required(), mcp.Description("The full iCalendar text of the task.")),
	)
}

func CreateTaskHandler(api caldav.API) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := getArgs(request)
		accountID, _ := args["account_identifier"].(string)
		calendarURL, _ := args["calendar_url"].(string)
		icalText, ok := args["ical_content"].(string)
		if !ok || icalText == "" {
			return mcp.NewToolResultError("ical_content is required"), nil
		}

		url, err := api.CreateTask(ctx, accountID, calendarURL, icalText)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create task: %v", err)), nil
		}
		return jsonResult(taskResult{Status: "success", TaskURL: url})
	}
}

func UpdateTaskTool() mcp.Tool {
	return mcp.NewTool("caldav_update_task",
		mcp.WithDescription("Update an existing task. When ical_content is omitted the stored task is used as the base."),
		mcp.WithString("account_identifier", mcp.Required(), mcp.Description("The base URL identifying the CalDAV account.")),
		mcp.WithString("task_url", mcp.Required(), mcp.Description("The URL of the task to update.")),
		mcp.WithString("ical_content", mcp.Description("The new full iCalendar text. Omit to keep the stored content.")),
	)
}

func UpdateTaskHandler(api caldav.API) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := getArgs(request)
		accountID, _ := args["account_identifier"].(string)
		taskURL, _ := args["task_url"].(string)
		icalText, _ := args["ical_content"].(string)

		url, err := api.UpdateTask(ctx, accountID, taskURL, icalText)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to update task: %v", err)), nil
		}
		return jsonResult(taskResult{Status: "success", TaskURL: url})
	}
}

func DeleteTaskTool() mcp.Tool {
	return mcp.NewTool("caldav_delete_task",
		mcp.WithDescription("Delete a task by its URL."),
		mcp.WithString("account_identifier", mcp.Required(), mcp.Description("The base URL identifying the CalDAV account.")),
		mcp.WithString("task_url", mcp.Required(), mcp.Description("The URL of the task to delete.")),
	)
}

func DeleteTaskHandler(api caldav.API) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := getArgs(request)
		accountID, _ := args["account_identifier"].(string)
		taskURL, _ := args["task_url"].(string)

		if err := api.DeleteTask(ctx, accountID, taskURL); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to delete task: %v", err)), nil
		}
		return jsonResult(taskResult{Status: "success", TaskURL: taskURL})
	}
}
