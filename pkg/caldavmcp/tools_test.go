package caldavmcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/caldev/caldav-mcp/pkg/caldav"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/mcptest"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAPI is a mock implementation of caldav.API
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) ListAllCalendars(ctx context.Context) []caldav.AccountCalendar {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]caldav.AccountCalendar)
}

func (m *MockAPI) ListEvents(ctx context.Context, accountID, calendarURL string, start, end time.Time) ([]caldav.Object, error) {
	args := m.Called(ctx, accountID, calendarURL, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]caldav.Object), args.Error(1)
}

func (m *MockAPI) CreateEvent(ctx context.Context, accountID, calendarURL, icalText string, reminderMinutes int, reminderDescription string) (string, error) {
	args := m.Called(ctx, accountID, calendarURL, icalText, reminderMinutes, reminderDescription)
	return args.String(0), args.Error(1)
}

func (m *MockAPI) UpdateEvent(ctx context.Context, accountID, eventURL, icalText string, reminderMinutes int, reminderDescription string) (string, error) {
	args := m.Called(ctx, accountID, eventURL, icalText, reminderMinutes, reminderDescription)
	return args.String(0), args.Error(1)
}

func (m *MockAPI) DeleteEvent(ctx context.Context, accountID, eventURL string) error {
	args := m.Called(ctx, accountID, eventURL)
	return args.Error(0)
}

func (m *MockAPI) ListTasks(ctx context.Context, accountID, calendarURL string, includeCompleted bool) ([]caldav.Object, error) {
	args := m.Called(ctx, accountID, calendarURL, includeCompleted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]caldav.Object), args.Error(1)
}

func (m *MockAPI) CreateTask(ctx context.Context, accountID, calendarURL, icalText string) (string, error) {
	args := m.Called(ctx, accountID, calendarURL, icalText)
	return args.String(0), args.Error(1)
}

func (m *MockAPI) UpdateTask(ctx context.Context, accountID, taskURL, icalText string) (string, error) {
	args := m.Called(ctx, accountID, taskURL, icalText)
	return args.String(0), args.Error(1)
}

func (m *MockAPI) DeleteTask(ctx context.Context, accountID, taskURL string) error {
	args := m.Called(ctx, accountID, taskURL)
	return args.Error(0)
}

func callTool(t *testing.T, tool mcp.Tool, handler server.ToolHandlerFunc, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	srv, err := mcptest.NewServer(t, server.ServerTool{Tool: tool, Handler: handler})
	require.NoError(t, err)
	defer srv.Close()

	res, err := srv.Client().CallTool(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      tool.Name,
			Arguments: args,
		},
	})
	require.NoError(t, err)
	return res
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	textContent, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return textContent.Text
}

func TestListCalendarsTool(t *testing.T) {
	mockAPI := new(MockAPI)
	mockAPI.On("ListAllCalendars", mock.Anything).Return([]caldav.AccountCalendar{
		{
			CalendarInfo:      caldav.CalendarInfo{Name: "Personal", URL: "/calendars/user/personal/"},
			AccountIdentifier: "https://cal.example.com",
		},
	})

	res := callTool(t, ListCalendarsTool(), ListCalendarsHandler(mockAPI), nil)
	assert.False(t, res.IsError)

	var entries []caldav.AccountCalendar
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Personal", entries[0].Name)
	assert.Equal(t, "https://cal.example.com", entries[0].AccountIdentifier)
}

func TestListCalendarsToolEmpty(t *testing.T) {
	mockAPI := new(MockAPI)
	mockAPI.On("ListAllCalendars", mock.Anything).Return(nil)

	res := callTool(t, ListCalendarsTool(), ListCalendarsHandler(mockAPI), nil)
	assert.False(t, res.IsError)
	assert.Equal(t, "[]", textOf(t, res))
}

func TestListEventsToolDateParsing(t *testing.T) {
	wantStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	mockAPI := new(MockAPI)
	mockAPI.On("ListEvents", mock.Anything, "https://cal.example.com", "/cal/", wantStart, wantEnd).
		Return([]caldav.Object{{URL: "/cal/e1.ics", Data: "BEGIN:VCALENDAR..."}}, nil)

	res := callTool(t, ListEventsTool(), ListEventsHandler(mockAPI), map[string]interface{}{
		"account_identifier": "https://cal.example.com",
		"calendar_url":       "/cal/",
		"start_date":         "2025-01-01",
		"end_date":           "2025-02-01",
	})
	assert.False(t, res.IsError)

	var events []caldav.Object
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "/cal/e1.ics", events[0].URL)
	mockAPI.AssertExpectations(t)
}

func TestListEventsToolDefaultDates(t *testing.T) {
	mockAPI := new(MockAPI)
	mockAPI.On("ListEvents", mock.Anything, "https://cal.example.com", "/cal/", time.Time{}, time.Time{}).
		Return([]caldav.Object{}, nil)

	res := callTool(t, ListEventsTool(), ListEventsHandler(mockAPI), map[string]interface{}{
		"account_identifier": "https://cal.example.com",
		"calendar_url":       "/cal/",
	})
	assert.False(t, res.IsError)
	assert.Equal(t, "[]", textOf(t, res))
	mockAPI.AssertExpectations(t)
}

func TestListEventsToolInvalidDate(t *testing.T) {
	mockAPI := new(MockAPI)

	res := callTool(t, ListEventsTool(), ListEventsHandler(mockAPI), map[string]interface{}{
		"account_identifier": "https://cal.example.com",
		"calendar_url":       "/cal/",
		"start_date":         "January 1st",
	})
	assert.True(t, res.IsError)
	mockAPI.AssertNotCalled(t, "ListEvents")
}

func TestListEventsToolUnknownAccount(t *testing.T) {
	mockAPI := new(MockAPI)
	mockAPI.On("ListEvents", mock.Anything, "https://wrong.example.com", "/cal/", time.Time{}, time.Time{}).
		Return(nil, caldav.ErrUnknownAccount)

	res := callTool(t, ListEventsTool(), ListEventsHandler(mockAPI), map[string]interface{}{
		"account_identifier": "https://wrong.example.com",
		"calendar_url":       "/cal/",
	})
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "unknown account identifier")
}

func TestCreateEventToolReminderPassthrough(t *testing.T) {
	mockAPI := new(MockAPI)
	mockAPI.On("CreateEvent", mock.Anything, "https://cal.example.com", "/cal/", "BEGIN:VCALENDAR...", 15, "Standup").
		Return("/cal/new.ics", nil)

	res := callTool(t, CreateEventTool(), CreateEventHandler(mockAPI), map[string]interface{}{
		"account_identifier":      "https://cal.example.com",
		"calendar_url":            "/cal/",
		"ical_content":            "BEGIN:VCALENDAR...",
		"reminder_minutes_before": 15,
		"reminder_description":    "Standup",
	})
	assert.False(t, res.IsError)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &result))
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "/cal/new.ics", result["event_url"])
	mockAPI.AssertExpectations(t)
}

func TestCreateEventToolMissingContent(t *testing.T) {
	mockAPI := new(MockAPI)

	res := callTool(t, CreateEventTool(), CreateEventHandler(mockAPI), map[string]interface{}{
		"account_identifier": "https://cal.example.com",
		"calendar_url":       "/cal/",
	})
	assert.True(t, res.IsError)
	mockAPI.AssertNotCalled(t, "CreateEvent")
}

func TestUpdateEventToolOmittedContent(t *testing.T) {
	mockAPI := new(MockAPI)
	mockAPI.On("UpdateEvent", mock.Anything, "https://cal.example.com", "/cal/e1.ics", "", 0, "").
		Return("/cal/e1.ics", nil)

	res := callTool(t, UpdateEventTool(), UpdateEventHandler(mockAPI), map[string]interface{}{
		"account_identifier": "https://cal.example.com",
		"event_url":          "/cal/e1.ics",
	})
	assert.False(t, res.IsError)
	mockAPI.AssertExpectations(t)
}

func TestDeleteEventTool(t *testing.T) {
	mockAPI := new(MockAPI)
	mockAPI.On("DeleteEvent", mock.Anything, "https://cal.example.com", "/cal/e1.ics").Return(nil)

	res := callTool(t, DeleteEventTool(), DeleteEventHandler(mockAPI), map[string]interface{}{
		"account_identifier": "https://cal.example.com",
		"event_url":          "/cal/e1.ics",
	})
	assert.False(t, res.IsError)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &result))
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "/cal/e1.ics", result["event_url"])
}

func TestListTasksToolDefaultExcludesCompleted(t *testing.T) {
	mockAPI := new(MockAPI)
	mockAPI.On("ListTasks", mock.Anything, "https://cal.example.com", "/tasks/", false).
		Return([]caldav.Object{{URL: "/tasks/t1.ics", Data: "BEGIN:VCALENDAR..."}}, nil)

	res := callTool(t, ListTasksTool(), ListTasksHandler(mockAPI), map[string]interface{}{
		"account_identifier": "https://cal.example.com",
		"calendar_url":       "/tasks/",
	})
	assert.False(t, res.IsError)
	mockAPI.AssertExpectations(t)
}

func TestListTasksToolIncludeCompleted(t *testing.T) {
	mockAPI := new(MockAPI)
	mockAPI.On("ListTasks", mock.Anything, "https://cal.example.com", "/tasks/", true).
		Return([]caldav.Object{}, nil)

	res := callTool(t, ListTasksTool(), ListTasksHandler(mockAPI), map[string]interface{}{
		"account_identifier": "https://cal.example.com",
		"calendar_url":       "/tasks/",
		"include_completed":  true,
	})
	assert.False(t, res.IsError)
	assert.Equal(t, "[]", textOf(t, res))
	mockAPI.AssertExpectations(t)
}

func TestCreateTaskTool(t *testing.T) {
	mockAPI := new(MockAPI)
	mockAPI.On("CreateTask", mock.Anything, "https://cal.example.com", "/tasks/", "BEGIN:VCALENDAR...").
		Return("/tasks/new.ics", nil)

	res := callTool(t, CreateTaskTool(), CreateTaskHandler(mockAPI), map[string]interface{}{
		"account_identifier": "https://cal.example.com",
		"calendar_url":       "/tasks/",
		"ical_content":       "BEGIN:VCALENDAR...",
	})
	assert.False(t, res.IsError)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &result))
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "/tasks/new.ics", result["task_url"])
}

func TestDeleteTaskTool(t *testing.T) {
	mockAPI := new(MockAPI)
	mockAPI.On("DeleteTask", mock.Anything, "https://cal.example.com", "/tasks/t1.ics").Return(nil)

	res := callTool(t, DeleteTaskTool(), DeleteTaskHandler(mockAPI), map[string]interface{}{
		"account_identifier": "https://cal.example.com",
		"task_url":           "/tasks/t1.ics",
	})
	assert.False(t, res.IsError)
}
