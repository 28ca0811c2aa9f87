package caldav

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/rs/zerolog/log"
)

// Default search window applied when a date-range query is issued without
// explicit bounds, evaluated against the wall clock at call time.
const (
	defaultSearchBack    = 30 * 24 * time.Hour
	defaultSearchForward = 365 * 24 * time.Hour
)

// davClient is the slice of the CalDAV protocol this package uses.
// *caldav.Client satisfies it; tests substitute a mock.
type davClient interface {
	FindCurrentUserPrincipal(ctx context.Context) (string, error)
	FindCalendarHomeSet(ctx context.Context, principal string) (string, error)
	FindCalendars(ctx context.Context, calendarHomeSet string) ([]caldav.Calendar, error)
	QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error)
	GetCalendarObject(ctx context.Context, path string) (*caldav.CalendarObject, error)
	PutCalendarObject(ctx context.Context, path string, cal *ical.Calendar) (*caldav.CalendarObject, error)
	RemoveAll(ctx context.Context, name string) error
}

// Session owns one account's server URL and credentials and a connection
// that is established lazily on first use. Once connected it stays
// connected for the life of the process; a failed attempt leaves the
// session unconnected so the next operation retries.
type Session struct {
	baseURL  string
	username string
	password string

	mu        sync.Mutex
	dav       davClient
	principal string
	homeSet   string

	dial func(ctx context.Context) (davClient, error)
}

// NewSession creates an unconnected session for one account.
func NewSession(baseURL, username, password string) *Session {
	s := &Session{
		baseURL:  baseURL,
		username: username,
		password: password,
	}
	s.dial = s.dialCalDAV
	return s
}

func (s *Session) dialCalDAV(ctx context.Context) (davClient, error) {
	var httpClient webdav.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	httpClient = webdav.HTTPClientWithBasicAuth(httpClient, s.username, s.password)
	return caldav.NewClient(httpClient, s.baseURL)
}

// connect dials the server and resolves the account principal and calendar
// home set. The mutex covers the whole dial-and-publish step so concurrent
// first users end up with exactly one connected state. Already-connected
// sessions return immediately.
func (s *Session) connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal != "" {
		return nil
	}

	log.Info().Str("url", s.baseURL).Str("user", s.username).Msg("connecting to CalDAV server")

	dav, err := s.dial(ctx)
	if err != nil {
		return classifyConnectErr(err)
	}
	principal, err := dav.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return classifyConnectErr(err)
	}
	homeSet, err := dav.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return classifyConnectErr(err)
	}

	s.dav = dav
	s.principal = principal
	s.homeSet = homeSet
	return nil
}

// ensureConnected is the shared pre-operation guard: every public operation
// goes through it, which makes a session created before its first use
// self-healing.
func (s *Session) ensureConnected(ctx context.Context) (davClient, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dav, nil
}

// classifyConnectErr folds a dial or principal-discovery failure into the
// closed error-kind set. go-webdav surfaces HTTP failures as opaque errors
// whose text starts with the status line, so the 401/403 check sniffs that.
func classifyConnectErr(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "401 ") || strings.Contains(msg, "403 ") ||
		strings.Contains(msg, "Unauthorized") || strings.Contains(msg, "Forbidden") {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return fmt.Errorf("%w: %w", ErrConnect, err)
}

// classifyRequestErr tags per-resource failures after a connection is up.
func classifyRequestErr(err error) error {
	if strings.Contains(err.Error(), "404 ") || strings.Contains(err.Error(), "Not Found") {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

// resourcePath reduces a resource URL to the server-relative path the CalDAV
// client expects. Bare paths pass through unchanged.
func resourcePath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return rawURL
	}
	return u.Path
}

// ListCalendars asks the account principal for its calendar collections.
func (s *Session) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	dav, err := s.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	homeSet := s.homeSet
	s.mu.Unlock()

	cals, err := dav.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", classifyRequestErr(err))
	}

	result := make([]CalendarInfo, 0, len(cals))
	for _, cal := range cals {
		result = append(result, CalendarInfo{Name: cal.Name, URL: cal.Path})
	}
	log.Debug().Str("url", s.baseURL).Int("count", len(result)).Msg("calendars listed")
	return result, nil
}

// ListEvents performs a server-side date-range query for VEVENTs. Zero
// bounds default to now-30d and now+365d in UTC.
func (s *Session) ListEvents(ctx context.Context, calendarURL string, start, end time.Time) ([]Object, error) {
	dav, err := s.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if start.IsZero() {
		start = now.Add(-defaultSearchBack)
	}
	if end.IsZero() {
		end = now.Add(defaultSearchForward)
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start,
				End:   end,
			}},
		},
	}

	objects, err := dav.QueryCalendar(ctx, resourcePath(calendarURL), query)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", classifyRequestErr(err))
	}

	events := make([]Object, 0, len(objects))
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		events = append(events, Object{URL: obj.Path, Data: EncodeCalendar(obj.Data)})
	}
	return events, nil
}

// CreateEvent applies the reminder transform to the submitted document and
// stores it as a new resource under the calendar collection. Malformed
// input is rejected before any network I/O.
func (s *Session) CreateEvent(ctx context.Context, calendarURL, icalText string, reminderMinutes int, reminderDescription string) (string, error) {
	cal, err := ParseCalendar(icalText)
	if err != nil {
		return "", err
	}
	applyReminder(cal, reminderMinutes, reminderDescription)

	dav, err := s.ensureConnected(ctx)
	if err != nil {
		return "", err
	}

	path := objectPath(resourcePath(calendarURL), documentUID(cal))
	return putObject(ctx, dav, path, cal)
}

// UpdateEvent replaces an event's content. When no new content is supplied
// the stored document is fetched and used as the transform base; the
// reminder transform always runs so that clearing a reminder works without
// resubmitting the event body.
func (s *Session) UpdateEvent(ctx context.Context, eventURL, icalText string, reminderMinutes int, reminderDescription string) (string, error) {
	var cal *ical.Calendar
	var err error
	if icalText != "" {
		if cal, err = ParseCalendar(icalText); err != nil {
			return "", err
		}
	}

	dav, err := s.ensureConnected(ctx)
	if err != nil {
		return "", err
	}

	path := resourcePath(eventURL)
	if cal == nil {
		obj, err := dav.GetCalendarObject(ctx, path)
		if err != nil || obj == nil || obj.Data == nil {
			return "", fmt.Errorf("%w: %s", ErrNoContent, eventURL)
		}
		cal = obj.Data
	}

	applyReminder(cal, reminderMinutes, reminderDescription)
	return putObject(ctx, dav, path, cal)
}

// DeleteEvent removes the resource. The server decides what deleting an
// already-deleted resource means; no special-casing here.
func (s *Session) DeleteEvent(ctx context.Context, eventURL string) error {
	dav, err := s.ensureConnected(ctx)
	if err != nil {
		return err
	}
	if err := dav.RemoveAll(ctx, resourcePath(eventURL)); err != nil {
		return fmt.Errorf("delete event: %w", classifyRequestErr(err))
	}
	return nil
}

// ListTasks fetches the calendar's VTODO resources. Unless completed tasks
// are requested, each item runs through the completion filter; items whose
// completion status cannot be determined are skipped rather than failing
// the whole listing.
func (s *Session) ListTasks(ctx context.Context, calendarURL string, includeCompleted bool) ([]Object, error) {
	dav, err := s.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{{Name: ical.CompToDo}},
		},
	}

	objects, err := dav.QueryCalendar(ctx, resourcePath(calendarURL), query)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", classifyRequestErr(err))
	}

	tasks := make([]Object, 0, len(objects))
	for _, obj := range objects {
		var data string
		if obj.Data != nil {
			data = EncodeCalendar(obj.Data)
		}
		if !includeCompleted {
			completed, err := IsTaskCompleted(data)
			if err != nil {
				log.Warn().Str("url", obj.Path).Err(err).Msg("could not parse task data, skipping")
				continue
			}
			if completed {
				continue
			}
		}
		tasks = append(tasks, Object{URL: obj.Path, Data: data})
	}
	return tasks, nil
}

// CreateTask stores a new VTODO resource. Task writes never run the
// reminder transform.
func (s *Session) CreateTask(ctx context.Context, calendarURL, icalText string) (string, error) {
	cal, err := ParseCalendar(icalText)
	if err != nil {
		return "", err
	}

	dav, err := s.ensureConnected(ctx)
	if err != nil {
		return "", err
	}

	path := objectPath(resourcePath(calendarURL), documentUID(cal))
	return putObject(ctx, dav, path, cal)
}

// UpdateTask replaces a task's content, fetching the stored document when
// none is supplied.
func (s *Session) UpdateTask(ctx context.Context, taskURL, icalText string) (string, error) {
	var cal *ical.Calendar
	var err error
	if icalText != "" {
		if cal, err = ParseCalendar(icalText); err != nil {
			return "", err
		}
	}

	dav, err := s.ensureConnected(ctx)
	if err != nil {
		return "", err
	}

	path := resourcePath(taskURL)
	if cal == nil {
		obj, err := dav.GetCalendarObject(ctx, path)
		if err != nil || obj == nil || obj.Data == nil {
			return "", fmt.Errorf("%w: %s", ErrNoContent, taskURL)
		}
		cal = obj.Data
	}

	return putObject(ctx, dav, path, cal)
}

// DeleteTask removes the resource.
func (s *Session) DeleteTask(ctx context.Context, taskURL string) error {
	dav, err := s.ensureConnected(ctx)
	if err != nil {
		return err
	}
	if err := dav.RemoveAll(ctx, resourcePath(taskURL)); err != nil {
		return fmt.Errorf("delete task: %w", classifyRequestErr(err))
	}
	return nil
}

func putObject(ctx context.Context, dav davClient, path string, cal *ical.Calendar) (string, error) {
	obj, err := dav.PutCalendarObject(ctx, path, cal)
	if err != nil {
		return "", fmt.Errorf("store calendar object: %w", classifyRequestErr(err))
	}
	if obj != nil && obj.Path != "" {
		return obj.Path, nil
	}
	return path, nil
}

// documentUID returns the UID of the document's first VEVENT or VTODO,
// generating one when the document carries none.
func documentUID(cal *ical.Calendar) string {
	for _, name := range []string{ical.CompEvent, ical.CompToDo} {
		if comp := firstComponent(cal.Component, name); comp != nil {
			if prop := comp.Props.Get(ical.PropUID); prop != nil && prop.Value != "" {
				return prop.Value
			}
		}
	}
	return fmt.Sprintf("%d@caldav-mcp", time.Now().UnixNano())
}

func objectPath(calendarPath, uid string) string {
	if !strings.HasSuffix(calendarPath, "/") {
		calendarPath += "/"
	}
	return calendarPath + uid + ".ics"
}
