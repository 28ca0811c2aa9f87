package caldav

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// API is the gateway surface consumed by the tool layer. All routed
// operations take the account identifier (the account's base URL) first and
// fail with ErrUnknownAccount before touching the network when it is not
// registered.
type API interface {
	ListAllCalendars(ctx context.Context) []AccountCalendar
	ListEvents(ctx context.Context, accountID, calendarURL string, start, end time.Time) ([]Object, error)
	CreateEvent(ctx context.Context, accountID, calendarURL, icalText string, reminderMinutes int, reminderDescription string) (string, error)
	UpdateEvent(ctx context.Context, accountID, eventURL, icalText string, reminderMinutes int, reminderDescription string) (string, error)
	DeleteEvent(ctx context.Context, accountID, eventURL string) error
	ListTasks(ctx context.Context, accountID, calendarURL string, includeCompleted bool) ([]Object, error)
	CreateTask(ctx context.Context, accountID, calendarURL, icalText string) (string, error)
	UpdateTask(ctx context.Context, accountID, taskURL, icalText string) (string, error)
	DeleteTask(ctx context.Context, accountID, taskURL string) error
}

// Gateway holds one session per registered account, keyed by the account's
// base URL. It is built once at startup and owns its sessions for the life
// of the process.
type Gateway struct {
	sessions map[string]*Session
}

var _ API = (*Gateway)(nil)

// NewGateway builds the account registry. Registrations missing a URL,
// username, or password are skipped with a logged error; a duplicate
// identifier overwrites the earlier entry. Construction never fails; an
// empty registry just answers every routed call with ErrUnknownAccount.
func NewGateway(accounts []Account) *Gateway {
	g := &Gateway{sessions: make(map[string]*Session)}
	for _, acc := range accounts {
		if acc.URL == "" || acc.Username == "" || acc.Password == "" {
			log.Error().Str("url", acc.URL).Msg("invalid account configuration found, skipping")
			continue
		}
		if _, exists := g.sessions[acc.URL]; exists {
			log.Warn().Str("account", acc.URL).Msg("duplicate account identifier, last registration wins")
		}
		g.sessions[acc.URL] = NewSession(acc.URL, acc.Username, acc.Password)
	}
	if len(g.sessions) == 0 {
		log.Warn().Msg("no CalDAV accounts configured")
	}
	return g
}

func (g *Gateway) session(accountID string) (*Session, error) {
	s, ok := g.sessions[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAccount, accountID)
	}
	return s, nil
}

// ListAllCalendars fans out over every registered account and concatenates
// the calendars it can reach, each tagged with its account identifier. A
// failing account is logged and contributes nothing; the caller never sees
// an error for this operation.
func (g *Gateway) ListAllCalendars(ctx context.Context) []AccountCalendar {
	merged := make([]AccountCalendar, 0)
	for id, session := range g.sessions {
		cals, err := session.ListCalendars(ctx)
		if err != nil {
			log.Error().Str("account", id).Err(err).Msg("listing calendars failed for account")
			continue
		}
		for _, cal := range cals {
			merged = append(merged, AccountCalendar{CalendarInfo: cal, AccountIdentifier: id})
		}
	}
	return merged
}

// ListEvents routes a date-range event query to one account.
func (g *Gateway) ListEvents(ctx context.Context, accountID, calendarURL string, start, end time.Time) ([]Object, error) {
	s, err := g.session(accountID)
	if err != nil {
		return nil, err
	}
	return s.ListEvents(ctx, calendarURL, start, end)
}

// CreateEvent routes an event creation to one account.
func (g *Gateway) CreateEvent(ctx context.Context, accountID, calendarURL, icalText string, reminderMinutes int, reminderDescription string) (string, error) {
	s, err := g.session(accountID)
	if err != nil {
		return "", err
	}
	return s.CreateEvent(ctx, calendarURL, icalText, reminderMinutes, reminderDescription)
}

// UpdateEvent routes an event update to one account.
func (g *Gateway) UpdateEvent(ctx context.Context, accountID, eventURL, icalText string, reminderMinutes int, reminderDescription string) (string, error) {
	s, err := g.session(accountID)
	if err != nil {
		return "", err
	}
	return s.UpdateEvent(ctx, eventURL, icalText, reminderMinutes, reminderDescription)
}

// DeleteEvent routes an event deletion to one account.
func (g *Gateway) DeleteEvent(ctx context.Context, accountID, eventURL string) error {
	s, err := g.session(accountID)
	if err != nil {
		return err
	}
	return s.DeleteEvent(ctx, eventURL)
}

// ListTasks routes a task listing to one account.
func (g *Gateway) ListTasks(ctx context.Context, accountID, calendarURL string, includeCompleted bool) ([]Object, error) {
	s, err := g.session(accountID)
	if err != nil {
		return nil, err
	}
	return s.ListTasks(ctx, calendarURL, includeCompleted)
}

// CreateTask routes a task creation to one account.
func (g *Gateway) CreateTask(ctx context.Context, accountID, calendarURL, icalText string) (string, error) {
	s, err := g.session(accountID)
	if err != nil {
		return "", err
	}
	return s.CreateTask(ctx, calendarURL, icalText)
}

// UpdateTask routes a task update to one account.
func (g *Gateway) UpdateTask(ctx context.Context, accountID, taskURL, icalText string) (string, error) {
	s, err := g.session(accountID)
	if err != nil {
		return "", err
	}
	return s.UpdateTask(ctx, taskURL, icalText)
}

// DeleteTask routes a task deletion to one account.
func (g *Gateway) DeleteTask(ctx context.Context, accountID, taskURL string) error {
	s, err := g.session(accountID)
	if err != nil {
		return err
	}
	return s.DeleteTask(ctx, taskURL)
}
