package caldav

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-webdav/caldav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewGatewaySkipsInvalidAccounts(t *testing.T) {
	g := NewGateway([]Account{
		{URL: "https://cal.example.com", Username: "user", Password: "pass"},
		{URL: "", Username: "user", Password: "pass"},
		{URL: "https://other.example.com", Username: "", Password: "pass"},
		{URL: "https://third.example.com", Username: "user", Password: ""},
	})

	assert.Len(t, g.sessions, 1)
	assert.Contains(t, g.sessions, "https://cal.example.com")
}

func TestNewGatewayDuplicateLastWins(t *testing.T) {
	g := NewGateway([]Account{
		{URL: "https://cal.example.com", Username: "first", Password: "pass"},
		{URL: "https://cal.example.com", Username: "second", Password: "pass"},
	})

	require.Len(t, g.sessions, 1)
	assert.Equal(t, "second", g.sessions["https://cal.example.com"].username)
}

func TestNewGatewayEmpty(t *testing.T) {
	g := NewGateway(nil)
	assert.Empty(t, g.sessions)

	_, err := g.ListEvents(context.Background(), "https://cal.example.com", "/cal/", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestGatewayUnknownAccount(t *testing.T) {
	g := NewGateway([]Account{
		{URL: "https://cal.example.com", Username: "user", Password: "pass"},
	})

	_, err := g.ListTasks(context.Background(), "https://wrong.example.com", "/cal/", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAccount)
	assert.Contains(t, err.Error(), "https://wrong.example.com")
}

func TestGatewayRoutesToSession(t *testing.T) {
	m := new(mockDAV)
	m.On("RemoveAll", mock.Anything, "/calendars/user/personal/event-123.ics").Return(nil)

	g := &Gateway{sessions: map[string]*Session{
		"https://cal.example.com": connectedSession(m),
	}}

	err := g.DeleteEvent(context.Background(), "https://cal.example.com", "/calendars/user/personal/event-123.ics")
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestGatewayListAllCalendarsMerges(t *testing.T) {
	m1 := new(mockDAV)
	m1.On("FindCalendars", mock.Anything, mock.Anything).Return([]caldav.Calendar{
		{Path: "/calendars/a/personal/", Name: "Personal"},
	}, nil)
	m2 := new(mockDAV)
	m2.On("FindCalendars", mock.Anything, mock.Anything).Return([]caldav.Calendar{
		{Path: "/calendars/b/work/", Name: "Work"},
	}, nil)

	g := &Gateway{sessions: map[string]*Session{
		"https://a.example.com": connectedSession(m1),
		"https://b.example.com": connectedSession(m2),
	}}

	merged := g.ListAllCalendars(context.Background())
	require.Len(t, merged, 2)

	byAccount := make(map[string]AccountCalendar)
	for _, cal := range merged {
		byAccount[cal.AccountIdentifier] = cal
	}
	assert.Equal(t, "Personal", byAccount["https://a.example.com"].Name)
	assert.Equal(t, "Work", byAccount["https://b.example.com"].Name)
}

func TestGatewayListAllCalendarsPartialFailure(t *testing.T) {
	healthy := new(mockDAV)
	healthy.On("FindCalendars", mock.Anything, mock.Anything).Return([]caldav.Calendar{
		{Path: "/calendars/a/personal/", Name: "Personal"},
	}, nil)

	broken := NewSession("https://b.example.com", "user", "pass")
	broken.dial = func(ctx context.Context) (davClient, error) {
		return nil, errors.New("connection refused")
	}

	g := &Gateway{sessions: map[string]*Session{
		"https://a.example.com": connectedSession(healthy),
		"https://b.example.com": broken,
	}}

	merged := g.ListAllCalendars(context.Background())
	require.Len(t, merged, 1)
	assert.Equal(t, "https://a.example.com", merged[0].AccountIdentifier)
}
