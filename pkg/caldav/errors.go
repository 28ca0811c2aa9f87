package caldav

import "errors"

var (
	// ErrConnect is returned when the CalDAV server cannot be reached.
	ErrConnect = errors.New("unable to connect to CalDAV server")
	// ErrAuth is returned when the CalDAV server rejects the credentials.
	ErrAuth = errors.New("authentication failed for CalDAV server")
	// ErrUnknownAccount is returned when an account identifier is not in the registry.
	ErrUnknownAccount = errors.New("unknown account identifier")
	// ErrMalformedCalendar is returned when iCalendar data cannot be parsed.
	ErrMalformedCalendar = errors.New("malformed iCalendar data")
	// ErrNotFound is returned when the referenced resource does not exist on the server.
	ErrNotFound = errors.New("resource not found on CalDAV server")
	// ErrNoContent is returned when an update has neither new content nor
	// retrievable existing content to work from.
	ErrNoContent = errors.New("no content available for update")
)
