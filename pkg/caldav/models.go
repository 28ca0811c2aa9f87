package caldav

// Account is one CalDAV account registration. The URL doubles as the
// account identifier used for routing.
type Account struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// CalendarInfo describes one calendar collection on a server.
type CalendarInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AccountCalendar is a calendar tagged with the account it was found on,
// used when calendars from multiple accounts are merged into one listing.
type AccountCalendar struct {
	CalendarInfo
	AccountIdentifier string `json:"account_identifier"`
}

// Object is one calendar resource (event or task): its URL and the raw
// iCalendar document text. The gateway passes the payload through untouched
// except where a reminder or completion transform is explicitly requested.
type Object struct {
	URL  string `json:"url"`
	Data string `json:"data"`
}
