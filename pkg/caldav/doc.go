// Package caldav is a multi-account CalDAV gateway: it manages lazily
// connected sessions to any number of CalDAV accounts, discovers their
// calendars, and performs date-ranged event search plus VEVENT/VTODO
// create/update/delete against each of them. Event writes can attach or
// clear a DISPLAY reminder alarm on the way in, and task listings can
// filter out completed items.
//
// One broken account never aborts work against the others: the merged
// calendar listing simply drops what it cannot reach, and routed
// operations report structured errors per account.
package caldav
