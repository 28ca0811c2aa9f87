package caldav

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/emersion/go-ical"
	"github.com/rs/zerolog/log"
)

// defaultReminderDescription is used when a reminder is requested without
// an explicit description.
const defaultReminderDescription = "Reminder"

// ParseCalendar parses raw iCalendar text into a document tree.
// Line endings are normalized first so LF-only input from tool callers
// parses the same as wire-format CRLF.
func ParseCalendar(text string) (*ical.Calendar, error) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\n", "\r\n")

	cal, err := ical.NewDecoder(strings.NewReader(normalized)).Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCalendar, err)
	}
	if cal.Name != ical.CompCalendar {
		return nil, fmt.Errorf("%w: missing VCALENDAR wrapper", ErrMalformedCalendar)
	}
	return cal, nil
}

// EncodeCalendar serializes a document back to iCalendar text. The encoder
// only fails on components it considers structurally invalid, which a parsed
// document should never be; if it does, the partial output is returned and
// the condition logged.
func EncodeCalendar(cal *ical.Calendar) string {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		log.Warn().Err(err).Msg("failed to encode iCalendar document")
	}
	return buf.String()
}

// firstComponent returns the first immediate child with the given name, or nil.
func firstComponent(comp *ical.Component, name string) *ical.Component {
	for _, child := range comp.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// componentsByName returns all immediate children with the given name.
func componentsByName(comp *ical.Component, name string) []*ical.Component {
	l := make([]*ical.Component, 0, len(comp.Children))
	for _, child := range comp.Children {
		if child.Name == name {
			l = append(l, child)
		}
	}
	return l
}

// applyReminder replaces the alarm set of the first VEVENT in the document.
// All existing VALARM children are removed; if minutesBefore is positive a
// single DISPLAY alarm firing that many minutes before the event start is
// appended. A document without a VEVENT is left untouched so that a
// legitimate write is never blocked just because no reminder could be
// attached.
func applyReminder(cal *ical.Calendar, minutesBefore int, description string) {
	event := firstComponent(cal.Component, ical.CompEvent)
	if event == nil {
		log.Warn().Msg("no VEVENT component found, skipping reminder transform")
		return
	}

	kept := event.Children[:0]
	for _, child := range event.Children {
		if child.Name != ical.CompAlarm {
			kept = append(kept, child)
		}
	}
	event.Children = kept

	if minutesBefore <= 0 {
		return
	}

	if description == "" {
		description = defaultReminderDescription
	}

	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, description)
	// SetDuration would normalize to seconds (-PT900S); keep the
	// minute form clients conventionally write.
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.SetValueType(ical.ValueDuration)
	trigger.Value = fmt.Sprintf("-PT%dM", minutesBefore)
	alarm.Props.Set(trigger)

	event.Children = append(event.Children, alarm)
}

// SetReminder rewrites raw event text with its alarm set replaced, see
// applyReminder. It fails only when the document itself is malformed.
func SetReminder(icalText string, minutesBefore int, description string) (string, error) {
	cal, err := ParseCalendar(icalText)
	if err != nil {
		return "", err
	}
	applyReminder(cal, minutesBefore, description)
	return EncodeCalendar(cal), nil
}

// IsTaskCompleted reports whether the first VTODO in the document carries
// STATUS:COMPLETED. A missing STATUS property, or a document without a
// VTODO at all, counts as not completed.
func IsTaskCompleted(icalText string) (bool, error) {
	cal, err := ParseCalendar(icalText)
	if err != nil {
		return false, err
	}
	todo := firstComponent(cal.Component, ical.CompToDo)
	if todo == nil {
		return false, nil
	}
	status := todo.Props.Get(ical.PropStatus)
	if status == nil {
		return false, nil
	}
	return strings.EqualFold(status.Value, "COMPLETED"), nil
}
