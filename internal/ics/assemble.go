package ics

import (
	"strings"

	"github.com/samber/mo"

	appLog "calfeed/internal/log"
	"calfeed/internal/model"
)

// DefaultTitle is used for events without a SUMMARY.
const DefaultTitle = "Untitled Event"

const (
	calendarMarker = "BEGIN:VCALENDAR"
	beginEvent     = "BEGIN:VEVENT"
	endEvent       = "END:VEVENT"
	beginPrefix    = "BEGIN:"
	endPrefix      = "END:"
)

// Outcome is the result of parsing one document.
type Outcome struct {
	// LooksLikeCalendar reports whether the trimmed document starts with
	// BEGIN:VCALENDAR. It is computed independently of the events.
	LooksLikeCalendar bool
	// Events are the emitted records in document order. Never nil.
	Events []model.Event
	Stats  Stats
}

// Stats counts what the assembler absorbed while parsing.
type Stats struct {
	Emitted        int
	MissingStart   int
	Unterminated   int
	MalformedDates int
}

// LooksLikeCalendar reports whether doc, after trimming surrounding
// whitespace, begins with BEGIN:VCALENDAR.
func LooksLikeCalendar(doc string) bool {
	return strings.HasPrefix(strings.TrimSpace(doc), calendarMarker)
}

// Parse converts doc into event records. It never fails: malformed lines,
// unknown properties and unusable dates are absorbed and counted in Stats.
// Parse holds no state between calls and is safe for concurrent use.
func Parse(doc string) Outcome {
	a := &assembler{events: make([]model.Event, 0)}
	for _, line := range Unfold(doc) {
		a.feed(line)
	}
	a.close()

	return Outcome{
		LooksLikeCalendar: LooksLikeCalendar(doc),
		Events:            a.events,
		Stats:             a.stats,
	}
}

type state int

const (
	stateOutside state = iota
	stateInEvent
)

// draft accumulates one VEVENT block between its BEGIN and END markers.
type draft struct {
	title       string
	start       mo.Option[Temporal]
	end         mo.Option[Temporal]
	allDay      bool
	description string
	location    string
}

func newDraft() *draft {
	return &draft{
		title: DefaultTitle,
		start: mo.None[Temporal](),
		end:   mo.None[Temporal](),
	}
}

// record promotes the draft. It reports false when no start is present.
func (d *draft) record() (model.Event, bool) {
	start, ok := d.start.Get()
	if !ok {
		return model.Event{}, false
	}
	end := d.end.OrElse(start)

	startText, endText := start.String(), end.String()
	return model.Event{
		Title:       d.title,
		Start:       &startText,
		End:         &endText,
		AllDay:      d.allDay,
		Description: d.description,
		Location:    d.location,
	}, true
}

// assembler walks logical lines through the Outside/InEvent states. While
// InEvent, depth counts open nested components such as VALARM; their
// properties never reach the draft.
type assembler struct {
	state  state
	draft  *draft
	depth  int
	events []model.Event
	stats  Stats
}

func (a *assembler) feed(line string) {
	marker := strings.TrimSpace(line)

	switch a.state {
	case stateOutside:
		if marker == beginEvent {
			a.state = stateInEvent
			a.draft = newDraft()
		}

	case stateInEvent:
		if marker == endEvent {
			a.finish()
			return
		}
		switch {
		case strings.HasPrefix(marker, beginPrefix) && marker != beginEvent:
			a.depth++
			return
		case strings.HasPrefix(marker, endPrefix) && a.depth > 0:
			a.depth--
			return
		case a.depth > 0:
			return
		}
		tok, ok := Tokenize(line)
		if !ok {
			return
		}
		handle, ok := propertyHandlers[tok.Property]
		if !ok {
			return
		}
		if err := handle(a.draft, tok); err != nil {
			a.stats.MalformedDates++
			appLog.Debug("ics property ignored", "property", tok.Property, "reason", err.Error())
		}
	}
}

func (a *assembler) finish() {
	if ev, ok := a.draft.record(); ok {
		a.events = append(a.events, ev)
		a.stats.Emitted++
	} else {
		a.stats.MissingStart++
	}
	a.draft = nil
	a.depth = 0
	a.state = stateOutside
}

// close drops a block left open at end of input.
func (a *assembler) close() {
	if a.state == stateInEvent {
		a.stats.Unterminated++
		a.draft = nil
		a.depth = 0
		a.state = stateOutside
	}
}
