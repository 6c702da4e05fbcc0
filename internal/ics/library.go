package ics

import (
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "calfeed/internal/log"
	"calfeed/internal/model"
)

// LibraryEngine parses documents with github.com/arran4/golang-ical and maps
// each VEVENT through the same date interpretation and defaulting rules as
// the native parser, so both engines produce the same record shape.
//
// The library is stricter than the native parser: a document it rejects
// yields no events rather than an error.
type LibraryEngine struct{}

func (LibraryEngine) Parse(doc string) Outcome {
	out := Outcome{
		LooksLikeCalendar: LooksLikeCalendar(doc),
		Events:            make([]model.Event, 0),
	}

	cal, err := ical.ParseCalendar(strings.NewReader(doc))
	if err != nil {
		appLog.Error("golang-ical parse failed", err)
		return out
	}

	for _, ve := range cal.Events() {
		d := newDraft()
		for prop, handle := range libraryProperties {
			p := ve.GetProperty(prop)
			if p == nil {
				continue
			}
			tok := ContentToken{
				Property: string(prop),
				Params:   flattenParams(p.ICalParameters),
				RawValue: p.Value,
			}
			if err := handle(d, tok); err != nil {
				out.Stats.MalformedDates++
				appLog.Debug("golang-ical property ignored", "property", tok.Property, "reason", err.Error())
			}
		}

		ev, ok := d.record()
		if !ok {
			out.Stats.MissingStart++
			continue
		}
		out.Events = append(out.Events, ev)
		out.Stats.Emitted++
	}
	return out
}

// libraryProperties binds the library's property identifiers to handlers.
// golang-ical has already unescaped text values, so text properties are
// assigned as-is; dates go through the native handlers.
var libraryProperties = map[ical.ComponentProperty]propertyHandler{
	ical.ComponentPropertySummary:     decodedText(func(d *draft, v string) { d.title = v }),
	ical.ComponentPropertyDescription: decodedText(func(d *draft, v string) { d.description = v }),
	ical.ComponentPropertyLocation:    decodedText(func(d *draft, v string) { d.location = v }),
	ical.ComponentPropertyDtStart:     propertyHandlers[PropDtStart],
	ical.ComponentPropertyDtEnd:       propertyHandlers[PropDtEnd],
}

func decodedText(set func(d *draft, v string)) propertyHandler {
	return func(d *draft, tok ContentToken) error {
		set(d, tok.RawValue)
		return nil
	}
}

// flattenParams keeps the last value of each multi-valued parameter.
func flattenParams(in map[string][]string) ParameterMap {
	out := make(ParameterMap, len(in))
	for k, vs := range in {
		if len(vs) == 0 {
			continue
		}
		out[k] = vs[len(vs)-1]
	}
	return out
}
