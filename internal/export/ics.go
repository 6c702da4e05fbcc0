package export

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"calfeed/internal/ics"
	"calfeed/internal/model"
)

// ICSEncoder re-serializes records as a normalized iCalendar document.
type ICSEncoder struct {
	// Now supplies DTSTAMP; time.Now when nil.
	Now func() time.Time
}

func (ICSEncoder) ContentType() string { return "text/calendar; charset=utf-8" }

func (e ICSEncoder) Encode(w io.Writer, events []model.Occurrence) error {
	if len(events) == 0 {
		return ErrNothingToEncode
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	stamp := now().UTC()

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, occ := range events {
		ev := ical.NewEvent()
		ev.Props.SetText(ical.PropUID, EventUID(occ))
		ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		ev.Props.SetText(ical.PropSummary, occ.Title)
		if occ.Description != "" {
			ev.Props.SetText(ical.PropDescription, occ.Description)
		}
		if occ.Location != "" {
			ev.Props.SetText(ical.PropLocation, occ.Location)
		}
		if err := setTemporal(ev, ical.PropDateTimeStart, occ.StartValue()); err != nil {
			return fmt.Errorf("event %q: %w", occ.Title, err)
		}
		if err := setTemporal(ev, ical.PropDateTimeEnd, occ.EndValue()); err != nil {
			return fmt.Errorf("event %q: %w", occ.Title, err)
		}
		cal.Children = append(cal.Children, ev.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// setTemporal writes a canonical value back in basic format, keeping floating
// date-times floating and marking dates with VALUE=DATE.
func setTemporal(ev *ical.Event, name, canonical string) error {
	if canonical == "" {
		return nil
	}
	t, err := ics.ParseCanonical(canonical)
	if err != nil {
		return err
	}
	prop := ical.NewProp(name)
	prop.Value = t.Basic()
	if t.Kind == ics.KindDate {
		prop.Params.Set(ical.ParamValue, "DATE")
	}
	ev.Props.Set(prop)
	return nil
}

// EventUID derives a stable UID from the record content, so repeated exports
// of an unchanged feed produce identical identifiers.
func EventUID(occ model.Occurrence) string {
	key := occ.SourceID + "\x00" + occ.Title + "\x00" + occ.StartValue() + "\x00" + occ.EndValue() + "\x00" + occ.Location
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String() + "@calfeed"
}
