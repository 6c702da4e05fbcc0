package export

import (
	"io"

	"github.com/beevik/etree"

	"calfeed/internal/ics"
	"calfeed/internal/model"
)

const xcalNamespace = "urn:ietf:params:xml:ns:icalendar-2.0"

// XCalEncoder writes records as an RFC 6321 xCal document.
type XCalEncoder struct{}

func (XCalEncoder) ContentType() string { return "application/calendar+xml; charset=utf-8" }

func (XCalEncoder) Encode(w io.Writer, events []model.Occurrence) error {
	if len(events) == 0 {
		return ErrNothingToEncode
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("icalendar")
	root.CreateAttr("xmlns", xcalNamespace)
	vcal := root.CreateElement("vcalendar")

	props := vcal.CreateElement("properties")
	textProp(props, "version", "2.0")
	textProp(props, "prodid", ProductID)

	comps := vcal.CreateElement("components")
	for _, occ := range events {
		vevent := comps.CreateElement("vevent").CreateElement("properties")
		textProp(vevent, "uid", EventUID(occ))
		textProp(vevent, "summary", occ.Title)
		if err := temporalProp(vevent, "dtstart", occ.StartValue()); err != nil {
			return err
		}
		if err := temporalProp(vevent, "dtend", occ.EndValue()); err != nil {
			return err
		}
		if occ.Description != "" {
			textProp(vevent, "description", occ.Description)
		}
		if occ.Location != "" {
			textProp(vevent, "location", occ.Location)
		}
	}

	doc.Indent(2)
	_, err := doc.WriteTo(w)
	return err
}

func textProp(parent *etree.Element, name, value string) {
	parent.CreateElement(name).CreateElement("text").SetText(value)
}

// temporalProp writes <date> or <date-time>; xCal uses the same extended
// form as the canonical record text.
func temporalProp(parent *etree.Element, name, canonical string) error {
	if canonical == "" {
		return nil
	}
	t, err := ics.ParseCanonical(canonical)
	if err != nil {
		return err
	}
	kind := "date-time"
	if t.Kind == ics.KindDate {
		kind = "date"
	}
	parent.CreateElement(name).CreateElement(kind).SetText(t.String())
	return nil
}
