package ics

import "github.com/samber/mo"

// Property names the assembler understands. Names are matched as written.
const (
	PropSummary     = "SUMMARY"
	PropDescription = "DESCRIPTION"
	PropLocation    = "LOCATION"
	PropDtStart     = "DTSTART"
	PropDtEnd       = "DTEND"
)

// propertyHandler applies one content token to the event being assembled.
type propertyHandler func(d *draft, tok ContentToken) error

// propertyHandlers is the closed set of recognized properties. Anything not
// listed here is ignored by the assembler.
var propertyHandlers = map[string]propertyHandler{
	PropSummary: func(d *draft, tok ContentToken) error {
		d.title = DecodeText(tok.RawValue)
		return nil
	},
	PropDescription: func(d *draft, tok ContentToken) error {
		d.description = DecodeText(tok.RawValue)
		return nil
	},
	PropLocation: func(d *draft, tok ContentToken) error {
		d.location = DecodeText(tok.RawValue)
		return nil
	},
	PropDtStart: func(d *draft, tok ContentToken) error {
		v, allDay, err := Interpret(tok.RawValue, tok.Params)
		if err != nil {
			return err
		}
		d.start = mo.Some(v)
		if allDay {
			d.allDay = true
		}
		return nil
	},
	PropDtEnd: func(d *draft, tok ContentToken) error {
		v, _, err := Interpret(tok.RawValue, tok.Params)
		if err != nil {
			return err
		}
		d.end = mo.Some(v)
		return nil
	},
}
