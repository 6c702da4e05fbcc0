// Package export encodes event records for downstream consumers.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"calfeed/internal/model"
)

const ProductID = "-//calfeed//calfeed//EN"

var (
	// ErrUnknownFormat is returned by ByName for unsupported formats.
	ErrUnknownFormat = errors.New("export: unknown format")
	// ErrNothingToEncode is returned by calendar encoders for an empty input;
	// an iCalendar object must hold at least one component.
	ErrNothingToEncode = errors.New("export: no events to encode")
)

// Encoder writes a list of occurrences in one output format.
type Encoder interface {
	ContentType() string
	Encode(w io.Writer, events []model.Occurrence) error
}

// ByName returns the encoder for "json", "ics" or "xcal".
func ByName(name string) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONEncoder{Indent: true}, nil
	case "ics", "ical", "icalendar":
		return ICSEncoder{Now: time.Now}, nil
	case "xcal", "xml":
		return XCalEncoder{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// JSONEncoder writes the records as a JSON array.
type JSONEncoder struct {
	Indent bool
}

func (JSONEncoder) ContentType() string { return "application/json; charset=utf-8" }

func (e JSONEncoder) Encode(w io.Writer, events []model.Occurrence) error {
	if events == nil {
		events = []model.Occurrence{}
	}
	enc := json.NewEncoder(w)
	if e.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(events)
}
