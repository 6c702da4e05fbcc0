package model

// Event is the record handed to rendering consumers for one VEVENT block.
//
// Start and End carry the canonical textual form produced by the ICS core:
// "YYYY-MM-DD" for all-day values and "YYYY-MM-DDTHH:MM:SS" (optionally
// suffixed with "Z") for date-times. End always has a value when Start does;
// the pointers are nil only if a record is built by hand without a start.
type Event struct {
	Title       string  `json:"title"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
	AllDay      bool    `json:"allDay"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
}

// StartValue returns the start text or "" when absent.
func (e Event) StartValue() string {
	if e.Start == nil {
		return ""
	}
	return *e.Start
}

// EndValue returns the end text or "" when absent.
func (e Event) EndValue() string {
	if e.End == nil {
		return ""
	}
	return *e.End
}

// Occurrence is an Event tagged with the feed it came from. The aggregation
// pipeline produces these; the ICS core itself only knows about Event.
type Occurrence struct {
	SourceID string `json:"source_id,omitempty"`
	Event
}
