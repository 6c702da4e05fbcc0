package ics

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEngine is returned by EngineByName for unsupported names.
var ErrUnknownEngine = errors.New("ics: unknown engine")

// Engine turns a calendar document into event records.
type Engine interface {
	Parse(doc string) Outcome
}

// NativeEngine runs the built-in lenient parser.
type NativeEngine struct{}

func (NativeEngine) Parse(doc string) Outcome {
	return Parse(doc)
}

const (
	EngineNative  = "native"
	EngineLibrary = "golang-ical"
)

// EngineByName resolves a configured engine name. An empty name selects the
// native engine.
func EngineByName(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineNative:
		return NativeEngine{}, nil
	case EngineLibrary:
		return LibraryEngine{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}
