package ics

import "strings"

// ParameterMap holds the parameters of one content line, keyed as written.
// Repeated names keep the last value.
type ParameterMap map[string]string

// ContentToken is one tokenized PROPERTY[;PARAMS]:VALUE line.
type ContentToken struct {
	Property string
	Params   ParameterMap
	RawValue string
}

// Tokenize splits a logical line into property name, parameters and raw
// value. It reports false for lines that have no ':' after the first byte;
// those lines carry no property and are skipped by callers.
func Tokenize(line string) (ContentToken, bool) {
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return ContentToken{}, false
	}

	head, raw := line[:colon], line[colon+1:]
	name, paramList, hasParams := strings.Cut(head, ";")

	params := make(ParameterMap)
	if hasParams {
		for _, pair := range strings.Split(paramList, ";") {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			params[key] = value
		}
	}

	return ContentToken{Property: name, Params: params, RawValue: raw}, true
}
