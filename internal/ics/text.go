package ics

import "strings"

// textEscapes maps the character following a backslash to its resolved form.
var textEscapes = map[byte]byte{
	'n':  '\n',
	',':  ',',
	';':  ';',
	'\\': '\\',
}

// DecodeText resolves backslash escapes in a TEXT value in a single
// left-to-right scan. Unknown escapes and a trailing lone backslash are kept
// literally.
func DecodeText(raw string) string {
	if strings.IndexByte(raw, '\\') < 0 {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '\\' && i+1 < len(raw) {
			if resolved, ok := textEscapes[raw[i+1]]; ok {
				b.WriteByte(resolved)
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
