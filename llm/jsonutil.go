package llm

import "strings"

// Models rarely return bare JSON: they fence it in markdown, lead with
// prose, sprinkle // comments, and leave trailing commas. ExtractJSON
// and ExtractJSONArray dig the payload out anyway; whatever survives
// still has to pass the caller's json.Unmarshal.

// ExtractJSON returns the first balanced JSON object in a chat reply,
// with comments and trailing commas removed. Empty string when the
// reply holds no object at all.
func ExtractJSON(reply string) string {
	return extract(reply, '{', '}')
}

// ExtractJSONArray is ExtractJSON for a top-level array.
func ExtractJSONArray(reply string) string {
	return extract(reply, '[', ']')
}

func extract(reply string, open, close byte) string {
	src := reply
	if fenced := fencedPayload(reply); fenced != "" {
		src = fenced
	}
	src = stripComments(src)
	body := balancedSpan(src, open, close)
	if body == "" {
		return ""
	}
	return dropTrailingCommas(body)
}

// fencedPayload returns the contents of the first ``` fence, or "".
// The info string ("json", "jsonc") is discarded.
func fencedPayload(s string) string {
	start := strings.Index(s, "```")
	if start == -1 {
		return ""
	}
	rest := s[start+3:]
	nl := strings.IndexByte(rest, '\n')
	if nl == -1 {
		return ""
	}
	rest = rest[nl+1:]
	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// balancedSpan returns the first balanced open..close span, tracking
// string literals so braces inside values don't count. An unterminated
// span is returned as-is for the JSON parser to reject.
func balancedSpan(s string, open, close byte) string {
	depth, start := 0, -1
	inStr, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inStr && c == '\\':
			escaped = true
		case c == '"':
			inStr = !inStr
		case inStr:
		case c == open:
			if depth == 0 {
				start = i
			}
			depth++
		case c == close && depth > 0:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	if start >= 0 {
		return s[start:]
	}
	return ""
}

// stripComments removes // comments outside string literals. The text
// after a comment marker is dropped through end of line.
func stripComments(s string) string {
	if !strings.Contains(s, "//") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	inStr, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inStr && c == '\\':
			escaped = true
		case c == '"':
			inStr = !inStr
		case !inStr && c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// dropTrailingCommas removes commas whose next non-whitespace byte
// closes an object or array, again respecting string literals.
func dropTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inStr, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inStr && c == '\\':
			escaped = true
		case c == '"':
			inStr = !inStr
		case !inStr && c == ',':
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
