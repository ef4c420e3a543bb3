package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// ---- strategy 1: recursive descent over key=value with typed literals ----

type argScanner struct {
	s   string
	pos int
}

// parseStructured parses `key=value, ...` strictly: quoted strings,
// numbers, booleans, arrays of the same. Any malformed token aborts the
// strategy.
func parseStructured(body string) map[string]any {
	sc := &argScanner{s: body}
	args := make(map[string]any)
	for {
		sc.skipSpace()
		key := sc.ident()
		if key == "" {
			return nil
		}
		sc.skipSpace()
		if !sc.consume('=') {
			return nil
		}
		sc.skipSpace()
		value, ok := sc.value()
		if !ok {
			return nil
		}
		args[key] = value
		sc.skipSpace()
		if sc.done() {
			return args
		}
		if !sc.consume(',') {
			return nil
		}
	}
}

func (sc *argScanner) done() bool { return sc.pos >= len(sc.s) }

func (sc *argScanner) skipSpace() {
	for !sc.done() && (sc.s[sc.pos] == ' ' || sc.s[sc.pos] == '\t' || sc.s[sc.pos] == '\n' || sc.s[sc.pos] == '\r') {
		sc.pos++
	}
}

func (sc *argScanner) consume(c byte) bool {
	if sc.done() || sc.s[sc.pos] != c {
		return false
	}
	sc.pos++
	return true
}

func (sc *argScanner) ident() string {
	start := sc.pos
	for !sc.done() {
		c := sc.s[sc.pos]
		if c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || sc.pos > start && '0' <= c && c <= '9' {
			sc.pos++
			continue
		}
		break
	}
	return sc.s[start:sc.pos]
}

func (sc *argScanner) value() (any, bool) {
	if sc.done() {
		return nil, false
	}
	switch c := sc.s[sc.pos]; {
	case c == '"' || c == '\'':
		return sc.quoted(c)
	case c == '[':
		return sc.array()
	case c == '-' || '0' <= c && c <= '9':
		return sc.number()
	default:
		word := sc.ident()
		switch word {
		case "true":
			return true, true
		case "false":
			return false, true
		case "":
			return nil, false
		}
		return word, true
	}
}

func (sc *argScanner) quoted(quote byte) (any, bool) {
	sc.pos++
	var b strings.Builder
	for !sc.done() {
		c := sc.s[sc.pos]
		if c == '\\' && sc.pos+1 < len(sc.s) {
			next := sc.s[sc.pos+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '"', '\'':
				b.WriteByte(next)
			default:
				b.WriteByte(c)
				b.WriteByte(next)
			}
			sc.pos += 2
			continue
		}
		if c == quote {
			sc.pos++
			return b.String(), true
		}
		b.WriteByte(c)
		sc.pos++
	}
	return nil, false
}

func (sc *argScanner) array() (any, bool) {
	sc.pos++
	var items []any
	sc.skipSpace()
	if sc.consume(']') {
		return items, true
	}
	for {
		sc.skipSpace()
		item, ok := sc.value()
		if !ok {
			return nil, false
		}
		items = append(items, item)
		sc.skipSpace()
		if sc.consume(']') {
			return items, true
		}
		if !sc.consume(',') {
			return nil, false
		}
	}
}

func (sc *argScanner) number() (any, bool) {
	start := sc.pos
	sc.consume('-')
	digits := false
	dot := false
	for !sc.done() {
		c := sc.s[sc.pos]
		if '0' <= c && c <= '9' {
			digits = true
			sc.pos++
			continue
		}
		if c == '.' && !dot {
			dot = true
			sc.pos++
			continue
		}
		break
	}
	if !digits {
		return nil, false
	}
	text := sc.s[start:sc.pos]
	if dot {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil, false
	}
	return n, true
}

// ---- strategy 2: regex capture ----

var kvRe = regexp.MustCompile(
	`([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(\[[^\]]*\]|"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|true|false|-?\d+(?:\.\d+)?|[^,\s][^,]*)`)

var arrayItemRe = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|[^,\[\]\s]+`)

// parseRegex captures loose key=value pairs, tolerating unquoted strings
// and sloppy spacing.
func parseRegex(body string) map[string]any {
	matches := kvRe.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	args := make(map[string]any, len(matches))
	for _, m := range matches {
		args[m[1]] = looseValue(strings.TrimSpace(m[2]))
	}
	return args
}

func looseValue(raw string) any {
	switch {
	case raw == "true":
		return true
	case raw == "false":
		return false
	case strings.HasPrefix(raw, "["):
		inner := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
		var items []any
		for _, item := range arrayItemRe.FindAllString(inner, -1) {
			items = append(items, looseValue(item))
		}
		return items
	case len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\''):
		return strings.Trim(raw, string(raw[0]))
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// ---- strategy 3: comma split ----

// parseCommaSplit is the last resort: split on commas, then on the first
// equals sign.
func parseCommaSplit(body string) map[string]any {
	args := make(map[string]any)
	for _, part := range strings.Split(body, ",") {
		key, value, found := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		args[key] = value
	}
	if len(args) == 0 {
		return nil
	}
	return args
}
