package bibtex

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoEntry is returned when text contains no @type{...} block.
var ErrNoEntry = errors.New("no bibtex entry found")

// Field is one name = value pair. Name is lowercased.
type Field struct {
	Name  string
	Value string
}

// Entry is a single @type{key, ...} block.
type Entry struct {
	Type   string
	Key    string
	Fields []Field
	Raw    string
}

// IsRecord reports whether the entry is a citable record rather than a
// @string, @preamble or @comment block.
func (e Entry) IsRecord() bool {
	switch e.Type {
	case "string", "preamble", "comment":
		return false
	default:
		return true
	}
}

// Field returns the value of the named field, case-insensitively.
func (e Entry) Field(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// SyntaxError reports an unterminated or malformed block.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("bibtex: %s at offset %d", e.Msg, e.Offset)
}

// Parse returns every block in text in source order. Text outside blocks is
// ignored, matching BibTeX's implicit comment rule.
func Parse(text string) ([]Entry, error) {
	var entries []Entry
	pos := 0
	for {
		at := strings.IndexByte(text[pos:], '@')
		if at < 0 {
			return entries, nil
		}
		start := pos + at
		entry, end, err := scanEntry(text, start)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
		pos = end
	}
}

// ParseEntry returns the first block in text.
func ParseEntry(text string) (Entry, error) {
	at := strings.IndexByte(text, '@')
	if at < 0 {
		return Entry{}, ErrNoEntry
	}
	entry, _, err := scanEntry(text, at)
	return entry, err
}

// scanEntry reads the block starting at text[start] == '@' and returns the
// offset just past its closing delimiter.
func scanEntry(text string, start int) (Entry, int, error) {
	i := start + 1
	for i < len(text) && isTypeChar(text[i]) {
		i++
	}
	entryType := strings.ToLower(text[start+1 : i])
	if entryType == "" {
		return Entry{}, 0, &SyntaxError{Offset: start, Msg: "missing entry type"}
	}
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	if i >= len(text) || (text[i] != '{' && text[i] != '(') {
		return Entry{}, 0, &SyntaxError{Offset: i, Msg: "expected { or ( after @" + entryType}
	}
	open := text[i]
	closeAt, err := matchDelimiter(text, i, open)
	if err != nil {
		return Entry{}, 0, err
	}
	end := closeAt + 1
	entry := Entry{Type: entryType, Raw: text[start:end]}
	if !entry.IsRecord() {
		return entry, end, nil
	}
	body := text[i+1 : closeAt]
	key, rest, _ := splitTopLevel(body)
	entry.Key = strings.TrimSpace(key)
	entry.Fields = parseFields(rest)
	return entry, end, nil
}

// matchDelimiter finds the closing delimiter for the one at text[openAt].
func matchDelimiter(text string, openAt int, open byte) (int, error) {
	depth := 0
	for i := openAt; i < len(text); i++ {
		switch c := text[i]; {
		case c == '{':
			depth++
		case c == '}':
			depth--
			if open == '{' && depth == 0 {
				return i, nil
			}
			if depth < 0 {
				return 0, &SyntaxError{Offset: i, Msg: "unbalanced }"}
			}
		case c == ')' && open == '(' && depth == 0:
			return i, nil
		}
	}
	return 0, &SyntaxError{Offset: openAt, Msg: "unterminated entry"}
}

// splitTopLevel cuts s at the first comma outside braces and quotes.
func splitTopLevel(s string) (string, string, bool) {
	depth := 0
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case '"':
			if depth == 0 {
				quoted = !quoted
			}
		case ',':
			if depth == 0 && !quoted {
				return s[:i], s[i+1:], true
			}
		}
	}
	return s, "", false
}

func parseFields(s string) []Field {
	var fields []Field
	for {
		part, rest, more := splitTopLevel(s)
		if name, value, ok := strings.Cut(part, "="); ok {
			name = strings.ToLower(strings.TrimSpace(name))
			if name != "" {
				fields = append(fields, Field{Name: name, Value: unwrapValue(value)})
			}
		}
		if !more {
			return fields
		}
		s = rest
	}
}

// unwrapValue strips one layer of enclosing braces or quotes.
func unwrapValue(value string) string {
	value = strings.TrimSpace(value)
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if (first == '{' && last == '}') || (first == '"' && last == '"') {
		inner := value[1 : len(value)-1]
		if first == '{' && !balanced(inner) {
			return value
		}
		return strings.TrimSpace(inner)
	}
	return value
}

func balanced(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func isTypeChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
