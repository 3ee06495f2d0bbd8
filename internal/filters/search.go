package filters

import (
	"regexp"
	"strings"
)

// Matcher is the compiled form of the search text.
//
// The text is trimmed and lower-cased. A leading "-" switches to exclude mode.
// A term written as /pattern/ is compiled as a case-insensitive, multi-line
// regular expression; if it does not compile the term is matched as a plain
// substring instead.
type Matcher struct {
	term    string
	exclude bool
	re      *regexp.Regexp
}

// NewMatcher compiles text.
func NewMatcher(text string) *Matcher {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	m := &Matcher{}
	if strings.HasPrefix(trimmed, "-") {
		m.exclude = true
		trimmed = trimmed[1:]
	}
	m.term = trimmed

	if len(trimmed) > 2 && strings.HasPrefix(trimmed, "/") && strings.HasSuffix(trimmed, "/") {
		if re, err := regexp.Compile("(?im)" + trimmed[1:len(trimmed)-1]); err == nil {
			m.re = re
		}
	}
	return m
}

// Active reports whether there is anything to search for.
func (m *Matcher) Active() bool { return m.term != "" }

// Exclude reports whether matching messages are hidden rather than shown.
func (m *Matcher) Exclude() bool { return m.exclude }

// Match reports whether s contains the term.
func (m *Matcher) Match(s string) bool {
	if m.re != nil {
		return m.re.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), m.term)
}

// Pass turns the result of searching a message into a visibility decision.
func (m *Matcher) Pass(matched bool) bool {
	if !m.Active() {
		return true
	}
	if m.exclude {
		return !matched
	}
	return matched
}
