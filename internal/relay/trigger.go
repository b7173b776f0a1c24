package relay

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Trigger recognizes the staff reply command, e.g. "!r hello".
type Trigger struct {
	forms []string
}

// NewTrigger builds every prefix × name combination. Longer forms are
// tried first so "!reply" is not read as "!r" followed by "eply".
func NewTrigger(prefixes, names []string) Trigger {
	seen := map[string]bool{}
	var forms []string
	for _, p := range prefixes {
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			form := p + n
			if key := strings.ToLower(form); !seen[key] {
				seen[key] = true
				forms = append(forms, form)
			}
		}
	}
	sort.SliceStable(forms, func(i, j int) bool {
		return utf8.RuneCountInString(forms[i]) > utf8.RuneCountInString(forms[j])
	})
	return Trigger{forms: forms}
}

// Strip removes the trigger from text. It reports false when text does not
// start with a trigger followed by whitespace or the end of the text.
func (t Trigger) Strip(text string) (string, bool) {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	for _, form := range t.forms {
		rest, ok := cutFoldPrefix(trimmed, form)
		if !ok {
			continue
		}
		if rest == "" {
			return "", true
		}
		if r, _ := utf8.DecodeRuneInString(rest); unicode.IsSpace(r) {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// cutFoldPrefix matches prefix against the start of s one rune at a time
// under simple case folding, so the cut always falls on a rune boundary of
// s whatever the byte lengths of the folded forms.
func cutFoldPrefix(s, prefix string) (string, bool) {
	for _, want := range prefix {
		got, size := utf8.DecodeRuneInString(s)
		if size == 0 || !equalFoldRune(got, want) {
			return "", false
		}
		s = s[size:]
	}
	return s, true
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}
