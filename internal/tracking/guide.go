package tracking

import "regexp"

// Codes may carry non-ASCII letters and digits such as Ñ or Ó.
var guideCodeRe = regexp.MustCompile(`(?i)\bguia\s+([\p{L}\p{N}_-]+)`)

// guideTextFields are the free-text node fields scanned for a hand-off code,
// after the node label.
var guideTextFields = []string{"comment", "comments", "remarks", "notes", "description"}

// FindGuideCode returns the first hand-off tracking code in text
// ("guia" followed by whitespace and a code of letters, digits, underscores
// and hyphens).
func FindGuideCode(text string) (string, bool) {
	m := guideCodeRe.FindStringSubmatch(text)
	if len(m) != 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// GuideCode scans the event's commentary for a hand-off code: the node label
// first, then the free-text fields of the raw node. The first match wins.
func (ev NormalizedEvent) GuideCode() (string, bool) {
	if code, ok := FindGuideCode(ev.NodeLabel); ok {
		return code, true
	}
	for _, k := range guideTextFields {
		s, ok := ev.Raw.String(k)
		if !ok {
			continue
		}
		if code, ok := FindGuideCode(s); ok {
			return code, true
		}
	}
	return "", false
}
