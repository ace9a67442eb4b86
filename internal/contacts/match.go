package contacts

import (
	"strings"
	"unicode"
)

// clientNameMarker is the labeled line the analysis prompt asks the model to
// emit when a client is named in the recording.
const clientNameMarker = "Client Name:"

// minClientNameLength guards against extracting garbage from a mangled line.
const minClientNameLength = 3

// matchesMeetingID reports whether a free-text field contains the numeric
// meeting ID. CRMs store video-call links in title/address/notes fields with
// arbitrary separators, so both sides are reduced to their alphanumerics
// before the substring check. This is a heuristic, not a join.
func matchesMeetingID(text, meetingID string) bool {
	id := stripSeparators(meetingID)
	if id == "" || text == "" {
		return false
	}
	return strings.Contains(stripSeparators(text), id)
}

// extractClientName scans the summary for a clientNameMarker line and
// returns the trimmed name after it, or "" when absent or implausibly short.
func extractClientName(summary string) string {
	for _, line := range strings.Split(summary, "\n") {
		idx := strings.Index(line, clientNameMarker)
		if idx < 0 {
			continue
		}
		name := line[idx+len(clientNameMarker):]
		name = strings.TrimFunc(name, func(r rune) bool {
			return unicode.IsSpace(r) || r == '*' || r == '_' || r == ':'
		})
		if len([]rune(name)) >= minClientNameLength {
			return name
		}
	}
	return ""
}

func stripSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
