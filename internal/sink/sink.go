package sink

import (
	"fmt"
	"strings"
	"time"
)

// Entry is one transcription result ready for the destination document.
type Entry struct {
	Title       string
	URL         string
	Body        string
	PublishedAt time.Time
	LoggedAt    time.Time
}

const separator = "=================================================="

// Format renders the fixed entry template. The body is capped at maxWords
// words here rather than in the engine: truncation is a content policy of
// the destination, not of transcription.
func Format(e Entry, maxWords int) string {
	return fmt.Sprintf(`
%s
תאריך: %s
כותרת הסרטון: %s
קישור: %s
תאריך פרסום: %s
%s
תמלול בעברית:
%s

`,
		separator,
		e.LoggedAt.Format("2006-01-02 15:04:05"),
		e.Title,
		e.URL,
		e.PublishedAt.Format(time.RFC3339),
		separator,
		Truncate(e.Body, maxWords),
	)
}

// Truncate caps text at maxWords words, marking the cut with an ellipsis.
func Truncate(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
