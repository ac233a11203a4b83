package load

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/sessiond-dev/sessiond/internal/session"
)

// A truncated string carries this suffix with the dropped byte count. The
// redactor treats strings already carrying it as settled, which makes the
// pass idempotent.
var truncMarker = regexp.MustCompile(`\.\.\.\[truncated \d+ bytes\]$`)

// truncateString bounds s to max bytes, cutting at a rune boundary and
// annotating the dropped size.
func truncateString(s string, max int) string {
	if len(s) <= max || truncMarker.MatchString(s) {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return fmt.Sprintf("%s...[truncated %d bytes]", s[:cut], len(s)-cut)
}

// truncateValue walks strings, arrays, and objects uniformly, bounding
// every string it finds. Non-string scalars pass through untouched.
func truncateValue(v any, max int) any {
	switch t := v.(type) {
	case string:
		return truncateString(t, max)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = truncateValue(e, max)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = truncateValue(e, max)
		}
		return out
	default:
		return v
	}
}

// redactMessage bounds every string in one normalized message in place.
func redactMessage(msg *session.NormalizedMessage, max int) {
	msg.CustomEvent = truncateString(msg.CustomEvent, max)
	if msg.Message == nil {
		return
	}
	for i := range msg.Message.Content {
		b := &msg.Message.Content[i]
		b.Text = truncateString(b.Text, max)
		b.MediaRef = truncateString(b.MediaRef, max)
		if b.Input != nil {
			b.Input = truncateValue(b.Input, max)
		}
		if b.Result != nil {
			b.Result = truncateValue(b.Result, max)
		}
	}
}
