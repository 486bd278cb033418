package bot

import (
	"strings"
	"unicode/utf8"
)

// maxDisplayLen caps any user-supplied text echoed back into messages.
const maxDisplayLen = 4000

// sanitize trims and truncates user-supplied text before it is echoed
// into an outbound message. Truncation lands on a rune boundary so the
// output stays valid UTF-8.
func sanitize(text string) string {
	s := strings.TrimSpace(text)
	if len(s) <= maxDisplayLen {
		return s
	}
	cut := maxDisplayLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
