package markup

import "strings"

// FixInlineBreaks reconciles the break token count of a translated text
// with its masked source. Providers occasionally merge lines or invent
// extra ones; surplus tokens are folded into spaces from the end, and
// missing ones are inserted near the middle of the longest line so the
// restored subtitle keeps its line layout.
func FixInlineBreaks(source, translated string) string {
	want := strings.Count(source, InlineBreak)
	got := strings.Count(translated, InlineBreak)
	if got == want {
		return translated
	}

	if got > want {
		parts := strings.Split(translated, InlineBreak)
		head := strings.Join(parts[:want+1], InlineBreak)
		tail := strings.TrimSpace(strings.Join(parts[want+1:], " "))
		if tail == "" {
			return head
		}
		return strings.TrimRight(head, " ") + " " + tail
	}

	for i := got; i < want; i++ {
		translated = insertBreak(translated)
	}
	return translated
}

func insertBreak(s string) string {
	parts := strings.Split(s, InlineBreak)

	longest := 0
	for i, p := range parts {
		if len(p) > len(parts[longest]) {
			longest = i
		}
	}

	p := parts[longest]
	split := nearestSpace(p, len(p)/2)
	if split < 0 {
		parts[longest] = p + InlineBreak
	} else {
		parts[longest] = p[:split] + InlineBreak + p[split+1:]
	}
	return strings.Join(parts, InlineBreak)
}

// nearestSpace finds the space closest to index mid, or -1.
func nearestSpace(s string, mid int) int {
	for d := 0; d <= len(s); d++ {
		if i := mid - d; i >= 0 && i < len(s) && s[i] == ' ' {
			return i
		}
		if i := mid + d; i < len(s) && s[i] == ' ' {
			return i
		}
	}
	return -1
}
