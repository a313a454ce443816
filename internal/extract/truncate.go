package extract

import "unicode/utf8"

// TruncationMarker is inserted where the middle of an oversized document was dropped.
const TruncationMarker = "\n\n[... middle of document omitted ...]\n\n"

// Truncate bounds text to maxChars by keeping the first 70% and the last 30%
// of the budget, joined by a visible marker. Academic writing carries its
// thesis and conclusion at the extremes, so preserving both ends grades
// better than a head-only cut. Truncate(Truncate(t, n), n) == Truncate(t, n).
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}

	// The marker counts against the budget so the output never exceeds
	// maxChars and a second pass is the identity.
	budget := maxChars - len(TruncationMarker)
	if budget <= 0 {
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		return text[:cut]
	}

	head := budget * 7 / 10
	tail := budget - head

	// Byte offsets can land inside a multi-byte rune; shrink each kept
	// segment until its cut sits on a rune boundary so the output stays
	// valid UTF-8.
	for head > 0 && !utf8.RuneStart(text[head]) {
		head--
	}
	tailStart := len(text) - tail
	for tailStart < len(text) && !utf8.RuneStart(text[tailStart]) {
		tailStart++
	}

	return text[:head] + TruncationMarker + text[tailStart:]
}
