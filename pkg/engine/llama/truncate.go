package llama

import "strings"

// findStopTruncation scans buf for any of stopTokens, and if one is found,
// returns the byte offset to truncate at — walked backwards to the nearest
// UTF-8 character boundary so a multi-byte codepoint is never split — and
// true. If multiple stop tokens match, the truncation point is the
// earliest byte offset among the last occurrence of each (the leftmost cut
// wins, since nothing past it belongs in the output).
func findStopTruncation(buf string, stopTokens []string) (int, bool) {
	cut := -1
	for _, tok := range stopTokens {
		if tok == "" {
			continue
		}
		idx := strings.LastIndex(buf, tok)
		if idx < 0 {
			continue
		}
		if cut == -1 || idx < cut {
			cut = idx
		}
	}
	if cut == -1 {
		return 0, false
	}
	return utf8Floor(buf, cut), true
}

// utf8Floor walks backwards from byteOffset to the start of the UTF-8
// codepoint it falls inside (or sits exactly at), so truncating a string at
// the returned offset never splits a multi-byte sequence.
func utf8Floor(s string, byteOffset int) int {
	if byteOffset <= 0 {
		return 0
	}
	if byteOffset >= len(s) {
		return len(s)
	}
	i := byteOffset
	for i > 0 && isUTF8Continuation(s[i]) {
		i--
	}
	return i
}

// isUTF8Continuation reports whether b is a UTF-8 continuation byte
// (10xxxxxx), which is never a valid truncation point.
func isUTF8Continuation(b byte) bool {
	return b&0xC0 == 0x80
}
