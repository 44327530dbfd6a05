package compaction

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TrimMiddle reduces verbose text to a fixed head and tail, eliding the
// middle. Structure at both ends survives (opening lines, final error
// or result), which is usually what matters in long command output.
// Text that already fits is returned unchanged.
func TrimMiddle(text string, head, tail int) string {
	if head+tail <= 0 {
		return text
	}
	if len(text) <= head+tail {
		return text
	}
	// Cut points back up to rune boundaries; a multi-byte rune is
	// never split.
	headEnd := runeStart(text, head)
	tailStart := runeStart(text, len(text)-tail)
	if tailStart <= headEnd {
		return text
	}
	return text[:headEnd] +
		fmt.Sprintf("\n... [%d chars trimmed] ...\n", tailStart-headEnd) +
		text[tailStart:]
}

// runeStart backs i up to the nearest rune boundary at or before i.
func runeStart(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// KeyPoints reduces a conversation turn to its key points: leading
// non-empty lines up to maxLen characters. The middle band of the
// recency gradient uses this; enough to follow the thread, far
// cheaper than full detail.
func KeyPoints(text string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return strings.TrimSpace(text)
	}
	var (
		sb    strings.Builder
		lines = strings.Split(text, "\n")
	)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if sb.Len()+len(line)+1 > maxLen {
			break
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
	}
	if sb.Len() == 0 {
		// Single oversized line: fall back to a hard cut.
		return strings.TrimSpace(text[:runeStart(text, maxLen)])
	}
	return sb.String()
}
