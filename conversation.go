package stratum

// Turn is a single conversation turn supplied by the surrounding agent
// loop. stratum never mutates turns; it only reads them when deciding
// whether and how to compact.
type Turn struct {
	// Index is the turn's position in the conversation, 0-based.
	Index int

	// Role is the speaker, e.g. "user", "assistant", "tool".
	Role string

	// Text is the turn content.
	Text string

	// SizeEstimate is the turn's estimated size in tokens. Use
	// [NewTurn] or [EstimateSize] to populate it.
	SizeEstimate int
}

// Window is an ordered sequence of conversation turns. Turns matter to
// compaction only through the recency gradient: the most recent turns
// keep full detail, a middle band is reduced to key points, and older
// turns are eligible for summarization.
type Window []Turn

// NewTurn builds a Turn with its size estimated from the text.
func NewTurn(index int, role, text string) Turn {
	return Turn{
		Index:        index,
		Role:         role,
		Text:         text,
		SizeEstimate: EstimateSize(text),
	}
}

// TotalSize returns the summed size estimate of all turns.
func (w Window) TotalSize() int {
	total := 0
	for _, t := range w {
		total += t.SizeEstimate
	}
	return total
}

// Empty reports whether the window has no turns.
func (w Window) Empty() bool {
	return len(w) == 0
}

// EstimateSize is the rough token estimate used throughout stratum:
// four characters per token on average.
func EstimateSize(text string) int {
	return len(text) / 4
}
