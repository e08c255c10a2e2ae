package domain

import "unicode/utf8"

// Passage is a bounded chunk of document text produced by the chunker.
// It is the atomic unit that is embedded and indexed.
type Passage struct {
	// ID is the passage id. Empty until assigned by the orchestrator.
	ID string

	// Text is the full passage text, including the overlap prefix.
	Text string

	// OverlapLen is the number of leading characters shared with the
	// previous passage of the same unit.
	OverlapLen int

	// Metadata is inherited from the originating unit.
	Metadata PassageMetadata

	// SequenceIndex is the zero-based order among all passages of a run.
	SequenceIndex int

	// Oversized marks a passage longer than the chunk size because it
	// contains an atomic piece that no separator could split.
	Oversized bool
}

// PassageMetadata is the unit metadata a passage inherits.
type PassageMetadata struct {
	SourceID string `json:"source_id"`
	Position int    `json:"position"`
}

// Len returns the passage length in characters.
func (p Passage) Len() int {
	return RuneLen(p.Text)
}

// Core returns the passage text without its overlap prefix.
// Concatenating the cores of a unit's passages yields the unit text.
func (p Passage) Core() string {
	return SkipRunes(p.Text, p.OverlapLen)
}

// RuneLen returns the number of characters in s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// SkipRunes returns s without its first n characters.
func SkipRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}

// LastRunes returns the last n characters of s.
func LastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	total := RuneLen(s)
	if n >= total {
		return s
	}
	return SkipRunes(s, total-n)
}
