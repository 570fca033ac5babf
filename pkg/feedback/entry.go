package feedback

import (
	"fmt"
	"strings"
)

// RawEntry is one rated interaction as delivered by a log source. Fields
// other than RatedText and Rating are optional; malformed entries are
// skipped during ingest rather than failing the batch.
type RawEntry struct {
	ID              string
	Rating          int
	RatedText       string
	FeedbackText    string
	ReplacementText string
	ContextSnippet  string
}

// Entry is a validated rated interaction, the unit indexed for retrieval.
// Immutable once ingested.
type Entry struct {
	ID              string
	Rating          int
	RatedText       string
	FeedbackText    string
	ReplacementText string
	ContextSnippet  string
}

// Valid reports whether the raw entry carries usable rated text and an
// in-range rating.
func (r RawEntry) Valid() bool {
	return strings.TrimSpace(r.RatedText) != "" && r.Rating >= 1 && r.Rating <= 5
}

// EmbeddingText derives the string that is embedded for this entry. The
// order — context, rated text, feedback, replacement — matters: it is all
// the index ever sees of the entry.
func (e Entry) EmbeddingText() string {
	parts := make([]string, 0, 4)
	if e.ContextSnippet != "" {
		parts = append(parts, e.ContextSnippet)
	}
	parts = append(parts, e.RatedText)
	if e.FeedbackText != "" {
		parts = append(parts, e.FeedbackText)
	}
	if e.ReplacementText != "" {
		parts = append(parts, e.ReplacementText)
	}
	return strings.Join(parts, "\n")
}

// ExemplarText formats the entry for inclusion in a sub-agent prompt.
func (e Entry) ExemplarText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Response (rated %d/5): %s", e.Rating, e.RatedText)
	if e.FeedbackText != "" {
		fmt.Fprintf(&b, "\nReviewer feedback: %s", e.FeedbackText)
	}
	if e.ReplacementText != "" {
		fmt.Fprintf(&b, "\nSuggested replacement: %s", e.ReplacementText)
	}
	return b.String()
}
