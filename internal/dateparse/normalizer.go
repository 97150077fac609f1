// Package dateparse normalizes free-form date strings by trying an ordered
// list of candidate formats and rendering the first match canonically.
package dateparse

import (
	"fmt"
	"strings"
	"time"
)

// Format is one candidate date format.
type Format struct {
	// Pattern is the human-readable form, e.g. "YYYY-MM-DD".
	Pattern string

	// Layout is the equivalent Go reference layout, e.g. "2006-01-02".
	Layout string
}

// DefaultPatterns is the fallback chain, in priority order. Earlier entries
// win when a string matches more than one pattern.
var DefaultPatterns = []string{"YYYY-MM-DD", "MM-DD-YYYY", "YYYY/MM/DD"}

// CanonicalPattern is the output form of every normalized date.
const CanonicalPattern = "DD-MM-YYYY"

var patternTokens = strings.NewReplacer("YYYY", "2006", "MM", "01", "DD", "02")

// ParsePattern converts a YYYY/MM/DD style pattern into a Format.
func ParsePattern(pattern string) (Format, error) {
	p := strings.TrimSpace(pattern)
	if p == "" {
		return Format{}, fmt.Errorf("empty date pattern")
	}
	layout := patternTokens.Replace(p)
	for _, tok := range []string{"2006", "01", "02"} {
		if strings.Count(layout, tok) != 1 {
			return Format{}, fmt.Errorf("date pattern %q must contain YYYY, MM and DD exactly once", pattern)
		}
	}
	return Format{Pattern: p, Layout: layout}, nil
}

// Normalizer applies the fallback chain.
type Normalizer struct {
	formats []Format
	output  Format
}

// New builds a normalizer from candidate patterns and an output pattern.
func New(patterns []string, outputPattern string) (*Normalizer, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("at least one input date pattern is required")
	}

	n := &Normalizer{formats: make([]Format, 0, len(patterns))}
	for _, p := range patterns {
		f, err := ParsePattern(p)
		if err != nil {
			return nil, err
		}
		n.formats = append(n.formats, f)
	}

	out, err := ParsePattern(outputPattern)
	if err != nil {
		return nil, fmt.Errorf("output pattern: %w", err)
	}
	n.output = out

	return n, nil
}

// Default returns the normalizer for DefaultPatterns rendering DD-MM-YYYY.
func Default() *Normalizer {
	n, err := New(DefaultPatterns, CanonicalPattern)
	if err != nil {
		panic(err)
	}
	return n
}

// Parse returns the first candidate interpretation of raw.
func (n *Normalizer) Parse(raw string) (time.Time, Format, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, Format{}, false
	}
	for _, f := range n.formats {
		if t, err := time.Parse(f.Layout, s); err == nil {
			return t, f, true
		}
	}
	return time.Time{}, Format{}, false
}

// Normalize renders raw in the output pattern. ok is false when no candidate
// format matched, in which case the date must be treated as null.
func (n *Normalizer) Normalize(raw string) (value string, matched Format, ok bool) {
	t, f, ok := n.Parse(raw)
	if !ok {
		return "", Format{}, false
	}
	return t.Format(n.output.Layout), f, true
}

// IsCanonical reports whether s is already a well-formed date in the output
// pattern.
func (n *Normalizer) IsCanonical(s string) bool {
	t, err := time.Parse(n.output.Layout, s)
	return err == nil && t.Format(n.output.Layout) == s
}
