// Package extract provides a pattern-based implementation of the
// verify.Extractor contract for callers without a trained sequence
// labeler. Precision over recall: every pattern targets one identifier
// category.
package extract

import (
	"context"
	"regexp"
	"sort"

	"github.com/aare-health/safeharbor/internal/verify"
)

// Pre-compiled identifier patterns, one category each.
var patterns = []struct {
	category   string
	re         *regexp.Regexp
	confidence float64
}{
	// SSN: 123-45-6789
	{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), 0.99},

	// Email addresses
	{"EMAIL_ADDRESSES", regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`), 0.95},

	// Phone numbers (US formats): (123) 456-7890, 123-456-7890, +1-123-456-7890
	{"PHONE_NUMBERS", regexp.MustCompile(`(\+1[-\s]?)?\(?\d{3}\)?[-\s.]\d{3}[-\s.]\d{4}\b`), 0.85},

	// IPv4 addresses
	{"IP_ADDRESSES", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), 0.90},

	// Web URLs
	{"WEB_URLS", regexp.MustCompile(`\bhttps?://[^\s<>"]+`), 0.90},

	// Dates: 01/15/1980, 2024-03-20
	{"DATES", regexp.MustCompile(`\b(?:\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{2}-\d{2})\b`), 0.85},

	// Medical record numbers with an MRN marker
	{"MEDICAL_RECORD_NUMBERS", regexp.MustCompile(`\bMRN[:#]?\s*\d{5,10}\b`), 0.80},
}

// RegexExtractor implements verify.Extractor with the pattern table
// above. Stateless and safe for concurrent use.
type RegexExtractor struct{}

// NewRegexExtractor returns the pattern-based extractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Extract scans the text against every pattern and returns detections
// ordered by start offset. Overlapping matches from different patterns
// are all reported; the verifier never deduplicates spans. Offsets are
// byte positions into the input, end exclusive.
func (e *RegexExtractor) Extract(ctx context.Context, text string) ([]verify.Detection, error) {
	dets := []verify.Detection{}
	for _, p := range patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			dets = append(dets, verify.Detection{
				Category:   p.category,
				Value:      text[loc[0]:loc[1]],
				Start:      loc[0],
				End:        loc[1],
				Confidence: p.confidence,
			})
		}
	}

	sort.SliceStable(dets, func(i, j int) bool {
		if dets[i].Start != dets[j].Start {
			return dets[i].Start < dets[j].Start
		}
		return dets[i].End < dets[j].End
	})
	return dets, nil
}
