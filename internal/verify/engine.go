// Package verify decides whether a document's detection list satisfies
// the Safe Harbor compliance predicate (no detection belongs to a
// prohibited category) and produces an auditable proof of the verdict.
package verify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/aare-health/safeharbor/internal/rules"
)

// Extractor maps document text to an ordered list of detections. The
// implementation is an external collaborator; Verifier only depends on
// this contract. Extract must respect ctx cancellation.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]Detection, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, text string) ([]Detection, error)

func (f ExtractorFunc) Extract(ctx context.Context, text string) ([]Detection, error) {
	return f(ctx, text)
}

// Verifier is the compliance decision engine. Immutable after
// construction; Verify and its variants are pure functions of their
// arguments and are safe to call concurrently.
type Verifier struct {
	rules  *rules.RuleSet
	logger *zap.Logger
}

// NewVerifier creates a verifier over the given rule catalogue.
func NewVerifier(rs *rules.RuleSet, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{rules: rs, logger: logger}
}

// Rules exposes the catalogue the verifier decides against.
func (v *Verifier) Rules() *rules.RuleSet {
	return v.rules
}

// Verify decides compliance for a detection list.
//
// The verdict is Violation iff any detection's category is prohibited,
// otherwise Compliant. This direct membership check is logically
// equivalent to the per-category boolean-disjunction framing of the
// predicate (one "detected" boolean per category, compliant iff the
// disjunction is false); the equivalence is pinned by a property test.
// The metadata "decision" field keeps the sat/unsat vocabulary so audit
// consumers see a stable schema.
func (v *Verifier) Verify(dets []Detection) *Result {
	entities := dets
	if entities == nil {
		entities = []Detection{}
	}

	report := Explain(entities, v.rules)
	if report.NumViolations == 0 {
		return &Result{
			Status:     StatusCompliant,
			Entities:   entities,
			Proof:      v.compliantProof(),
			Violations: nil,
			Metadata:   map[string]string{"decision": "sat"},
		}
	}

	return &Result{
		Status:     StatusViolation,
		Entities:   entities,
		Proof:      v.violationProof(report),
		Violations: report,
		Metadata:   map[string]string{"decision": "unsat"},
	}
}

// VerifyText extracts detections from text and verifies them. A missing
// extractor, an extraction error, or an extraction panic all produce an
// Error-status result carrying the failure reason; this boundary never
// lets a failure escape to the caller. The context is passed through so
// callers can bound the extractor's runtime.
func (v *Verifier) VerifyText(ctx context.Context, text string, ext Extractor) *Result {
	if ext == nil {
		return &Result{
			Status:   StatusError,
			Entities: []Detection{},
			Proof:    "No entity extractor provided. Use Verify with pre-extracted detections.",
			Metadata: map[string]string{"error": "no_extractor"},
		}
	}

	dets, err := runExtractor(ctx, ext, text)
	if err != nil {
		v.logger.Warn("extraction failed", zap.Error(err))
		return &Result{
			Status:   StatusError,
			Entities: []Detection{},
			Proof:    "Error during verification: " + err.Error(),
			Metadata: map[string]string{"error": err.Error()},
		}
	}

	return v.Verify(dets)
}

// runExtractor isolates extractor panics so VerifyText can convert them
// to Error results.
func runExtractor(ctx context.Context, ext Extractor, text string) (dets []Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			dets = nil
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return ext.Extract(ctx, text)
}

// BatchVerify verifies each document's detection list independently.
// Results come back in input order. Documents share no state, so each is
// decided on its own goroutine.
func (v *Verifier) BatchVerify(docs [][]Detection) []*Result {
	results := make([]*Result, len(docs))
	if len(docs) == 0 {
		return results
	}

	var wg sync.WaitGroup
	for i, dets := range docs {
		wg.Add(1)
		go func(i int, dets []Detection) {
			defer wg.Done()
			results[i] = v.Verify(dets)
		}(i, dets)
	}
	wg.Wait()
	return results
}

// compliantProof renders the deterministic all-clear proof: a compliant
// header followed by one line per category in catalogue order. A
// "detected" line cannot occur here; Compliant means no prohibited
// detections exist.
func (v *Verifier) compliantProof() string {
	var b strings.Builder
	b.WriteString("HIPAA COMPLIANT\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	b.WriteString("No prohibited PHI identifiers detected.\n\n")
	b.WriteString("Verification passed for all 18 HIPAA Safe Harbor categories:\n")
	for _, cat := range v.rules.ProhibitedCategories() {
		b.WriteString("  " + cat + ": clear\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// violationProof renders one block per violating detection in input
// order, then the totals.
func (v *Verifier) violationProof(report *Report) string {
	var b strings.Builder
	b.WriteString("HIPAA VIOLATION DETECTED\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	for _, viol := range report.Violations {
		fmt.Fprintf(&b, "Category: %s\n", viol.Category)
		fmt.Fprintf(&b, "  Value: %s\n", viol.Value)
		fmt.Fprintf(&b, "  Position: %d-%d\n", viol.Location.Start, viol.Location.End)
		for _, rule := range viol.ViolatedRules {
			fmt.Fprintf(&b, "  Violated: %s - %s\n", rule.ID, rule.Description)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Total violations: %d\n", report.NumViolations)
	fmt.Fprintf(&b, "Categories: %s", strings.Join(report.CategoriesViolated, ", "))
	return b.String()
}
