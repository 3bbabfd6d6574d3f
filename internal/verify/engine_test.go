package verify

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/aare-health/safeharbor/internal/policy"
	"github.com/aare-health/safeharbor/internal/rules"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	return NewVerifier(rules.New(policy.Default()), nil)
}

func TestVerify_Empty(t *testing.T) {
	v := newTestVerifier(t)

	for _, dets := range [][]Detection{nil, {}} {
		res := v.Verify(dets)
		if res.Status != StatusCompliant {
			t.Fatalf("Verify(%v) status = %s, want compliant", dets, res.Status)
		}
		if res.Entities == nil || len(res.Entities) != 0 {
			t.Errorf("entities = %v, want empty non-nil slice", res.Entities)
		}
		if res.Violations != nil {
			t.Errorf("violations = %+v, want nil", res.Violations)
		}
		if res.Metadata["decision"] != "sat" {
			t.Errorf("decision = %q, want sat", res.Metadata["decision"])
		}
	}
}

func TestVerify_CompliantProof(t *testing.T) {
	v := newTestVerifier(t)

	res := v.Verify(nil)
	if !strings.HasPrefix(res.Proof, "HIPAA COMPLIANT\n") {
		t.Errorf("proof does not start with compliant header:\n%s", res.Proof)
	}
	if !strings.Contains(res.Proof, "all 18 HIPAA Safe Harbor categories") {
		t.Errorf("proof missing category count line:\n%s", res.Proof)
	}
	for _, cat := range v.Rules().ProhibitedCategories() {
		line := "  " + cat + ": clear"
		if !strings.Contains(res.Proof, line) {
			t.Errorf("proof missing %q", line)
		}
	}
	if strings.HasSuffix(res.Proof, "\n") {
		t.Error("proof should not end with a newline")
	}
}

func TestVerify_SingleViolation(t *testing.T) {
	v := newTestVerifier(t)

	dets := []Detection{
		{Category: "NAMES", Value: "John Smith", Start: 0, End: 10, Confidence: 0.95},
	}
	res := v.Verify(dets)

	if res.Status != StatusViolation {
		t.Fatalf("status = %s, want violation", res.Status)
	}
	if res.Metadata["decision"] != "unsat" {
		t.Errorf("decision = %q, want unsat", res.Metadata["decision"])
	}
	if res.Violations == nil || res.Violations.NumViolations != 1 {
		t.Fatalf("unexpected report: %+v", res.Violations)
	}

	viol := res.Violations.Violations[0]
	if viol.Category != "NAMES" || viol.Value != "John Smith" {
		t.Errorf("unexpected violation: %+v", viol)
	}
	if viol.Location.Start != 0 || viol.Location.End != 10 {
		t.Errorf("unexpected location: %+v", viol.Location)
	}
	if len(viol.ViolatedRules) != 1 || viol.ViolatedRules[0].ID != "R1" {
		t.Errorf("unexpected rules: %+v", viol.ViolatedRules)
	}

	for _, want := range []string{
		"HIPAA VIOLATION DETECTED",
		"Category: NAMES",
		"Value: John Smith",
		"Position: 0-10",
		"Violated: R1 - Names must be removed",
		"Total violations: 1",
		"Categories: NAMES",
	} {
		if !strings.Contains(res.Proof, want) {
			t.Errorf("proof missing %q:\n%s", want, res.Proof)
		}
	}
}

func TestVerify_AllCategoriesViolated(t *testing.T) {
	v := newTestVerifier(t)

	prohibited := v.Rules().ProhibitedCategories()
	dets := make([]Detection, 0, len(prohibited))
	for i, cat := range prohibited {
		dets = append(dets, Detection{
			Category:   cat,
			Value:      fmt.Sprintf("value-%d", i),
			Start:      i * 10,
			End:        i*10 + 5,
			Confidence: 0.9,
		})
	}

	res := v.Verify(dets)
	if res.Status != StatusViolation {
		t.Fatalf("status = %s, want violation", res.Status)
	}
	if res.Violations.NumViolations != 18 {
		t.Errorf("num_violations = %d, want 18", res.Violations.NumViolations)
	}
	if len(res.Violations.CategoriesViolated) != 18 {
		t.Fatalf("categories = %v", res.Violations.CategoriesViolated)
	}
	for i, cat := range prohibited {
		if res.Violations.CategoriesViolated[i] != cat {
			t.Errorf("categories[%d] = %s, want %s",
				i, res.Violations.CategoriesViolated[i], cat)
		}
	}
}

func TestVerify_RepeatedCategoryCountsTwice(t *testing.T) {
	v := newTestVerifier(t)

	res := v.Verify([]Detection{
		{Category: "NAMES", Value: "John", Start: 0, End: 4, Confidence: 0.9},
		{Category: "NAMES", Value: "Jane", Start: 10, End: 14, Confidence: 0.8},
	})

	if res.Violations.NumViolations != 2 {
		t.Errorf("num_violations = %d, want 2 (no deduplication)", res.Violations.NumViolations)
	}
	if len(res.Violations.CategoriesViolated) != 1 {
		t.Errorf("categories = %v, want one distinct entry", res.Violations.CategoriesViolated)
	}
	if !strings.Contains(res.Proof, "Total violations: 2") {
		t.Errorf("proof totals wrong:\n%s", res.Proof)
	}
}

func TestVerify_NonProhibitedCategoriesIgnored(t *testing.T) {
	v := newTestVerifier(t)

	res := v.Verify([]Detection{
		{Category: "O", Value: "the", Start: 0, End: 3, Confidence: 1.0},
		{Category: "NOT_A_CATEGORY", Value: "x", Start: 4, End: 5, Confidence: 1.0},
	})
	if res.Status != StatusCompliant {
		t.Errorf("status = %s, want compliant", res.Status)
	}
}

// TestVerify_MatchesDisjunction pins the equivalence between the
// membership check the engine performs and the per-category disjunction
// framing of the predicate: a document violates iff OR over categories of
// "some detection has this category" is true.
func TestVerify_MatchesDisjunction(t *testing.T) {
	v := newTestVerifier(t)
	prohibited := v.Rules().ProhibitedCategories()
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		n := rng.Intn(8)
		dets := make([]Detection, 0, n)
		for i := 0; i < n; i++ {
			var cat string
			if rng.Intn(3) == 0 {
				cat = "O"
			} else {
				cat = prohibited[rng.Intn(len(prohibited))]
			}
			dets = append(dets, Detection{
				Category: cat, Value: "v", Start: i, End: i + 1, Confidence: 1.0,
			})
		}

		detected := make(map[string]bool)
		for _, d := range dets {
			detected[d.Category] = true
		}
		disjunction := false
		for _, cat := range prohibited {
			disjunction = disjunction || detected[cat]
		}

		res := v.Verify(dets)
		want := StatusCompliant
		if disjunction {
			want = StatusViolation
		}
		if res.Status != want {
			t.Fatalf("trial %d: status = %s, want %s for %v", trial, res.Status, want, dets)
		}
	}
}

func TestVerify_ProofDeterministic(t *testing.T) {
	v := newTestVerifier(t)
	dets := []Detection{
		{Category: "SSN", Value: "123-45-6789", Start: 5, End: 16, Confidence: 0.99},
		{Category: "DATES", Value: "01/02/2020", Start: 20, End: 30, Confidence: 0.8},
	}

	first := v.Verify(dets)
	for i := 0; i < 5; i++ {
		if got := v.Verify(dets); got.Proof != first.Proof {
			t.Fatalf("proof changed between calls:\n%s\n---\n%s", first.Proof, got.Proof)
		}
	}
}

func TestVerifyText_NilExtractor(t *testing.T) {
	v := newTestVerifier(t)

	res := v.VerifyText(context.Background(), "some text", nil)
	if res.Status != StatusError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if res.Metadata["error"] != "no_extractor" {
		t.Errorf("metadata error = %q, want no_extractor", res.Metadata["error"])
	}
	if !strings.Contains(res.Proof, "No entity extractor provided") {
		t.Errorf("unexpected proof: %s", res.Proof)
	}
}

func TestVerifyText_ExtractorError(t *testing.T) {
	v := newTestVerifier(t)

	ext := ExtractorFunc(func(ctx context.Context, text string) ([]Detection, error) {
		return nil, errors.New("boom")
	})
	res := v.VerifyText(context.Background(), "text", ext)
	if res.Status != StatusError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if !strings.Contains(res.Metadata["error"], "boom") {
		t.Errorf("metadata error = %q, want to contain boom", res.Metadata["error"])
	}
	if !strings.Contains(res.Proof, "Error during verification: boom") {
		t.Errorf("unexpected proof: %s", res.Proof)
	}
}

func TestVerifyText_ExtractorPanic(t *testing.T) {
	v := newTestVerifier(t)

	ext := ExtractorFunc(func(ctx context.Context, text string) ([]Detection, error) {
		panic("model crashed")
	})
	res := v.VerifyText(context.Background(), "text", ext)
	if res.Status != StatusError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if !strings.Contains(res.Metadata["error"], "extractor panic: model crashed") {
		t.Errorf("metadata error = %q", res.Metadata["error"])
	}
}

func TestVerifyText_Success(t *testing.T) {
	v := newTestVerifier(t)

	ext := ExtractorFunc(func(ctx context.Context, text string) ([]Detection, error) {
		return []Detection{
			{Category: "SSN", Value: "123-45-6789", Start: 0, End: 11, Confidence: 0.99},
		}, nil
	})
	res := v.VerifyText(context.Background(), "123-45-6789", ext)
	if res.Status != StatusViolation {
		t.Fatalf("status = %s, want violation", res.Status)
	}
	if res.Violations.NumViolations != 1 {
		t.Errorf("num_violations = %d, want 1", res.Violations.NumViolations)
	}
}

func TestBatchVerify(t *testing.T) {
	v := newTestVerifier(t)

	docs := [][]Detection{
		{},
		{{Category: "NAMES", Value: "John", Start: 0, End: 4, Confidence: 0.9}},
		nil,
		{
			{Category: "SSN", Value: "123-45-6789", Start: 0, End: 11, Confidence: 0.99},
			{Category: "O", Value: "and", Start: 12, End: 15, Confidence: 1.0},
		},
	}

	results := v.BatchVerify(docs)
	if len(results) != len(docs) {
		t.Fatalf("got %d results, want %d", len(results), len(docs))
	}
	for i, res := range results {
		want := v.Verify(docs[i])
		if res.Status != want.Status {
			t.Errorf("results[%d].Status = %s, want %s", i, res.Status, want.Status)
		}
		if res.Proof != want.Proof {
			t.Errorf("results[%d] proof differs from single verification", i)
		}
	}
}

func TestBatchVerify_Empty(t *testing.T) {
	v := newTestVerifier(t)

	if got := v.BatchVerify(nil); len(got) != 0 {
		t.Errorf("BatchVerify(nil) = %v, want empty", got)
	}
	if got := v.BatchVerify([][]Detection{}); len(got) != 0 {
		t.Errorf("BatchVerify([]) = %v, want empty", got)
	}
}
