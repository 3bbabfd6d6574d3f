package verify

import "github.com/aare-health/safeharbor/internal/rules"

// Explain maps violating detections to the rules they break.
//
// Every detection whose category is prohibited becomes one violation
// record carrying all rules that apply to its category. Repeated
// categories and overlapping spans each count separately, so
// NumViolations equals the number of violating detections, never a
// deduplicated total. CategoriesViolated lists the distinct violated
// categories in first-occurrence order.
func Explain(dets []Detection, rs *rules.RuleSet) *Report {
	report := &Report{
		Violations:         []Violation{},
		CategoriesViolated: []string{},
	}
	seen := make(map[string]bool)

	for _, det := range dets {
		if !rs.IsProhibited(det.Category) {
			continue
		}

		applicable := rs.RulesForCategory(det.Category)
		refs := make([]RuleRef, 0, len(applicable))
		for _, r := range applicable {
			refs = append(refs, RuleRef{
				ID:          r.ID,
				Name:        r.Name,
				Description: r.Description,
			})
		}

		report.Violations = append(report.Violations, Violation{
			Category:      det.Category,
			Value:         det.Value,
			Location:      Span{Start: det.Start, End: det.End},
			Confidence:    det.Confidence,
			ViolatedRules: refs,
		})

		if !seen[det.Category] {
			seen[det.Category] = true
			report.CategoriesViolated = append(report.CategoriesViolated, det.Category)
		}
	}

	report.NumViolations = len(report.Violations)
	return report
}
