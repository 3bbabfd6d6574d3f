// Package rules holds the fixed Safe Harbor compliance rule catalogue:
// one absolute prohibition per identifier category (R1..R18) plus the two
// conditional rules (R19, R20) retained as declarative metadata.
package rules

import (
	"fmt"

	"github.com/aare-health/safeharbor/internal/policy"
)

// ProhibitionType distinguishes rules that always apply from rules gated
// on a condition over fields the detection model does not yet carry.
type ProhibitionType string

const (
	Absolute    ProhibitionType = "absolute"
	Conditional ProhibitionType = "conditional"
)

// Rule is one entry in the compliance catalogue.
type Rule struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Categories  []string        `json:"categories"`
	Prohibition ProhibitionType `json:"prohibition_type"`

	// Condition documents when a conditional rule applies (e.g. "age > 89").
	// It is the extension point for wiring real numeric evaluation later;
	// today nothing interprets it.
	Condition string `json:"condition,omitempty"`
}

// absoluteDescriptions gives each category's prohibition its regulatory
// wording. Categories without an entry get a generic description.
var absoluteDescriptions = map[string]string{
	"NAMES":                               "Names must be removed",
	"GEOGRAPHIC_SUBDIVISIONS":             "Geographic data smaller than state must be removed",
	"DATES":                               "Dates (except year) must be removed",
	"PHONE_NUMBERS":                       "Phone numbers must be removed",
	"FAX_NUMBERS":                         "Fax numbers must be removed",
	"EMAIL_ADDRESSES":                     "Email addresses must be removed",
	"SSN":                                 "Social Security numbers must be removed",
	"MEDICAL_RECORD_NUMBERS":              "Medical record numbers must be removed",
	"HEALTH_PLAN_BENEFICIARY_NUMBERS":     "Health plan beneficiary numbers must be removed",
	"ACCOUNT_NUMBERS":                     "Account numbers must be removed",
	"CERTIFICATE_LICENSE_NUMBERS":         "Certificate/license numbers must be removed",
	"VEHICLE_IDENTIFIERS":                 "Vehicle identifiers must be removed",
	"DEVICE_IDENTIFIERS":                  "Device identifiers must be removed",
	"WEB_URLS":                            "Web URLs must be removed",
	"IP_ADDRESSES":                        "IP addresses must be removed",
	"BIOMETRIC_IDENTIFIERS":               "Biometric identifiers must be removed",
	"PHOTOGRAPHIC_IMAGES":                 "Full-face photos must be removed",
	"ANY_OTHER_UNIQUE_IDENTIFYING_NUMBER": "Other unique identifiers must be removed",
}

// RuleSet is the immutable rule catalogue derived from a validated policy.
// Safe for concurrent use.
type RuleSet struct {
	rules      []Rule
	byID       map[string]Rule
	byCategory map[string][]Rule
	prohibited []string
	isProhib   map[string]bool
}

// New builds the catalogue: R<id> absolute rules in category id order,
// then the fixed conditional rules. Policy validation already guarantees
// sequential unique category ids, which makes rule ids unique and gives
// exactly one absolute rule per category.
func New(p *policy.Policy) *RuleSet {
	rs := &RuleSet{
		byID:       make(map[string]Rule),
		byCategory: make(map[string][]Rule),
		isProhib:   make(map[string]bool),
	}

	for _, cat := range p.Categories {
		desc, ok := absoluteDescriptions[cat.Name]
		if !ok {
			desc = cat.Name + " identifiers must be removed"
		}
		rs.rules = append(rs.rules, Rule{
			ID:          fmt.Sprintf("R%d", cat.ID),
			Name:        "Prohibition of " + cat.Name,
			Description: desc,
			Categories:  []string{cat.Name},
			Prohibition: Absolute,
		})
		if cat.Prohibited {
			rs.prohibited = append(rs.prohibited, cat.Name)
			rs.isProhib[cat.Name] = true
		}
	}

	rs.rules = append(rs.rules,
		Rule{
			ID:          "R19",
			Name:        "Age Over 89",
			Description: "Ages over 89 must be aggregated to 90+",
			Categories:  []string{"DATES"},
			Prohibition: Conditional,
			Condition:   "age > 89",
		},
		Rule{
			ID:          "R20",
			Name:        "ZIP Code Population",
			Description: "ZIP codes with population < 20,000 must be zeroed",
			Categories:  []string{"GEOGRAPHIC_SUBDIVISIONS"},
			Prohibition: Conditional,
			Condition:   "zip_population < 20000",
		},
	)

	for _, r := range rs.rules {
		rs.byID[r.ID] = r
		for _, cat := range r.Categories {
			rs.byCategory[cat] = append(rs.byCategory[cat], r)
		}
	}
	return rs
}

// Rules returns the full catalogue in deterministic order: R1..R18 by
// category id, then the conditional rules.
func (rs *RuleSet) Rules() []Rule {
	return append([]Rule(nil), rs.rules...)
}

// RuleByID returns the rule with the given id, if it exists.
func (rs *RuleSet) RuleByID(id string) (Rule, bool) {
	r, ok := rs.byID[id]
	return r, ok
}

// RulesForCategory returns every rule applying to the category, in
// catalogue order. The absolute rule always comes first.
func (rs *RuleSet) RulesForCategory(name string) []Rule {
	return append([]Rule(nil), rs.byCategory[name]...)
}

// ProhibitedCategories returns the prohibited category names in id order.
func (rs *RuleSet) ProhibitedCategories() []string {
	return append([]string(nil), rs.prohibited...)
}

// IsProhibited reports whether the bare category name is prohibited.
func (rs *RuleSet) IsProhibited(name string) bool {
	return rs.isProhib[name]
}
