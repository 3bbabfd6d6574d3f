package api

import (
	"net/http"
)

// handleListRules implements GET /api/safeharbor/rules.
func (d *Dependencies) handleListRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, d.Verifier.Rules().Rules())
}

// handleGetRule implements GET /api/safeharbor/rules/{rule_id}.
func (d *Dependencies) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("rule_id")
	rule, ok := d.Verifier.Rules().RuleByID(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Rule not found"})
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleListCategories implements GET /api/safeharbor/categories.
func (d *Dependencies) handleListCategories(w http.ResponseWriter, _ *http.Request) {
	cats := d.Mapper.Categories()
	resp := make([]CategoryResp, 0, len(cats))
	for _, cat := range cats {
		bio := cat.BIOLabels()
		resp = append(resp, CategoryResp{
			ID:          cat.ID,
			Name:        cat.Name,
			Description: cat.Description,
			Examples:    cat.Examples,
			Prohibited:  cat.Prohibited,
			BIOLabels:   []string{bio[0], bio[1]},
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListLabels implements GET /api/safeharbor/labels.
func (d *Dependencies) handleListLabels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LabelsResp{
		Labels:    d.Mapper.LabelList(),
		NumLabels: d.Mapper.NumLabels(),
	})
}
