// Package labels translates between three label spaces: raw dataset tags
// produced by external annotation tooling, the canonical BIO label
// vocabulary of the Safe Harbor policy, and dense integer label ids used
// by sequence-labeling models.
package labels

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aare-health/safeharbor/internal/policy"
)

// ErrEmptyLabel is returned when a caller passes an empty string to
// RemapLabel or RemapLabelToID. An empty tag is an annotation bug, not a
// tag to be silently remapped to the fallback category.
var ErrEmptyLabel = errors.New("empty label")

// Mapper provides label translation over a fixed policy. Immutable after
// construction; safe for concurrent use.
type Mapper struct {
	labelList  []string
	label2id   map[string]int
	id2label   map[int]string
	remap      map[string]string
	categories []policy.Category
	byName     map[string]policy.Category
	prohibited map[string]bool
}

// NewMapper derives the label maps from a validated policy.
func NewMapper(p *policy.Policy) *Mapper {
	m := &Mapper{
		labelList:  append([]string(nil), p.LabelList...),
		label2id:   make(map[string]int, len(p.LabelList)),
		id2label:   make(map[int]string, len(p.LabelList)),
		remap:      make(map[string]string, len(p.DatasetLabelRemap)),
		categories: append([]policy.Category(nil), p.Categories...),
		byName:     make(map[string]policy.Category, len(p.Categories)),
		prohibited: make(map[string]bool, len(p.Categories)),
	}

	for i, label := range m.labelList {
		m.label2id[label] = i
		m.id2label[i] = label
	}
	for tag, target := range p.DatasetLabelRemap {
		m.remap[tag] = target
	}
	for _, cat := range m.categories {
		m.byName[cat.Name] = cat
		if cat.Prohibited {
			m.prohibited[cat.Name] = true
		}
	}
	return m
}

// RemapLabel translates a raw dataset tag into a canonical BIO label.
//
// "O" maps to itself. A tag without a B-/I- prefix is assumed to be a
// span begin (B-). The bare tag is resolved case-sensitively: a remap
// table hit wins, an already-canonical category name is kept unchanged,
// and anything else falls back to the catch-all category. The original
// prefix is reattached.
//
// Returns ErrEmptyLabel for the empty string.
func (m *Mapper) RemapLabel(raw string) (string, error) {
	if raw == "" {
		return "", ErrEmptyLabel
	}
	if raw == "O" {
		return "O", nil
	}

	prefix := "B-"
	bare := raw
	if strings.HasPrefix(raw, "B-") || strings.HasPrefix(raw, "I-") {
		prefix = raw[:2]
		bare = raw[2:]
	}
	if bare == "" {
		return "", fmt.Errorf("%w: bare tag missing after %q prefix", ErrEmptyLabel, prefix)
	}

	if target, ok := m.remap[bare]; ok {
		return prefix + target, nil
	}
	if _, ok := m.byName[bare]; ok {
		return prefix + bare, nil
	}
	return prefix + policy.FallbackCategory, nil
}

// RemapLabelToID translates a raw dataset tag into its dense label id.
func (m *Mapper) RemapLabelToID(raw string) (int, error) {
	label, err := m.RemapLabel(raw)
	if err != nil {
		return 0, err
	}
	id, ok := m.label2id[label]
	if !ok {
		// Remap targets are validated against the category list at policy
		// load time, so every remapped label is in the vocabulary.
		return 0, fmt.Errorf("remapped label %q not in vocabulary", label)
	}
	return id, nil
}

// CategoryInfo returns the category with the given name. The match is
// exact and case-sensitive; "names" does not match "NAMES".
func (m *Mapper) CategoryInfo(name string) (policy.Category, bool) {
	cat, ok := m.byName[name]
	return cat, ok
}

// IsProhibited reports whether a BIO label or bare category name refers
// to a prohibited category. "O", unknown strings, case variants, and
// non-BIO prefixes (e.g. "X-NAMES") are all false.
func (m *Mapper) IsProhibited(s string) bool {
	if s == "O" {
		return false
	}
	if strings.HasPrefix(s, "B-") || strings.HasPrefix(s, "I-") {
		s = s[2:]
	}
	return m.prohibited[s]
}

// LabelList returns a copy of the ordered label vocabulary.
func (m *Mapper) LabelList() []string {
	return append([]string(nil), m.labelList...)
}

// NumLabels returns the size of the label vocabulary.
func (m *Mapper) NumLabels() int {
	return len(m.labelList)
}

// Categories returns a copy of the ordered category list.
func (m *Mapper) Categories() []policy.Category {
	return append([]policy.Category(nil), m.categories...)
}

// ProhibitedCategories returns the prohibited category names in id order.
func (m *Mapper) ProhibitedCategories() []string {
	var names []string
	for _, cat := range m.categories {
		if cat.Prohibited {
			names = append(names, cat.Name)
		}
	}
	return names
}

// IDForLabel returns the dense id for a canonical label.
func (m *Mapper) IDForLabel(label string) (int, bool) {
	id, ok := m.label2id[label]
	return id, ok
}

// LabelForID returns the canonical label for a dense id.
func (m *Mapper) LabelForID(id int) (string, bool) {
	label, ok := m.id2label[id]
	return label, ok
}

// RemapTable returns a copy of the raw-tag remap table.
func (m *Mapper) RemapTable() map[string]string {
	out := make(map[string]string, len(m.remap))
	for k, v := range m.remap {
		out[k] = v
	}
	return out
}
