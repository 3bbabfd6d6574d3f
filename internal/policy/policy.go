// Package policy loads and validates the Safe Harbor de-identification
// policy document: the fixed 18 identifier categories, the BIO label
// vocabulary derived from them, and the dataset label remap table.
//
// A Policy is loaded once at startup, validated, and treated as read-only
// for the life of the process. Every other component (labels.Mapper,
// rules.RuleSet, verify.Verifier) is constructed from a validated Policy
// passed by reference; there is no ambient global configuration.
package policy

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CategoryCount is the fixed number of Safe Harbor identifier categories.
const CategoryCount = 18

// FallbackCategory receives dataset tags with no remap entry.
const FallbackCategory = "ANY_OTHER_UNIQUE_IDENTIFYING_NUMBER"

var (
	// ErrNotFound indicates the policy document path does not exist.
	ErrNotFound = errors.New("policy document not found")

	// ErrMalformed indicates the policy document failed schema validation.
	ErrMalformed = errors.New("policy document malformed")
)

// Category is one of the 18 Safe Harbor identifier categories.
type Category struct {
	ID          int      `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Examples    []string `json:"examples" yaml:"examples"`
	Prohibited  bool     `json:"prohibited" yaml:"prohibited"`
}

// BIOLabels returns the category's begin/inside span labels.
func (c Category) BIOLabels() [2]string {
	return [2]string{"B-" + c.Name, "I-" + c.Name}
}

// Policy is the parsed, validated policy document.
type Policy struct {
	Version           string            `json:"version" yaml:"version"`
	Name              string            `json:"name" yaml:"name"`
	Description       string            `json:"description" yaml:"description"`
	Categories        []Category        `json:"categories" yaml:"categories"`
	LabelList         []string          `json:"label_list" yaml:"label_list"`
	NumLabels         int               `json:"num_labels" yaml:"num_labels"`
	DatasetLabelRemap map[string]string `json:"dataset_label_remap" yaml:"dataset_label_remap"`
}

//go:embed hipaa-v1.json
var defaultDocument []byte

// Default returns the embedded hipaa-v1 policy. The embedded document is
// validated the same way an external one would be; a broken embed is a
// programming error, so Default panics rather than returning an error.
func Default() *Policy {
	p, err := parse(defaultDocument, false)
	if err != nil {
		panic(fmt.Sprintf("embedded policy document invalid: %v", err))
	}
	return p
}

// Load reads and validates a policy document from disk. JSON is assumed
// unless the path ends in .yaml or .yml. Returns ErrNotFound if the file
// is missing and ErrMalformed (wrapped with detail) on any schema problem.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read policy document: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	return parse(data, ext == ".yaml" || ext == ".yml")
}

func parse(data []byte, isYAML bool) (*Policy, error) {
	var p Policy
	if isYAML {
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// validate enforces the structural invariants the rest of the system
// relies on: 18 categories with sequential ids, a 37-entry label list
// whose order matches category id order, and a remap table that only
// targets known categories.
func (p *Policy) validate() error {
	if len(p.Categories) == 0 {
		return fmt.Errorf("%w: missing categories", ErrMalformed)
	}
	if len(p.LabelList) == 0 {
		return fmt.Errorf("%w: missing label_list", ErrMalformed)
	}
	if p.DatasetLabelRemap == nil {
		return fmt.Errorf("%w: missing dataset_label_remap", ErrMalformed)
	}

	if len(p.Categories) != CategoryCount {
		return fmt.Errorf("%w: expected %d categories, got %d", ErrMalformed, CategoryCount, len(p.Categories))
	}

	names := make(map[string]bool, len(p.Categories))
	for i, cat := range p.Categories {
		if cat.Name == "" {
			return fmt.Errorf("%w: category %d has empty name", ErrMalformed, i)
		}
		if cat.ID != i+1 {
			return fmt.Errorf("%w: category ids must be sequential 1..%d, got id %d at position %d",
				ErrMalformed, CategoryCount, cat.ID, i)
		}
		if names[cat.Name] {
			return fmt.Errorf("%w: duplicate category %s", ErrMalformed, cat.Name)
		}
		names[cat.Name] = true
	}

	want := 1 + 2*len(p.Categories)
	if len(p.LabelList) != want {
		return fmt.Errorf("%w: label_list must have %d entries, got %d", ErrMalformed, want, len(p.LabelList))
	}
	if p.NumLabels != len(p.LabelList) {
		return fmt.Errorf("%w: num_labels %d does not match label_list length %d",
			ErrMalformed, p.NumLabels, len(p.LabelList))
	}
	if p.LabelList[0] != "O" {
		return fmt.Errorf("%w: label_list must start with O, got %q", ErrMalformed, p.LabelList[0])
	}
	for i, cat := range p.Categories {
		bio := cat.BIOLabels()
		if p.LabelList[1+2*i] != bio[0] || p.LabelList[2+2*i] != bio[1] {
			return fmt.Errorf("%w: label_list order must follow category id order, want %s/%s at positions %d/%d",
				ErrMalformed, bio[0], bio[1], 1+2*i, 2+2*i)
		}
	}

	for tag, target := range p.DatasetLabelRemap {
		if !names[target] {
			return fmt.Errorf("%w: remap %s -> %s targets unknown category", ErrMalformed, tag, target)
		}
	}
	if !names[FallbackCategory] {
		return fmt.Errorf("%w: fallback category %s missing", ErrMalformed, FallbackCategory)
	}

	return nil
}

// CategoryByName returns the category with the given name (exact,
// case-sensitive match) and whether it exists.
func (p *Policy) CategoryByName(name string) (Category, bool) {
	for _, cat := range p.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// CategoryNames returns the category names in id order.
func (p *Policy) CategoryNames() []string {
	names := make([]string, len(p.Categories))
	for i, cat := range p.Categories {
		names[i] = cat.Name
	}
	return names
}

// ProhibitedCategories returns the names of categories flagged as
// prohibited, in id order.
func (p *Policy) ProhibitedCategories() []string {
	var names []string
	for _, cat := range p.Categories {
		if cat.Prohibited {
			names = append(names, cat.Name)
		}
	}
	return names
}
