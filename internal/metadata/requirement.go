package metadata

import (
	"fmt"
	"sort"
	"strings"
)

// FieldRequirement represents a row in the _field_requirements table: the
// property types for which an attribute must be filled before publication.
type FieldRequirement struct {
	ID          string   `json:"id" yaml:"id,omitempty"`
	Entity      string   `json:"entity" yaml:"entity"`
	Attribute   string   `json:"attribute" yaml:"attribute"`
	Label       string   `json:"label" yaml:"label"`
	RequiredFor []string `json:"required_for" yaml:"required_for"`

	// Condition is an optional boolean expression over "record". When set,
	// the requirement applies only to snapshots for which it holds.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// RequiredField is one (entity, attribute, label) tuple that must be present
// in a snapshot for the property type it was resolved for.
type RequiredField struct {
	Entity    string `json:"entity"`
	Attribute string `json:"attribute"`
	Label     string `json:"label"`
	Condition string `json:"condition,omitempty"`
}

// Key returns the uniqueness key "entity.attribute".
func (r *FieldRequirement) Key() string {
	return r.Entity + "." + r.Attribute
}

// AppliesTo reports whether propertyType is in the requirement's set.
func (r *FieldRequirement) AppliesTo(propertyType string) bool {
	for _, t := range r.RequiredFor {
		if t == propertyType {
			return true
		}
	}
	return false
}

// DisplayLabel returns the label, falling back to the raw attribute name.
func (r *FieldRequirement) DisplayLabel() string {
	if strings.TrimSpace(r.Label) == "" {
		return r.Attribute
	}
	return r.Label
}

// Normalize trims identifiers and removes blank and duplicate type tags.
func (r *FieldRequirement) Normalize() {
	r.Entity = strings.TrimSpace(r.Entity)
	r.Attribute = strings.TrimSpace(r.Attribute)
	r.Label = strings.TrimSpace(r.Label)
	r.Condition = strings.TrimSpace(r.Condition)

	seen := make(map[string]bool, len(r.RequiredFor))
	tags := make([]string, 0, len(r.RequiredFor))
	for _, t := range r.RequiredFor {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	sort.Strings(tags)
	r.RequiredFor = tags
}

// Validate checks that the requirement can be stored.
func (r *FieldRequirement) Validate() error {
	if r.Entity == "" {
		return fmt.Errorf("entity is required")
	}
	if r.Attribute == "" {
		return fmt.Errorf("attribute is required")
	}
	return nil
}

// ResolveRequiredFields selects every requirement whose RequiredFor set
// contains propertyType and returns them ordered by (entity, attribute).
// An empty result is not an error.
func ResolveRequiredFields(reqs []*FieldRequirement, propertyType string) []RequiredField {
	var fields []RequiredField
	for _, r := range reqs {
		if !r.AppliesTo(propertyType) {
			continue
		}
		fields = append(fields, RequiredField{
			Entity:    r.Entity,
			Attribute: r.Attribute,
			Label:     r.DisplayLabel(),
			Condition: r.Condition,
		})
	}
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Entity != fields[j].Entity {
			return fields[i].Entity < fields[j].Entity
		}
		return fields[i].Attribute < fields[j].Attribute
	})
	return fields
}
