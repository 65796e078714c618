package metadata

import "context"

// Loader reads the full set of field requirements from the rule store.
type Loader interface {
	LoadFieldRequirements(ctx context.Context) ([]*FieldRequirement, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) ([]*FieldRequirement, error)

func (f LoaderFunc) LoadFieldRequirements(ctx context.Context) ([]*FieldRequirement, error) {
	return f(ctx)
}

// StaticLoader serves a fixed requirement set. Used by the CLI when
// validating against a YAML rules file, and by tests.
type StaticLoader []*FieldRequirement

func (s StaticLoader) LoadFieldRequirements(context.Context) ([]*FieldRequirement, error) {
	return s, nil
}
