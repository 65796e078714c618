package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"estate-backend/internal/instrument"
	"estate-backend/internal/metadata"
)

// ErrRuleStoreUnavailable marks a failure to read field requirements. The
// publish attempt is blocked-unknown, not blocked-invalid.
var ErrRuleStoreUnavailable = errors.New("rule store unavailable")

// PropertyTypeNotSetLabel is the single missing-field label reported when
// the snapshot carries no property type.
const PropertyTypeNotSetLabel = "物件種別（未設定）"

// RequirementSource resolves the required fields for a property type.
// Implemented by *metadata.Registry.
type RequirementSource interface {
	RequiredFields(ctx context.Context, propertyType string) ([]metadata.RequiredField, error)
}

// Outcome is the result of a publication check.
type Outcome struct {
	IsValid       bool     `json:"is_valid"`
	MissingFields []string `json:"missing_fields"`
}

func passed() Outcome {
	return Outcome{IsValid: true, MissingFields: []string{}}
}

// GateSet is the set of publication statuses whose entry is checked.
type GateSet map[string]struct{}

func NewGateSet(statuses ...string) GateSet {
	g := make(GateSet, len(statuses))
	for _, s := range statuses {
		if strings.TrimSpace(s) == "" {
			continue
		}
		g[s] = struct{}{}
	}
	return g
}

// Gated reports whether status requires validation.
func (g GateSet) Gated(status string) bool {
	_, ok := g[status]
	return ok
}

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	GatedStatuses         []string
	PropertyTypeAttribute string
}

// Validator decides whether a property snapshot may enter a gated
// publication status. It holds no per-call state and is safe for
// concurrent use.
type Validator struct {
	source     RequirementSource
	gate       GateSet
	typeAttr   string
	conditions *ConditionEvaluator
	logger     *zap.Logger
}

func NewValidator(source RequirementSource, cfg ValidatorConfig, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	typeAttr := cfg.PropertyTypeAttribute
	if typeAttr == "" {
		typeAttr = "property_type"
	}
	return &Validator{
		source:     source,
		gate:       NewGateSet(cfg.GatedStatuses...),
		typeAttr:   typeAttr,
		conditions: NewConditionEvaluator(logger),
		logger:     logger,
	}
}

// Gate returns the configured gate set.
func (v *Validator) Gate() GateSet {
	return v.gate
}

// Validate checks snap for a transition from current to requested status.
// Missing fields are reported in the Outcome; the only error is a wrapped
// ErrRuleStoreUnavailable.
func (v *Validator) Validate(ctx context.Context, snap Snapshot, requested, current string) (Outcome, error) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "publication", "publication.validate")
	defer span.End()
	span.SetMetadata("requested_status", requested)
	span.SetMetadata("current_status", current)

	if !v.gate.Gated(requested) {
		span.SetStatus("skip")
		return passed(), nil
	}
	if requested == current {
		span.SetStatus("skip")
		return passed(), nil
	}

	propertyType := v.propertyType(snap)
	if propertyType == "" {
		span.SetStatus("fail")
		return Outcome{MissingFields: []string{PropertyTypeNotSetLabel}}, nil
	}
	span.SetEntity(propertyType, "")

	fields, err := v.source.RequiredFields(ctx, propertyType)
	if err != nil {
		span.SetStatus("error")
		return Outcome{}, fmt.Errorf("%w: %w", ErrRuleStoreUnavailable, err)
	}

	missing := []string{}
	env := map[string]any{"record": snap.Env()}
	for _, f := range fields {
		if f.Condition != "" && !v.conditions.Applies(f.Condition, env) {
			continue
		}
		if snap.Missing(f.Attribute) {
			missing = append(missing, f.Label)
		}
	}

	span.SetMetadata("required_fields", len(fields))
	span.SetMetadata("missing_fields", len(missing))
	if len(missing) > 0 {
		span.SetStatus("fail")
		v.logger.Debug("publication blocked",
			zap.String("property_type", propertyType),
			zap.String("requested_status", requested),
			zap.Strings("missing_fields", missing))
		return Outcome{MissingFields: missing}, nil
	}
	span.SetStatus("pass")
	return passed(), nil
}

func (v *Validator) propertyType(snap Snapshot) string {
	val, ok := snap.Get(v.typeAttr)
	if !ok {
		return ""
	}
	return strings.TrimSpace(val.Text())
}
