package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"estate-backend/internal/instrument"
)

// Registry serves field requirements to the publication gate. It reads
// every requirement from its Loader and filters by property type in memory.
// With a positive TTL the loaded set is reused until it expires or
// Invalidate is called; with a zero TTL every call reads the loader.
type Registry struct {
	loader Loader
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu           sync.RWMutex
	requirements []*FieldRequirement
	loadedAt     time.Time
	valid        bool
	generation   uint64
}

func NewRegistry(loader Loader, ttl time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		loader: loader,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// RequiredFields returns the ordered required fields for propertyType.
// Loader failures are returned wrapped; they are never read as "no rules".
func (r *Registry) RequiredFields(ctx context.Context, propertyType string) ([]RequiredField, error) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "metadata", "registry", "requirements.resolve")
	defer span.End()
	span.SetMetadata("property_type", propertyType)

	reqs, err := r.all(ctx)
	if err != nil {
		span.SetStatus("error")
		return nil, err
	}

	fields := ResolveRequiredFields(reqs, propertyType)
	span.SetMetadata("required_fields", len(fields))
	span.SetStatus("ok")
	return fields, nil
}

// Invalidate drops the cached requirement set. Called after admin mutations.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.valid = false
	r.requirements = nil
	r.generation++
}

func (r *Registry) all(ctx context.Context) ([]*FieldRequirement, error) {
	if r.ttl <= 0 {
		return r.load(ctx)
	}

	r.mu.RLock()
	if r.valid && r.now().Sub(r.loadedAt) < r.ttl {
		reqs := r.requirements
		r.mu.RUnlock()
		return reqs, nil
	}
	gen := r.generation
	r.mu.RUnlock()

	reqs, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	// A load that raced with Invalidate is returned but not cached.
	r.mu.Lock()
	if gen == r.generation {
		r.requirements = reqs
		r.loadedAt = r.now()
		r.valid = true
	}
	r.mu.Unlock()
	return reqs, nil
}

func (r *Registry) load(ctx context.Context) ([]*FieldRequirement, error) {
	reqs, err := r.loader.LoadFieldRequirements(ctx)
	if err != nil {
		r.logger.Error("load field requirements", zap.Error(err))
		return nil, fmt.Errorf("load field requirements: %w", err)
	}
	r.logger.Debug("loaded field requirements", zap.Int("count", len(reqs)))
	return reqs, nil
}
