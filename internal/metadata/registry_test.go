package metadata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingLoader struct {
	calls int
	reqs  []*FieldRequirement
	err   error
}

func (l *countingLoader) LoadFieldRequirements(context.Context) ([]*FieldRequirement, error) {
	l.calls++
	return l.reqs, l.err
}

// gatedLoader blocks its first load until release is closed.
type gatedLoader struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	reqs    []*FieldRequirement
}

func newGatedLoader(reqs []*FieldRequirement) *gatedLoader {
	return &gatedLoader{started: make(chan struct{}), release: make(chan struct{}), reqs: reqs}
}

func (l *gatedLoader) LoadFieldRequirements(context.Context) ([]*FieldRequirement, error) {
	if l.calls.Add(1) == 1 {
		close(l.started)
		<-l.release
	}
	return l.reqs, nil
}

func testRequirements() []*FieldRequirement {
	return []*FieldRequirement{
		{Entity: "properties", Attribute: "price", Label: "価格", RequiredFor: []string{"land", "house"}},
		{Entity: "land_info", Attribute: "land_area", Label: "土地面積", RequiredFor: []string{"land"}},
		{Entity: "properties", Attribute: "address", Label: "所在地", RequiredFor: []string{"land", "house", "apartment"}},
		{Entity: "land_info", Attribute: "zoning", Label: "", RequiredFor: []string{"land"}},
		{Entity: "building_info", Attribute: "floor_plan", Label: "間取り", RequiredFor: []string{}},
	}
}

func TestResolveRequiredFields_OrderAndFilter(t *testing.T) {
	fields := ResolveRequiredFields(testRequirements(), "land")

	want := []string{"land_info.land_area", "land_info.zoning", "properties.address", "properties.price"}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(fields))
	}
	for i, f := range fields {
		if got := f.Entity + "." + f.Attribute; got != want[i] {
			t.Errorf("field %d: expected %s, got %s", i, want[i], got)
		}
	}
}

func TestResolveRequiredFields_LabelFallback(t *testing.T) {
	fields := ResolveRequiredFields(testRequirements(), "land")
	for _, f := range fields {
		if f.Attribute == "zoning" && f.Label != "zoning" {
			t.Fatalf("expected blank label to fall back to attribute, got %q", f.Label)
		}
		if f.Attribute == "price" && f.Label != "価格" {
			t.Fatalf("expected label 価格, got %q", f.Label)
		}
	}
}

func TestResolveRequiredFields_NoMatch(t *testing.T) {
	if fields := ResolveRequiredFields(testRequirements(), "parking"); len(fields) != 0 {
		t.Fatalf("expected no fields for unknown type, got %v", fields)
	}
	// Dormant rule (empty required_for) never matches.
	for _, f := range ResolveRequiredFields(testRequirements(), "") {
		if f.Attribute == "floor_plan" {
			t.Fatal("dormant rule must not match")
		}
	}
}

func TestNormalize(t *testing.T) {
	r := &FieldRequirement{
		Entity:      " properties ",
		Attribute:   " price",
		RequiredFor: []string{"land", " house", "", "land"},
	}
	r.Normalize()
	if r.Entity != "properties" || r.Attribute != "price" {
		t.Fatalf("identifiers not trimmed: %q %q", r.Entity, r.Attribute)
	}
	if len(r.RequiredFor) != 2 || r.RequiredFor[0] != "house" || r.RequiredFor[1] != "land" {
		t.Fatalf("unexpected tags: %v", r.RequiredFor)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
	if err := (&FieldRequirement{Entity: "properties"}).Validate(); err == nil {
		t.Fatal("expected error for missing attribute")
	}
}

func TestRegistry_NoCacheReadsEveryCall(t *testing.T) {
	loader := &countingLoader{reqs: testRequirements()}
	reg := NewRegistry(loader, 0, nil)

	for i := 0; i < 3; i++ {
		if _, err := reg.RequiredFields(context.Background(), "land"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if loader.calls != 3 {
		t.Fatalf("expected 3 loads, got %d", loader.calls)
	}
}

func TestRegistry_TTLCache(t *testing.T) {
	loader := &countingLoader{reqs: testRequirements()}
	reg := NewRegistry(loader, time.Minute, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	ctx := context.Background()
	reg.RequiredFields(ctx, "land")  //nolint:errcheck
	reg.RequiredFields(ctx, "house") //nolint:errcheck
	if loader.calls != 1 {
		t.Fatalf("expected 1 load within TTL, got %d", loader.calls)
	}

	now = now.Add(2 * time.Minute)
	reg.RequiredFields(ctx, "land") //nolint:errcheck
	if loader.calls != 2 {
		t.Fatalf("expected reload after TTL, got %d loads", loader.calls)
	}

	reg.Invalidate()
	reg.RequiredFields(ctx, "land") //nolint:errcheck
	if loader.calls != 3 {
		t.Fatalf("expected reload after invalidate, got %d loads", loader.calls)
	}
}

func TestRegistry_LoaderErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	reg := NewRegistry(&countingLoader{err: boom}, time.Minute, nil)

	fields, err := reg.RequiredFields(context.Background(), "land")
	if err == nil {
		t.Fatal("expected error from loader")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped loader error, got %v", err)
	}
	if fields != nil {
		t.Fatalf("expected nil fields on error, got %v", fields)
	}
}

func TestRegistry_InvalidateDuringLoadIsNotCached(t *testing.T) {
	loader := newGatedLoader(testRequirements())
	reg := NewRegistry(loader, time.Hour, nil)
	ctx := context.Background()

	done := make(chan []RequiredField)
	go func() {
		fields, err := reg.RequiredFields(ctx, "land")
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- fields
	}()

	<-loader.started
	reg.Invalidate()
	close(loader.release)

	if fields := <-done; len(fields) != 4 {
		t.Fatalf("expected the in-flight load to be returned, got %d fields", len(fields))
	}

	if _, err := reg.RequiredFields(ctx, "land"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := loader.calls.Load(); got != 2 {
		t.Fatalf("expected reload after invalidate during load, got %d loads", got)
	}

	if _, err := reg.RequiredFields(ctx, "land"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := loader.calls.Load(); got != 2 {
		t.Fatalf("expected the reload to be cached, got %d loads", got)
	}
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	var calls atomic.Int32
	loader := LoaderFunc(func(context.Context) ([]*FieldRequirement, error) {
		calls.Add(1)
		return testRequirements(), nil
	})
	reg := NewRegistry(loader, time.Minute, nil)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				fields, err := reg.RequiredFields(ctx, "land")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if len(fields) != 4 || fields[0].Attribute != "land_area" {
					t.Errorf("unexpected fields: %v", fields)
					return
				}
				if (i+j)%3 == 0 {
					reg.Invalidate()
				}
			}
		}(i)
	}
	wg.Wait()

	if calls.Load() == 0 {
		t.Fatal("expected at least one load")
	}
}
