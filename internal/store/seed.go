package store

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"estate-backend/internal/metadata"
)

// SeedFile is the YAML layout of a field requirement seed file:
//
//	requirements:
//	  - entity: properties
//	    attribute: price
//	    label: 価格
//	    required_for: [land, house]
type SeedFile struct {
	Requirements []*metadata.FieldRequirement `yaml:"requirements"`
}

// ReadSeedFile parses and normalizes the requirements in a YAML seed file.
func ReadSeedFile(path string) ([]*metadata.FieldRequirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// ParseSeed decodes a seed document. Entries are normalized and validated;
// a duplicate (entity, attribute) pair is an error.
func ParseSeed(r io.Reader) ([]*metadata.FieldRequirement, error) {
	var doc SeedFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	seen := make(map[string]bool, len(doc.Requirements))
	for i, req := range doc.Requirements {
		req.Normalize()
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		if seen[req.Key()] {
			return nil, fmt.Errorf("seed entry %d: duplicate requirement %s", i, req.Key())
		}
		seen[req.Key()] = true
	}
	return doc.Requirements, nil
}

// Seed upserts the requirements in a single transaction.
func (s *Store) Seed(ctx context.Context, reqs []*metadata.FieldRequirement) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, req := range reqs {
		if err := s.UpsertFieldRequirement(ctx, tx, req); err != nil {
			return fmt.Errorf("upsert %s: %w", req.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
