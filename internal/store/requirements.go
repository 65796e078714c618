package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"estate-backend/internal/metadata"
)

const requirementColumns = "id, entity, attribute, label, required_for, condition_expr"

// LoadFieldRequirements reads every row of _field_requirements ordered by
// (entity, attribute). It implements metadata.Loader.
func (s *Store) LoadFieldRequirements(ctx context.Context) ([]*metadata.FieldRequirement, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+requirementColumns+" FROM _field_requirements ORDER BY entity, attribute")
	if err != nil {
		return nil, fmt.Errorf("query field requirements: %w", err)
	}
	defer rows.Close()

	var reqs []*metadata.FieldRequirement
	for rows.Next() {
		r, err := s.scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return reqs, nil
}

// GetFieldRequirement returns the requirement with the given id or ErrNotFound.
func (s *Store) GetFieldRequirement(ctx context.Context, id string) (*metadata.FieldRequirement, error) {
	pb := s.Dialect.NewParamBuilder()
	row := s.DB.QueryRowContext(ctx,
		"SELECT "+requirementColumns+" FROM _field_requirements WHERE id = "+pb.Add(id),
		pb.Params()...)
	r, err := s.scanRequirement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// CreateFieldRequirement inserts a new requirement. A duplicate
// (entity, attribute) pair yields ErrUniqueViolation.
func (s *Store) CreateFieldRequirement(ctx context.Context, r *metadata.FieldRequirement) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	pb := s.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		"INSERT INTO _field_requirements (%s) VALUES (%s, %s, %s, %s, %s, %s)",
		requirementColumns,
		pb.Add(r.ID), pb.Add(r.Entity), pb.Add(r.Attribute), pb.Add(r.Label),
		pb.Add(s.Dialect.ArrayParam(r.RequiredFor)), pb.Add(r.Condition))
	if _, err := Exec(ctx, s.DB, query, pb.Params()...); err != nil {
		return s.Dialect.MapError(err)
	}
	return nil
}

// UpdateFieldRequirement replaces the requirement with the given id.
func (s *Store) UpdateFieldRequirement(ctx context.Context, id string, r *metadata.FieldRequirement) error {
	pb := s.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		"UPDATE _field_requirements SET entity = %s, attribute = %s, label = %s, required_for = %s, condition_expr = %s, updated_at = %s WHERE id = %s",
		pb.Add(r.Entity), pb.Add(r.Attribute), pb.Add(r.Label),
		pb.Add(s.Dialect.ArrayParam(r.RequiredFor)), pb.Add(r.Condition),
		s.Dialect.NowExpr(), pb.Add(id))
	n, err := Exec(ctx, s.DB, query, pb.Params()...)
	if err != nil {
		return s.Dialect.MapError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	r.ID = id
	return nil
}

// UpsertFieldRequirement inserts or replaces the requirement keyed by
// (entity, attribute), keeping the existing id on conflict.
func (s *Store) UpsertFieldRequirement(ctx context.Context, q Querier, r *metadata.FieldRequirement) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	pb := s.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		`INSERT INTO _field_requirements (%s) VALUES (%s, %s, %s, %s, %s, %s)
		 ON CONFLICT (entity, attribute) DO UPDATE SET
		   label = excluded.label,
		   required_for = excluded.required_for,
		   condition_expr = excluded.condition_expr,
		   updated_at = %s`,
		requirementColumns,
		pb.Add(r.ID), pb.Add(r.Entity), pb.Add(r.Attribute), pb.Add(r.Label),
		pb.Add(s.Dialect.ArrayParam(r.RequiredFor)), pb.Add(r.Condition),
		s.Dialect.NowExpr())
	if _, err := Exec(ctx, q, query, pb.Params()...); err != nil {
		return s.Dialect.MapError(err)
	}
	return nil
}

// DeleteFieldRequirement removes the requirement with the given id.
func (s *Store) DeleteFieldRequirement(ctx context.Context, id string) error {
	pb := s.Dialect.NewParamBuilder()
	n, err := Exec(ctx, s.DB, "DELETE FROM _field_requirements WHERE id = "+pb.Add(id), pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRequirement(row rowScanner) (*metadata.FieldRequirement, error) {
	var r metadata.FieldRequirement
	var requiredFor any
	if err := row.Scan(&r.ID, &r.Entity, &r.Attribute, &r.Label, &requiredFor, &r.Condition); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan field requirement: %w", err)
	}
	tags, err := s.Dialect.ScanArray(requiredFor)
	if err != nil {
		return nil, fmt.Errorf("field requirement %s: %w", r.Key(), err)
	}
	r.RequiredFor = tags
	return &r, nil
}
