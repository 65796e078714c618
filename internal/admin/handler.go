package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"estate-backend/internal/engine"
	"estate-backend/internal/metadata"
	"estate-backend/internal/store"
)

// RequirementStore is the persistence surface the admin handler edits.
type RequirementStore interface {
	LoadFieldRequirements(ctx context.Context) ([]*metadata.FieldRequirement, error)
	GetFieldRequirement(ctx context.Context, id string) (*metadata.FieldRequirement, error)
	CreateFieldRequirement(ctx context.Context, r *metadata.FieldRequirement) error
	UpdateFieldRequirement(ctx context.Context, id string, r *metadata.FieldRequirement) error
	DeleteFieldRequirement(ctx context.Context, id string) error
}

// Invalidator drops cached requirement sets after a write.
type Invalidator interface {
	Invalidate()
}

type Handler struct {
	store    RequirementStore
	registry Invalidator
	logger   *zap.Logger
}

func NewHandler(s RequirementStore, reg Invalidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: s, registry: reg, logger: logger}
}

func RegisterAdminRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	admin := app.Group("/api/_admin", middleware...)

	admin.Get("/field-requirements", h.ListRequirements)
	admin.Get("/field-requirements/:id", h.GetRequirement)
	admin.Post("/field-requirements", h.CreateRequirement)
	admin.Put("/field-requirements/:id", h.UpdateRequirement)
	admin.Delete("/field-requirements/:id", h.DeleteRequirement)
}

func (h *Handler) ListRequirements(c *fiber.Ctx) error {
	reqs, err := h.store.LoadFieldRequirements(c.UserContext())
	if err != nil {
		return fmt.Errorf("list field requirements: %w", err)
	}
	if reqs == nil {
		reqs = []*metadata.FieldRequirement{}
	}
	return c.JSON(fiber.Map{"data": reqs})
}

func (h *Handler) GetRequirement(c *fiber.Ctx) error {
	id := c.Params("id")
	r, err := h.store.GetFieldRequirement(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.NotFoundError("Field requirement not found: " + id)
		}
		return fmt.Errorf("get field requirement: %w", err)
	}
	return c.JSON(fiber.Map{"data": r})
}

func (h *Handler) CreateRequirement(c *fiber.Ctx) error {
	r, err := parseRequirement(c)
	if err != nil {
		return err
	}
	r.ID = ""

	if err := h.store.CreateFieldRequirement(c.UserContext(), r); err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return engine.ConflictError("Field requirement already exists: " + r.Key())
		}
		return fmt.Errorf("create field requirement: %w", err)
	}

	h.registry.Invalidate()
	h.logger.Info("field requirement created",
		zap.String("id", r.ID), zap.String("key", r.Key()), zap.Strings("required_for", r.RequiredFor),
		zap.String("by", actor(c)))
	return c.Status(201).JSON(fiber.Map{"data": r})
}

func (h *Handler) UpdateRequirement(c *fiber.Ctx) error {
	id := c.Params("id")
	r, err := parseRequirement(c)
	if err != nil {
		return err
	}

	if err := h.store.UpdateFieldRequirement(c.UserContext(), id, r); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return engine.NotFoundError("Field requirement not found: " + id)
		case errors.Is(err, store.ErrUniqueViolation):
			return engine.ConflictError("Field requirement already exists: " + r.Key())
		}
		return fmt.Errorf("update field requirement: %w", err)
	}

	h.registry.Invalidate()
	h.logger.Info("field requirement updated",
		zap.String("id", id), zap.String("key", r.Key()), zap.Strings("required_for", r.RequiredFor),
		zap.String("by", actor(c)))
	return c.JSON(fiber.Map{"data": r})
}

func (h *Handler) DeleteRequirement(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.store.DeleteFieldRequirement(c.UserContext(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.NotFoundError("Field requirement not found: " + id)
		}
		return fmt.Errorf("delete field requirement: %w", err)
	}

	h.registry.Invalidate()
	h.logger.Info("field requirement deleted", zap.String("id", id), zap.String("by", actor(c)))
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id, "deleted": true}})
}

func parseRequirement(c *fiber.Ctx) (*metadata.FieldRequirement, error) {
	var r metadata.FieldRequirement
	if err := c.BodyParser(&r); err != nil {
		return nil, engine.InvalidPayloadError("Invalid JSON body")
	}
	r.Normalize()

	var details []engine.ErrorDetail
	if err := r.Validate(); err != nil {
		details = append(details, engine.ErrorDetail{Rule: "required", Message: err.Error()})
	}
	if r.Condition != "" {
		if _, err := engine.CompileCondition(r.Condition); err != nil {
			details = append(details, engine.ErrorDetail{
				Field:   "condition",
				Rule:    "expression",
				Message: err.Error(),
			})
		}
	}
	if len(details) > 0 {
		return nil, engine.ValidationError(details)
	}
	return &r, nil
}

func actor(c *fiber.Ctx) string {
	if user := metadata.UserFrom(c.UserContext()); user != nil {
		return user.ID
	}
	return ""
}
