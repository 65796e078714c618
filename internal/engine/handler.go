package engine

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"estate-backend/internal/metadata"
)

type Handler struct {
	validator *Validator
	source    RequirementSource
	formatter Formatter
	logger    *zap.Logger
}

func NewHandler(v *Validator, source RequirementSource, f Formatter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{validator: v, source: source, formatter: f, logger: logger}
}

// ValidateRequest is the body of POST /api/publication/validate. Record
// holds the persisted values and Pending the unsaved edits; pending wins.
type ValidateRequest struct {
	Record          map[string]any `json:"record"`
	Pending         map[string]any `json:"pending"`
	RequestedStatus string         `json:"requested_status"`
	CurrentStatus   *string        `json:"current_status"`
}

type ValidateResponse struct {
	Outcome
	Message string `json:"message,omitempty"`
}

// Validate handles POST /api/publication/validate
func (h *Handler) Validate(c *fiber.Ctx) error {
	var body ValidateRequest
	if err := c.BodyParser(&body); err != nil {
		return InvalidPayloadError("Invalid JSON body")
	}
	if strings.TrimSpace(body.RequestedStatus) == "" {
		return ValidationError([]ErrorDetail{{
			Field: "requested_status", Rule: "required", Message: "requested_status is required",
		}})
	}

	current := ""
	if body.CurrentStatus != nil {
		current = *body.CurrentStatus
	}

	snap := Merge(SnapshotFromMap(body.Record), SnapshotFromMap(body.Pending))
	outcome, err := h.validator.Validate(c.UserContext(), snap, body.RequestedStatus, current)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"data": ValidateResponse{
		Outcome: outcome,
		Message: h.formatter.Format(outcome, body.RequestedStatus),
	}})
}

// RequiredFields handles GET /api/publication/requirements/:type
func (h *Handler) RequiredFields(c *fiber.Ctx) error {
	propertyType, err := url.PathUnescape(c.Params("type"))
	if err != nil || strings.TrimSpace(propertyType) == "" {
		return InvalidPayloadError("Invalid property type")
	}

	fields, err := h.source.RequiredFields(c.UserContext(), propertyType)
	if err != nil {
		h.logger.Error("resolve required fields", zap.String("property_type", propertyType), zap.Error(err))
		return RuleStoreUnavailableError()
	}
	if fields == nil {
		fields = []metadata.RequiredField{}
	}
	return c.JSON(fiber.Map{"data": fields})
}
