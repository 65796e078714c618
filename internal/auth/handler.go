package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"estate-backend/internal/engine"
	"estate-backend/internal/store"
)

// UserFinder looks up admin-surface accounts.
type UserFinder interface {
	FindUserByEmail(ctx context.Context, email string) (*store.User, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	users     UserFinder
	jwtSecret string
	logger    *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users UserFinder, jwtSecret string, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{users: users, jwtSecret: jwtSecret, logger: logger}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.InvalidPayloadError("Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("Email and password are required")
	}

	user, err := h.users.FindUserByEmail(c.UserContext(), body.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Error("find user", zap.Error(err))
		}
		return engine.UnauthorizedError("Invalid email or password")
	}
	if !user.Active {
		return engine.UnauthorizedError("Account is disabled")
	}
	if !user.CheckPassword(body.Password) {
		return engine.UnauthorizedError("Invalid email or password")
	}

	token, err := GenerateAccessToken(user.ID, user.Roles, h.jwtSecret)
	if err != nil {
		return engine.NewAppError("INTERNAL_ERROR", 500, "Failed to generate access token")
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"access_token": token}})
}

// RegisterAuthRoutes registers auth routes on the given Fiber app.
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler) {
	auth := app.Group("/api/auth")
	auth.Post("/login", h.Login)
}
