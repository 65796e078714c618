package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"estate-backend/internal/engine"
	"estate-backend/internal/metadata"
)

const userLocal = "user"

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthMiddleware resolves the caller from a signed access token. The caller
// is stored in the fiber locals and in the request context.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return engine.UnauthorizedError("Missing auth token")
		}
		token, ok := bearerToken(header)
		if !ok {
			return engine.UnauthorizedError("Invalid auth header format")
		}

		claims, err := ParseAccessToken(token, secret)
		if err != nil {
			return engine.UnauthorizedError("Invalid or expired token")
		}

		user := &metadata.UserContext{ID: claims.Subject, Roles: claims.Roles}
		c.Locals(userLocal, user)
		c.SetUserContext(metadata.WithUser(c.UserContext(), user))
		return c.Next()
	}
}

// RequireRuleEditor rejects callers that may not change field requirements.
// It must run after AuthMiddleware.
func RequireRuleEditor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return engine.UnauthorizedError("Missing auth token")
		}
		if !user.CanEditRules() {
			return engine.ForbiddenError("Editing field requirements requires the " + metadata.RoleAdmin + " role")
		}
		return c.Next()
	}
}

func GetUser(c *fiber.Ctx) *metadata.UserContext {
	user, _ := c.Locals(userLocal).(*metadata.UserContext)
	return user
}
