package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"estate-backend/internal/engine"
	"estate-backend/internal/metadata"
	"estate-backend/internal/store"
)

const testSecret = "test-secret"

type fakeUsers map[string]*store.User

func (f fakeUsers) FindUserByEmail(_ context.Context, email string) (*store.User, error) {
	u, ok := f[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func testApp(t *testing.T) *fiber.App {
	t.Helper()
	users := fakeUsers{
		"admin@localhost": {ID: "u-1", Email: "admin@localhost", PasswordHash: hashed(t, "pw"), Roles: []string{"admin"}, Active: true},
		"agent@localhost": {ID: "u-2", Email: "agent@localhost", PasswordHash: hashed(t, "pw"), Roles: []string{"agent"}, Active: true},
		"gone@localhost":  {ID: "u-3", Email: "gone@localhost", PasswordHash: hashed(t, "pw"), Active: false},
	}
	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler(zap.NewNop())})
	RegisterAuthRoutes(app, NewAuthHandler(users, testSecret, nil))
	app.Get("/admin-only", AuthMiddleware(testSecret), RequireRuleEditor(), func(c *fiber.Ctx) error {
		if metadata.UserFrom(c.UserContext()) != GetUser(c) {
			return engine.NewAppError("USER_MISMATCH", 500, "request context user differs from locals")
		}
		return c.JSON(fiber.Map{"user": GetUser(c).ID})
	})
	return app
}

func login(t *testing.T, app *fiber.App, email, password string) (int, string) {
	t.Helper()
	b, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, _ := http.NewRequest("POST", "/api/auth/login", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	var env struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	_ = json.Unmarshal(body, &env)
	return resp.StatusCode, env.Data.AccessToken
}

func get(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req, _ := http.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("u-1", []string{"admin"}, testSecret)
	require.NoError(t, err)

	claims, err := ParseAccessToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, []string{"admin"}, claims.Roles)

	_, err = ParseAccessToken(token, "other-secret")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	app := testApp(t)

	status, token := login(t, app, "admin@localhost", "pw")
	require.Equal(t, 200, status)
	require.NotEmpty(t, token)

	status, _ = login(t, app, "admin@localhost", "wrong")
	assert.Equal(t, 401, status)

	status, _ = login(t, app, "nobody@localhost", "pw")
	assert.Equal(t, 401, status)

	status, _ = login(t, app, "gone@localhost", "pw")
	assert.Equal(t, 401, status)
}

func TestAdminMiddleware(t *testing.T) {
	app := testApp(t)

	assert.Equal(t, 401, get(t, app, "/admin-only", ""))
	assert.Equal(t, 401, get(t, app, "/admin-only", "garbage"))

	_, agentToken := login(t, app, "agent@localhost", "pw")
	assert.Equal(t, 403, get(t, app, "/admin-only", agentToken))

	_, adminToken := login(t, app, "admin@localhost", "pw")
	assert.Equal(t, 200, get(t, app, "/admin-only", adminToken))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer  ", "", false},
	}
	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestCanEditRules(t *testing.T) {
	assert.True(t, (&metadata.UserContext{Roles: []string{"agent", metadata.RoleAdmin}}).CanEditRules())
	assert.False(t, (&metadata.UserContext{Roles: []string{"agent"}}).CanEditRules())

	var nobody *metadata.UserContext
	assert.False(t, nobody.CanEditRules())
	assert.Nil(t, metadata.UserFrom(context.Background()))
}
