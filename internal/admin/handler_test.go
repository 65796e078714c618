package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"estate-backend/internal/config"
	"estate-backend/internal/engine"
	"estate-backend/internal/metadata"
	"estate-backend/internal/store"
)

type fixture struct {
	app      *fiber.App
	registry *metadata.Registry
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir(), Name: "admin_test"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx, zap.NewNop()))

	reg := metadata.NewRegistry(s, time.Hour, nil)
	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler(zap.NewNop())})
	RegisterAdminRoutes(app, NewHandler(s, reg, nil))
	return &fixture{app: app, registry: reg}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

type requirementEnvelope struct {
	Data metadata.FieldRequirement `json:"data"`
}

type errorEnvelope struct {
	Error engine.AppError `json:"error"`
}

func TestRequirementCRUD(t *testing.T) {
	f := setup(t)

	status, body := f.do(t, "POST", "/api/_admin/field-requirements", map[string]any{
		"entity":       "properties",
		"attribute":    "price",
		"label":        "価格",
		"required_for": []string{"land", " house", "land"},
	})
	require.Equal(t, 201, status, string(body))
	var created requirementEnvelope
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.Data.ID)
	assert.Equal(t, []string{"house", "land"}, created.Data.RequiredFor)

	status, body = f.do(t, "GET", "/api/_admin/field-requirements/"+created.Data.ID, nil)
	require.Equal(t, 200, status)
	var got requirementEnvelope
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "価格", got.Data.Label)

	status, _ = f.do(t, "PUT", "/api/_admin/field-requirements/"+created.Data.ID, map[string]any{
		"entity":       "properties",
		"attribute":    "price",
		"label":        "販売価格",
		"required_for": []string{"apartment"},
	})
	require.Equal(t, 200, status)

	status, body = f.do(t, "GET", "/api/_admin/field-requirements", nil)
	require.Equal(t, 200, status)
	var list struct {
		Data []metadata.FieldRequirement `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "販売価格", list.Data[0].Label)
	assert.Equal(t, []string{"apartment"}, list.Data[0].RequiredFor)

	status, _ = f.do(t, "DELETE", "/api/_admin/field-requirements/"+created.Data.ID, nil)
	require.Equal(t, 200, status)

	status, _ = f.do(t, "GET", "/api/_admin/field-requirements/"+created.Data.ID, nil)
	assert.Equal(t, 404, status)
}

func TestRequirementWritesInvalidateRegistry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	fields, err := f.registry.RequiredFields(ctx, "land")
	require.NoError(t, err)
	require.Empty(t, fields)

	status, _ := f.do(t, "POST", "/api/_admin/field-requirements", map[string]any{
		"entity":       "land_info",
		"attribute":    "land_area",
		"label":        "土地面積",
		"required_for": []string{"land"},
	})
	require.Equal(t, 201, status)

	fields, err = f.registry.RequiredFields(ctx, "land")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "土地面積", fields[0].Label)
}

func TestRequirementErrors(t *testing.T) {
	f := setup(t)

	rule := map[string]any{
		"entity":       "properties",
		"attribute":    "address",
		"required_for": []string{"land"},
	}
	status, _ := f.do(t, "POST", "/api/_admin/field-requirements", rule)
	require.Equal(t, 201, status)

	status, body := f.do(t, "POST", "/api/_admin/field-requirements", rule)
	assert.Equal(t, 409, status)
	var conflict errorEnvelope
	require.NoError(t, json.Unmarshal(body, &conflict))
	assert.Equal(t, "CONFLICT", conflict.Error.Code)

	status, _ = f.do(t, "POST", "/api/_admin/field-requirements", map[string]any{"entity": "properties"})
	assert.Equal(t, 422, status)

	status, body = f.do(t, "POST", "/api/_admin/field-requirements", map[string]any{
		"entity":    "properties",
		"attribute": "parking",
		"condition": "record.price >",
	})
	assert.Equal(t, 422, status)
	var invalid errorEnvelope
	require.NoError(t, json.Unmarshal(body, &invalid))
	require.NotEmpty(t, invalid.Error.Details)
	assert.Equal(t, "condition", invalid.Error.Details[0].Field)

	status, _ = f.do(t, "PUT", "/api/_admin/field-requirements/missing-id", rule)
	assert.Equal(t, 404, status)

	status, _ = f.do(t, "DELETE", "/api/_admin/field-requirements/missing-id", nil)
	assert.Equal(t, 404, status)
}
