package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"docflash-be/internal/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.NewValidation("grade", "out of range"), fiber.StatusBadRequest},
		{apperr.NewNotFound("card"), fiber.StatusNotFound},
		{fmt.Errorf("wrapped: %w", apperr.NewConflict("status", "busy")), fiber.StatusConflict},
		{&apperr.UnsupportedFormatError{Format: ".pptx"}, fiber.StatusUnsupportedMediaType},
		{&apperr.QueueError{Kind: apperr.QueueNotFound}, fiber.StatusNotFound},
		{&apperr.QueueError{Kind: apperr.QueueUnavailable, Err: errors.New("dial")}, fiber.StatusServiceUnavailable},
		{&apperr.ParseError{Path: "a.pdf", Kind: apperr.ParseCorrupt}, fiber.StatusUnprocessableEntity},
		{&apperr.TimeoutError{Stage: "parse", After: time.Second}, fiber.StatusGatewayTimeout},
		{fiber.ErrRequestEntityTooLarge, fiber.StatusRequestEntityTooLarge},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

type gradeForm struct {
	Grade *int   `json:"grade" validate:"required,min=0,max=5"`
	Name  string `json:"name" validate:"required"`
}

func TestValidateRequest(t *testing.T) {
	g := 7
	err := ValidateRequest(gradeForm{Grade: &g})
	var validationErr *apperr.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Message, "grade must be at most 5")
	assert.Contains(t, validationErr.Message, "name is required")

	ok := 3
	assert.NoError(t, ValidateRequest(gradeForm{Grade: &ok, Name: "x"}))
}

func newApp(secret string) *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Use(JwtMiddleware(secret))
	app.Get("/whoami", func(ctx *fiber.Ctx) error {
		id := UserID(ctx)
		if id == nil {
			return ctx.JSON(SuccessResponse("anonymous", ""))
		}
		return ctx.JSON(SuccessResponse("user", id.String()))
	})
	app.Get("/missing", func(ctx *fiber.Ctx) error {
		return apperr.NewNotFound("document")
	})
	return app
}

func decode(t *testing.T, app *fiber.App, path, token string) (int, Response[string]) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body Response[string]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestErrorHandlerMiddleware(t *testing.T) {
	code, body := decode(t, newApp(""), "/missing", "")
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.False(t, body.Success)
	assert.Equal(t, fiber.StatusNotFound, body.Code)
	assert.Contains(t, body.Message, "document not found")
}

func TestJwtMiddleware(t *testing.T) {
	secret := "test-secret"
	app := newApp(secret)
	user := uuid.New()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	code, body := decode(t, app, "/whoami", token)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, user.String(), body.Data)

	code, body = decode(t, app, "/whoami", "")
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "anonymous", body.Message)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": user.String()}).SignedString([]byte("other"))
	require.NoError(t, err)
	code, _ = decode(t, app, "/whoami", forged)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}
