package middlewares

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-backend/models"
)

var testSecret = []byte("test-secret")

func authApp(roles ...models.Role) *fiber.App {
	app := fiber.New()
	chain := []fiber.Handler{IsAuthenticatedHeader(testSecret)}
	if len(roles) > 0 {
		chain = append(chain, RequireRole(roles...))
	}
	chain = append(chain, func(c *fiber.Ctx) error {
		return c.SendString(ActorID(c))
	})
	app.Get("/me", chain...)
	return app
}

func get(t *testing.T, app *fiber.App, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestIsAuthenticatedHeader(t *testing.T) {
	token, err := GenerateJWT(testSecret, "user-1", models.RoleWaiter)
	require.NoError(t, err)

	status, body := get(t, authApp(), token)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "user-1", body)

	status, _ = get(t, authApp(), "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	other, err := GenerateJWT([]byte("other-secret"), "user-1", models.RoleWaiter)
	require.NoError(t, err)
	status, _ = get(t, authApp(), other)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestIsAuthenticatedHeaderRejectsExpiredAndRoleless(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role: models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	raw, err := expired.SignedString(testSecret)
	require.NoError(t, err)
	status, _ := get(t, authApp(), raw)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	roleless, err := GenerateJWT(testSecret, "user-1", models.Role("chef"))
	require.NoError(t, err)
	status, _ = get(t, authApp(), roleless)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestRequireRole(t *testing.T) {
	waiter, err := GenerateJWT(testSecret, "w", models.RoleWaiter)
	require.NoError(t, err)
	manager, err := GenerateJWT(testSecret, "m", models.RoleManager)
	require.NoError(t, err)

	app := authApp(models.RoleManager, models.RoleAdmin)
	status, _ := get(t, app, waiter)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, body := get(t, app, manager)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "m", body)
}

func TestGenerateJWTNeedsSecret(t *testing.T) {
	_, err := GenerateJWT(nil, "user-1", models.RoleAdmin)
	assert.Error(t, err)
}
