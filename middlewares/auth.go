package middlewares

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"restaurant-backend/models"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "

	// Locals keys set by IsAuthenticatedHeader.
	UserIDKey = "userID"
	RoleKey   = "role"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

// Claims is our JWT payload (subject=userID, plus the staff role).
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// IsAuthenticatedHeader validates a Bearer token, enforces HS256, and populates c.Locals("userID","role").
func IsAuthenticatedHeader(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(secret) == 0 {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "server auth not configured",
			})
		}

		h := c.Get(authHeader)
		if h == "" || !strings.HasPrefix(strings.ToLower(h), strings.ToLower(bearerPrefix)) {
			return unauthorized(c, "missing/invalid Authorization header")
		}
		raw := strings.TrimSpace(h[len(bearerPrefix):])
		if raw == "" {
			return unauthorized(c, "invalid bearer token")
		}

		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		var claims Claims
		token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return unauthorized(c, "invalid or expired token")
		}
		if strings.TrimSpace(claims.Subject) == "" || !claims.Role.Valid() {
			return unauthorized(c, "token missing subject/role")
		}

		c.Locals(UserIDKey, claims.Subject)
		c.Locals(RoleKey, claims.Role)

		return c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
// Run it after IsAuthenticatedHeader.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(RoleKey).(models.Role)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "insufficient role",
		})
	}
}

// ActorID returns the authenticated user id, or "" on public routes.
func ActorID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}

// GenerateJWT signs a new HS256 token for the given user & role, expiring after TokenTTL.
func GenerateJWT(secret []byte, userID string, role models.Role) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
	}
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": msg})
}
