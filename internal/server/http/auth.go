package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lixenwraith/auth"

	"arcade/internal/server/core"
)

// TokenValidator validates bearer tokens issued by the platform
type TokenValidator func(token string) (userID string, claims map[string]any, err error)

// HS256Validator checks tokens signed with the shared secret
func HS256Validator(secret []byte) TokenValidator {
	return func(token string) (string, map[string]any, error) {
		return auth.ValidateHS256Token(secret, token)
	}
}

// IssueToken mints a token for userID, used by the dev tooling and tests
func IssueToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	return auth.GenerateHS256Token(secret, userID, map[string]any{"scope": "arcade"}, ttl)
}

// AuthRequired enforces bearer authentication and stores the caller's id
// in c.Locals("userID")
func AuthRequired(validateToken TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c.Get("Authorization"))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "missing authorization token",
				Code:  core.ErrUnauthorized,
			})
		}

		userID, _, err := validateToken(token)
		if err != nil || userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "invalid or expired token",
				Code:  core.ErrUnauthorized,
			})
		}

		c.Locals("userID", userID)
		return c.Next()
	}
}

func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
