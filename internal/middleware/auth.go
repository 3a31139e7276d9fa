package middleware

import (
	"webcarros-backend/internal/application/auth"
	"webcarros-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const userLocal = "user"

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := auth.VerifyUser(c.Locals(userLocal))
		if err != nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals("auth", u)
		return c.Next()
	}
}

// GetUser returns the raw session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// CurrentUser returns the verified session user or nil.
func CurrentUser(c *fiber.Ctx) *auth.SessionUser {
	if u, ok := c.Locals("auth").(*auth.SessionUser); ok {
		return u
	}
	u, err := auth.VerifyUser(c.Locals(userLocal))
	if err != nil {
		return nil
	}
	return u
}
