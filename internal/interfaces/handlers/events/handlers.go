package events

import (
	"webcarros-backend/internal/application/carevents"
	"webcarros-backend/internal/middleware"
	"webcarros-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *carevents.Service
}

// List GET /api/v1/dashboard/events: the caller's listing history, oldest first.
func (h *Handlers) List(c *fiber.Ctx) error {
	u := middleware.CurrentUser(c)
	if u == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	events, err := h.Service.ListByActor(c.UserContext(), u.UID)
	if err != nil {
		return response.Internal(c)
	}
	return response.List(c, "Events retrieved", events, nil)
}
