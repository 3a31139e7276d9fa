package catalog

import (
	"errors"

	carsvc "webcarros-backend/internal/application/cars"
	"webcarros-backend/internal/application/views"
	"webcarros-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers serves the public catalog.
type Handlers struct {
	Views *views.Service
}

// Browse GET /api/v1/cars?search=
func (h *Handlers) Browse(c *fiber.Ctx) error {
	search := c.Query("search")
	cards, err := h.Views.Browse(c.UserContext(), search)
	if err != nil {
		log.Error().Err(err).Str("search", search).Msg("catalog: browse failed")
		return response.Internal(c)
	}
	return response.List(c, "Cars retrieved", cards, fiber.Map{"search": search})
}

// Detail GET /api/v1/cars/:id
func (h *Handlers) Detail(c *fiber.Ctx) error {
	d, err := h.Views.Detail(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, carsvc.ErrNotFound) {
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		}
		log.Error().Err(err).Msg("catalog: detail failed")
		return response.Internal(c)
	}
	return response.Success(c, "Car retrieved", d, nil)
}
