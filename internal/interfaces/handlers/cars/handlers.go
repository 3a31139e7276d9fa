package cars

import (
	"errors"

	carsvc "webcarros-backend/internal/application/cars"
	"webcarros-backend/internal/application/images"
	"webcarros-backend/internal/application/views"
	"webcarros-backend/internal/middleware"
	"webcarros-backend/internal/pkg/response"
	"webcarros-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers serves the owner dashboard: /api/v1/dashboard/cars.
type Handlers struct {
	Service *carsvc.Service
	Views   *views.Service
}

func actor(c *fiber.Ctx) (carsvc.Actor, bool) {
	u := middleware.CurrentUser(c)
	if u == nil {
		return carsvc.Actor{}, false
	}
	return carsvc.Actor{UID: u.UID, Name: u.Name}, true
}

// WriteError maps listing errors to the standard error response.
func WriteError(c *fiber.Ctx, err error) error {
	var fe validation.FieldErrors
	switch {
	case errors.As(err, &fe):
		return response.Invalid(c, fe)
	case errors.Is(err, carsvc.ErrNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, carsvc.ErrForbidden), errors.Is(err, carsvc.ErrForeignImage):
		return response.Error(c, err.Error(), fiber.StatusForbidden, nil)
	case errors.Is(err, carsvc.ErrNoImages):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, fiber.Map{"images": err.Error()})
	case errors.Is(err, carsvc.ErrImageNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, carsvc.ErrDeleteFailed), errors.Is(err, images.ErrPartialDelete):
		log.Warn().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("cars: blob delete failed")
		return response.Error(c, carsvc.ErrDeleteFailed.Error(), fiber.StatusBadGateway, nil)
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Path()).Msg("cars: request failed")
		return response.Internal(c)
	}
}

// List GET /api/v1/dashboard/cars
func (h *Handlers) List(c *fiber.Ctx) error {
	a, ok := actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	cards, err := h.Views.Dashboard(c.UserContext(), a.UID)
	if err != nil {
		return WriteError(c, err)
	}
	return response.List(c, "Cars retrieved", cards, nil)
}

// Get GET /api/v1/dashboard/cars/:id (owner only, for the edit form)
func (h *Handlers) Get(c *fiber.Ctx) error {
	a, ok := actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	car, err := h.Service.GetOwned(c.UserContext(), c.Params("id"), a)
	if err != nil {
		return WriteError(c, err)
	}
	return response.Success(c, "Car retrieved", views.NewDetail(car), nil)
}

// Create POST /api/v1/dashboard/cars
func (h *Handlers) Create(c *fiber.Ctx) error {
	a, ok := actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var in carsvc.Input
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	car, err := h.Service.Create(c.UserContext(), in, a)
	if err != nil {
		return WriteError(c, err)
	}
	return response.SuccessCreated(c, "Car created", views.NewDetail(car), nil)
}

// Update PUT /api/v1/dashboard/cars/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	a, ok := actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var in carsvc.Input
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	car, err := h.Service.Update(c.UserContext(), c.Params("id"), in, a)
	if err != nil {
		return WriteError(c, err)
	}
	return response.Success(c, "Car updated", views.NewDetail(car), nil)
}

// RemoveImage DELETE /api/v1/dashboard/cars/:id/images/:uid
func (h *Handlers) RemoveImage(c *fiber.Ctx) error {
	a, ok := actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	car, err := h.Service.RemoveImage(c.UserContext(), c.Params("id"), c.Params("uid"), a)
	if err != nil {
		if errors.Is(err, images.ErrInvalidImageID) {
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		}
		if !errors.Is(err, carsvc.ErrNotFound) && !errors.Is(err, carsvc.ErrForbidden) && !errors.Is(err, carsvc.ErrImageNotFound) {
			// blob delete failed: the reference is still on the car
			log.Warn().Err(err).Str("car_id", c.Params("id")).Msg("cars: image delete failed")
			return response.Error(c, "Could not delete the image, try again", fiber.StatusBadGateway, nil)
		}
		return WriteError(c, err)
	}
	return response.Success(c, "Image removed", views.NewDetail(car), nil)
}

// Delete DELETE /api/v1/dashboard/cars/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	a, ok := actor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	if err := h.Service.Delete(c.UserContext(), c.Params("id"), a); err != nil {
		return WriteError(c, err)
	}
	return response.Success(c, "Car deleted", nil, nil)
}
