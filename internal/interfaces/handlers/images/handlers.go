package images

import (
	"context"
	"errors"
	"io"

	carsvc "webcarros-backend/internal/application/cars"
	imgsvc "webcarros-backend/internal/application/images"
	"webcarros-backend/internal/middleware"
	"webcarros-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// DraftDeleter removes uploads that no listing references. Implemented by cars.Service.
type DraftDeleter interface {
	DeleteDraftImage(ctx context.Context, imageUID string, actor carsvc.Actor) error
}

// Handlers serves draft image uploads of the listing editor.
type Handlers struct {
	Manager *imgsvc.Manager
	Drafts  DraftDeleter
}

func writeError(c *fiber.Ctx, err error) error {
	var attached *carsvc.AttachedError
	switch {
	case errors.As(err, &attached):
		return response.Error(c, err.Error(), fiber.StatusConflict, fiber.Map{
			"carId":  attached.CarID,
			"remove": "DELETE /api/v1/dashboard/cars/" + attached.CarID + "/images/" + attached.ImageUID,
		})
	case errors.Is(err, imgsvc.ErrUnsupportedType):
		return response.Error(c, err.Error(), fiber.StatusUnsupportedMediaType, nil)
	case errors.Is(err, imgsvc.ErrTooLarge):
		return response.Error(c, err.Error(), fiber.StatusRequestEntityTooLarge, nil)
	case errors.Is(err, imgsvc.ErrEmptyFile), errors.Is(err, imgsvc.ErrInvalidImageID), errors.Is(err, imgsvc.ErrMissingOwner):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("images: storage failed")
		return response.Error(c, "Could not store the image, try again", fiber.StatusBadGateway, nil)
	}
}

// Upload POST /api/v1/dashboard/images (multipart field "file")
func (h *Handlers) Upload(c *fiber.Ctx) error {
	u := middleware.CurrentUser(c)
	if u == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, "Missing file", fiber.StatusBadRequest, fiber.Map{"file": "This field is required"})
	}
	if h.Manager.MaxBytes > 0 && fh.Size > h.Manager.MaxBytes {
		return writeError(c, imgsvc.ErrTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return response.Error(c, "Invalid file", fiber.StatusBadRequest, nil)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return response.Error(c, "Invalid file", fiber.StatusBadRequest, nil)
	}

	img, err := h.Manager.Upload(c.UserContext(), u.UID, fh.Header.Get("Content-Type"), data)
	if err != nil {
		return writeError(c, err)
	}
	return response.SuccessCreated(c, "Image uploaded", img, nil)
}

// Delete DELETE /api/v1/dashboard/images/:uid removes an upload not yet attached to a car.
// The key is always under the caller's own segment. Attached images answer 409.
func (h *Handlers) Delete(c *fiber.Ctx) error {
	u := middleware.CurrentUser(c)
	if u == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	actor := carsvc.Actor{UID: u.UID, Name: u.Name}
	if err := h.Drafts.DeleteDraftImage(c.UserContext(), c.Params("uid"), actor); err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Image deleted", nil, nil)
}
