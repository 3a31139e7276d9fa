package blobs

import (
	"errors"
	"strings"

	"webcarros-backend/internal/infrastructure/blobstore"
	"webcarros-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers serves objects of the in-memory blob backend at /blobs/*.
type Handlers struct {
	Store *blobstore.MemoryStore
}

// Get GET /blobs/*
func (h *Handlers) Get(c *fiber.Ctx) error {
	key := strings.TrimPrefix(c.Params("*"), "/")
	obj, err := h.Store.Get(c.UserContext(), key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return response.Error(c, "Not Found", fiber.StatusNotFound, nil)
		}
		return response.Internal(c)
	}
	c.Set(fiber.HeaderContentType, obj.ContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(obj.Data)
}
