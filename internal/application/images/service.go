package images

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"webcarros-backend/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnsupportedType = errors.New("Only JPEG and PNG images are accepted")
	ErrEmptyFile       = errors.New("Image file is empty")
	ErrTooLarge        = errors.New("Image file is too large")
	ErrMissingOwner    = errors.New("Image owner is required")
	ErrInvalidImageID  = errors.New("Invalid image id")
	ErrPartialDelete   = errors.New("Some images could not be deleted")
)

// BlobStore is the object storage behind listing images.
type BlobStore interface {
	// Put writes data at key and returns a durable URL for it.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

const deleteFanOut = 8

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Manager uploads and deletes listing images.
type Manager struct {
	Blobs    BlobStore
	MaxBytes int64
	NewID    func() string
}

func (m *Manager) newID() string {
	if m.NewID != nil {
		return m.NewID()
	}
	return uuid.New().String()
}

// AllowedContentType reports whether declared is accepted for upload.
// An empty declared type defers to content sniffing.
func AllowedContentType(declared string) bool {
	if declared == "" {
		return true
	}
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	return allowedTypes[mt]
}

// DetectContentType sniffs data and returns the accepted image type.
func DetectContentType(data []byte) (string, error) {
	detected := mimetype.Detect(data)
	for t := range allowedTypes {
		if detected.Is(t) {
			return t, nil
		}
	}
	return "", ErrUnsupportedType
}

// Upload stores one image under images/{owner}/{uuid}. No record is touched;
// callers attach the returned reference to a listing on submit.
func (m *Manager) Upload(ctx context.Context, owner, declaredType string, data []byte) (domain.CarImage, error) {
	if owner == "" {
		return domain.CarImage{}, ErrMissingOwner
	}
	if len(data) == 0 {
		return domain.CarImage{}, ErrEmptyFile
	}
	if m.MaxBytes > 0 && int64(len(data)) > m.MaxBytes {
		return domain.CarImage{}, ErrTooLarge
	}
	if !AllowedContentType(declaredType) {
		return domain.CarImage{}, ErrUnsupportedType
	}
	contentType, err := DetectContentType(data)
	if err != nil {
		return domain.CarImage{}, err
	}

	img := domain.CarImage{UID: m.newID(), Name: owner}
	url, err := m.Blobs.Put(ctx, img.ObjectKey(), contentType, data)
	if err != nil {
		return domain.CarImage{}, fmt.Errorf("upload image: %w", err)
	}
	img.URL = url
	log.Info().Str("key", img.ObjectKey()).Int("bytes", len(data)).Msg("images: uploaded")
	return img, nil
}

// Delete removes the blob behind img.
func (m *Manager) Delete(ctx context.Context, img domain.CarImage) error {
	if img.Name == "" {
		return ErrMissingOwner
	}
	if _, err := uuid.Parse(img.UID); err != nil {
		return ErrInvalidImageID
	}
	if err := m.Blobs.Delete(ctx, img.ObjectKey()); err != nil {
		return fmt.Errorf("delete image %s: %w", img.UID, err)
	}
	return nil
}

// DeleteAll deletes every image concurrently and waits for all of them.
// A failing delete does not stop its siblings. The images whose delete
// failed are returned with an error wrapping ErrPartialDelete.
func (m *Manager) DeleteAll(ctx context.Context, imgs []domain.CarImage) ([]domain.CarImage, error) {
	if len(imgs) == 0 {
		return nil, nil
	}
	failures := make([]error, len(imgs))

	var g errgroup.Group
	g.SetLimit(deleteFanOut)
	for i, img := range imgs {
		i, img := i, img
		g.Go(func() error {
			failures[i] = m.Delete(ctx, img)
			return nil
		})
	}
	_ = g.Wait()

	var remaining []domain.CarImage
	var errs []error
	for i, err := range failures {
		if err != nil {
			remaining = append(remaining, imgs[i])
			errs = append(errs, err)
			log.Warn().Err(err).Str("key", imgs[i].ObjectKey()).Msg("images: delete failed")
		}
	}
	if len(errs) > 0 {
		return remaining, fmt.Errorf("%w: %w", ErrPartialDelete, errors.Join(errs...))
	}
	return nil, nil
}
