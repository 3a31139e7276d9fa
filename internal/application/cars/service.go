package cars

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"webcarros-backend/internal/domain"
	"webcarros-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound      = errors.New("Car not found")
	ErrForbidden     = errors.New("You can only change your own cars")
	ErrNoImages      = errors.New("Add at least one image")
	ErrImageNotFound = errors.New("Image not found on this car")
	ErrForeignImage  = errors.New("Image does not belong to you")
	ErrDeleteFailed  = errors.New("Could not delete every image, the car was kept")
	ErrImageAttached = errors.New("Image is used by one of your cars, remove it from that car instead")
)

// AttachedError reports the listing that still references an image.
type AttachedError struct {
	CarID    string
	ImageUID string
}

func (e *AttachedError) Error() string { return ErrImageAttached.Error() }

func (e *AttachedError) Unwrap() error { return ErrImageAttached }

// Actor is the signed-in user performing a write.
type Actor struct {
	UID  string
	Name string
}

// Input is the editable part of a listing, as posted by the form.
type Input struct {
	Name        string           `json:"name" validate:"notblank"`
	Model       string           `json:"model" validate:"notblank"`
	Year        string           `json:"year" validate:"notblank"`
	Km          string           `json:"km" validate:"notblank"`
	Price       domain.Price     `json:"price" validate:"notblank"`
	City        string           `json:"city" validate:"notblank"`
	WhatsApp    string           `json:"whatsapp" validate:"required,whatsapp"`
	Description string           `json:"description" validate:"notblank"`
	Images      domain.CarImages `json:"images"`
}

// ImageDeleter removes blobs. Implemented by images.Manager.
type ImageDeleter interface {
	Delete(ctx context.Context, img domain.CarImage) error
	DeleteAll(ctx context.Context, imgs []domain.CarImage) ([]domain.CarImage, error)
}

// EventRecorder is told about successful mutations. Implemented by carevents.Service.
type EventRecorder interface {
	Record(ctx context.Context, carID, actorUID, eventType string, data map[string]interface{}) error
}

type Service struct {
	Store  Store
	Images ImageDeleter
	Events EventRecorder
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) record(ctx context.Context, carID, actorUID, eventType string, data map[string]interface{}) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Record(ctx, carID, actorUID, eventType, data); err != nil {
		log.Warn().Err(err).Str("car_id", carID).Str("event", eventType).Msg("cars: event not recorded")
	}
}

// NormalizeName is the stored form of a listing name and of a search prefix.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func checkImages(imgs domain.CarImages, actor Actor) error {
	for _, img := range imgs {
		if img.UID == "" || img.URL == "" {
			return validation.FieldErrors{"images": "Every image needs a uid and a url"}
		}
		if img.Name != actor.UID {
			return ErrForeignImage
		}
	}
	return nil
}

// Create stores a new listing owned by actor. Nothing is written without at least one image.
func (s *Service) Create(ctx context.Context, in Input, actor Actor) (*domain.Car, error) {
	if actor.UID == "" {
		return nil, ErrForbidden
	}
	if len(in.Images) == 0 {
		return nil, ErrNoImages
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := checkImages(in.Images, actor); err != nil {
		return nil, err
	}

	car := &domain.Car{
		Name:        NormalizeName(in.Name),
		Model:       strings.TrimSpace(in.Model),
		Year:        strings.TrimSpace(in.Year),
		Km:          strings.TrimSpace(in.Km),
		Price:       in.Price,
		City:        strings.TrimSpace(in.City),
		WhatsApp:    in.WhatsApp,
		Description: in.Description,
		Created:     s.now(),
		Owner:       actor.Name,
		UID:         actor.UID,
		Images:      in.Images,
	}
	if err := s.Store.Create(ctx, car); err != nil {
		return nil, fmt.Errorf("create car: %w", err)
	}
	s.record(ctx, car.ID, actor.UID, domain.CarEventCreated, map[string]interface{}{
		"name": car.Name, "images": len(car.Images),
	})
	return car, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Car, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	return s.Store.Get(ctx, id)
}

// GetOwned loads a listing for editing; only its owner may.
func (s *Service) GetOwned(ctx context.Context, id string, actor Actor) (*domain.Car, error) {
	car, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !car.OwnedBy(actor.UID) {
		return nil, ErrForbidden
	}
	return car, nil
}

func (s *Service) ListByOwner(ctx context.Context, uid string) ([]domain.Car, error) {
	if uid == "" {
		return nil, ErrForbidden
	}
	return s.Store.ListByOwner(ctx, uid)
}

func (s *Service) ListAll(ctx context.Context) ([]domain.Car, error) {
	return s.Store.ListAll(ctx)
}

// SearchByNamePrefix matches stored names starting with the uppercased prefix.
// A blank prefix lists everything.
func (s *Service) SearchByNamePrefix(ctx context.Context, prefix string) ([]domain.Car, error) {
	p := NormalizeName(prefix)
	if p == "" {
		return s.Store.ListAll(ctx)
	}
	return s.Store.SearchByNamePrefix(ctx, p)
}

// Update overwrites fields and images of a listing owned by actor. Last write wins.
func (s *Service) Update(ctx context.Context, id string, in Input, actor Actor) (*domain.Car, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	car, err := s.GetOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := checkImages(in.Images, actor); err != nil {
		return nil, err
	}

	car.Name = NormalizeName(in.Name)
	car.Model = strings.TrimSpace(in.Model)
	car.Year = strings.TrimSpace(in.Year)
	car.Km = strings.TrimSpace(in.Km)
	car.Price = in.Price
	car.City = strings.TrimSpace(in.City)
	car.WhatsApp = in.WhatsApp
	car.Description = in.Description
	car.Images = in.Images
	if car.Images == nil {
		car.Images = domain.CarImages{}
	}
	if err := s.Store.Update(ctx, car); err != nil {
		return nil, fmt.Errorf("update car: %w", err)
	}
	s.record(ctx, car.ID, actor.UID, domain.CarEventUpdated, map[string]interface{}{
		"name": car.Name, "images": len(car.Images),
	})
	return car, nil
}

// RemoveImage deletes one image blob and then drops it from the listing.
// If the blob delete fails the listing is left as it was.
func (s *Service) RemoveImage(ctx context.Context, id, imageUID string, actor Actor) (*domain.Car, error) {
	car, err := s.GetOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	img, ok := car.Images.Find(imageUID)
	if !ok {
		return nil, ErrImageNotFound
	}
	if err := s.Images.Delete(ctx, img); err != nil {
		return nil, err
	}
	car.Images = car.Images.Without(imageUID)
	if err := s.Store.UpdateImages(ctx, car.ID, car.Images); err != nil {
		return nil, fmt.Errorf("update car images: %w", err)
	}
	s.record(ctx, car.ID, actor.UID, domain.CarEventImageRemoved, map[string]interface{}{"image": imageUID})
	return car, nil
}

// ListingWithImage returns the actor's listing that references imageUID, or nil.
func (s *Service) ListingWithImage(ctx context.Context, imageUID string, actor Actor) (*domain.Car, error) {
	owned, err := s.Store.ListByOwner(ctx, actor.UID)
	if err != nil {
		return nil, err
	}
	for i := range owned {
		if _, ok := owned[i].Images.Find(imageUID); ok {
			return &owned[i], nil
		}
	}
	return nil, nil
}

// DeleteDraftImage deletes an upload of the actor that no listing references yet.
// An attached image returns *AttachedError; it goes through RemoveImage instead.
func (s *Service) DeleteDraftImage(ctx context.Context, imageUID string, actor Actor) error {
	car, err := s.ListingWithImage(ctx, imageUID, actor)
	if err != nil {
		return err
	}
	if car != nil {
		return &AttachedError{CarID: car.ID, ImageUID: imageUID}
	}
	return s.Images.Delete(ctx, domain.CarImage{UID: imageUID, Name: actor.UID})
}

// Delete removes every image blob, then the listing. The listing is deleted only
// when all blob deletes succeeded. Otherwise ErrDeleteFailed is returned and the
// listing is kept, but its images are pruned to the ones whose blobs still exist:
// a caller reading it back after a failed delete sees fewer images than before,
// never a reference to a deleted blob. Retrying the delete finishes the job.
func (s *Service) Delete(ctx context.Context, id string, actor Actor) error {
	car, err := s.GetOwned(ctx, id, actor)
	if err != nil {
		return err
	}

	remaining, delErr := s.Images.DeleteAll(ctx, car.Images)
	if delErr != nil {
		log.Error().Err(delErr).Str("car_id", car.ID).Int("remaining", len(remaining)).Msg("cars: delete aborted")
		if len(remaining) < len(car.Images) {
			if err := s.Store.UpdateImages(ctx, car.ID, remaining); err != nil {
				delErr = errors.Join(delErr, err)
			}
		}
		s.record(ctx, car.ID, actor.UID, domain.CarEventDeleteFailed, map[string]interface{}{"remaining": len(remaining)})
		return fmt.Errorf("%w: %w", ErrDeleteFailed, delErr)
	}

	if err := s.Store.Delete(ctx, car.ID); err != nil {
		return fmt.Errorf("delete car: %w", err)
	}
	s.record(ctx, car.ID, actor.UID, domain.CarEventDeleted, map[string]interface{}{"name": car.Name})
	return nil
}
