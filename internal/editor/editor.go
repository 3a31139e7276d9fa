// Package editor is the create/edit listing form: validated fields plus an
// image sequence that fills up as uploads complete.
package editor

import (
	"context"
	"errors"
	"sync"

	carsvc "webcarros-backend/internal/application/cars"
	"webcarros-backend/internal/application/images"
	"webcarros-backend/internal/application/views"
	"webcarros-backend/internal/domain"
	"webcarros-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoImages        = errors.New("add at least one photo of the car")
	ErrClosed          = errors.New("editor closed")
	ErrImageNotFound   = errors.New("image not in this listing")
	ErrRemovalPending  = errors.New("image removal already in progress")
	ErrUnsupportedType = images.ErrUnsupportedType
)

// Backend is the API surface the editor drives. Implemented by *client.Client.
type Backend interface {
	UploadImage(ctx context.Context, filename string, data []byte) (domain.CarImage, error)
	DeleteImage(ctx context.Context, uid string) error
	RemoveCarImage(ctx context.Context, carID, uid string) (*views.Detail, error)
	CreateCar(ctx context.Context, in carsvc.Input) (*views.Detail, error)
	UpdateCar(ctx context.Context, id string, in carsvc.Input) (*views.Detail, error)
}

type entry struct {
	img      domain.CarImage
	saved    bool // attached to the stored listing
	removing bool
}

type Editor struct {
	backend Backend
	carID   string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	fields carsvc.Input
	errs   validation.FieldErrors
	images []*entry
	closed bool
}

// New starts an empty editor for a new listing.
func New(b Backend) *Editor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Editor{backend: b, ctx: ctx, cancel: cancel}
}

// Edit starts an editor prefilled with a stored listing.
func Edit(b Backend, d *views.Detail) *Editor {
	e := New(b)
	e.carID = d.ID
	e.fields = fieldsOf(d)
	e.images = entriesOf(d.Images)
	return e
}

func fieldsOf(d *views.Detail) carsvc.Input {
	return carsvc.Input{
		Name:        d.Name,
		Model:       d.Model,
		Year:        d.Year,
		Km:          d.Km,
		Price:       d.Price,
		City:        d.City,
		WhatsApp:    d.WhatsApp,
		Description: d.Description,
	}
}

func entriesOf(imgs domain.CarImages) []*entry {
	out := make([]*entry, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, &entry{img: img, saved: true})
	}
	return out
}

// CarID is the listing being edited, empty for a new one.
func (e *Editor) CarID() string { return e.carID }

// SetFields replaces the form values and returns the inline errors, nil when valid.
// Images in the input are ignored; the editor owns the image sequence.
func (e *Editor) SetFields(in carsvc.Input) validation.FieldErrors {
	in.Images = nil
	errs := validateFields(in)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.fields = in
	e.errs = errs
	return errs
}

func validateFields(in carsvc.Input) validation.FieldErrors {
	err := validation.Struct(in)
	if err == nil {
		return nil
	}
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		return fe
	}
	return validation.FieldErrors{"form": err.Error()}
}

func (e *Editor) Fields() carsvc.Input {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fields
}

// Errors are the field errors from the last SetFields.
func (e *Editor) Errors() validation.FieldErrors {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errs
}

// Images is the visible sequence; images being removed are hidden.
func (e *Editor) Images() []domain.CarImage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visibleLocked()
}

func (e *Editor) visibleLocked() []domain.CarImage {
	out := make([]domain.CarImage, 0, len(e.images))
	for _, en := range e.images {
		if !en.removing {
			out = append(out, en.img)
		}
	}
	return out
}

// Task is one upload in flight.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	img    domain.CarImage
	err    error
}

// Cancel says the result is no longer wanted. A late result is discarded.
func (t *Task) Cancel() { t.cancel() }

func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the upload finished or ctx ends.
func (t *Task) Wait(ctx context.Context) (domain.CarImage, error) {
	select {
	case <-t.done:
		return t.img, t.err
	case <-ctx.Done():
		return domain.CarImage{}, ctx.Err()
	}
}

// UploadAsync starts an upload. The image is appended when it completes,
// so concurrent uploads land in completion order.
func (e *Editor) UploadAsync(filename string, data []byte) *Task {
	t := &Task{done: make(chan struct{})}

	if _, err := images.DetectContentType(data); err != nil {
		t.cancel = func() {}
		t.err = ErrUnsupportedType
		close(t.done)
		return t
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		t.cancel = func() {}
		t.err = ErrClosed
		close(t.done)
		return t
	}
	ctx, cancel := context.WithCancel(e.ctx)
	t.cancel = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		defer close(t.done)
		defer cancel()

		img, err := e.backend.UploadImage(ctx, filename, data)
		if err != nil {
			t.err = err
			return
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if ctx.Err() != nil || e.closed {
			log.Debug().Str("image", img.UID).Msg("editor: upload finished after cancel, discarded")
			t.err = ErrClosed
			if ctx.Err() != nil && !e.closed {
				t.err = ctx.Err()
			}
			return
		}
		e.images = append(e.images, &entry{img: img})
		t.img = img
	}()
	return t
}

// Upload sends one photo and waits for it.
func (e *Editor) Upload(ctx context.Context, filename string, data []byte) (domain.CarImage, error) {
	t := e.UploadAsync(filename, data)
	img, err := t.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		t.Cancel()
	}
	return img, err
}

// RemoveImage hides the image, deletes it remotely and only then drops it.
// On failure the image reappears at its position.
func (e *Editor) RemoveImage(ctx context.Context, uid string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	var target *entry
	for _, en := range e.images {
		if en.img.UID == uid {
			target = en
			break
		}
	}
	if target == nil {
		e.mu.Unlock()
		return ErrImageNotFound
	}
	if target.removing {
		e.mu.Unlock()
		return ErrRemovalPending
	}
	target.removing = true
	saved, carID := target.saved, e.carID
	e.wg.Add(1)
	e.mu.Unlock()
	defer e.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.ctx, cancel)
	defer stop()

	var err error
	if saved {
		_, err = e.backend.RemoveCarImage(ctx, carID, uid)
	} else {
		err = e.backend.DeleteImage(ctx, uid)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		target.removing = false
		return err
	}
	for i, en := range e.images {
		if en == target {
			e.images = append(e.images[:i], e.images[i+1:]...)
			break
		}
	}
	return nil
}

// Submit creates or updates the listing from the current fields and visible images.
// It returns ErrRemovalPending while an image removal is unconfirmed.
// A created listing clears the form; an updated one becomes the new baseline.
// On any failure the form and images are kept for another try.
func (e *Editor) Submit(ctx context.Context) (*views.Detail, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	for _, en := range e.images {
		if en.removing {
			e.mu.Unlock()
			return nil, ErrRemovalPending
		}
	}
	in := e.fields
	imgs := e.visibleLocked()
	carID := e.carID
	e.mu.Unlock()

	if errs := validateFields(in); errs != nil {
		e.mu.Lock()
		e.errs = errs
		e.mu.Unlock()
		return nil, errs
	}
	if len(imgs) == 0 {
		return nil, ErrNoImages
	}
	in.Images = imgs

	var (
		d   *views.Detail
		err error
	)
	if carID == "" {
		d, err = e.backend.CreateCar(ctx, in)
	} else {
		d, err = e.backend.UpdateCar(ctx, carID, in)
	}
	if err != nil {
		return nil, err
	}

	submitted := make(map[string]bool, len(imgs))
	for _, img := range imgs {
		submitted[img.UID] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// uploads that completed while the request was in flight stay for the next submit
	var late []*entry
	for _, en := range e.images {
		if !en.saved && !submitted[en.img.UID] {
			late = append(late, en)
		}
	}
	if carID == "" {
		e.fields = carsvc.Input{}
		e.errs = nil
		e.images = late
	} else {
		e.fields = fieldsOf(d)
		e.errs = nil
		e.images = append(entriesOf(d.Images), late...)
	}
	return d, nil
}

// Close cancels in-flight uploads and waits for every pending operation.
func (e *Editor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}
