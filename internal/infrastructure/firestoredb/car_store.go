// Package firestoredb stores listings in a Cloud Firestore collection, in the
// document shape the web front end reads (collection "cars").
package firestoredb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webcarros-backend/internal/application/cars"
	"webcarros-backend/internal/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// prefixSentinel closes the half-open range used for prefix queries.
const prefixSentinel = "\uf8ff"

type carDoc struct {
	Name        string            `firestore:"name"`
	Model       string            `firestore:"model"`
	Year        string            `firestore:"year"`
	Km          string            `firestore:"km"`
	Price       interface{}       `firestore:"price"` // string, or a number from older writers
	City        string            `firestore:"city"`
	WhatsApp    string            `firestore:"whatsapp"`
	Description string            `firestore:"description"`
	Created     time.Time         `firestore:"created"`
	Owner       string            `firestore:"owner"`
	UID         string            `firestore:"uid"`
	Images      []domain.CarImage `firestore:"images"`
}

func toDoc(c *domain.Car) carDoc {
	imgs := []domain.CarImage(c.Images)
	if imgs == nil {
		imgs = []domain.CarImage{}
	}
	return carDoc{
		Name:        c.Name,
		Model:       c.Model,
		Year:        c.Year,
		Km:          c.Km,
		Price:       string(c.Price),
		City:        c.City,
		WhatsApp:    c.WhatsApp,
		Description: c.Description,
		Created:     c.Created,
		Owner:       c.Owner,
		UID:         c.UID,
		Images:      imgs,
	}
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (*domain.Car, error) {
	var d carDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("while decoding car %s: %w", snap.Ref.ID, err)
	}
	return fromDoc(snap.Ref.ID, d)
}

func fromDoc(id string, d carDoc) (*domain.Car, error) {
	price, err := domain.PriceOf(d.Price)
	if err != nil {
		return nil, fmt.Errorf("while decoding car %s: %w", id, err)
	}
	return &domain.Car{
		ID:          id,
		Name:        d.Name,
		Model:       d.Model,
		Year:        d.Year,
		Km:          d.Km,
		Price:       price,
		City:        d.City,
		WhatsApp:    d.WhatsApp,
		Description: d.Description,
		Created:     d.Created,
		Owner:       d.Owner,
		UID:         d.UID,
		Images:      domain.CarImages(d.Images),
	}, nil
}

// CarStore implements cars.Store on a Firestore collection.
type CarStore struct {
	client     *firestore.Client
	collection string
}

var _ cars.Store = (*CarStore)(nil)

func NewCarStore(client *firestore.Client, collection string) *CarStore {
	if collection == "" {
		collection = "cars"
	}
	return &CarStore{client: client, collection: collection}
}

// Open creates a client for projectID using application default credentials.
func Open(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, errors.New("FIRESTORE_PROJECT_ID is required")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("while creating firestore client: %w", err)
	}
	return client, nil
}

func (s *CarStore) coll() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *CarStore) Create(ctx context.Context, car *domain.Car) error {
	ref := s.coll().NewDoc()
	if _, err := ref.Create(ctx, toDoc(car)); err != nil {
		return fmt.Errorf("while creating car: %w", err)
	}
	car.ID = ref.ID
	return nil
}

func (s *CarStore) Get(ctx context.Context, id string) (*domain.Car, error) {
	snap, err := s.coll().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, cars.ErrNotFound
		}
		return nil, fmt.Errorf("while getting car %s: %w", id, err)
	}
	return fromSnapshot(snap)
}

func (s *CarStore) collect(iter *firestore.DocumentIterator) ([]domain.Car, error) {
	defer iter.Stop()
	out := []domain.Car{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating cars: %w", err)
		}
		car, err := fromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *car)
	}
	return out, nil
}

func (s *CarStore) ListByOwner(ctx context.Context, uid string) ([]domain.Car, error) {
	return s.collect(s.coll().Where("uid", "==", uid).Documents(ctx))
}

func (s *CarStore) ListAll(ctx context.Context) ([]domain.Car, error) {
	return s.collect(s.coll().OrderBy("created", firestore.Desc).Documents(ctx))
}

// SearchByNamePrefix scans the range [prefix, prefix+"\uf8ff").
func (s *CarStore) SearchByNamePrefix(ctx context.Context, prefix string) ([]domain.Car, error) {
	q := s.coll().
		Where("name", ">=", prefix).
		Where("name", "<", prefix+prefixSentinel)
	return s.collect(q.Documents(ctx))
}

func (s *CarStore) Update(ctx context.Context, car *domain.Car) error {
	d := toDoc(car)
	_, err := s.coll().Doc(car.ID).Update(ctx, []firestore.Update{
		{Path: "name", Value: d.Name},
		{Path: "model", Value: d.Model},
		{Path: "year", Value: d.Year},
		{Path: "km", Value: d.Km},
		{Path: "price", Value: d.Price},
		{Path: "city", Value: d.City},
		{Path: "whatsapp", Value: d.WhatsApp},
		{Path: "description", Value: d.Description},
		{Path: "images", Value: d.Images},
	})
	return mapWriteErr(err, car.ID)
}

func (s *CarStore) UpdateImages(ctx context.Context, id string, imgs domain.CarImages) error {
	list := []domain.CarImage(imgs)
	if list == nil {
		list = []domain.CarImage{}
	}
	_, err := s.coll().Doc(id).Update(ctx, []firestore.Update{{Path: "images", Value: list}})
	return mapWriteErr(err, id)
}

func (s *CarStore) Delete(ctx context.Context, id string) error {
	_, err := s.coll().Doc(id).Delete(ctx, firestore.Exists)
	return mapWriteErr(err, id)
}

func mapWriteErr(err error, id string) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return cars.ErrNotFound
	}
	return fmt.Errorf("while writing car %s: %w", id, err)
}
