package firestoredb

import (
	"context"
	"os"
	"testing"
	"time"

	"webcarros-backend/internal/application/cars"
	"webcarros-backend/internal/domain"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDoc_KeepsDocumentShape(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	car := &domain.Car{
		ID:          "abc",
		Name:        "CIVIC",
		Model:       "EXL",
		Year:        "2019",
		Km:          "40000",
		Price:       "95000",
		City:        "Dourados",
		WhatsApp:    "67999998888",
		Description: "ok",
		Created:     created,
		Owner:       "Ana",
		UID:         "u1",
		Images:      domain.CarImages{{UID: "i1", Name: "u1", URL: "https://x/i1"}},
	}
	d := toDoc(car)
	assert.Equal(t, "CIVIC", d.Name)
	assert.Equal(t, "95000", d.Price)
	assert.Equal(t, created, d.Created)
	assert.Equal(t, "u1", d.UID)
	assert.Equal(t, []domain.CarImage{{UID: "i1", Name: "u1", URL: "https://x/i1"}}, d.Images)
}

func TestToDoc_NilImagesBecomeEmptyArray(t *testing.T) {
	d := toDoc(&domain.Car{})
	assert.NotNil(t, d.Images)
	assert.Empty(t, d.Images)
}

func TestPrefixSentinelSortsAfterLetters(t *testing.T) {
	assert.Less(t, "CIVIC", "CI"+prefixSentinel)
	assert.Less(t, "CI", "CIVIC")
	assert.Greater(t, "CJ", "CI"+prefixSentinel)
}

func TestFromDoc_NumericPrice(t *testing.T) {
	for _, v := range []interface{}{int64(32000), float64(32000), "32000"} {
		car, err := fromDoc("legacy", carDoc{Name: "GOL", Price: v})
		require.NoError(t, err)
		assert.Equal(t, "legacy", car.ID)
		assert.Equal(t, domain.Price("32000"), car.Price)
	}

	_, err := fromDoc("bad", carDoc{Price: []interface{}{"x"}})
	assert.Error(t, err)
}

// emulatorStore talks to the Firestore emulator, one fresh collection per test.
func emulatorStore(t *testing.T) (*CarStore, *firestore.Client) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "webcarros-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewCarStore(client, "cars_"+uuid.NewString()), client
}

func newCar(name, uid string, created time.Time) *domain.Car {
	return &domain.Car{
		Name:        name,
		Model:       "1.0",
		Year:        "2020",
		Km:          "1000",
		Price:       "50000",
		City:        "Campinas",
		WhatsApp:    "19999998888",
		Description: "ok",
		Created:     created,
		Owner:       "Ana",
		UID:         uid,
		Images:      domain.CarImages{{UID: uuid.NewString(), Name: uid, URL: "http://blobs.test/x"}},
	}
}

func TestCarStore_Queries(t *testing.T) {
	s, _ := emulatorStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	civic := newCar("CIVIC", "u1", base)
	city := newCar("CITY", "u2", base.Add(time.Minute))
	onix := newCar("ONIX", "u1", base.Add(2*time.Minute))
	for _, c := range []*domain.Car{civic, city, onix} {
		require.NoError(t, s.Create(ctx, c))
		require.NotEmpty(t, c.ID)
	}

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"ONIX", "CITY", "CIVIC"}, []string{all[0].Name, all[1].Name, all[2].Name})

	found, err := s.SearchByNamePrefix(ctx, "CI")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.ElementsMatch(t, []string{civic.ID, city.ID}, []string{found[0].ID, found[1].ID})

	mine, err := s.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	got, err := s.Get(ctx, civic.ID)
	require.NoError(t, err)
	assert.Equal(t, civic.Images, got.Images)
	assert.Equal(t, domain.Price("50000"), got.Price)
}

func TestCarStore_Writes(t *testing.T) {
	s, _ := emulatorStore(t)
	ctx := context.Background()

	car := newCar("CIVIC", "u1", time.Now().UTC())
	require.NoError(t, s.Create(ctx, car))

	car.Name = "CIVIC SI"
	car.Price = "90000"
	require.NoError(t, s.Update(ctx, car))
	require.NoError(t, s.UpdateImages(ctx, car.ID, nil))

	got, err := s.Get(ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, "CIVIC SI", got.Name)
	assert.Equal(t, domain.Price("90000"), got.Price)
	assert.Empty(t, got.Images)

	require.NoError(t, s.Delete(ctx, car.ID))
	_, err = s.Get(ctx, car.ID)
	assert.ErrorIs(t, err, cars.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, car.ID), cars.ErrNotFound)
	assert.ErrorIs(t, s.UpdateImages(ctx, "missing", nil), cars.ErrNotFound)
}

func TestCarStore_ReadsNumericPriceDocuments(t *testing.T) {
	s, client := emulatorStore(t)
	ctx := context.Background()

	_, err := client.Collection(s.collection).Doc("legacy").Set(ctx, map[string]interface{}{
		"name":    "GOL",
		"price":   32000,
		"created": time.Now().UTC(),
		"uid":     "u1",
		"images":  []interface{}{},
	})
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, newCar("GOLF", "u1", time.Now().UTC())))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	legacy, err := s.Get(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, domain.Price("32000"), legacy.Price)
}
