package carevents

import (
	"context"
	"errors"
	"testing"

	"webcarros-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakePublisher struct {
	got []domain.CarEvent
	err error
}

func (f *fakePublisher) Publish(ctx context.Context, ev domain.CarEvent) error {
	f.got = append(f.got, ev)
	return f.err
}

func setupEventsTest(t *testing.T, pub Publisher) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.CarEvent{}))
	return &Service{DB: db, Publisher: pub}
}

func TestRecord_StoresAndPublishes(t *testing.T) {
	pub := &fakePublisher{}
	s := setupEventsTest(t, pub)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "car-1", "u1", domain.CarEventCreated, map[string]interface{}{"name": "CIVIC"}))
	require.NoError(t, s.Record(ctx, "car-1", "u1", domain.CarEventDeleted, nil))
	require.NoError(t, s.Record(ctx, "car-2", "u2", domain.CarEventCreated, nil))

	events, err := s.ListByActor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.CarEventCreated, events[0].EventType)
	assert.JSONEq(t, `{"name":"CIVIC"}`, string(events[0].EventData))
	assert.Equal(t, domain.CarEventDeleted, events[1].EventType)
	assert.Len(t, pub.got, 3)
}

func TestRecord_PublishFailureIsNotReturned(t *testing.T) {
	s := setupEventsTest(t, &fakePublisher{err: errors.New("broker down")})
	assert.NoError(t, s.Record(context.Background(), "car-1", "u1", domain.CarEventUpdated, nil))
}

func TestListByActor_RequiresActor(t *testing.T) {
	s := setupEventsTest(t, nil)
	_, err := s.ListByActor(context.Background(), "")
	assert.Error(t, err)
}
