package carevents

import (
	"context"
	"encoding/json"
	"errors"

	"webcarros-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Publisher forwards recorded events to a broker. Optional.
type Publisher interface {
	Publish(ctx context.Context, ev domain.CarEvent) error
}

type Service struct {
	DB        *gorm.DB
	Publisher Publisher
}

// Record stores the event and forwards it to the publisher. Publish failures are logged only.
func (s *Service) Record(ctx context.Context, carID, actorUID, eventType string, data map[string]interface{}) error {
	if data == nil {
		data = map[string]interface{}{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ev := domain.CarEvent{
		CarID:     carID,
		EventType: eventType,
		EventData: datatypes.JSON(b),
		ActorUID:  actorUID,
	}
	if err := s.DB.WithContext(ctx).Create(&ev).Error; err != nil {
		return err
	}
	if s.Publisher != nil {
		if err := s.Publisher.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("car_id", carID).Str("event", eventType).Msg("carevents: publish failed")
		}
	}
	return nil
}

// ListByActor returns the events caused by uid, oldest first.
func (s *Service) ListByActor(ctx context.Context, uid string) ([]domain.CarEvent, error) {
	if uid == "" {
		return nil, errors.New("Actor is required")
	}
	var events []domain.CarEvent
	if err := s.DB.WithContext(ctx).Where("actor_uid = ?", uid).Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
