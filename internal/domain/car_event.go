package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CarEventCreated      = "CREATED"
	CarEventUpdated      = "UPDATED"
	CarEventImageRemoved = "IMAGE_REMOVED"
	CarEventDeleted      = "DELETED"
	CarEventDeleteFailed = "DELETE_FAILED"
)

// CarEvent is the audit trail of listing mutations.
type CarEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	CarID     string         `gorm:"column:car_id;size:64;not null;index" json:"car_id"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	EventData datatypes.JSON `gorm:"column:event_data;not null" json:"event_data"`
	ActorUID  string         `gorm:"column:actor_uid;size:64;not null;index" json:"actor_uid"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (CarEvent) TableName() string {
	return "car_events"
}

func (e *CarEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
