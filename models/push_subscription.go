package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// PushSubscription is a User's browser registration for web push notifications.
// There is at most one per User, a new registration replaces the previous one.
type PushSubscription struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Data      string    `gorm:"not null"` // encrypted webpush.Subscription JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}
