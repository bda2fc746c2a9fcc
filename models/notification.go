package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationFollowRequest NotificationType = "FOLLOW_REQUEST"
	NotificationNewPlace      NotificationType = "NEW_PLACE"
)

// Notification is an in-app message addressed to a User.
type Notification struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID        `gorm:"type:uuid;not null;index" json:"recipient"`
	SenderID    *uuid.UUID       `gorm:"type:uuid" json:"sender,omitempty"`
	Type        NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Message     string           `gorm:"not null" json:"message"`
	Link        string           `json:"link"`
	Data        datatypes.JSON   `json:"data,omitempty"`
	IsRead      bool             `gorm:"not null;default:false" json:"isRead"`
	CreatedAt   time.Time        `gorm:"index" json:"createdAt"`
}

// BeforeCreate ensures the model has an ID before saving it
func (notification *Notification) BeforeCreate(scope *gorm.DB) error {
	return assignID(&notification.ID)
}
