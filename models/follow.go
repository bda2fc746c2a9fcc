package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type FollowStatus string

const (
	FollowPending  FollowStatus = "pending"
	FollowAccepted FollowStatus = "accepted"
)

// Follow is a directed edge from Follower to Following.
// The composite unique index ensures there is at most one edge per ordered pair.
// Deleting a User never cascades to its edges.
type Follow struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	FollowerID  uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_follow_pair" json:"followerId"`
	FollowingID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_follow_pair;index" json:"following"`
	Status      FollowStatus `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Follower    *User        `gorm:"foreignKey:FollowerID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"follower,omitempty"`
}

// BeforeCreate ensures the model has an ID before saving it
func (follow *Follow) BeforeCreate(scope *gorm.DB) error {
	if follow.Status == "" {
		follow.Status = FollowPending
	}
	return assignID(&follow.ID)
}
