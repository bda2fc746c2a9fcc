package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Location is the geocoded position of a Place address
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is a geotagged post created by a User.
// Address and Location are set at creation and never change afterwards.
type Place struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"not null" json:"description"`
	Address     string    `gorm:"not null" json:"address"`
	Location    Location  `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Image       string    `gorm:"not null" json:"image"`
	CreatorID   uuid.UUID `gorm:"type:uuid;index;not null" json:"creator"`
	Creator     *User     `gorm:"foreignKey:CreatorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BeforeCreate ensures the model has an ID before saving it
func (place *Place) BeforeCreate(scope *gorm.DB) error {
	return assignID(&place.ID)
}
