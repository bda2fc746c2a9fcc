package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// User is a registered account. The places it created are referenced through UserPlace.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"unique;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// BeforeCreate ensures the model has an ID before saving it
func (user *User) BeforeCreate(scope *gorm.DB) error {
	return assignID(&user.ID)
}

// UserPlace is the reference a User keeps on each Place it created.
// It is written in the same transaction as the Place itself.
type UserPlace struct {
	UserID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	PlaceID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (UserPlace) TableName() string {
	return "user_places"
}

func assignID(id *uuid.UUID) error {
	if *id != uuid.Nil {
		return nil
	}
	newID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	*id = newID
	return nil
}
