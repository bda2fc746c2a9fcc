package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/gofrs/uuid"
	"github.com/m-barthelemy/placeshare/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PlaceManager handles the places lifecycle.
type PlaceManager struct {
	db       *gorm.DB
	config   *models.Config
	geocoder Geocoder
	media    MediaStore
	bus      EventBus.Bus
}

// NewPlace holds the client supplied values of a place to create.
type NewPlace struct {
	Title       string
	Description string
	Address     string
	Image       *Upload
}

func NewPlaceManager(db *gorm.DB, config *models.Config, geocoder Geocoder, media MediaStore, bus EventBus.Bus) *PlaceManager {
	return &PlaceManager{db: db, config: config, geocoder: geocoder, media: media, bus: bus}
}

func (m *PlaceManager) GetPlace(ctx context.Context, placeID string) (*models.Place, error) {
	id, err := uuid.FromString(placeID)
	if err != nil {
		return nil, InvalidInput("Invalid place ID.")
	}
	var place models.Place
	if result := m.db.WithContext(ctx).Where("id = ?", id).First(&place); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, NotFound("Could not find a place for the provided id.")
		}
		return nil, ServerError("Something went wrong, could not find a place", result.Error)
	}
	return &place, nil
}

// GetPlacesByUser returns the places referenced by a User, newest first.
func (m *PlaceManager) GetPlacesByUser(ctx context.Context, userID string) ([]models.Place, error) {
	notFound := NotFound("Could not find places for the provided user id.")
	id, err := uuid.FromString(userID)
	if err != nil {
		return nil, notFound
	}
	places := []models.Place{}
	result := m.db.WithContext(ctx).
		Joins("JOIN user_places ON user_places.place_id = places.id").
		Where("user_places.user_id = ?", id).
		Order("places.created_at desc").
		Find(&places)
	if result.Error != nil {
		return nil, ServerError("Fetching places failed, please try again later", result.Error)
	}
	if len(places) == 0 {
		return nil, notFound
	}
	return places, nil
}

// CreatePlace geocodes the address, stores the image and saves the place with its creator reference
// in a single transaction. Followers are then notified through the event bus: that step never fails
// the creation.
func (m *PlaceManager) CreatePlace(ctx context.Context, creatorID uuid.UUID, input NewPlace) (*models.Place, error) {
	if input.Image == nil {
		return nil, Unprocessable("Image upload failed", nil)
	}
	address := strings.TrimSpace(input.Address)
	if address == "" {
		return nil, Unprocessable("Address is required", nil)
	}

	location, err := m.geocoder.Resolve(ctx, address)
	if err != nil {
		log.Warnf("PlaceManager: geocoding '%s' failed: %s", address, err.Error())
		var mapped *Error
		if errors.As(err, &mapped) {
			return nil, mapped
		}
		return nil, ServerError("Geocoding failed, please try again later", err)
	}

	var creator models.User
	if result := m.db.WithContext(ctx).Where("id = ?", creatorID).First(&creator); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, NotFound("Could not find user for provided id")
		}
		log.Errorf("PlaceManager: user lookup failed: %s", result.Error.Error())
		return nil, ServerError("Creating place failed, please try again", result.Error)
	}

	imagePath, err := m.media.Upload(ctx, PlaceImagesFolder, input.Image)
	if err != nil {
		var mapped *Error
		if errors.As(err, &mapped) {
			return nil, mapped
		}
		log.Errorf("PlaceManager: image upload failed: %s", err.Error())
		return nil, ServerError("Image upload failed, please try again", err)
	}

	place := models.Place{
		Title:       input.Title,
		Description: input.Description,
		Address:     address,
		Location:    location,
		Image:       imagePath,
		CreatorID:   creator.ID,
	}
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&place).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserPlace{UserID: creator.ID, PlaceID: place.ID}).Error
	})
	if err != nil {
		log.Errorf("PlaceManager: place creation for user %s failed: %s", creator.ID, err.Error())
		m.deleteImage(ctx, imagePath)
		return nil, ServerError("Creating place failed, please try again", err)
	}
	log.Infof("PlaceManager: user %s created place %s", creator.ID, place.ID)

	if m.bus != nil {
		m.bus.Publish(PlaceCreatedTopic, &PlaceCreatedEvent{Place: place, Creator: creator})
	}
	return &place, nil
}

// UpdatePlace changes the title and description of a place owned by callerID.
func (m *PlaceManager) UpdatePlace(ctx context.Context, placeID string, callerID uuid.UUID, title string, description string) (*models.Place, error) {
	id, err := uuid.FromString(placeID)
	if err != nil {
		return nil, InvalidInput("Invalid place ID.")
	}
	var place models.Place
	if result := m.db.WithContext(ctx).Where("id = ?", id).First(&place); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, NotFound("Could not find place for this id.")
		}
		return nil, ServerError("Something went wrong, could not update place", result.Error)
	}
	if place.CreatorID != callerID {
		return nil, Unauthorized("You are not allowed to edit this place.")
	}

	place.Title = title
	place.Description = description
	result := m.db.WithContext(ctx).Model(&place).Select("title", "description", "updated_at").Updates(&place)
	if result.Error != nil {
		return nil, ServerError("Something went wrong, could not update place", result.Error)
	}
	return &place, nil
}

// DeletePlace removes a place owned by callerID along with its creator reference, then deletes its image.
func (m *PlaceManager) DeletePlace(ctx context.Context, placeID string, callerID uuid.UUID) error {
	id, err := uuid.FromString(placeID)
	if err != nil {
		return InvalidInput("Invalid place ID.")
	}
	var place models.Place
	if result := m.db.WithContext(ctx).Preload("Creator").Where("id = ?", id).First(&place); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return NotFound("Could not find place for this id.")
		}
		return ServerError("Something went wrong, could not delete place.", result.Error)
	}
	if place.Creator == nil || place.Creator.ID != callerID {
		return Unauthorized("You are not allowed to delete this place.")
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.UserPlace{}, "user_id = ? AND place_id = ?", place.Creator.ID, place.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Place{}, "id = ?", place.ID).Error
	})
	if err != nil {
		log.Errorf("PlaceManager: deleting place %s failed: %s", place.ID, err.Error())
		return ServerError("Something went wrong, could not delete place.", err)
	}
	log.Infof("PlaceManager: user %s deleted place %s", callerID, place.ID)

	m.deleteImage(ctx, place.Image)
	return nil
}

// deleteImage removes an image from the media host. Failures are only logged.
func (m *PlaceManager) deleteImage(ctx context.Context, path string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := m.media.Delete(ctx, path); err != nil {
		log.Warnf("PlaceManager: could not delete image %s: %s", path, err.Error())
	}
}
