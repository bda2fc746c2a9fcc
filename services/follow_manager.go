package services

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"
	"github.com/m-barthelemy/placeshare/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FollowManager handles the follow request, accept and reject workflow.
type FollowManager struct {
	db            *gorm.DB
	config        *models.Config
	notifications *NotificationsManager
}

func NewFollowManager(db *gorm.DB, config *models.Config, notifications *NotificationsManager) *FollowManager {
	return &FollowManager{db: db, config: config, notifications: notifications}
}

// RequestFollow creates a pending edge from followerID to targetID and notifies the target.
// targetID is the raw identifier received from the client.
func (m *FollowManager) RequestFollow(ctx context.Context, followerID uuid.UUID, targetID string) (*models.Follow, error) {
	target, err := uuid.FromString(targetID)
	if err != nil || target == uuid.Nil {
		return nil, InvalidInput("Invalid user id")
	}
	if target == followerID {
		return nil, InvalidInput("You cannot follow yourself")
	}

	var count int64
	if result := m.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", target).Count(&count); result.Error != nil {
		return nil, ServerError("Sending follow request failed", result.Error)
	}
	if count == 0 {
		return nil, NotFound("Could not find user for provided id")
	}

	follow := models.Follow{FollowerID: followerID, FollowingID: target, Status: models.FollowPending}
	if result := m.db.WithContext(ctx).Create(&follow); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, Conflict("Follow request already exists", result.Error)
		}
		return nil, ServerError("Sending follow request failed", result.Error)
	}

	// The in-app notification is part of the request: failing to write it fails the request.
	err = m.notifications.Notify(ctx, NotificationRequest{
		RecipientID: target,
		SenderID:    followerID,
		Type:        models.NotificationFollowRequest,
		Message:     "You received a follow request 👋",
		Link:        "/followers",
		Data:        map[string]string{"followId": follow.ID.String()},
		Push: PushPayload{
			Title: "New Follow Request 👋",
			Body:  "Someone wants to follow you",
			URL:   "/followers",
		},
	})
	if err != nil {
		return nil, ServerError("Sending follow request failed", err)
	}
	log.Infof("FollowManager: %s requested to follow %s", followerID, target)
	return &follow, nil
}

// GetFollowRequests lists the pending requests addressed to userID, with the follower name and image.
func (m *FollowManager) GetFollowRequests(ctx context.Context, userID uuid.UUID) ([]models.Follow, error) {
	requests := []models.Follow{}
	result := m.db.WithContext(ctx).
		Preload("Follower", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "image")
		}).
		Where("following_id = ? AND status = ?", userID, models.FollowPending).
		Order("created_at").
		Find(&requests)
	if result.Error != nil {
		return nil, ServerError("Fetching follow requests failed", result.Error)
	}
	return requests, nil
}

// AcceptFollow marks a request addressed to callerID as accepted.
// Accepting an already accepted request succeeds without changes.
func (m *FollowManager) AcceptFollow(ctx context.Context, followID string, callerID uuid.UUID) (*models.Follow, error) {
	follow, err := m.getAddressedTo(ctx, followID, callerID, "Accepting follow request failed")
	if err != nil {
		return nil, err
	}
	if follow.Status == models.FollowAccepted {
		return follow, nil
	}
	follow.Status = models.FollowAccepted
	if result := m.db.WithContext(ctx).Model(follow).Update("status", models.FollowAccepted); result.Error != nil {
		return nil, ServerError("Accepting follow request failed", result.Error)
	}
	log.Infof("FollowManager: %s accepted follow request from %s", callerID, follow.FollowerID)
	return follow, nil
}

// RejectFollow deletes a request addressed to callerID. Rejected requests are not kept.
func (m *FollowManager) RejectFollow(ctx context.Context, followID string, callerID uuid.UUID) error {
	follow, err := m.getAddressedTo(ctx, followID, callerID, "Rejecting follow request failed")
	if err != nil {
		return err
	}
	if result := m.db.WithContext(ctx).Delete(&models.Follow{}, "id = ?", follow.ID); result.Error != nil {
		return ServerError("Rejecting follow request failed", result.Error)
	}
	log.Infof("FollowManager: %s rejected follow request from %s", callerID, follow.FollowerID)
	return nil
}

// Statuses returns, for each user followed (or requested) by followerID, the edge status.
func (m *FollowManager) Statuses(ctx context.Context, followerID uuid.UUID) (map[uuid.UUID]models.FollowStatus, error) {
	var follows []models.Follow
	if result := m.db.WithContext(ctx).Where("follower_id = ?", followerID).Find(&follows); result.Error != nil {
		return nil, result.Error
	}
	statuses := make(map[uuid.UUID]models.FollowStatus, len(follows))
	for _, follow := range follows {
		statuses[follow.FollowingID] = follow.Status
	}
	return statuses, nil
}

func (m *FollowManager) getAddressedTo(ctx context.Context, followID string, callerID uuid.UUID, failure string) (*models.Follow, error) {
	id, err := uuid.FromString(followID)
	if err != nil {
		// malformed ids never resolve
		return nil, NotFound("Follow request not found")
	}
	var follow models.Follow
	if result := m.db.WithContext(ctx).Where("id = ?", id).First(&follow); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, NotFound("Follow request not found")
		}
		return nil, ServerError(failure, result.Error)
	}
	if follow.FollowingID != callerID {
		return nil, Unauthorized("Not authorized")
	}
	return &follow, nil
}
