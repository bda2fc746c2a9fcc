package services

import (
	"context"
	"fmt"

	"github.com/asaskevich/EventBus"
	"github.com/goccy/go-json"
	"github.com/gofrs/uuid"
	"github.com/m-barthelemy/placeshare/metrics"
	"github.com/m-barthelemy/placeshare/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlaceCreatedTopic is published on the event bus once a place and its creator reference are committed.
const PlaceCreatedTopic = "places:created"

// PlaceCreatedEvent is the payload of PlaceCreatedTopic.
type PlaceCreatedEvent struct {
	Place   models.Place
	Creator models.User
}

// NotificationRequest describes one notification to write and push.
type NotificationRequest struct {
	RecipientID uuid.UUID
	SenderID    uuid.UUID
	Type        models.NotificationType
	Message     string
	Link        string
	Data        map[string]string
	Push        PushPayload
}

type NotificationsManager struct {
	db        *gorm.DB
	config    *models.Config
	push      *PushManager
	listeners []func(models.Notification)
}

// NewNotificationsManager creates the manager and subscribes it to new places on bus.
// The follower fan-out runs on its own goroutine, so callers wait on bus.WaitAsync before closing the store.
func NewNotificationsManager(db *gorm.DB, config *models.Config, push *PushManager, bus EventBus.Bus) *NotificationsManager {
	n := &NotificationsManager{db: db, config: config, push: push}
	if bus != nil {
		if err := bus.SubscribeAsync(PlaceCreatedTopic, n.notifyFollowers, false); err != nil {
			log.Errorf("NotificationsManager: could not subscribe to %s: %s", PlaceCreatedTopic, err.Error())
		}
	}
	return n
}

// OnCreated registers fn to be called with every notification written.
// Listeners are called synchronously from Notify, so they must not block; they must be registered before serving.
func (n *NotificationsManager) OnCreated(fn func(models.Notification)) {
	n.listeners = append(n.listeners, fn)
}

// Notify writes the in-app notification, then tries to push it to the recipient browser.
// Only a failure to write the in-app notification is returned.
func (n *NotificationsManager) Notify(ctx context.Context, request NotificationRequest) error {
	notification := models.Notification{
		RecipientID: request.RecipientID,
		Type:        request.Type,
		Message:     request.Message,
		Link:        request.Link,
	}
	if request.SenderID != uuid.Nil {
		sender := request.SenderID
		notification.SenderID = &sender
	}
	if len(request.Data) > 0 {
		data, err := json.Marshal(request.Data)
		if err != nil {
			return err
		}
		notification.Data = datatypes.JSON(data)
	}
	if result := n.db.WithContext(ctx).Create(&notification); result.Error != nil {
		return result.Error
	}
	metrics.NotificationsCreated.WithLabelValues(string(request.Type)).Inc()
	for _, listener := range n.listeners {
		listener(notification)
	}

	subscription, err := n.push.Get(ctx, request.RecipientID)
	if err != nil {
		log.Errorf("NotificationsManager: could not load push subscription of %s: %s", request.RecipientID, err.Error())
		return nil
	}
	if subscription != nil {
		n.push.Send(ctx, subscription, request.Push)
	}
	return nil
}

// List returns the most recent notifications addressed to a User.
func (n *NotificationsManager) List(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	notifications := []models.Notification{}
	result := n.db.WithContext(ctx).Where("recipient_id = ?", userID).Order("created_at desc").Limit(100).Find(&notifications)
	if result.Error != nil {
		return nil, ServerError("Fetching notifications failed", result.Error)
	}
	return notifications, nil
}

// notifyFollowers tells every accepted follower of the creator about a new place.
// Nothing here may fail the place creation: errors are only logged and counted.
func (n *NotificationsManager) notifyFollowers(event *PlaceCreatedEvent) {
	defer func() {
		if r := recover(); r != nil {
			metrics.FanoutFailures.Inc()
			log.Errorf("NotificationsManager: notifying followers of %s panicked: %v", event.Creator.ID, r)
		}
	}()

	ctx := context.Background()
	var followers []models.Follow
	result := n.db.WithContext(ctx).Where("following_id = ? AND status = ?", event.Creator.ID, models.FollowAccepted).Find(&followers)
	if result.Error != nil {
		metrics.FanoutFailures.Inc()
		log.Errorf("NotificationsManager: could not list followers of %s: %s", event.Creator.ID, result.Error.Error())
		return
	}

	link := fmt.Sprintf("/places/user/%s", event.Creator.ID)
	for _, follow := range followers {
		err := n.Notify(ctx, NotificationRequest{
			RecipientID: follow.FollowerID,
			SenderID:    event.Creator.ID,
			Type:        models.NotificationNewPlace,
			Message:     fmt.Sprintf("%s added a new place 📍", event.Creator.Name),
			Link:        link,
			Data:        map[string]string{"placeId": event.Place.ID.String()},
			Push: PushPayload{
				Title: "New Place Added 📍",
				Body:  fmt.Sprintf("%s added a new place", event.Creator.Name),
				URL:   link,
			},
		})
		if err != nil {
			metrics.FanoutFailures.Inc()
			log.Errorf("NotificationsManager: could not notify %s of place %s: %s", follow.FollowerID, event.Place.ID, err.Error())
		}
	}
	log.Debugf("NotificationsManager: notified %d followers of %s about place %s", len(followers), event.Creator.ID, event.Place.ID)
}
