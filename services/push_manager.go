package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/goccy/go-json"
	"github.com/gofrs/uuid"
	"github.com/m-barthelemy/placeshare/metrics"
	"github.com/m-barthelemy/placeshare/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PushPayload is the message shown by the browser service worker.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// PushTransport delivers an encrypted web push message and returns the push service HTTP status.
type PushTransport interface {
	Deliver(ctx context.Context, subscription *webpush.Subscription, message []byte) (int, error)
}

// WebPushTransport sends notifications through the browser vendor push services using VAPID.
type WebPushTransport struct {
	config *models.Config
}

func NewWebPushTransport(config *models.Config) *WebPushTransport {
	return &WebPushTransport{config: config}
}

func (t *WebPushTransport) Deliver(ctx context.Context, subscription *webpush.Subscription, message []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, message, subscription, &webpush.Options{
		Subscriber:      t.config.AdminEmail,
		VAPIDPublicKey:  t.config.VapidPublicKey,
		VAPIDPrivateKey: t.config.VapidPrivateKey,
		TTL:             t.config.PushTTL,
	})
	if err != nil {
		return 0, PushError.Wrap(err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// PushManager stores the users push subscriptions and sends them notifications.
type PushManager struct {
	db        *gorm.DB
	config    *models.Config
	protector *DataProtector
	transport PushTransport
}

func NewPushManager(db *gorm.DB, config *models.Config, transport PushTransport) (*PushManager, error) {
	protector, err := NewDataProtector(config.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return &PushManager{db: db, config: config, protector: protector, transport: transport}, nil
}

// PublicKey is the VAPID key browsers need to create a subscription.
func (p *PushManager) PublicKey() string {
	return p.config.VapidPublicKey
}

// Subscribe saves the browser subscription of a User, replacing any previous one.
func (p *PushManager) Subscribe(ctx context.Context, userID uuid.UUID, raw []byte) error {
	if len(raw) == 0 || string(raw) == "null" {
		return Unprocessable("Subscription data missing", nil)
	}
	// Validate that what we receive is a valid web push subscription
	subscription := webpush.Subscription{}
	if err := json.Unmarshal(raw, &subscription); err != nil {
		return Unprocessable("Invalid push subscription", err)
	}
	if subscription.Endpoint == "" || subscription.Keys.Auth == "" || subscription.Keys.P256dh == "" {
		return Unprocessable("Invalid push subscription", nil)
	}

	encrypted, err := p.protector.Encrypt(raw)
	if err != nil {
		return ServerError("Saving push subscription failed", err)
	}
	record := models.PushSubscription{UserID: userID, Data: encrypted}
	result := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&record)
	if result.Error != nil {
		return ServerError("Saving push subscription failed", result.Error)
	}
	log.Infof("PushManager: User %s subscribed to push notifications", userID)
	return nil
}

func (p *PushManager) Unsubscribe(ctx context.Context, userID uuid.UUID) error {
	result := p.db.WithContext(ctx).Delete(&models.PushSubscription{}, "user_id = ?", userID)
	if result.Error != nil {
		return ServerError("Removing push subscription failed", result.Error)
	}
	return nil
}

// Get returns the subscription of a User, or nil if they never subscribed.
func (p *PushManager) Get(ctx context.Context, userID uuid.UUID) (*models.PushSubscription, error) {
	var subscription models.PushSubscription
	result := p.db.WithContext(ctx).Where("user_id = ?", userID).First(&subscription)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &subscription, nil
}

// Send attempts to deliver payload to a subscription.
// Failures are logged and never returned: a push is always best-effort.
func (p *PushManager) Send(ctx context.Context, subscription *models.PushSubscription, payload PushPayload) {
	if !p.config.EnableNotifications {
		return
	}
	raw, err := p.protector.Decrypt(subscription.Data)
	if err != nil {
		p.failed(subscription, err)
		return
	}
	target := &webpush.Subscription{}
	if err := json.Unmarshal(raw, target); err != nil {
		p.failed(subscription, err)
		return
	}
	message, err := json.Marshal(payload)
	if err != nil {
		p.failed(subscription, err)
		return
	}

	if p.config.PushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.PushTimeout)
		defer cancel()
	}
	status, err := p.transport.Deliver(ctx, target, message)
	if err != nil {
		p.failed(subscription, err)
		return
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		// The push provider signals that the subscription is no longer active, so delete it.
		metrics.PushDeliveries.WithLabelValues("expired").Inc()
		if result := p.db.Delete(&models.PushSubscription{}, "user_id = ?", subscription.UserID); result.Error != nil {
			log.Errorf("PushManager: could not delete expired subscription of %s: %s", subscription.UserID, result.Error.Error())
			return
		}
		log.Infof("PushManager: deleted expired push subscription of %s", subscription.UserID)
	case status >= 400:
		p.failed(subscription, PushError.New("push service replied with status %d", status))
	default:
		metrics.PushDeliveries.WithLabelValues("sent").Inc()
	}
}

func (p *PushManager) failed(subscription *models.PushSubscription, err error) {
	metrics.PushDeliveries.WithLabelValues("failed").Inc()
	log.Errorf("PushManager: push to %s failed: %s", subscription.UserID, err.Error())
}
