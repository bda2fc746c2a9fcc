package sse

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/uuid"
	"github.com/m-barthelemy/placeshare/models"
	"github.com/m-barthelemy/placeshare/utils"
	log "github.com/sirupsen/logrus"
)

// Connected browsers receive their new in-app notifications as Server-Sent Events.
// This is a fallback for clients without web push support (or that denied it): the user has to keep a tab opened.

const clientBufferSize = 16

type SSEMessage struct {
	Action       string               `json:"action"`
	Notification *models.Notification `json:"notification,omitempty"`
}

type SSEBroker struct {
	clientsChannels map[chan []byte]uuid.UUID
	clientsMutex    *sync.Mutex
}

var sseEnd = []byte("\n\n")

// publish sends message to the clients of userID, or to every client if userID is Nil.
// Slow clients that have a full buffer miss the message.
func (b *SSEBroker) publish(userID uuid.UUID, message SSEMessage) bool {
	b.clientsMutex.Lock()
	defer b.clientsMutex.Unlock()
	found := false
	data, _ := json.Marshal(&message)
	for channel, clientID := range b.clientsChannels {
		if userID != uuid.Nil && clientID != userID {
			continue
		}
		select {
		case channel <- data:
			found = true
		default:
			log.Warnf("SSEController: dropped %s message for slow client %s", message.Action, clientID)
		}
	}
	return found
}

func (b *SSEBroker) subscribe(userID uuid.UUID) chan []byte {
	b.clientsMutex.Lock()
	defer b.clientsMutex.Unlock()

	channel := make(chan []byte, clientBufferSize)
	b.clientsChannels[channel] = userID
	return channel
}

// unsubscribe removes a client from the broker pool
func (b *SSEBroker) unsubscribe(channel chan []byte) {
	b.clientsMutex.Lock()
	defer b.clientsMutex.Unlock()

	delete(b.clientsChannels, channel)
}

type SSEController struct {
	config *models.Config
	broker *SSEBroker
	done   <-chan struct{}
}

// New creates an instance of the controller
func New(config *models.Config) *SSEController {
	return &SSEController{
		config: config,
		broker: &SSEBroker{
			clientsChannels: make(map[chan []byte]uuid.UUID),
			clientsMutex:    new(sync.Mutex),
		},
	}
}

// NotificationCreated forwards a new notification to the connected browsers of its recipient.
func (s *SSEController) NotificationCreated(notification models.Notification) {
	s.broker.publish(notification.RecipientID, SSEMessage{Action: "notification", Notification: &notification})
}

// Start ensures each client receives a periodic ping to maintain the connection, until ctx is done.
// Also aims at signalling potential corporate proxies that they should not close the connection.
// Open streams are closed when ctx is done, so that the server can shut down.
func (s *SSEController) Start(ctx context.Context, interval time.Duration) {
	s.done = ctx.Done()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.broker.publish(uuid.Nil, SSEMessage{Action: "ping"})
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *SSEController) HandleEvents(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.Identity(r)

	// Make sure that the writer supports flushing.
	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("SSEController: HTTP streaming unsupported")
		utils.MessageResponse(w, "Streaming is not supported", http.StatusInternalServerError)
		return
	}
	// The stream outlives the server write timeout
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debugf("SSEController: could not clear write deadline: %s", err.Error())
	}

	sourceIP := utils.New(s.config).GetClientIP(r)
	channel := s.broker.subscribe(userID)
	defer s.broker.unsubscribe(channel)
	log.Infof("SSEController: Added new SSE client %s connecting from %s", userID, sourceIP)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case msg := <-channel:
			_, _ = fmt.Fprintf(w, "data: %s%s", msg, sseEnd)
			flusher.Flush()
		case <-r.Context().Done():
			log.Infof("SSEController: Removed SSE client %s connecting from %s", userID, sourceIP)
			return
		case <-s.done:
			return
		}
	}
}
