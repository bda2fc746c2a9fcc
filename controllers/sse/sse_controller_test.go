package sse

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/m-barthelemy/placeshare/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerRoutesNotificationsToRecipient(t *testing.T) {
	controller := New(&models.Config{})
	alice := uuid.Must(uuid.NewV4())
	bob := uuid.Must(uuid.NewV4())
	aliceChannel := controller.broker.subscribe(alice)
	bobChannel := controller.broker.subscribe(bob)

	controller.NotificationCreated(models.Notification{RecipientID: alice, Type: models.NotificationNewPlace, Message: "bob added a new place 📍"})
	require.Len(t, aliceChannel, 1)
	assert.Contains(t, string(<-aliceChannel), "bob added a new place")
	assert.Empty(t, bobChannel)

	assert.True(t, controller.broker.publish(uuid.Nil, SSEMessage{Action: "ping"}))
	assert.Len(t, aliceChannel, 1)
	assert.Len(t, bobChannel, 1)

	controller.broker.unsubscribe(bobChannel)
	assert.False(t, controller.broker.publish(bob, SSEMessage{Action: "ping"}))
}

func TestBrokerDropsMessagesForSlowClients(t *testing.T) {
	controller := New(&models.Config{})
	alice := uuid.Must(uuid.NewV4())
	channel := controller.broker.subscribe(alice)

	for i := 0; i < clientBufferSize+5; i++ {
		controller.broker.publish(alice, SSEMessage{Action: "ping"})
	}
	assert.Len(t, channel, clientBufferSize)
}
