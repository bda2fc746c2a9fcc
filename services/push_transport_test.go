package services

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/m-barthelemy/placeshare/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushServiceRequest struct {
	authorization   string
	contentEncoding string
	ttl             string
	size            int
}

func newBrowserSubscription(t *testing.T, endpoint string) *webpush.Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return &webpush.Subscription{
		Endpoint: endpoint,
		Keys: webpush.Keys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
}

func TestWebPushTransportDeliver(t *testing.T) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	transport := NewWebPushTransport(&models.Config{
		AdminEmail:      "admin@example.com",
		PushTTL:         3600,
		VapidPrivateKey: privateKey,
		VapidPublicKey:  publicKey,
	})

	var mu sync.Mutex
	var received []pushServiceRequest
	status := http.StatusCreated
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		received = append(received, pushServiceRequest{
			authorization:   r.Header.Get("Authorization"),
			contentEncoding: r.Header.Get("Content-Encoding"),
			ttl:             r.Header.Get("TTL"),
			size:            len(body),
		})
		w.WriteHeader(status)
	}))
	defer server.Close()
	subscription := newBrowserSubscription(t, server.URL+"/push/abc")
	message := []byte(`{"title":"PlaceShare","body":"bob added a new place 📍"}`)

	for _, expected := range []int{http.StatusCreated, http.StatusGone, http.StatusNotFound, http.StatusTooManyRequests} {
		mu.Lock()
		status = expected
		mu.Unlock()
		got, err := transport.Deliver(context.Background(), subscription, message)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 4)
	first := received[0]
	assert.Contains(t, first.authorization, "vapid t=")
	assert.Contains(t, first.authorization, "k="+publicKey)
	assert.Equal(t, "aes128gcm", first.contentEncoding)
	assert.Equal(t, "3600", first.ttl)
	// The payload is encrypted and padded, never sent as is
	assert.Greater(t, first.size, len(message))
}

func TestWebPushTransportDeliverFailures(t *testing.T) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	transport := NewWebPushTransport(&models.Config{
		AdminEmail:      "admin@example.com",
		VapidPrivateKey: privateKey,
		VapidPublicKey:  publicKey,
	})

	server := httptest.NewServer(http.NotFoundHandler())
	unreachable := server.URL + "/push/abc"
	server.Close()
	_, err = transport.Deliver(context.Background(), newBrowserSubscription(t, unreachable), []byte("hello"))
	assert.True(t, PushError.Has(err))

	broken := newBrowserSubscription(t, "https://push.test/abc")
	broken.Keys.P256dh = base64.RawURLEncoding.EncodeToString([]byte("not a point"))
	_, err = transport.Deliver(context.Background(), broken, []byte("hello"))
	assert.True(t, PushError.Has(err))
}
