package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/m-barthelemy/placeshare/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket answers the subset of the S3 API used by MinioMediaStore.
type fakeBucket struct {
	mu          sync.Mutex
	puts        map[string]string
	deletes     []string
	denyWrites  bool
	requestURIs []string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requestURIs = append(b.requestURIs, r.Method+" "+r.URL.Path)
	_, _ = io.Copy(io.Discard, r.Body)
	switch {
	case r.Method == http.MethodGet && r.URL.Query().Has("location"):
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></LocationConstraint>`)
	case b.denyWrites:
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied.</Message></Error>`)
	case r.Method == http.MethodPut:
		b.puts[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		b.deletes = append(b.deletes, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newMinioTestStore(t *testing.T) (*MinioMediaStore, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{puts: map[string]string{}}
	server := httptest.NewServer(bucket)
	t.Cleanup(server.Close)
	endpoint, err := url.Parse(server.URL)
	require.NoError(t, err)
	publicURL, err := url.Parse(testMediaURL)
	require.NoError(t, err)
	store, err := NewMinioMediaStore(&models.Config{
		MediaAccessKey: "access",
		MediaBucket:    "placeshare",
		MediaEndpoint:  endpoint.Host,
		MediaPublicURL: publicURL,
		MediaSecretKey: "secret-key",
	})
	require.NoError(t, err)
	return store, bucket
}

func TestMinioUploadAndDelete(t *testing.T) {
	store, bucket := newMinioTestStore(t)
	ctx := context.Background()

	path, err := store.Upload(ctx, PlaceImagesFolder, &Upload{Reader: strings.NewReader("png"), ContentType: "image/png", Size: 3})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(path, testMediaURL+"/place_images/"), path)
	assert.True(t, strings.HasSuffix(path, ".png"), path)

	key := strings.TrimPrefix(path, testMediaURL+"/")
	bucket.mu.Lock()
	assert.Equal(t, map[string]string{"/placeshare/" + key: "image/png"}, bucket.puts)
	bucket.mu.Unlock()

	require.NoError(t, store.Delete(ctx, path))
	bucket.mu.Lock()
	assert.Equal(t, []string{"/placeshare/" + key}, bucket.deletes)
	bucket.mu.Unlock()
}

func TestMinioUploadRejectsUnknownType(t *testing.T) {
	store, bucket := newMinioTestStore(t)

	_, err := store.Upload(context.Background(), UserImagesFolder, &Upload{Reader: strings.NewReader("gif"), ContentType: "image/gif", Size: 3})
	requireKind(t, err, KindInvalidInput, http.StatusUnprocessableEntity)
	assert.Empty(t, bucket.requestURIs)
}

func TestMinioFailures(t *testing.T) {
	store, bucket := newMinioTestStore(t)
	ctx := context.Background()

	// Paths hosted elsewhere never reach the bucket
	err := store.Delete(ctx, "https://elsewhere.example.com/placeshare/place_images/1b4e28ba.png")
	assert.True(t, MediaError.Has(err))
	assert.Empty(t, bucket.requestURIs)

	bucket.mu.Lock()
	bucket.denyWrites = true
	bucket.mu.Unlock()
	_, err = store.Upload(ctx, PlaceImagesFolder, &Upload{Reader: strings.NewReader("png"), ContentType: "image/png", Size: 3})
	assert.True(t, MediaError.Has(err))
	err = store.Delete(ctx, testMediaURL+"/place_images/1b4e28ba.png")
	assert.True(t, MediaError.Has(err))
}

func TestMediaKey(t *testing.T) {
	key, err := MediaKey("https://media.example.com/placeshare/", "https://media.example.com/placeshare/place_images/1b4e28ba.png")
	require.NoError(t, err)
	assert.Equal(t, "place_images/1b4e28ba.png", key)

	for _, path := range []string{
		"https://elsewhere.example.com/placeshare/place_images/1b4e28ba.png",
		"https://media.example.com/placeshare/",
		"",
	} {
		_, err := MediaKey("https://media.example.com/placeshare", path)
		assert.True(t, MediaError.Has(err), path)
	}
}
