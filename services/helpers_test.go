package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/asaskevich/EventBus"
	"github.com/gofrs/uuid"
	"github.com/m-barthelemy/placeshare/database"
	"github.com/m-barthelemy/placeshare/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testMediaURL = "https://media.test/placeshare"

type fakeGeocoder struct {
	location models.Location
	err      error
	calls    int
}

func (g *fakeGeocoder) Resolve(_ context.Context, _ string) (models.Location, error) {
	g.calls++
	return g.location, g.err
}

type fakeMediaStore struct {
	mu        sync.Mutex
	uploaded  []string
	deleted   []string
	uploadErr error
	deleteErr error
}

func (s *fakeMediaStore) Upload(_ context.Context, folder string, upload *Upload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	path := fmt.Sprintf("%s/%s/image-%d.%s", testMediaURL, folder, len(s.uploaded), ImageExtensions[upload.ContentType])
	s.uploaded = append(s.uploaded, path)
	return path, nil
}

func (s *fakeMediaStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, path)
	return s.deleteErr
}

type fakeTransport struct {
	mu        sync.Mutex
	status    int
	err       error
	delivered []string
	messages  [][]byte
}

func (t *fakeTransport) Deliver(_ context.Context, subscription *webpush.Subscription, message []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delivered = append(t.delivered, subscription.Endpoint)
	t.messages = append(t.messages, message)
	if t.err != nil {
		return 0, t.err
	}
	if t.status == 0 {
		return 201, nil
	}
	return t.status, nil
}

type testEnv struct {
	db            *gorm.DB
	config        *models.Config
	bus           EventBus.Bus
	geocoder      *fakeGeocoder
	media         *fakeMediaStore
	transport     *fakeTransport
	push          *PushManager
	notifications *NotificationsManager
	follows       *FollowManager
	places        *PlaceManager
	users         *UserManager
}

func testConfig() *models.Config {
	return &models.Config{
		DbType:              "sqlite",
		EnableNotifications: true,
		EncryptionKey:       "0123456789abcdef0123456789abcdef",
		PushTimeout:         time.Second,
		SigningKey:          strings.Repeat("s", 32),
		TokenValidity:       time.Hour,
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	config := testConfig()
	config.DbDSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open(config)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		db:        newTestDB(t),
		config:    testConfig(),
		bus:       EventBus.New(),
		geocoder:  &fakeGeocoder{location: models.Location{Lat: 40.7484474, Lng: -73.9871516}},
		media:     &fakeMediaStore{},
		transport: &fakeTransport{},
	}
	t.Cleanup(env.bus.WaitAsync)
	push, err := NewPushManager(env.db, env.config, env.transport)
	require.NoError(t, err)
	env.push = push
	env.notifications = NewNotificationsManager(env.db, env.config, env.push, env.bus)
	env.follows = NewFollowManager(env.db, env.config, env.notifications)
	env.places = NewPlaceManager(env.db, env.config, env.geocoder, env.media, env.bus)
	env.users = NewUserManager(env.db, env.config, env.media, env.follows)
	return env
}

func (env *testEnv) createUser(t *testing.T, name string) models.User {
	t.Helper()
	user := models.User{Name: name, Email: strings.ToLower(name) + "@example.com", Password: "not-a-hash", Image: testMediaURL + "/user_images/" + name + ".png"}
	require.NoError(t, env.db.Create(&user).Error)
	return user
}

func (env *testEnv) follow(t *testing.T, follower models.User, following models.User, status models.FollowStatus) models.Follow {
	t.Helper()
	follow := models.Follow{FollowerID: follower.ID, FollowingID: following.ID, Status: status}
	require.NoError(t, env.db.Create(&follow).Error)
	return follow
}

func (env *testEnv) subscribe(t *testing.T, user models.User) {
	t.Helper()
	require.NoError(t, env.push.Subscribe(context.Background(), user.ID, subscriptionJSON("https://push.test/"+user.Name)))
}

func subscriptionJSON(endpoint string) []byte {
	return []byte(fmt.Sprintf(`{"endpoint":%q,"keys":{"auth":"auth-secret","p256dh":"p256dh-key"}}`, endpoint))
}

func testImage() *Upload {
	return &Upload{Reader: strings.NewReader("png"), ContentType: "image/png", Size: 3}
}

// failCreatesOn makes every INSERT into table fail.
func failCreatesOn(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			tx.AddError(fmt.Errorf("injected failure on %s", table))
		}
	})
	require.NoError(t, err)
}

// failDeletesOn makes every DELETE on table fail.
func failDeletesOn(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Delete().Before("gorm:delete").Register("test:fail_delete_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			tx.AddError(fmt.Errorf("injected failure on %s", table))
		}
	})
	require.NoError(t, err)
}

func countNotifications(t *testing.T, db *gorm.DB, recipient uuid.UUID, kind models.NotificationType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("recipient_id = ? AND type = ?", recipient, kind).Count(&count).Error)
	return count
}

func requireKind(t *testing.T, err error, kind Kind, status int) {
	t.Helper()
	require.Error(t, err)
	var mapped *Error
	require.ErrorAs(t, err, &mapped)
	require.Equal(t, kind, mapped.Kind, "unexpected kind for %v", err)
	require.Equal(t, status, mapped.Status)
}
