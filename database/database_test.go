package database

import (
	"fmt"
	"testing"

	"github.com/m-barthelemy/placeshare/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOpenUnknownType(t *testing.T) {
	_, err := Open(&models.Config{DbType: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestMigrateAndUniqueFollowPair(t *testing.T) {
	config := &models.Config{DbType: "sqlite", DbDSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())}
	db, err := Open(config)
	require.NoError(t, err)
	defer Close(db)
	require.NoError(t, Migrate(db))

	alice := models.User{Name: "alice", Email: "alice@example.com", Password: "x"}
	bob := models.User{Name: "bob", Email: "bob@example.com", Password: "x"}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)

	require.NoError(t, db.Create(&models.Follow{FollowerID: alice.ID, FollowingID: bob.ID}).Error)
	err = db.Create(&models.Follow{FollowerID: alice.ID, FollowingID: bob.ID}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// The reverse edge is a different ordered pair
	assert.NoError(t, db.Create(&models.Follow{FollowerID: bob.ID, FollowingID: alice.ID}).Error)
}
