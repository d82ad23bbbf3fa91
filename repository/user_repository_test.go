package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"stockdata/store"
)

func TestGetByUsername(t *testing.T) {
	db := store.NewMemoryDatabase()
	db.Seed(userCollection,
		bson.M{"id": "u-1", "username": "alice", "mail": "alice@old.example"},
		bson.M{"_id": "u-2", "username": "bob", "email": "bob@example.com", "contact_email": "bob@backup.example"},
	)
	repo := NewUserRepository(db, zap.NewNop())
	ctx := context.Background()

	t.Run("found with fallback fields", func(t *testing.T) {
		user, err := repo.GetByUsername(ctx, "alice")
		assert.NoError(t, err)
		assert.NotNil(t, user)
		assert.Equal(t, "u-1", user.UserID())
		// no email field, mail is next in priority
		assert.Equal(t, "alice@old.example", user.BestEmail())
	})

	t.Run("email takes priority", func(t *testing.T) {
		user, err := repo.GetByUsername(ctx, "bob")
		assert.NoError(t, err)
		assert.NotNil(t, user)
		assert.Equal(t, "u-2", user.UserID())
		assert.Equal(t, "bob@example.com", user.BestEmail())
	})

	t.Run("unknown user is nil, not an error", func(t *testing.T) {
		user, err := repo.GetByUsername(ctx, "carol")
		assert.NoError(t, err)
		assert.Nil(t, user)
	})
}

func TestWatchlistSymbols(t *testing.T) {
	db := store.NewMemoryDatabase()
	db.Seed(watchlistCollection,
		bson.M{"user_id": "u-1", "symbols": []interface{}{"600000", "", "  ", "000001"}},
	)
	repo := NewUserRepository(db, zap.NewNop())
	ctx := context.Background()

	t.Run("stored order, blanks filtered", func(t *testing.T) {
		got, err := repo.WatchlistSymbols(ctx, "u-1")
		assert.NoError(t, err)
		assert.Equal(t, []string{"600000", "000001"}, got)
	})

	t.Run("no watchlist yields empty slice", func(t *testing.T) {
		got, err := repo.WatchlistSymbols(ctx, "u-9")
		assert.NoError(t, err)
		assert.Empty(t, got)
	})
}
