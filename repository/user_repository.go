package repository

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"stockdata/model"
	"stockdata/store"
)

const (
	userCollection      = "users"
	watchlistCollection = "user_watchlists"
)

// UserRepository handles read access to users and their watchlists
type UserRepository struct {
	userColl  store.Collection
	watchColl store.Collection
	logger    *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db store.Database, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		userColl:  db.Collection(userCollection),
		watchColl: db.Collection(watchlistCollection),
		logger:    logger,
	}
}

// GetByUsername retrieves a user by username. An unknown username returns
// nil without an error.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.userColl.FindOne(ctx, bson.M{"username": username}, store.FindOptions{}, &user)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user",
			zap.Error(err),
			zap.String("username", username))
		return nil, err
	}
	return &user, nil
}

// WatchlistSymbols returns the user's stored watchlist symbols in stored
// order, filtered to non-blank entries. A user without a watchlist gets
// an empty slice.
func (r *UserRepository) WatchlistSymbols(ctx context.Context, userID string) ([]string, error) {
	var wl model.Watchlist
	err := r.watchColl.FindOne(ctx, bson.M{"user_id": userID}, store.FindOptions{}, &wl)
	if errors.Is(err, store.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		r.logger.Error("Failed to get watchlist",
			zap.Error(err),
			zap.String("user_id", userID))
		return nil, err
	}

	symbols := make([]string, 0, len(wl.Symbols))
	for _, s := range wl.Symbols {
		if strings.TrimSpace(s) != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols, nil
}
