// Package user keeps a registry of the Telegram users who talk to the bot.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_note_logger_bot/internal/logging"
)

type userCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Registrar upserts a user record on every interaction and keeps its
// username and last-seen timestamp current.
type Registrar struct {
	users  userCollection
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided users collection.
func NewRegistrar(users userCollection, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		users:  users,
		logger: logger,
	}
}

// EnsureUser upserts the user and reports whether the record was created.
// An empty username leaves the stored one untouched.
func (r *Registrar) EnsureUser(ctx context.Context, userID int64, username string) (bool, error) {
	if r == nil || r.users == nil {
		return false, errors.New("user registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if userID == 0 {
		return false, errors.New("user id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	username = strings.TrimSpace(username)

	setFields := bson.M{
		"updated_at":   now,
		"last_seen_at": now,
	}
	if username != "" {
		setFields["username"] = username
	}

	update := bson.M{
		"$set": setFields,
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"created_at": now,
		},
	}

	result, err := r.users.UpdateOne(ctx,
		bson.M{"user_id": userID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}

	fields := logging.Fields{
		"user_id":  userID,
		"username": username,
	}

	if result != nil && result.UpsertedCount > 0 {
		fields["event"] = "user_registered"
		r.logger.WithFields(fields).Info("registered new user")
		return true, nil
	}

	fields["event"] = "user_seen"
	r.logger.WithFields(fields).Debug("updated user last seen")
	return false, nil
}
