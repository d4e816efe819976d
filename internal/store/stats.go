package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_note_logger_bot/internal/domain"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// Stats is a point-in-time summary of the registry and journal.
type Stats struct {
	Users             int64
	Submissions       int64
	FailedSubmissions int64
}

// StatsProvider counts users and journal entries for the /stats command.
type StatsProvider struct {
	users       countCollection
	submissions countCollection
}

// NewStatsProvider constructs a StatsProvider backed by the users and
// submissions collections.
func NewStatsProvider(users, submissions countCollection) *StatsProvider {
	return &StatsProvider{
		users:       users,
		submissions: submissions,
	}
}

// Collect runs every count and fails on the first error.
func (p *StatsProvider) Collect(ctx context.Context) (Stats, error) {
	if ctx == nil {
		return Stats{}, errors.New("context is required")
	}
	if p == nil || p.users == nil || p.submissions == nil {
		return Stats{}, errors.New("stats provider is not initialized")
	}

	var (
		stats Stats
		err   error
	)

	if stats.Users, err = p.users.CountDocuments(ctx, bson.D{}); err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}
	if stats.Submissions, err = p.submissions.CountDocuments(ctx, bson.D{}); err != nil {
		return Stats{}, fmt.Errorf("count submissions: %w", err)
	}
	failed := bson.D{{Key: "outcome", Value: bson.D{{Key: "$ne", Value: domain.OutcomeSuccess}}}}
	if stats.FailedSubmissions, err = p.submissions.CountDocuments(ctx, failed); err != nil {
		return Stats{}, fmt.Errorf("count failed submissions: %w", err)
	}

	return stats, nil
}
