package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type insertCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// SubmissionRepository persists the note submission journal in MongoDB.
type SubmissionRepository struct {
	collection insertCollection
}

// NewSubmissionRepository constructs a SubmissionRepository.
func NewSubmissionRepository(collection insertCollection) *SubmissionRepository {
	return &SubmissionRepository{collection: collection}
}

// Record inserts a journal entry, stamping created_at when omitted.
func (r *SubmissionRepository) Record(ctx context.Context, submission Submission) error {
	if r == nil || r.collection == nil {
		return errors.New("submission repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if strings.TrimSpace(submission.RequestID) == "" {
		return ErrMissingRequestID
	}
	if submission.UserID == 0 {
		return ErrMissingUserID
	}

	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now().UTC()
	}
	submission.CreatedAt = submission.CreatedAt.UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, submission); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	return nil
}
