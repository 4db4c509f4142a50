package assembler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rental-application-engine/internal/models"
	"rental-application-engine/internal/services/database"
	"rental-application-engine/internal/utils"
)

// ReviewStore applies agent decisions to stored documents.
type ReviewStore interface {
	UpdateDocumentStatus(ctx context.Context, review database.DocumentReview) (string, error)
}

// Reviewer records agent decisions on stored documents.
type Reviewer struct {
	store    ReviewStore
	notifier Notifier
}

// NewReviewer creates a reviewer. notifier may be nil to skip emails.
func NewReviewer(store ReviewStore, notifier Notifier) *Reviewer {
	return &Reviewer{store: store, notifier: notifier}
}

// Review stores the decision; a rejection also emails the applicant.
// Email failures are logged and do not fail the review.
func (r *Reviewer) Review(ctx context.Context, review database.DocumentReview) error {
	if review.Status != models.DocumentStatusVerified && review.Status != models.DocumentStatusRejected {
		return fmt.Errorf("review status must be verified or rejected, got %q", review.Status)
	}

	email, err := r.store.UpdateDocumentStatus(ctx, review)
	if err != nil {
		return fmt.Errorf("failed to review document: %w", err)
	}

	logger := utils.GetLogger()
	logger.Info("Document reviewed",
		zap.String("application_id", review.ApplicationID),
		zap.String("key", review.DocumentKey),
		zap.String("status", string(review.Status)),
	)

	if review.Status == models.DocumentStatusRejected && r.notifier != nil {
		if err := r.notifier.SendDocumentRejection(ctx, review.ApplicationID, email, review.DocumentKey, review.Comment); err != nil {
			logger.Error("Failed to send rejection email",
				zap.String("application_id", review.ApplicationID),
				zap.Error(err),
			)
		}
	}
	return nil
}
