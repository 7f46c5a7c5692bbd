package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trustmecro/trust-service/internal/analysis"
	"github.com/trustmecro/trust-service/internal/domain"
	"github.com/trustmecro/trust-service/internal/repository"
	apperrors "github.com/trustmecro/trust-service/pkg/errors"
	"github.com/trustmecro/trust-service/pkg/logger"
)

// CreateReviewInput holds the fields a buyer supplies for a review.
type CreateReviewInput struct {
	Rating  int
	Comment string
}

// ReviewService implements review submission and reads.
type ReviewService struct {
	repos    repository.Repositories
	tx       repository.TxRunner
	analyzer ReviewAnalyzer
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(repos repository.Repositories, tx repository.TxRunner, analyzer ReviewAnalyzer, events EventPublisher, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		repos:    repos,
		tx:       tx,
		analyzer: analyzer,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// Create analyzes and stores a review by reviewerID and folds its rating
// into the product aggregate. A reviewer name may review a product once;
// duplicates are rejected before any analysis runs.
func (s *ReviewService) Create(ctx context.Context, productID, reviewerID string, in CreateReviewInput) (*domain.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperrors.InvalidInput("rating must be between 1 and 5")
	}
	if strings.TrimSpace(in.Comment) == "" {
		return nil, apperrors.InvalidInput("comment is required")
	}

	reviewer, err := s.repos.Users.GetByID(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("load reviewer: %w", err)
	}
	product, err := s.repos.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	exists, err := s.repos.Reviews.ExistsByReviewer(ctx, product.ID, reviewer.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("check duplicate review: %w", err)
	}
	if exists {
		return nil, apperrors.AlreadyExists("review", "reviewer_name", reviewer.DisplayName)
	}

	review := &domain.Review{
		ID:           uuid.New().String(),
		ProductID:    product.ID,
		ReviewerID:   reviewer.ID,
		ReviewerName: reviewer.DisplayName,
		Rating:       in.Rating,
		Comment:      in.Comment,
		CreatedAt:    s.now().UTC(),
	}
	review.ApplyVerdict(s.analyzer.Analyze(ctx, analysis.ReviewInput{
		Comment:         in.Comment,
		Rating:          in.Rating,
		ProductCategory: product.Category,
	}))

	err = s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		locked, err := repos.Products.GetForUpdate(ctx, product.ID)
		if err != nil {
			return err
		}
		if err := repos.Reviews.Create(ctx, review); err != nil {
			return err
		}
		return repos.Products.UpdateRatings(ctx, locked.ID, locked.Ratings.Add(review.Rating))
	})
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	log := logger.WithContext(ctx, s.logger)
	log.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
		slog.Int("trust_score", review.TrustScore),
		slog.Bool("is_flagged", review.IsFlagged),
	)

	if err := s.events.PublishReviewAnalyzed(ctx, review); err != nil {
		log.ErrorContext(ctx, "failed to publish review analyzed event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	return review, nil
}

// ListByProduct returns the reviews of an existing product.
func (s *ReviewService) ListByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	if _, err := s.repos.Products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.repos.Reviews.ListByProduct(ctx, productID)
}
