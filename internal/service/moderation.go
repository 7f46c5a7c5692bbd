package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/trustmecro/trust-service/internal/domain"
	"github.com/trustmecro/trust-service/internal/repository"
	"github.com/trustmecro/trust-service/pkg/logger"
)

// Ledger operation names recorded with each idempotency key.
const (
	OpApproveReview  = "review.approve"
	OpDismissReview  = "review.dismiss"
	OpApproveProduct = "product.approve"
	OpDismissProduct = "product.dismiss"
)

// Seller trust adjustment reasons carried on events.
const (
	reasonReviewDismissed  = "review_dismissed"
	reasonProductDismissed = "product_dismissed"
)

// FlaggedQueue is the moderation backlog.
type FlaggedQueue struct {
	Products []domain.Product `json:"products"`
	Reviews  []domain.Review  `json:"reviews"`
}

// Outcome describes the result of a moderator transition.
type Outcome struct {
	Operation      string         `json:"operation"`
	SubjectID      string         `json:"subject_id"`
	IdempotencyKey string         `json:"idempotency_key"`
	Replayed       bool           `json:"replayed"`
	Seller         *domain.Seller `json:"seller,omitempty"`
}

// ModerationService applies moderator decisions. Each transition runs in one
// transaction together with its idempotency record.
type ModerationService struct {
	repos  repository.Repositories
	tx     repository.TxRunner
	events EventPublisher
	logger *slog.Logger
}

// NewModerationService creates a new moderation service.
func NewModerationService(repos repository.Repositories, tx repository.TxRunner, events EventPublisher, logger *slog.Logger) *ModerationService {
	return &ModerationService{
		repos:  repos,
		tx:     tx,
		events: events,
		logger: logger,
	}
}

// Flagged returns every flagged product and review.
func (s *ModerationService) Flagged(ctx context.Context) (*FlaggedQueue, error) {
	products, err := s.repos.Products.ListFlagged(ctx)
	if err != nil {
		return nil, fmt.Errorf("list flagged products: %w", err)
	}
	reviews, err := s.repos.Reviews.ListFlagged(ctx)
	if err != nil {
		return nil, fmt.Errorf("list flagged reviews: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return &FlaggedQueue{Products: products, Reviews: reviews}, nil
}

// ApproveReview clears the flag on a review.
func (s *ModerationService) ApproveReview(ctx context.Context, key, reviewID string) (*Outcome, error) {
	out := newOutcome(key, OpApproveReview, reviewID)
	var review *domain.Review

	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		fresh, err := repos.Operations.Record(ctx, out.IdempotencyKey, out.Operation, reviewID)
		if err != nil {
			return err
		}
		if !fresh {
			out.Replayed = true
			return nil
		}
		review, err = repos.Reviews.GetByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if err := repos.Reviews.Approve(ctx, reviewID); err != nil {
			return err
		}
		review.Approve()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("approve review: %w", err)
	}

	s.logOutcome(ctx, out)
	if review != nil {
		s.publish(ctx, "review approved", s.events.PublishReviewApproved(ctx, review))
	}
	return out, nil
}

// DismissReview deletes a review, removes its rating from the product
// aggregate and applies domain.ReviewDismissPenalty to the product owner.
func (s *ModerationService) DismissReview(ctx context.Context, key, reviewID string) (*Outcome, error) {
	out := newOutcome(key, OpDismissReview, reviewID)
	var (
		review *domain.Review
		seller *domain.User
	)

	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		fresh, err := repos.Operations.Record(ctx, out.IdempotencyKey, out.Operation, reviewID)
		if err != nil {
			return err
		}
		if !fresh {
			out.Replayed = true
			return nil
		}

		review, err = repos.Reviews.GetByID(ctx, reviewID)
		if err != nil {
			return err
		}
		product, err := repos.Products.GetForUpdate(ctx, review.ProductID)
		if err != nil {
			return err
		}
		if err := repos.Reviews.Delete(ctx, review.ID); err != nil {
			return err
		}
		if err := repos.Products.UpdateRatings(ctx, product.ID, product.Ratings.Remove(review.Rating)); err != nil {
			return err
		}
		seller, err = repos.Users.DecreaseTrust(ctx, product.OwnerID, domain.ReviewDismissPenalty, 0)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dismiss review: %w", err)
	}

	if seller != nil {
		pub := seller.Public()
		out.Seller = &pub
	}
	s.logOutcome(ctx, out)
	if review != nil {
		s.publish(ctx, "review dismissed", s.events.PublishReviewDismissed(ctx, review))
		s.publish(ctx, "seller trust adjusted",
			s.events.PublishSellerTrustAdjusted(ctx, seller, domain.ReviewDismissPenalty, reasonReviewDismissed))
	}
	return out, nil
}

// ApproveProduct clears the flag on a listing.
func (s *ModerationService) ApproveProduct(ctx context.Context, key, productID string) (*Outcome, error) {
	out := newOutcome(key, OpApproveProduct, productID)
	var product *domain.Product

	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		fresh, err := repos.Operations.Record(ctx, out.IdempotencyKey, out.Operation, productID)
		if err != nil {
			return err
		}
		if !fresh {
			out.Replayed = true
			return nil
		}
		product, err = repos.Products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := repos.Products.Approve(ctx, productID); err != nil {
			return err
		}
		product.Approve()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("approve product: %w", err)
	}

	s.logOutcome(ctx, out)
	if product != nil {
		s.publish(ctx, "product approved", s.events.PublishProductApproved(ctx, product))
	}
	return out, nil
}

// DismissProduct deletes a listing and all of its reviews, applies
// domain.ProductDismissPenalty to the owner and counts the dismissal
// against them.
func (s *ModerationService) DismissProduct(ctx context.Context, key, productID string) (*Outcome, error) {
	out := newOutcome(key, OpDismissProduct, productID)
	var (
		product *domain.Product
		seller  *domain.User
		removed int64
	)

	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		fresh, err := repos.Operations.Record(ctx, out.IdempotencyKey, out.Operation, productID)
		if err != nil {
			return err
		}
		if !fresh {
			out.Replayed = true
			return nil
		}

		product, err = repos.Products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		removed, err = repos.Reviews.DeleteByProduct(ctx, product.ID)
		if err != nil {
			return err
		}
		if err := repos.Products.Delete(ctx, product.ID); err != nil {
			return err
		}
		seller, err = repos.Users.DecreaseTrust(ctx, product.OwnerID, domain.ProductDismissPenalty, 1)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dismiss product: %w", err)
	}

	if seller != nil {
		pub := seller.Public()
		out.Seller = &pub
	}
	s.logOutcome(ctx, out, slog.Int64("reviews_removed", removed))
	if product != nil {
		s.publish(ctx, "product dismissed", s.events.PublishProductDismissed(ctx, product, removed))
		s.publish(ctx, "seller trust adjusted",
			s.events.PublishSellerTrustAdjusted(ctx, seller, domain.ProductDismissPenalty, reasonProductDismissed))
	}
	return out, nil
}

func newOutcome(key, operation, subjectID string) *Outcome {
	if key == "" {
		key = uuid.New().String()
	}
	return &Outcome{
		Operation:      operation,
		SubjectID:      subjectID,
		IdempotencyKey: key,
	}
}

func (s *ModerationService) logOutcome(ctx context.Context, out *Outcome, attrs ...any) {
	args := []any{
		slog.String("operation", out.Operation),
		slog.String("subject_id", out.SubjectID),
		slog.String("idempotency_key", out.IdempotencyKey),
		slog.Bool("replayed", out.Replayed),
	}
	if out.Seller != nil {
		args = append(args,
			slog.String("seller_id", out.Seller.ID),
			slog.Int("seller_trust_score", out.Seller.TrustScore),
		)
	}
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "moderation applied", append(args, attrs...)...)
}

func (s *ModerationService) publish(ctx context.Context, what string, err error) {
	if err == nil {
		return
	}
	logger.WithContext(ctx, s.logger).ErrorContext(ctx, "failed to publish "+what+" event",
		slog.String("error", err.Error()),
	)
}
