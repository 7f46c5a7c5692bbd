// Package service implements the trust ledger: it runs analysis for new
// listings and reviews and applies moderator decisions to products, reviews
// and seller trust.
package service

import (
	"context"

	"github.com/trustmecro/trust-service/internal/analysis"
	"github.com/trustmecro/trust-service/internal/domain"
)

// ProductAnalyzer produces a trust analysis for a listing.
type ProductAnalyzer interface {
	Analyze(ctx context.Context, product *domain.Product, seller *domain.User) domain.Analysis
}

// ReviewAnalyzer produces an authenticity verdict for a review.
type ReviewAnalyzer interface {
	Analyze(ctx context.Context, in analysis.ReviewInput) domain.ReviewVerdict
}

// EventPublisher publishes trust events. Failures are logged, never returned
// to callers, because events are sent after the ledger has committed.
type EventPublisher interface {
	PublishProductAnalyzed(ctx context.Context, product *domain.Product) error
	PublishProductDismissed(ctx context.Context, product *domain.Product, reviewsRemoved int64) error
	PublishProductApproved(ctx context.Context, product *domain.Product) error
	PublishReviewAnalyzed(ctx context.Context, review *domain.Review) error
	PublishReviewDismissed(ctx context.Context, review *domain.Review) error
	PublishReviewApproved(ctx context.Context, review *domain.Review) error
	PublishSellerTrustAdjusted(ctx context.Context, user *domain.User, penalty int, reason string) error
}
