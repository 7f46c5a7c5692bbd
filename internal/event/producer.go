package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trustmecro/trust-service/internal/domain"
	pkgkafka "github.com/trustmecro/trust-service/pkg/kafka"
	"github.com/trustmecro/trust-service/pkg/logger"
)

// Kafka topic constants for trust events.
const (
	TopicProductAnalyzed     = "trust.product.analyzed"
	TopicProductFlagged      = "trust.product.flagged"
	TopicProductDismissed    = "trust.product.dismissed"
	TopicProductApproved     = "trust.product.approved"
	TopicReviewAnalyzed      = "trust.review.analyzed"
	TopicReviewDismissed     = "trust.review.dismissed"
	TopicReviewApproved      = "trust.review.approved"
	TopicSellerTrustAdjusted = "trust.seller.trust_adjusted"
)

// Aggregate type constants.
const (
	AggregateTypeProduct = "product"
	AggregateTypeReview  = "review"
	AggregateTypeSeller  = "seller"
)

// SourceTrustService identifies events originating from this service.
const SourceTrustService = "trust-service"

// MetadataActorID names the user whose request produced the event.
const MetadataActorID = "actor_id"

// ProductAnalyzedData is the payload for product.analyzed and product.flagged.
type ProductAnalyzedData struct {
	ProductID  string   `json:"product_id"`
	OwnerID    string   `json:"owner_id"`
	TrustScore int      `json:"trust_score"`
	IsFlagged  bool     `json:"is_flagged"`
	RedFlags   []string `json:"red_flags"`
	Fallback   bool     `json:"fallback"`
}

// ProductModeratedData is the payload for product.dismissed and product.approved.
type ProductModeratedData struct {
	ProductID      string `json:"product_id"`
	OwnerID        string `json:"owner_id"`
	ReviewsRemoved int64  `json:"reviews_removed,omitempty"`
}

// ReviewAnalyzedData is the payload for review.analyzed.
type ReviewAnalyzedData struct {
	ReviewID   string `json:"review_id"`
	ProductID  string `json:"product_id"`
	Rating     int    `json:"rating"`
	Confidence int    `json:"confidence"`
	IsFlagged  bool   `json:"is_flagged"`
	Fallback   bool   `json:"fallback"`
}

// ReviewModeratedData is the payload for review.dismissed and review.approved.
type ReviewModeratedData struct {
	ReviewID  string `json:"review_id"`
	ProductID string `json:"product_id"`
}

// SellerTrustAdjustedData is the payload for seller.trust_adjusted.
type SellerTrustAdjustedData struct {
	UserID          string `json:"user_id"`
	TrustScore      int    `json:"trust_score"`
	TrustBadge      string `json:"trust_badge"`
	FlaggedProducts int    `json:"flagged_products"`
	Penalty         int    `json:"penalty"`
	Reason          string `json:"reason"`
}

// Publisher is the subset of *pkgkafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes trust domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the trust service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishProductAnalyzed publishes product.analyzed, and product.flagged when
// the listing was flagged.
func (p *Producer) PublishProductAnalyzed(ctx context.Context, product *domain.Product) error {
	data := ProductAnalyzedData{
		ProductID: product.ID,
		OwnerID:   product.OwnerID,
		IsFlagged: product.IsFlagged,
	}
	if a := product.Analysis; a != nil {
		data.TrustScore = a.TrustScore
		data.RedFlags = a.RedFlags
		data.Fallback = a.Error != ""
	}

	if err := p.publish(ctx, TopicProductAnalyzed, product.ID, AggregateTypeProduct, data); err != nil {
		return err
	}
	if product.IsFlagged {
		return p.publish(ctx, TopicProductFlagged, product.ID, AggregateTypeProduct, data)
	}
	return nil
}

// PublishProductDismissed publishes product.dismissed.
func (p *Producer) PublishProductDismissed(ctx context.Context, product *domain.Product, reviewsRemoved int64) error {
	return p.publish(ctx, TopicProductDismissed, product.ID, AggregateTypeProduct, ProductModeratedData{
		ProductID:      product.ID,
		OwnerID:        product.OwnerID,
		ReviewsRemoved: reviewsRemoved,
	})
}

// PublishProductApproved publishes product.approved.
func (p *Producer) PublishProductApproved(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductApproved, product.ID, AggregateTypeProduct, ProductModeratedData{
		ProductID: product.ID,
		OwnerID:   product.OwnerID,
	})
}

// PublishReviewAnalyzed publishes review.analyzed.
func (p *Producer) PublishReviewAnalyzed(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewAnalyzed, review.ID, AggregateTypeReview, ReviewAnalyzedData{
		ReviewID:   review.ID,
		ProductID:  review.ProductID,
		Rating:     review.Rating,
		Confidence: review.TrustScore,
		IsFlagged:  review.IsFlagged,
		Fallback:   review.AnalysisError != "",
	})
}

// PublishReviewDismissed publishes review.dismissed.
func (p *Producer) PublishReviewDismissed(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewDismissed, review.ID, AggregateTypeReview, ReviewModeratedData{
		ReviewID:  review.ID,
		ProductID: review.ProductID,
	})
}

// PublishReviewApproved publishes review.approved.
func (p *Producer) PublishReviewApproved(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewApproved, review.ID, AggregateTypeReview, ReviewModeratedData{
		ReviewID:  review.ID,
		ProductID: review.ProductID,
	})
}

// PublishSellerTrustAdjusted publishes seller.trust_adjusted.
func (p *Producer) PublishSellerTrustAdjusted(ctx context.Context, user *domain.User, penalty int, reason string) error {
	return p.publish(ctx, TopicSellerTrustAdjusted, user.ID, AggregateTypeSeller, SellerTrustAdjustedData{
		UserID:          user.ID,
		TrustScore:      user.TrustScore,
		TrustBadge:      user.TrustBadge,
		FlaggedProducts: user.FlaggedProducts,
		Penalty:         penalty,
		Reason:          reason,
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceTrustService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	if actor := logger.UserIDFromContext(ctx); actor != "" {
		event.WithMetadata(MetadataActorID, actor)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "trust event published",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
