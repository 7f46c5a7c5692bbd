// Package analysis runs the trust pipeline for products and reviews: gather
// evidence, render a prompt, call the model and normalize its answer. The
// analyzers never return an error; every failure becomes a Policy result.
package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/trustmecro/trust-service/internal/domain"
	"github.com/trustmecro/trust-service/internal/evidence"
	"github.com/trustmecro/trust-service/internal/llm"
	"github.com/trustmecro/trust-service/internal/prompt"
	"github.com/trustmecro/trust-service/pkg/logger"
	"github.com/trustmecro/trust-service/pkg/tracing"
)

// Gatherer collects external evidence for a product.
type Gatherer interface {
	Gather(ctx context.Context, productName string, imageURLs []string) evidence.Evidence
}

// PromptBuilder renders analysis prompts.
type PromptBuilder interface {
	Product(in prompt.ProductInput) (string, error)
	Review(in prompt.ReviewInput) (string, error)
}

// Invoker submits a prompt to the model and returns its JSON answer.
type Invoker interface {
	Configured() bool
	Invoke(ctx context.Context, prompt string, images []llm.Image) (json.RawMessage, error)
}

const (
	outcomeSuccess      = "success"
	outcomeFallback     = "fallback"
	outcomeUnconfigured = "unconfigured"
)

// ProductAnalyzer produces the trust analysis for a new listing.
type ProductAnalyzer struct {
	gatherer Gatherer
	builder  PromptBuilder
	invoker  Invoker
	policy   Policy
	logger   *slog.Logger
	now      func() time.Time
}

// NewProductAnalyzer creates a ProductAnalyzer.
func NewProductAnalyzer(g Gatherer, b PromptBuilder, inv Invoker, policy Policy, logger *slog.Logger) *ProductAnalyzer {
	return &ProductAnalyzer{gatherer: g, builder: b, invoker: inv, policy: policy, logger: logger, now: time.Now}
}

// Analyze returns the analysis for product. seller may be nil.
func (a *ProductAnalyzer) Analyze(ctx context.Context, product *domain.Product, seller *domain.User) domain.Analysis {
	ctx = logger.WithSubject(ctx, "product", product.ID)
	ctx, span := tracing.StartSpan(ctx, "analysis", "analysis.Product", "product_id", product.ID)
	defer tracing.End(span, nil)
	log := logger.WithContext(ctx, a.logger)

	if !a.invoker.Configured() {
		analysisTotal.WithLabelValues("product", outcomeUnconfigured).Inc()
		log.WarnContext(ctx, "product analysis skipped, model not configured")
		res := a.policy.ProductUnconfigured(product, llm.ErrNotConfigured)
		res.AnalyzedAt = a.now().UTC()
		return res
	}

	res, err := a.run(ctx, product, seller)
	if err != nil {
		analysisTotal.WithLabelValues("product", outcomeFallback).Inc()
		log.ErrorContext(ctx, "product analysis failed, using fallback", slog.String("error", err.Error()))
		res = a.policy.ProductFallback(product, err)
		res.AnalyzedAt = a.now().UTC()
		return res
	}

	analysisTotal.WithLabelValues("product", outcomeSuccess).Inc()
	log.InfoContext(ctx, "product analyzed",
		slog.Int("trust_score", res.TrustScore),
		slog.Int("red_flags", len(res.RedFlags)),
	)
	return res
}

func (a *ProductAnalyzer) run(ctx context.Context, product *domain.Product, seller *domain.User) (domain.Analysis, error) {
	ev := a.gatherer.Gather(ctx, product.Name, product.Images)

	in := prompt.ProductInput{
		Name:         product.Name,
		Brand:        product.Brand,
		Description:  product.Description,
		Category:     product.Category,
		Price:        product.Price,
		ImageSummary: ev.ImageSummary,
		WebSummary:   ev.WebSummary,
	}
	if seller != nil {
		in.SellerName = seller.DisplayName
		score := seller.TrustScore
		in.SellerTrustScore = &score
	}
	text, err := a.builder.Product(in)
	if err != nil {
		return domain.Analysis{}, err
	}

	payloads := ev.Payloads()
	images := make([]llm.Image, 0, len(payloads))
	for _, p := range payloads {
		images = append(images, llm.Image{MIMEType: p.MIMEType, Data: p.Data})
	}

	raw, err := a.invoker.Invoke(ctx, text, images)
	if err != nil {
		return domain.Analysis{}, err
	}
	return NormalizeProduct(raw, product, a.now().UTC())
}

// ReviewInput is the review content submitted for analysis.
type ReviewInput struct {
	Comment         string
	Rating          int
	ProductCategory string
}

// ReviewAnalyzer judges whether a review is genuine.
type ReviewAnalyzer struct {
	builder PromptBuilder
	invoker Invoker
	policy  Policy
	logger  *slog.Logger
}

// NewReviewAnalyzer creates a ReviewAnalyzer.
func NewReviewAnalyzer(b PromptBuilder, inv Invoker, policy Policy, logger *slog.Logger) *ReviewAnalyzer {
	return &ReviewAnalyzer{builder: b, invoker: inv, policy: policy, logger: logger}
}

// Analyze returns the verdict for a review.
func (a *ReviewAnalyzer) Analyze(ctx context.Context, in ReviewInput) domain.ReviewVerdict {
	ctx, span := tracing.StartSpan(ctx, "analysis", "analysis.Review")
	defer tracing.End(span, nil)
	log := logger.WithContext(ctx, a.logger)

	if !a.invoker.Configured() {
		analysisTotal.WithLabelValues("review", outcomeUnconfigured).Inc()
		log.WarnContext(ctx, "review analysis skipped, model not configured")
		return a.policy.ReviewUnconfigured(llm.ErrNotConfigured)
	}

	verdict, err := a.run(ctx, in)
	if err != nil {
		analysisTotal.WithLabelValues("review", outcomeFallback).Inc()
		log.ErrorContext(ctx, "review analysis failed, using fallback", slog.String("error", err.Error()))
		return a.policy.ReviewFallback(err)
	}

	analysisTotal.WithLabelValues("review", outcomeSuccess).Inc()
	log.InfoContext(ctx, "review analyzed",
		slog.Int("confidence", verdict.Confidence),
		slog.Bool("is_fake", verdict.IsFake),
	)
	return verdict
}

func (a *ReviewAnalyzer) run(ctx context.Context, in ReviewInput) (domain.ReviewVerdict, error) {
	text, err := a.builder.Review(prompt.ReviewInput{
		Text:            in.Comment,
		ProductCategory: in.ProductCategory,
		Rating:          in.Rating,
	})
	if err != nil {
		return domain.ReviewVerdict{}, err
	}
	raw, err := a.invoker.Invoke(ctx, text, nil)
	if err != nil {
		return domain.ReviewVerdict{}, err
	}
	return NormalizeReview(raw)
}
