package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trustmecro/trust-service/internal/domain"
	"github.com/trustmecro/trust-service/internal/repository"
	"github.com/trustmecro/trust-service/internal/service"
	"github.com/trustmecro/trust-service/pkg/health"
	"github.com/trustmecro/trust-service/pkg/middleware"
	"github.com/trustmecro/trust-service/pkg/pagination"
)

const serviceName = "trust-service"

// ProductService is the product surface of the trust ledger.
type ProductService interface {
	Create(ctx context.Context, ownerID string, in service.CreateProductInput) (*domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter repository.ProductFilter, p pagination.Params) (pagination.Result[domain.Product], error)
	Seller(ctx context.Context, productID string) (*domain.Seller, error)
}

// ReviewService is the review surface of the trust ledger.
type ReviewService interface {
	Create(ctx context.Context, productID, reviewerID string, in service.CreateReviewInput) (*domain.Review, error)
	ListByProduct(ctx context.Context, productID string) ([]domain.Review, error)
}

// ModerationService applies moderator decisions.
type ModerationService interface {
	Flagged(ctx context.Context) (*service.FlaggedQueue, error)
	ApproveReview(ctx context.Context, key, reviewID string) (*service.Outcome, error)
	DismissReview(ctx context.Context, key, reviewID string) (*service.Outcome, error)
	ApproveProduct(ctx context.Context, key, productID string) (*service.Outcome, error)
	DismissProduct(ctx context.Context, key, productID string) (*service.Outcome, error)
}

// RouterDeps groups everything NewRouter mounts.
type RouterDeps struct {
	Products   ProductService
	Reviews    ReviewService
	Moderation ModerationService
	Health     *health.Handler
	Validate   middleware.TokenValidator
	CORS       middleware.CORSConfig
	Logger     *slog.Logger
}

// NewRouter creates a chi router with all trust service routes registered.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.CORS(deps.CORS))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogging(deps.Logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health and metrics
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	auth := middleware.Auth(deps.Validate)
	productHandler := NewProductHandler(deps.Products, deps.Logger)
	reviewHandler := NewReviewHandler(deps.Reviews, deps.Logger)
	moderationHandler := NewModerationHandler(deps.Moderation, deps.Logger)

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", productHandler.ListProducts)
		r.Get("/category/{category}", productHandler.ListByCategory)
		r.Get("/{id}", productHandler.GetProduct)
		r.Get("/{id}/seller", productHandler.GetSeller)
		r.Get("/{id}/reviews", reviewHandler.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/", productHandler.CreateProduct)
			r.Post("/{id}/reviews", reviewHandler.CreateReview)
		})
	})

	r.Route("/api/v1/moderation", func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.RequireRole(middleware.RoleModerator))

		r.Get("/flagged", moderationHandler.Flagged)
		r.Post("/reviews/{id}/approve", moderationHandler.ApproveReview)
		r.Post("/reviews/{id}/dismiss", moderationHandler.DismissReview)
		r.Post("/products/{id}/approve", moderationHandler.ApproveProduct)
		r.Post("/products/{id}/dismiss", moderationHandler.DismissProduct)
	})

	return r
}
