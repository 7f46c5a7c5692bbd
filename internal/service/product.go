package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trustmecro/trust-service/internal/domain"
	"github.com/trustmecro/trust-service/internal/repository"
	apperrors "github.com/trustmecro/trust-service/pkg/errors"
	"github.com/trustmecro/trust-service/pkg/logger"
	"github.com/trustmecro/trust-service/pkg/pagination"
)

// CreateProductInput holds the fields a seller supplies for a new listing.
type CreateProductInput struct {
	Name        string
	Description string
	Brand       string
	Category    string
	Price       float64
	Images      []string
}

// ProductService implements listing creation and product reads.
type ProductService struct {
	repos    repository.Repositories
	analyzer ProductAnalyzer
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewProductService creates a new product service.
func NewProductService(repos repository.Repositories, analyzer ProductAnalyzer, events EventPublisher, logger *slog.Logger) *ProductService {
	return &ProductService{
		repos:    repos,
		analyzer: analyzer,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// Create analyzes and stores a new listing owned by ownerID. A failed
// analysis never blocks creation.
func (s *ProductService) Create(ctx context.Context, ownerID string, in CreateProductInput) (*domain.Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if in.Price < 0 {
		return nil, apperrors.InvalidInput("price must be non-negative")
	}

	owner, err := s.repos.Users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load seller: %w", err)
	}

	now := s.now().UTC()
	images := in.Images
	if images == nil {
		images = []string{}
	}
	product := &domain.Product{
		ID:          uuid.New().String(),
		OwnerID:     owner.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Brand:       in.Brand,
		Price:       in.Price,
		Category:    in.Category,
		Images:      images,
		Ratings:     domain.NewRatings(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	product.ApplyAnalysis(s.analyzer.Analyze(ctx, product, owner))

	if err := s.repos.Products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	log := logger.WithContext(ctx, s.logger)
	log.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("owner_id", product.OwnerID),
		slog.Int("trust_score", product.Analysis.TrustScore),
		slog.Bool("is_flagged", product.IsFlagged),
	)

	if err := s.events.PublishProductAnalyzed(ctx, product); err != nil {
		log.ErrorContext(ctx, "failed to publish product analyzed event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}
	return product, nil
}

// Get returns a product with its analysis.
func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.repos.Products.GetByID(ctx, id)
}

// List returns a page of products, optionally filtered by category.
func (s *ProductService) List(ctx context.Context, filter repository.ProductFilter, p pagination.Params) (pagination.Result[domain.Product], error) {
	products, total, err := s.repos.Products.List(ctx, filter, p.Page, p.PerPage)
	if err != nil {
		return pagination.Result[domain.Product]{}, fmt.Errorf("list products: %w", err)
	}
	return pagination.NewResult(products, total, p), nil
}

// Seller returns the public profile of the product's owner.
func (s *ProductService) Seller(ctx context.Context, productID string) (*domain.Seller, error) {
	product, err := s.repos.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	owner, err := s.repos.Users.GetByID(ctx, product.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load seller: %w", err)
	}
	seller := owner.Public()
	return &seller, nil
}
