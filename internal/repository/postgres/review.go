package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/trustmecro/trust-service/internal/domain"
	"github.com/trustmecro/trust-service/pkg/database"
	apperrors "github.com/trustmecro/trust-service/pkg/errors"
)

// reviewerConstraint enforces one review per reviewer name per product.
const reviewerConstraint = "reviews_product_reviewer_key"

const reviewColumns = `id, product_id, COALESCE(reviewer_id::text, ''), reviewer_name, rating, comment,
		trust_score, is_flagged, approved_by_moderator, reasons, analysis_error, created_at`

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a review.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	query := `
		INSERT INTO reviews (id, product_id, reviewer_id, reviewer_name, rating, comment,
			trust_score, is_flagged, approved_by_moderator, reasons, analysis_error, created_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		rv.ID,
		rv.ProductID,
		rv.ReviewerID,
		rv.ReviewerName,
		rv.Rating,
		rv.Comment,
		rv.TrustScore,
		rv.IsFlagged,
		rv.ApprovedByModerator,
		rv.Reasons,
		rv.AnalysisError,
		rv.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, reviewerConstraint) {
			return apperrors.AlreadyExists("review", "reviewer_name", rv.ReviewerName)
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID retrieves a review by its unique identifier.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	rv, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

// ExistsByReviewer reports whether reviewerName already reviewed productID.
func (r *ReviewRepository) ExistsByReviewer(ctx context.Context, productID, reviewerName string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM reviews WHERE product_id = $1 AND reviewer_name = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, productID, reviewerName).Scan(&exists); err != nil {
		return false, fmt.Errorf("check existing review: %w", err)
	}
	return exists, nil
}

// ListByProduct returns the reviews of a product, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE product_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, "list reviews", query, productID)
}

// ListFlagged returns every flagged review, newest first.
func (r *ReviewRepository) ListFlagged(ctx context.Context) ([]domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE is_flagged ORDER BY created_at DESC`
	return r.list(ctx, "list flagged reviews", query)
}

func (r *ReviewRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.Review, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reviews, nil
}

// Approve marks the review approved and clears its flag.
func (r *ReviewRepository) Approve(ctx context.Context, id string) error {
	query := `UPDATE reviews SET approved_by_moderator = TRUE, is_flagged = FALSE WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("approve review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// DeleteByProduct removes all reviews of a product.
func (r *ReviewRepository) DeleteByProduct(ctx context.Context, productID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE product_id = $1`, productID)
	if err != nil {
		return 0, fmt.Errorf("delete product reviews: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var rv domain.Review
	err := row.Scan(
		&rv.ID,
		&rv.ProductID,
		&rv.ReviewerID,
		&rv.ReviewerName,
		&rv.Rating,
		&rv.Comment,
		&rv.TrustScore,
		&rv.IsFlagged,
		&rv.ApprovedByModerator,
		&rv.Reasons,
		&rv.AnalysisError,
		&rv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rv.Reasons == nil {
		rv.Reasons = []string{}
	}
	return &rv, nil
}
