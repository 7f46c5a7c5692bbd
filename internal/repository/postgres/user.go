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

const emailConstraint = "users_email_key"

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	pool database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(pool database.DBTX) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, display_name, password_hash, trust_score, trust_badge, flagged_products, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Email,
		u.DisplayName,
		u.PasswordHash,
		u.TrustScore,
		u.TrustBadge,
		u.FlaggedProducts,
		u.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, emailConstraint) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user with the IDs of their listed products.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT u.id, u.email, u.display_name, u.password_hash, u.trust_score, u.trust_badge,
			u.flagged_products, u.created_at,
			ARRAY(SELECT p.id::text FROM products p WHERE p.owner_id = u.id ORDER BY p.created_at)
		FROM users u
		WHERE u.id = $1`

	var u domain.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&u.TrustScore,
		&u.TrustBadge,
		&u.FlaggedProducts,
		&u.CreatedAt,
		&u.ListedProducts,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u.ListedProducts == nil {
		u.ListedProducts = []string{}
	}
	return &u, nil
}

// DecreaseTrust atomically lowers the trust score, floored at zero, bumps
// the flagged counter and stores the recomputed badge.
func (r *UserRepository) DecreaseTrust(ctx context.Context, id string, penalty, flaggedDelta int) (*domain.User, error) {
	query := `
		UPDATE users
		SET trust_score = GREATEST(trust_score - $2, 0),
			flagged_products = flagged_products + $3
		WHERE id = $1
		RETURNING trust_score, flagged_products`

	var score, flagged int
	err := r.pool.QueryRow(ctx, query, id, penalty, flaggedDelta).Scan(&score, &flagged)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("decrease trust: %w", err)
	}

	badge := domain.TrustBadge(score)
	if _, err := r.pool.Exec(ctx, `UPDATE users SET trust_badge = $2 WHERE id = $1`, id, badge); err != nil {
		return nil, fmt.Errorf("update trust badge: %w", err)
	}

	return r.GetByID(ctx, id)
}
