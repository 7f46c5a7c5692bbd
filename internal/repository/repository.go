package repository

import (
	"context"

	"github.com/trustmecro/trust-service/internal/domain"
)

// ProductFilter narrows product listings.
type ProductFilter struct {
	Category string
	OwnerID  string
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a new product including its analysis.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetForUpdate retrieves a product and locks its row until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Product, error)

	// List returns a page of products, newest first, with the total count.
	List(ctx context.Context, filter ProductFilter, page, perPage int) ([]domain.Product, int, error)

	// ListFlagged returns every flagged product, newest first.
	ListFlagged(ctx context.Context) ([]domain.Product, error)

	// UpdateRatings stores a new rating aggregate.
	UpdateRatings(ctx context.Context, id string, ratings domain.Ratings) error

	// Approve marks the product approved and clears its flag.
	Approve(ctx context.Context, id string) error

	// Delete removes a product.
	Delete(ctx context.Context, id string) error
}

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	// Create inserts a review. A second review by the same reviewer name on
	// the same product fails with apperrors.ErrAlreadyExists.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// ExistsByReviewer reports whether reviewerName already reviewed productID.
	ExistsByReviewer(ctx context.Context, productID, reviewerName string) (bool, error)

	// ListByProduct returns the reviews of a product, newest first.
	ListByProduct(ctx context.Context, productID string) ([]domain.Review, error)

	// ListFlagged returns every flagged review, newest first.
	ListFlagged(ctx context.Context) ([]domain.Review, error)

	// Approve marks the review approved and clears its flag.
	Approve(ctx context.Context, id string) error

	// Delete removes a review.
	Delete(ctx context.Context, id string) error

	// DeleteByProduct removes all reviews of a product and returns how many
	// were deleted.
	DeleteByProduct(ctx context.Context, productID string) (int64, error)
}

// UserRepository defines the interface for the trust fields of user accounts.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user with the IDs of their listed products.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// DecreaseTrust atomically lowers the user's trust score by penalty,
	// never below zero, adds flaggedDelta to the flagged-products counter and
	// recomputes the badge. It returns the updated user.
	DecreaseTrust(ctx context.Context, id string, penalty, flaggedDelta int) (*domain.User, error)
}

// OperationRepository records applied ledger operations by idempotency key.
type OperationRepository interface {
	// Record stores key and reports whether it was new. A false result means
	// the operation was already applied. Reusing a key for a different
	// operation or subject fails with apperrors.ErrConflict.
	Record(ctx context.Context, key, operation, subjectID string) (bool, error)
}

// Repositories groups repositories that share one connection or transaction.
type Repositories struct {
	Products   ProductRepository
	Reviews    ReviewRepository
	Users      UserRepository
	Operations OperationRepository
}

// TxRunner runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}
