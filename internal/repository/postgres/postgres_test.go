package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustmecro/trust-service/internal/domain"
	"github.com/trustmecro/trust-service/internal/repository"
	"github.com/trustmecro/trust-service/pkg/database"
	apperrors "github.com/trustmecro/trust-service/pkg/errors"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var productCols = []string{
	"id", "owner_id", "name", "description", "brand", "price", "category", "images",
	"rating_average", "rating_count", "analysis", "is_flagged", "approved_by_moderator", "created_at", "updated_at",
}

var reviewCols = []string{
	"id", "product_id", "reviewer_id", "reviewer_name", "rating", "comment",
	"trust_score", "is_flagged", "approved_by_moderator", "reasons", "analysis_error", "created_at",
}

var ts = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleProduct() domain.Product {
	return domain.Product{
		ID:          "prod-1",
		OwnerID:     "user-1",
		Name:        "Phone X",
		Description: "6.5 inch",
		Brand:       "Acme",
		Price:       14999,
		Category:    "Smartphone",
		Images:      []string{"https://img/1"},
		Ratings:     domain.Ratings{Average: 4, Count: 5},
		Analysis:    &domain.Analysis{ProductID: "prod-1", TrustScore: 35, RedFlags: []string{"x"}},
		IsFlagged:   true,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func productRow(p domain.Product) []any {
	var analysis []byte
	if p.Analysis != nil {
		analysis, _ = json.Marshal(p.Analysis)
	}
	return []any{p.ID, p.OwnerID, p.Name, p.Description, p.Brand, p.Price, p.Category, p.Images,
		p.Ratings.Average, p.Ratings.Count, analysis, p.IsFlagged, p.ApprovedByModerator, p.CreatedAt, p.UpdatedAt}
}

// ---------------------------------------------------------------------------
// ProductRepository
// ---------------------------------------------------------------------------

func TestProductRepository_Create(t *testing.T) {
	mock := setupMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectExec("INSERT INTO products").
		WithArgs(p.ID, p.OwnerID, p.Name, p.Description, p.Brand, p.Price, p.Category, p.Images,
			p.Ratings.Average, p.Ratings.Count, pgxmock.AnyArg(), p.IsFlagged, p.ApprovedByModerator, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID(t *testing.T) {
	mock := setupMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectQuery("SELECT .+ FROM products WHERE id = \\$1$").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(productCols).AddRow(productRow(p)...))

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Ratings, got.Ratings)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, 35, got.Analysis.TrustScore)
	assert.True(t, got.IsFlagged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_NoAnalysis(t *testing.T) {
	mock := setupMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()
	p.Analysis = nil
	p.Images = nil

	mock.ExpectQuery("SELECT .+ FROM products").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(productCols).AddRow(productRow(p)...))

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Analysis)
	assert.Equal(t, []string{}, got.Images)
}

func TestProductRepository_GetForUpdate_NotFound(t *testing.T) {
	mock := setupMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products WHERE id = \\$1 FOR UPDATE").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetForUpdate(context.Background(), "missing")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_List_WithCategory(t *testing.T) {
	mock := setupMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectQuery("SELECT .+ FROM products WHERE category = \\$1\\s+ORDER BY created_at DESC\\s+LIMIT \\$2 OFFSET \\$3").
		WithArgs("Smartphone", 10, 10).
		WillReturnRows(pgxmock.NewRows(append(productCols, "total_count")).AddRow(append(productRow(p), 11)...))

	got, total, err := repo.List(context.Background(), repository.ProductFilter{Category: "Smartphone"}, 2, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_List_Unfiltered(t *testing.T) {
	mock := setupMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products\\s+ORDER BY created_at DESC\\s+LIMIT \\$1 OFFSET \\$2").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(append(productCols, "total_count")))

	got, total, err := repo.List(context.Background(), repository.ProductFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_UpdateRatings(t *testing.T) {
	mock := setupMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectExec("UPDATE products\\s+SET rating_average").
		WithArgs("prod-1", 4.5, 4).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE products\\s+SET rating_average").
		WithArgs("gone", 5.0, 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.UpdateRatings(context.Background(), "prod-1", domain.Ratings{Average: 4.5, Count: 4}))
	err := repo.UpdateRatings(context.Background(), "gone", domain.NewRatings())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_ApproveAndDelete(t *testing.T) {
	mock := setupMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectExec("SET approved_by_moderator = TRUE, is_flagged = FALSE").
		WithArgs("prod-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM products").
		WithArgs("prod-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Approve(context.Background(), "prod-1"))
	require.NoError(t, repo.Delete(context.Background(), "prod-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// ReviewRepository
// ---------------------------------------------------------------------------

func sampleReview() domain.Review {
	return domain.Review{
		ID:           "rev-1",
		ProductID:    "prod-1",
		ReviewerID:   "user-2",
		ReviewerName: "Asha",
		Rating:       2,
		Comment:      "Stopped charging",
		TrustScore:   30,
		IsFlagged:    true,
		Reasons:      []string{"Too generic"},
		CreatedAt:    ts,
	}
}

func TestReviewRepository_Create_Duplicate(t *testing.T) {
	mock := setupMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(rv.ID, rv.ProductID, rv.ReviewerID, rv.ReviewerName, rv.Rating, rv.Comment,
			rv.TrustScore, rv.IsFlagged, rv.ApprovedByModerator, rv.Reasons, rv.AnalysisError, rv.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: database.UniqueViolation, ConstraintName: reviewerConstraint})

	err := repo.Create(context.Background(), &rv)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID(t *testing.T) {
	mock := setupMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()

	mock.ExpectQuery("SELECT .+ FROM reviews WHERE id = \\$1").
		WithArgs(rv.ID).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(rv.ID, rv.ProductID, rv.ReviewerID, rv.ReviewerName,
			rv.Rating, rv.Comment, rv.TrustScore, rv.IsFlagged, rv.ApprovedByModerator, rv.Reasons, rv.AnalysisError, rv.CreatedAt))
	mock.ExpectQuery("SELECT .+ FROM reviews WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), rv.ID)
	require.NoError(t, err)
	assert.Equal(t, rv, *got)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ExistsByReviewer(t *testing.T) {
	mock := setupMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("prod-1", "Asha").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.ExistsByReviewer(context.Background(), "prod-1", "Asha")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByProduct_Empty(t *testing.T) {
	mock := setupMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM reviews WHERE product_id = \\$1").
		WithArgs("prod-1").
		WillReturnRows(pgxmock.NewRows(reviewCols))

	got, err := repo.ListByProduct(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReviewRepository_DeleteByProduct(t *testing.T) {
	mock := setupMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectExec("DELETE FROM reviews WHERE product_id").
		WithArgs("prod-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("DELETE FROM reviews WHERE id").
		WithArgs("rev-x").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	n, err := repo.DeleteByProduct(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	err = repo.Delete(context.Background(), "rev-x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// UserRepository
// ---------------------------------------------------------------------------

var userCols = []string{"id", "email", "display_name", "password_hash", "trust_score", "trust_badge",
	"flagged_products", "created_at", "listed"}

func TestUserRepository_DecreaseTrust(t *testing.T) {
	mock := setupMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery("UPDATE users\\s+SET trust_score = GREATEST\\(trust_score - \\$2, 0\\)").
		WithArgs("user-1", domain.ProductDismissPenalty, 1).
		WillReturnRows(pgxmock.NewRows([]string{"trust_score", "flagged_products"}).AddRow(30, 1))
	mock.ExpectExec("UPDATE users SET trust_badge").
		WithArgs("user-1", "D").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("SELECT .+ FROM users u").
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("user-1", "s@example.com", "Ravi", "", 30, "D", 1, ts, []string{"prod-2"}))

	u, err := repo.DecreaseTrust(context.Background(), "user-1", domain.ProductDismissPenalty, 1)
	require.NoError(t, err)
	assert.Equal(t, 30, u.TrustScore)
	assert.Equal(t, "D", u.TrustBadge)
	assert.Equal(t, 1, u.FlaggedProducts)
	assert.Equal(t, []string{"prod-2"}, u.ListedProducts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_DecreaseTrust_NotFound(t *testing.T) {
	mock := setupMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery("UPDATE users").
		WithArgs("ghost", 1, 0).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.DecreaseTrust(context.Background(), "ghost", 1, 0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	mock := setupMock(t)
	repo := NewUserRepository(mock)
	u := domain.User{ID: "user-1", Email: "s@example.com", DisplayName: "Ravi", TrustScore: 100, TrustBadge: "A", CreatedAt: ts}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(u.ID, u.Email, u.DisplayName, u.PasswordHash, u.TrustScore, u.TrustBadge, u.FlaggedProducts, u.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: database.UniqueViolation, ConstraintName: emailConstraint})

	assert.ErrorIs(t, repo.Create(context.Background(), &u), apperrors.ErrAlreadyExists)
}

// ---------------------------------------------------------------------------
// OperationRepository and Store
// ---------------------------------------------------------------------------

func TestOperationRepository_Record(t *testing.T) {
	mock := setupMock(t)
	repo := NewOperationRepository(mock)

	mock.ExpectExec("INSERT INTO ledger_operations").
		WithArgs("key-1", "product.dismiss", "prod-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO ledger_operations").
		WithArgs("key-1", "product.dismiss", "prod-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT operation, subject_id::text FROM ledger_operations").
		WithArgs("key-1").
		WillReturnRows(pgxmock.NewRows([]string{"operation", "subject_id"}).AddRow("product.dismiss", "prod-1"))

	fresh, err := repo.Record(context.Background(), "key-1", "product.dismiss", "prod-1")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = repo.Record(context.Background(), "key-1", "product.dismiss", "prod-1")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepository_Record_KeyReused(t *testing.T) {
	mock := setupMock(t)
	repo := NewOperationRepository(mock)

	mock.ExpectExec("INSERT INTO ledger_operations").
		WithArgs("key-1", "review.dismiss", "rev-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT operation, subject_id::text FROM ledger_operations").
		WithArgs("key-1").
		WillReturnRows(pgxmock.NewRows([]string{"operation", "subject_id"}).AddRow("product.dismiss", "prod-1"))

	fresh, err := repo.Record(context.Background(), "key-1", "review.dismiss", "rev-1")
	assert.False(t, fresh)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx(t *testing.T) {
	t.Run("commits", func(t *testing.T) {
		mock := setupMock(t)
		store := NewStore(mock)

		mock.ExpectBegin()
		mock.ExpectExec("SET approved_by_moderator").
			WithArgs("prod-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := store.WithinTx(context.Background(), func(repos repository.Repositories) error {
			return repos.Products.Approve(context.Background(), "prod-1")
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back", func(t *testing.T) {
		mock := setupMock(t)
		store := NewStore(mock)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := store.WithinTx(context.Background(), func(repository.Repositories) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
