package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/trustmecro/trust-service/internal/domain"
	"github.com/trustmecro/trust-service/internal/repository"
	"github.com/trustmecro/trust-service/pkg/database"
	apperrors "github.com/trustmecro/trust-service/pkg/errors"
)

const productColumns = `id, owner_id, name, description, brand, price, category, images,
		rating_average, rating_count, analysis, is_flagged, approved_by_moderator, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a new product including its analysis.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	analysis, err := marshalAnalysis(p.Analysis)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (id, owner_id, name, description, brand, price, category, images,
			rating_average, rating_count, analysis, is_flagged, approved_by_moderator, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.pool.Exec(ctx, query,
		p.ID,
		p.OwnerID,
		p.Name,
		p.Description,
		p.Brand,
		p.Price,
		p.Category,
		p.Images,
		p.Ratings.Average,
		p.Ratings.Count,
		analysis,
		p.IsFlagged,
		p.ApprovedByModerator,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by its unique identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetForUpdate retrieves a product and locks its row.
func (r *ProductRepository) GetForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	ctx, end := database.TraceQuery(ctx, "LockProduct", query)
	p, err := r.getOne(ctx, query, id)
	end(err)
	return p, err
}

func (r *ProductRepository) getOne(ctx context.Context, query, id string) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List returns a page of products, newest first, with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter, page, perPage int) ([]domain.Product, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}

	var (
		conditions []string
		args       []any
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, "category = $"+strconv.Itoa(len(args)))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, "owner_id = $"+strconv.Itoa(len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, productColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products []domain.Product
		total    int
	)
	for rows.Next() {
		p, err := scanProductRow(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}
	return products, total, nil
}

// ListFlagged returns every flagged product, newest first.
func (r *ProductRepository) ListFlagged(ctx context.Context) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_flagged ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list flagged products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProductRow(rows, nil)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flagged products: %w", err)
	}
	return products, nil
}

// UpdateRatings stores a new rating aggregate.
func (r *ProductRepository) UpdateRatings(ctx context.Context, id string, ratings domain.Ratings) error {
	query := `
		UPDATE products
		SET rating_average = $2, rating_count = $3, updated_at = NOW()
		WHERE id = $1`
	return r.execOne(ctx, "update product ratings", query, id, ratings.Average, ratings.Count)
}

// Approve marks the product approved and clears its flag.
func (r *ProductRepository) Approve(ctx context.Context, id string) error {
	query := `
		UPDATE products
		SET approved_by_moderator = TRUE, is_flagged = FALSE, updated_at = NOW()
		WHERE id = $1`
	return r.execOne(ctx, "approve product", query, id)
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete product", `DELETE FROM products WHERE id = $1`, id)
}

func (r *ProductRepository) execOne(ctx context.Context, op, query string, id string, args ...any) (err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	return scanProductRow(row, nil)
}

// scanProductRow scans productColumns, plus a trailing total count when
// total is non-nil.
func scanProductRow(row pgx.Row, total *int) (*domain.Product, error) {
	var (
		p        domain.Product
		analysis []byte
	)
	dest := []any{
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Description,
		&p.Brand,
		&p.Price,
		&p.Category,
		&p.Images,
		&p.Ratings.Average,
		&p.Ratings.Count,
		&analysis,
		&p.IsFlagged,
		&p.ApprovedByModerator,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if total != nil {
		dest = append(dest, total)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if len(analysis) > 0 {
		var a domain.Analysis
		if err := json.Unmarshal(analysis, &a); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
		p.Analysis = &a
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

func marshalAnalysis(a *domain.Analysis) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return data, nil
}
