package postgres

import (
	"context"
	"fmt"

	"github.com/trustmecro/trust-service/pkg/database"
	apperrors "github.com/trustmecro/trust-service/pkg/errors"
)

// OperationRepository implements repository.OperationRepository using PostgreSQL.
type OperationRepository struct {
	pool database.DBTX
}

// NewOperationRepository creates a new PostgreSQL-backed operation log.
func NewOperationRepository(pool database.DBTX) *OperationRepository {
	return &OperationRepository{pool: pool}
}

// Record stores key and reports whether it was new.
func (r *OperationRepository) Record(ctx context.Context, key, operation, subjectID string) (bool, error) {
	query := `
		INSERT INTO ledger_operations (idempotency_key, operation, subject_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (idempotency_key) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, key, operation, subjectID)
	if err != nil {
		return false, fmt.Errorf("record ledger operation: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var prevOp, prevSubject string
	err = r.pool.QueryRow(ctx,
		`SELECT operation, subject_id::text FROM ledger_operations WHERE idempotency_key = $1`, key,
	).Scan(&prevOp, &prevSubject)
	if err != nil {
		return false, fmt.Errorf("load ledger operation: %w", err)
	}
	if prevOp != operation || prevSubject != subjectID {
		return false, apperrors.Conflict(fmt.Sprintf("idempotency key %q was used for %s on %s", key, prevOp, prevSubject))
	}
	return false, nil
}
