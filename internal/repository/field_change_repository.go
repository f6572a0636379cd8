package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/pkg/util"
)

// FieldChangeRepository reads the ticket audit trail. Writes happen inside
// TicketRepository.UpdateFields so a change set and its records share one
// transaction.
type FieldChangeRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.FieldChangeRecord, error)
}

type fieldChangeRepository struct {
	pool *pgxpool.Pool
}

// NewFieldChangeRepository builds repository.
func NewFieldChangeRepository(pool *pgxpool.Pool) FieldChangeRepository {
	return &fieldChangeRepository{pool: pool}
}

func (r *fieldChangeRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.FieldChangeRecord, error) {
	const query = `
        SELECT id, ticket_id, field, old_value, new_value, actor, created_at
        FROM ticket_changes WHERE ticket_id=$1 ORDER BY created_at ASC, field ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, util.NewPersistenceError("list ticket changes", err)
	}
	defer rows.Close()

	var result []domain.FieldChangeRecord
	for rows.Next() {
		var record domain.FieldChangeRecord
		if err := rows.Scan(
			&record.ID,
			&record.TicketID,
			&record.Field,
			&record.OldValue,
			&record.NewValue,
			&record.Actor,
			&record.CreatedAt,
		); err != nil {
			return nil, util.NewPersistenceError("scan ticket change", err)
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, util.NewPersistenceError("scan ticket changes", err)
	}
	return result, nil
}
