package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/pkg/util"
)

// ResolutionAttemptRepository stores processed requester feedback. The exact
// feedback text doubles as the replay key for idempotent re-submissions.
type ResolutionAttemptRepository interface {
	Create(ctx context.Context, attempt *domain.ResolutionAttempt) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ResolutionAttempt, error)
	FindByFeedback(ctx context.Context, ticketID, feedback string) (*domain.ResolutionAttempt, error)
}

type resolutionAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewResolutionAttemptRepository builds repository.
func NewResolutionAttemptRepository(pool *pgxpool.Pool) ResolutionAttemptRepository {
	return &resolutionAttemptRepository{pool: pool}
}

func (r *resolutionAttemptRepository) Create(ctx context.Context, attempt *domain.ResolutionAttempt) error {
	const query = `
        INSERT INTO resolution_attempts (ticket_id, attempt_number, feedback, decision)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		attempt.TicketID,
		attempt.AttemptNumber,
		attempt.Feedback,
		attempt.Decision,
	).Scan(&attempt.ID, &attempt.CreatedAt)
	if err != nil {
		return util.NewPersistenceError("create resolution attempt", err)
	}
	return nil
}

func (r *resolutionAttemptRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ResolutionAttempt, error) {
	const query = `
        SELECT id, ticket_id, attempt_number, feedback, decision, created_at
        FROM resolution_attempts WHERE ticket_id=$1 ORDER BY attempt_number ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, util.NewPersistenceError("list resolution attempts", err)
	}
	defer rows.Close()

	var result []domain.ResolutionAttempt
	for rows.Next() {
		var attempt domain.ResolutionAttempt
		if err := rows.Scan(
			&attempt.ID,
			&attempt.TicketID,
			&attempt.AttemptNumber,
			&attempt.Feedback,
			&attempt.Decision,
			&attempt.CreatedAt,
		); err != nil {
			return nil, util.NewPersistenceError("scan resolution attempt", err)
		}
		result = append(result, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, util.NewPersistenceError("scan resolution attempts", err)
	}
	return result, nil
}

func (r *resolutionAttemptRepository) FindByFeedback(ctx context.Context, ticketID, feedback string) (*domain.ResolutionAttempt, error) {
	const query = `
        SELECT id, ticket_id, attempt_number, feedback, decision, created_at
        FROM resolution_attempts WHERE ticket_id=$1 AND feedback=$2
        ORDER BY attempt_number DESC LIMIT 1`
	var attempt domain.ResolutionAttempt
	err := r.pool.QueryRow(ctx, query, ticketID, feedback).Scan(
		&attempt.ID,
		&attempt.TicketID,
		&attempt.AttemptNumber,
		&attempt.Feedback,
		&attempt.Decision,
		&attempt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("resolution attempt", map[string]any{"ticket_id": ticketID})
		}
		return nil, util.NewPersistenceError("find resolution attempt", err)
	}
	return &attempt, nil
}
