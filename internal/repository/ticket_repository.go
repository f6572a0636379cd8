package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsline/helpdesk-core/internal/clock"
	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/pkg/util"
)

// TicketFilter captures search parameters.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Categories []domain.TicketCategory
	Team       *domain.TeamID
	Requester  *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence. Every mutation is atomic
// with its audit records, and guarded by the ticket's version counter.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error)
	UpdateFields(ctx context.Context, id string, changes map[domain.Field]any, actor domain.Actor, expectedVersion int64) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListMonitored(ctx context.Context, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool, clk clock.Clock) TicketRepository {
	return &ticketRepository{pool: pool, clock: clk}
}

const ticketColumns = `id, external_key, subject, description, status, priority, category,
               assigned_team, requester, sla_target_seconds, created_at, updated_at, resolved_at, version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, subject, description, status, priority, category, assigned_team, requester, sla_target_seconds)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at, version`
	err := r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.AssignedTeam,
		ticket.Requester,
		int64(ticket.SLATarget/time.Second),
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt, &ticket.Version)
	if err != nil {
		return util.NewPersistenceError("create ticket", err)
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE external_key=$1`
	return r.fetchSingle(ctx, query, key)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicketRow(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"id": fmt.Sprintf("%v", arg)})
		}
		return nil, util.NewPersistenceError("load ticket", err)
	}
	return ticket, nil
}

// UpdateFields applies the change set and its audit records in one
// transaction. An empty change set still refreshes updated_at and bumps the
// version. The write is CAS-guarded on expectedVersion; losers get a
// conflict and are expected to re-read before retrying.
func (r *ticketRepository) UpdateFields(ctx context.Context, id string, changes map[domain.Field]any, actor domain.Actor, expectedVersion int64) (*domain.Ticket, error) {
	normalized, err := normalizeChanges(changes)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, util.NewPersistenceError("begin ticket update", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicketRow(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, util.NewPersistenceError("load ticket", err)
	}
	if ticket.Version != expectedVersion {
		return nil, staleVersion(id, expectedVersion, ticket.Version)
	}

	applied := applyChanges(ticket, normalized)
	reconcileResolvedAt(ticket, r.clock.Now())

	const update = `
        UPDATE tickets SET subject=$1, description=$2, status=$3, priority=$4, category=$5,
            assigned_team=$6, sla_target_seconds=$7, resolved_at=$8, updated_at=NOW(), version=version+1
        WHERE id=$9 AND version=$10
        RETURNING updated_at, version`
	err = tx.QueryRow(ctx, update,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.AssignedTeam,
		int64(ticket.SLATarget/time.Second),
		ticket.ResolvedAt,
		ticket.ID,
		expectedVersion,
	).Scan(&ticket.UpdatedAt, &ticket.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, staleVersion(id, expectedVersion, -1)
		}
		return nil, util.NewPersistenceError("update ticket", err)
	}

	const insertChange = `
        INSERT INTO ticket_changes (ticket_id, field, old_value, new_value, actor)
        VALUES ($1,$2,$3,$4,$5)`
	for _, change := range applied {
		if _, err := tx.Exec(ctx, insertChange, ticket.ID, change.field, change.oldValue, change.newValue, actor); err != nil {
			return nil, util.NewPersistenceError("record ticket change", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, util.NewPersistenceError("commit ticket update", err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Team != nil {
		args = append(args, *filter.Team)
		clauses = append(clauses, fmt.Sprintf("assigned_team=$%d", len(args)))
	}
	if filter.Requester != nil {
		args = append(args, *filter.Requester)
		clauses = append(clauses, fmt.Sprintf("requester=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, util.NewPersistenceError("search tickets", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ListMonitored returns tickets still counting toward SLA targets, oldest
// first so the longest-waiting tickets are evaluated before any batch cap.
func (r *ticketRepository) ListMonitored(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE status IN ($1,$2) ORDER BY created_at ASC LIMIT %d`, ticketColumns, limit)
	rows, err := r.pool.Query(ctx, query, domain.TicketStatusOpen, domain.TicketStatusInProgress)
	if err != nil {
		return nil, util.NewPersistenceError("list monitored tickets", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicketRow(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket  domain.Ticket
		seconds int64
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.AssignedTeam,
		&ticket.Requester,
		&seconds,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	ticket.SLATarget = time.Duration(seconds) * time.Second
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, util.NewPersistenceError("scan ticket", err)
		}
		result = append(result, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, util.NewPersistenceError("scan tickets", err)
	}
	return result, nil
}

func staleVersion(id string, expected, actual int64) error {
	details := map[string]any{"id": id, "expected_version": expected}
	if actual >= 0 {
		details["actual_version"] = actual
	}
	return util.NewConflict("ticket was modified concurrently", details)
}
