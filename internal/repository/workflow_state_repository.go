package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/pkg/util"
)

// WorkflowStateRepository persists per-ticket workflow progress.
type WorkflowStateRepository interface {
	Get(ctx context.Context, ticketID string) (*domain.WorkflowState, error)
	Save(ctx context.Context, state *domain.WorkflowState) error
}

type workflowStateRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowStateRepository builds repository.
func NewWorkflowStateRepository(pool *pgxpool.Pool) WorkflowStateRepository {
	return &workflowStateRepository{pool: pool}
}

func (r *workflowStateRepository) Get(ctx context.Context, ticketID string) (*domain.WorkflowState, error) {
	const query = `
        SELECT ticket_id, current_step, next_step, completed_steps, step_data, status, created_at, updated_at
        FROM workflow_states WHERE ticket_id=$1`

	var (
		state     domain.WorkflowState
		completed []string
		stepData  []byte
	)
	err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&state.TicketID,
		&state.CurrentStep,
		&state.NextStep,
		&completed,
		&stepData,
		&state.Status,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("workflow state", map[string]any{"ticket_id": ticketID})
		}
		return nil, util.NewPersistenceError("load workflow state", err)
	}

	state.CompletedSteps = make([]domain.WorkflowStep, len(completed))
	for i, s := range completed {
		state.CompletedSteps[i] = domain.WorkflowStep(s)
	}
	data, err := decodeStepData(stepData)
	if err != nil {
		return nil, util.NewPersistenceError("decode step data", err)
	}
	state.StepData = data
	return &state, nil
}

// Save upserts the state keyed by ticket id. Timestamps come back from the
// database so callers see the stored values.
func (r *workflowStateRepository) Save(ctx context.Context, state *domain.WorkflowState) error {
	const query = `
        INSERT INTO workflow_states (ticket_id, current_step, next_step, completed_steps, step_data, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (ticket_id) DO UPDATE SET
            current_step=EXCLUDED.current_step,
            next_step=EXCLUDED.next_step,
            completed_steps=EXCLUDED.completed_steps,
            step_data=EXCLUDED.step_data,
            status=EXCLUDED.status,
            updated_at=NOW()
        RETURNING created_at, updated_at`

	completed := make([]string, len(state.CompletedSteps))
	for i, s := range state.CompletedSteps {
		completed[i] = string(s)
	}
	stepData, err := encodeStepData(state.StepData)
	if err != nil {
		return util.NewPersistenceError("encode step data", err)
	}

	err = r.pool.QueryRow(ctx, query,
		state.TicketID,
		state.CurrentStep,
		state.NextStep,
		completed,
		stepData,
		state.Status,
	).Scan(&state.CreatedAt, &state.UpdatedAt)
	if err != nil {
		return util.NewPersistenceError("save workflow state", err)
	}
	return nil
}

func encodeStepData(data map[domain.WorkflowStep]domain.StepPayload) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(data))
	for step, payload := range data {
		raw, err := domain.EncodeStepPayload(payload)
		if err != nil {
			return nil, err
		}
		out[string(step)] = raw
	}
	return json.Marshal(out)
}

func decodeStepData(raw []byte) (map[domain.WorkflowStep]domain.StepPayload, error) {
	if len(raw) == 0 {
		return map[domain.WorkflowStep]domain.StepPayload{}, nil
	}
	var stored map[string]json.RawMessage
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	out := make(map[domain.WorkflowStep]domain.StepPayload, len(stored))
	for step, payload := range stored {
		decoded, err := domain.DecodeStepPayload(domain.WorkflowStep(step), payload)
		if err != nil {
			return nil, err
		}
		out[domain.WorkflowStep(step)] = decoded
	}
	return out, nil
}
