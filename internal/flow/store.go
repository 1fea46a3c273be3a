package flow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrActiveFlowExists is returned when a second Active flow is created for
// the same conversation. The one-active-flow invariant is enforced by a
// partial unique index on conversation_flows.
var ErrActiveFlowExists = errors.New("flow: conversation already has an active flow")

// Store persists conversation flows and their steps in Postgres. Flow and
// step mutations for one turn are written in a single transaction after
// the decision is computed, never incrementally.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// CreateFlow inserts a flow and its steps. Returns ErrActiveFlowExists if
// the conversation already has an Active flow.
func (s *Store) CreateFlow(ctx context.Context, f *Flow) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	flowData, err := json.Marshal(f.FlowData)
	if err != nil {
		return fmt.Errorf("flow: marshal flow data: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flow: begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO conversation_flows
			(id, conversation_id, tenant_id, flow_type, status, current_step_index, flow_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, f.ID, f.ConversationID, f.TenantID, string(f.Type), string(f.Status), f.CurrentStepIndex, flowData)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveFlowExists
		}
		return fmt.Errorf("flow: insert flow: %w", err)
	}

	for _, step := range f.Steps {
		_, err = tx.Exec(ctx, `
			INSERT INTO flow_steps
				(flow_id, step_index, step_type, title, description, is_completed, is_required)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, f.ID, step.StepIndex, string(step.Type), step.Title, step.Description, step.IsCompleted, step.IsRequired)
		if err != nil {
			return fmt.Errorf("flow: insert step %d: %w", step.StepIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("flow: commit create: %w", err)
	}
	return nil
}

// GetActiveFlow returns the conversation's Active flow with its steps, or
// nil when there is none.
func (s *Store) GetActiveFlow(ctx context.Context, conversationID int64) (*Flow, error) {
	var (
		f           Flow
		flowType    string
		status      string
		flowData    []byte
		completedAt sql.NullTime
		reason      sql.NullString
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, tenant_id, flow_type, status, current_step_index,
		       flow_data, created_at, completed_at, completion_reason
		FROM conversation_flows
		WHERE conversation_id = $1 AND status = $2
	`, conversationID, string(StatusActive)).Scan(
		&f.ID, &f.ConversationID, &f.TenantID, &flowType, &status,
		&f.CurrentStepIndex, &flowData, &f.CreatedAt, &completedAt, &reason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flow: query active flow: %w", err)
	}

	f.Type = Type(flowType)
	f.Status = Status(status)
	f.CompletionReason = reason.String
	if completedAt.Valid {
		t := completedAt.Time
		f.CompletedAt = &t
	}
	if len(flowData) > 0 {
		if err := json.Unmarshal(flowData, &f.FlowData); err != nil {
			return nil, fmt.Errorf("flow: unmarshal flow data: %w", err)
		}
	}

	steps, err := s.loadSteps(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	f.Steps = steps
	return &f, nil
}

func (s *Store) loadSteps(ctx context.Context, flowID uuid.UUID) ([]Step, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT flow_id, step_index, step_type, title, description,
		       is_completed, completed_at, collected_value, is_required
		FROM flow_steps
		WHERE flow_id = $1
		ORDER BY step_index
	`, flowID)
	if err != nil {
		return nil, fmt.Errorf("flow: query steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var (
			step        Step
			stepType    string
			completedAt sql.NullTime
			collected   sql.NullString
		)
		if err := rows.Scan(&step.FlowID, &step.StepIndex, &stepType, &step.Title,
			&step.Description, &step.IsCompleted, &completedAt, &collected, &step.IsRequired); err != nil {
			return nil, fmt.Errorf("flow: scan step: %w", err)
		}
		step.Type = StepType(stepType)
		step.CollectedValue = collected.String
		if completedAt.Valid {
			t := completedAt.Time
			step.CompletedAt = &t
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: iterate steps: %w", err)
	}
	return steps, nil
}

// SaveTurn writes the outcome of one turn atomically: the analyzed step's
// completion state and the flow's advanced step index.
func (s *Store) SaveTurn(ctx context.Context, f *Flow, step *Step) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flow: begin save turn: %w", err)
	}
	defer tx.Rollback(ctx)

	if step != nil && step.IsCompleted {
		_, err = tx.Exec(ctx, `
			UPDATE flow_steps
			SET is_completed = TRUE, completed_at = $3, collected_value = $4
			WHERE flow_id = $1 AND step_index = $2
		`, f.ID, step.StepIndex, step.CompletedAt, step.CollectedValue)
		if err != nil {
			return fmt.Errorf("flow: update step %d: %w", step.StepIndex, err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversation_flows
		SET current_step_index = $2, updated_at = now()
		WHERE id = $1
	`, f.ID, f.CurrentStepIndex)
	if err != nil {
		return fmt.Errorf("flow: update flow index: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("flow: commit save turn: %w", err)
	}
	return nil
}

// FinishFlow transitions a flow out of Active with the given terminal
// status and reason.
func (s *Store) FinishFlow(ctx context.Context, flowID uuid.UUID, status Status, reason string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversation_flows
		SET status = $2, completion_reason = $3, completed_at = $4, updated_at = now()
		WHERE id = $1
	`, flowID, string(status), reason, at)
	if err != nil {
		return fmt.Errorf("flow: finish flow: %w", err)
	}
	return nil
}
