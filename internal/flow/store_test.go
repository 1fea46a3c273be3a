package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestStoreCreateFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}
	f := &Flow{
		ID:             uuid.New(),
		ConversationID: 100,
		TenantID:       7,
		Type:           TypeClarification,
		Status:         StatusActive,
		FlowData:       map[string]any{"intent": "service request"},
	}
	f.Steps = newSteps(f.ID, TypeClarification)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO conversation_flows").
		WithArgs(f.ID, int64(100), int64(7), "CLARIFICATION", "ACTIVE", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for i := range f.Steps {
		mock.ExpectExec("INSERT INTO flow_steps").
			WithArgs(f.ID, i, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), false, true).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	if err := store.CreateFlow(context.Background(), f); err != nil {
		t.Fatalf("create flow: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreCreateFlowDuplicateActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}
	f := &Flow{ID: uuid.New(), ConversationID: 100, TenantID: 7, Type: TypeSimpleQuery, Status: StatusActive}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO conversation_flows").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "conversation_flows_active_uniq"})
	mock.ExpectRollback()

	err = store.CreateFlow(context.Background(), f)
	if !errors.Is(err, ErrActiveFlowExists) {
		t.Fatalf("expected ErrActiveFlowExists, got %v", err)
	}
}

func TestStoreGetActiveFlowNone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}

	mock.ExpectQuery("SELECT (.+) FROM conversation_flows").
		WithArgs(int64(100), "ACTIVE").
		WillReturnError(pgx.ErrNoRows)

	f, err := store.GetActiveFlow(context.Background(), 100)
	if err != nil {
		t.Fatalf("get active flow: %v", err)
	}
	if f != nil {
		t.Fatalf("expected nil flow, got %+v", f)
	}
}

func TestStoreGetActiveFlowWithSteps(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}
	flowID := uuid.New()
	created := time.Date(2025, time.July, 9, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM conversation_flows").
		WithArgs(int64(100), "ACTIVE").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "conversation_id", "tenant_id", "flow_type", "status",
			"current_step_index", "flow_data", "created_at", "completed_at", "completion_reason",
		}).AddRow(flowID, int64(100), int64(7), "MULTI_STEP_BOOKING", "ACTIVE",
			1, []byte(`{"intent":"booking"}`), created, nil, nil))

	mock.ExpectQuery("SELECT (.+) FROM flow_steps").
		WithArgs(flowID).
		WillReturnRows(pgxmock.NewRows([]string{
			"flow_id", "step_index", "step_type", "title", "description",
			"is_completed", "completed_at", "collected_value", "is_required",
		}).
			AddRow(flowID, 0, "INFORMATION", "Booking Intent", "Confirm booking request", true, created, "book a room", true).
			AddRow(flowID, 1, "QUESTION", "Check-in Date", "When would you like to check in?", false, nil, nil, true))

	f, err := store.GetActiveFlow(context.Background(), 100)
	if err != nil {
		t.Fatalf("get active flow: %v", err)
	}
	if f == nil {
		t.Fatal("expected a flow")
	}
	if f.Type != TypeMultiStepBooking || f.CurrentStepIndex != 1 {
		t.Fatalf("unexpected flow: %+v", f)
	}
	if f.FlowData["intent"] != "booking" {
		t.Fatalf("unexpected flow data: %v", f.FlowData)
	}
	if len(f.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(f.Steps))
	}
	if !f.Steps[0].IsCompleted || f.Steps[0].CollectedValue != "book a room" {
		t.Fatalf("unexpected first step: %+v", f.Steps[0])
	}
	if f.Steps[1].CompletedAt != nil {
		t.Fatalf("expected incomplete second step")
	}
}

func TestStoreSaveTurn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}
	flowID := uuid.New()
	now := time.Date(2025, time.July, 9, 12, 0, 0, 0, time.UTC)
	f := &Flow{ID: flowID, CurrentStepIndex: 2}
	step := &Step{FlowID: flowID, StepIndex: 1, IsCompleted: true, CompletedAt: &now, CollectedValue: "12/25/2025"}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE flow_steps").
		WithArgs(flowID, 1, pgxmock.AnyArg(), "12/25/2025").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE conversation_flows").
		WithArgs(flowID, 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	if err := store.SaveTurn(context.Background(), f, step); err != nil {
		t.Fatalf("save turn: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreSaveTurnIncompleteStepSkipsStepUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}
	flowID := uuid.New()
	f := &Flow{ID: flowID, CurrentStepIndex: 1}
	step := &Step{FlowID: flowID, StepIndex: 1, IsCompleted: false}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE conversation_flows").
		WithArgs(flowID, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	if err := store.SaveTurn(context.Background(), f, step); err != nil {
		t.Fatalf("save turn: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreFinishFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}
	flowID := uuid.New()
	at := time.Date(2025, time.July, 9, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE conversation_flows").
		WithArgs(flowID, "ABANDONED", "Timeout due to inactivity", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.FinishFlow(context.Background(), flowID, StatusAbandoned, "Timeout due to inactivity", at); err != nil {
		t.Fatalf("finish flow: %v", err)
	}
}
