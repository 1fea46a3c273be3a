package decisionworker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostr-app/guest-messaging-platform/internal/ambiguity"
	"github.com/hostr-app/guest-messaging-platform/internal/catalog"
	"github.com/hostr-app/guest-messaging-platform/internal/engine"
	"github.com/hostr-app/guest-messaging-platform/internal/flow"
	"github.com/hostr-app/guest-messaging-platform/internal/notify"
	"github.com/hostr-app/guest-messaging-platform/internal/rules"
	"github.com/hostr-app/guest-messaging-platform/internal/temporal"
)

// fakeQueue serves its batches in order, then cancels the worker context so
// Run terminates.
type fakeQueue struct {
	batches [][]queueMessage
	deleted []string
	cancel  context.CancelFunc
}

func (f *fakeQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	if len(f.batches) == 0 {
		if f.cancel != nil {
			f.cancel()
		}
		return nil, context.Canceled
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeQueue) Delete(ctx context.Context, receiptHandle string) error {
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

type stubRuleStore struct{}

func (stubRuleStore) GetActiveRules(ctx context.Context, tenantID int64) ([]rules.BusinessRule, error) {
	return nil, nil
}

func (stubRuleStore) GetRulesByType(ctx context.Context, tenantID int64, ruleType rules.RuleType) ([]rules.BusinessRule, error) {
	return nil, nil
}

func (stubRuleStore) CountBookingsForDate(ctx context.Context, tenantID int64, guestPhone string, date time.Time) (int, error) {
	return 0, nil
}

type stubDirectory struct{}

func (stubDirectory) GetTenantTimezone(ctx context.Context, tenantID int64) (string, error) {
	return "UTC", nil
}

func (stubDirectory) ListTenantServices(ctx context.Context, tenantID int64) ([]temporal.TenantService, error) {
	return nil, nil
}

type stubMenu struct{}

func (stubMenu) FindItemsByNameFragment(ctx context.Context, tenantID int64, fragment string) ([]catalog.Item, error) {
	return nil, nil
}

type stubFlowStore struct{}

func (stubFlowStore) CreateFlow(ctx context.Context, f *flow.Flow) error { return nil }

func (stubFlowStore) GetActiveFlow(ctx context.Context, conversationID int64) (*flow.Flow, error) {
	return nil, nil
}

func (stubFlowStore) SaveTurn(ctx context.Context, f *flow.Flow, step *flow.Step) error { return nil }

func (stubFlowStore) FinishFlow(ctx context.Context, flowID uuid.UUID, status flow.Status, reason string, at time.Time) error {
	return nil
}

type stubFlowState struct{}

func (stubFlowState) GetVariable(ctx context.Context, conversationID int64, key string) (string, error) {
	return "", nil
}

func (stubFlowState) LastActivity(ctx context.Context, conversationID int64) (time.Time, error) {
	return time.Time{}, nil
}

type countingSender struct {
	sent []notify.EmailMessage
}

func (c *countingSender) Send(ctx context.Context, msg notify.EmailMessage) error {
	c.sent = append(c.sent, msg)
	return nil
}

func newTestEngine() *engine.Engine {
	temporalSvc := temporal.NewService(nil, stubDirectory{}, "UTC")
	rulesEngine := rules.NewEngine(nil, stubRuleStore{}, temporalSvc, stubMenu{}, nil)
	flows := flow.NewManager(nil, stubFlowStore{}, stubFlowState{}, temporalSvc, nil)
	classifier := ambiguity.NewClassifier(nil, nil, nil)
	return engine.New(nil, classifier, flows, rulesEngine, nil, nil)
}

func runWorker(t *testing.T, w *Worker, queue *fakeQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	queue.cancel = cancel

	require.NoError(t, w.Run(ctx))
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatal("worker timed out instead of draining the queue")
	}
}

func TestWorkerProcessesAndAcks(t *testing.T) {
	queue := &fakeQueue{batches: [][]queueMessage{{
		{
			ID:            "m1",
			Body:          `{"tenant_id": 7, "conversation_id": 100, "message": "Fresh towels to room 412 please", "intent": "service request"}`,
			ReceiptHandle: "rh-1",
		},
	}}}

	w := NewWorker(nil, queue, newTestEngine(), nil, 1, time.Second)
	runWorker(t, w, queue)

	assert.Equal(t, []string{"rh-1"}, queue.deleted)
}

func TestWorkerDropsMalformedMessages(t *testing.T) {
	queue := &fakeQueue{batches: [][]queueMessage{{
		{ID: "m1", Body: `{not json`, ReceiptHandle: "rh-1"},
		{ID: "m2", Body: `{"tenant_id": 0, "conversation_id": 100, "message": "hello"}`, ReceiptHandle: "rh-2"},
		{ID: "m3", Body: `{"tenant_id": 7, "conversation_id": 100, "message": ""}`, ReceiptHandle: "rh-3"},
	}}}

	w := NewWorker(nil, queue, newTestEngine(), nil, 1, time.Second)
	runWorker(t, w, queue)

	// Bad messages are acknowledged, never retried.
	assert.Equal(t, []string{"rh-1", "rh-2", "rh-3"}, queue.deleted)
}

func TestWorkerNotifiesOnEmergency(t *testing.T) {
	sender := &countingSender{}
	notifier := notify.NewService(sender, []string{"frontdesk@hotel.test"}, nil)
	queue := &fakeQueue{batches: [][]queueMessage{{
		{
			ID:            "m1",
			Body:          `{"tenant_id": 7, "conversation_id": 100, "phone_number": "+15551234567", "message": "There is a fire on my floor", "intent": "complaint"}`,
			ReceiptHandle: "rh-1",
		},
	}}}

	w := NewWorker(nil, queue, newTestEngine(), notifier, 1, time.Second)
	runWorker(t, w, queue)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "fire")
	assert.Equal(t, []string{"rh-1"}, queue.deleted)
}

func TestWorkerRequiresQueue(t *testing.T) {
	w := NewWorker(nil, nil, newTestEngine(), nil, 1, time.Second)
	assert.Error(t, w.Run(context.Background()))
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	queue := &fakeQueue{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWorker(nil, queue, newTestEngine(), nil, 2, time.Second)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
