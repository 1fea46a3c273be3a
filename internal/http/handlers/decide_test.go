package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
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

type stubFlowStore struct {
	activeErr error
}

func (s *stubFlowStore) CreateFlow(ctx context.Context, f *flow.Flow) error { return nil }

func (s *stubFlowStore) GetActiveFlow(ctx context.Context, conversationID int64) (*flow.Flow, error) {
	return nil, s.activeErr
}

func (s *stubFlowStore) SaveTurn(ctx context.Context, f *flow.Flow, step *flow.Step) error {
	return nil
}

func (s *stubFlowStore) FinishFlow(ctx context.Context, flowID uuid.UUID, status flow.Status, reason string, at time.Time) error {
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

func newDecideHandler(t *testing.T, flowStore *stubFlowStore, notifier *notify.Service) *DecideHandler {
	t.Helper()
	temporalSvc := temporal.NewService(nil, stubDirectory{}, "UTC")
	rulesEngine := rules.NewEngine(nil, stubRuleStore{}, temporalSvc, stubMenu{}, nil)
	flows := flow.NewManager(nil, flowStore, stubFlowState{}, temporalSvc, nil)
	classifier := ambiguity.NewClassifier(nil, nil, nil)
	eng := engine.New(nil, classifier, flows, rulesEngine, nil, nil)
	return NewDecideHandler(nil, eng, notifier)
}

func TestDecideEndpoint(t *testing.T) {
	h := newDecideHandler(t, &stubFlowStore{}, nil)

	payload := `{
		"tenant_id": 7,
		"conversation_id": 100,
		"phone_number": "+15551234567",
		"message": "Fresh towels to room 412 please",
		"intent": "service request",
		"contexts": [{"content": "guest asked about towels", "relevance_score": 0.9}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/decide", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Decide(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var decision engine.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, flow.ActionSimpleResponse, decision.Action)
	assert.False(t, decision.RequiresHumanIntervention)
	require.NotNil(t, decision.Ambiguity)
	assert.False(t, decision.Ambiguity.IsAmbiguous)
}

func TestDecideEndpointValidation(t *testing.T) {
	h := newDecideHandler(t, &stubFlowStore{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"missing tenant", `{"conversation_id": 100, "message": "hello there"}`},
		{"missing conversation", `{"tenant_id": 7, "message": "hello there"}`},
		{"missing message", `{"tenant_id": 7, "conversation_id": 100}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/messages/decide", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Decide(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestDecideEndpointNotifiesOnEscalation(t *testing.T) {
	sender := &countingSender{}
	notifier := notify.NewService(sender, []string{"frontdesk@hotel.test"}, nil)
	h := newDecideHandler(t, &stubFlowStore{activeErr: errors.New("db down")}, notifier)

	payload := `{"tenant_id": 7, "conversation_id": 100, "message": "Fresh towels please", "intent": "service request"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/decide", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Decide(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Subject, "conversation 100")
	assert.Contains(t, sender.sent[0].Body, "Fresh towels please")
}

func TestHealthCheck(t *testing.T) {
	h := newDecideHandler(t, &stubFlowStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}
