package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hostr-app/guest-messaging-platform/internal/engine"
	"github.com/hostr-app/guest-messaging-platform/internal/flow"
	"github.com/hostr-app/guest-messaging-platform/internal/notify"
	"github.com/hostr-app/guest-messaging-platform/internal/tenancy"
	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

// DecideHandler exposes the decision engine over HTTP for the response
// generation layer.
type DecideHandler struct {
	logger   *logging.Logger
	engine   *engine.Engine
	notifier *notify.Service
}

// NewDecideHandler creates a decide handler. notifier may be nil.
func NewDecideHandler(logger *logging.Logger, eng *engine.Engine, notifier *notify.Service) *DecideHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DecideHandler{logger: logger, engine: eng, notifier: notifier}
}

type decideContext struct {
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
}

type decideRequest struct {
	TenantID       int64           `json:"tenant_id"`
	ConversationID int64           `json:"conversation_id"`
	PhoneNumber    string          `json:"phone_number"`
	Message        string          `json:"message"`
	Intent         string          `json:"intent"`
	Contexts       []decideContext `json:"contexts"`
}

// Decide handles POST /v1/messages/decide.
func (h *DecideHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TenantID <= 0 || req.ConversationID <= 0 {
		respondError(w, http.StatusBadRequest, "tenant_id and conversation_id are required")
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := tenancy.WithTenantID(r.Context(), req.TenantID)

	contexts := make([]flow.RelevantContext, 0, len(req.Contexts))
	for _, c := range req.Contexts {
		contexts = append(contexts, flow.RelevantContext{
			Content:        c.Content,
			RelevanceScore: c.RelevanceScore,
		})
	}

	decision := h.engine.Decide(ctx, &engine.Request{
		TenantID:         req.TenantID,
		ConversationID:   req.ConversationID,
		Message:          req.Message,
		PhoneNumber:      req.PhoneNumber,
		Intent:           req.Intent,
		RelevantContexts: contexts,
	})

	if decision.RequiresHumanIntervention && h.notifier != nil {
		esc := notify.Escalation{
			TenantID:       req.TenantID,
			ConversationID: req.ConversationID,
			PhoneNumber:    req.PhoneNumber,
			Message:        req.Message,
			Action:         decision.Action,
			Reason:         decision.Reasoning,
			OccurredAt:     decision.DecidedAt,
		}
		if decision.Emergency != nil {
			esc.Violations = decision.Emergency.Violations
		}
		if err := h.notifier.NotifyEscalation(ctx, esc); err != nil {
			h.logger.Error("escalation notification failed",
				"conversation_id", req.ConversationID, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, decision)
}

// HealthCheck handles GET /health.
func (h *DecideHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
