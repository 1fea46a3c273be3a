package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hostr-app/guest-messaging-platform/internal/ambiguity"
	"github.com/hostr-app/guest-messaging-platform/internal/flow"
	"github.com/hostr-app/guest-messaging-platform/internal/observability/metrics"
	"github.com/hostr-app/guest-messaging-platform/internal/rules"
	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

var engineTracer = otel.Tracer("hostr/decision-engine")

// Request is one inbound guest message to decide on.
type Request struct {
	TenantID         int64
	ConversationID   int64
	Message          string
	PhoneNumber      string
	Intent           string
	RelevantContexts []flow.RelevantContext
}

// Decision is the unified per-turn output consumed by response generation.
// The composer never short-circuits on rule violations: the flow decision
// and any rule effects are both present, and the caller decides the final
// user-facing behavior.
type Decision struct {
	Action                    string             `json:"action"`
	Reasoning                 string             `json:"reasoning"`
	Confidence                float64            `json:"confidence"`
	RequiresHumanIntervention bool               `json:"requires_human_intervention"`
	Ambiguity                 *ambiguity.Result  `json:"ambiguity"`
	Flow                      *flow.Result       `json:"flow"`
	Emergency                 *rules.Result      `json:"emergency"`
	DecidedAt                 time.Time          `json:"decided_at"`
}

// ConversationState is the composer's write surface on conversation state.
type ConversationState interface {
	Touch(ctx context.Context, conversationID int64) error
	AddPendingClarification(ctx context.Context, conversationID int64, question string) error
}

// Engine composes the ambiguity classifier, the business rules evaluator
// and the flow state machine into one per-turn decision. Decide never
// returns an error; every component degrades to its documented safe
// default.
type Engine struct {
	logger     *logging.Logger
	classifier *ambiguity.Classifier
	flows      *flow.Manager
	rules      *rules.Engine
	state      ConversationState
	metrics    *metrics.EngineMetrics

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// New creates a decision engine.
func New(logger *logging.Logger, classifier *ambiguity.Classifier, flows *flow.Manager, rulesEngine *rules.Engine, state ConversationState, m *metrics.EngineMetrics) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		logger:     logger.WithComponent("decision-engine"),
		classifier: classifier,
		flows:      flows,
		rules:      rulesEngine,
		state:      state,
		metrics:    m,
		Now:        time.Now,
	}
}

// Rules exposes the rules evaluator so callers can gate decided actions
// against availability policy.
func (e *Engine) Rules() *rules.Engine {
	return e.rules
}

// Decide runs one full decision turn for an inbound message. It never
// panics through: a fault in any stage degrades to a human-handoff
// decision.
func (e *Engine) Decide(ctx context.Context, req *Request) (decision *Decision) {
	ctx, span := engineTracer.Start(ctx, "engine.decide")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("tenant.id", req.TenantID),
		attribute.Int64("conversation.id", req.ConversationID),
	)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("decision turn panicked",
				"conversation_id", req.ConversationID,
				"panic", fmt.Sprint(r),
			)
			decision = &Decision{
				Action:                    flow.ActionError,
				Reasoning:                 "Decision turn failed, routing to staff",
				Confidence:                0.1,
				RequiresHumanIntervention: true,
				DecidedAt:                 e.Now().UTC(),
			}
			e.metrics.ObserveDecision(decision.Action)
			e.metrics.ObserveEscalation("engine_panic")
		}
	}()

	started := e.Now()

	ambResult := e.classifier.Analyze(ctx, req.Message, req.TenantID, req.ConversationID)
	for _, t := range ambResult.Types {
		e.metrics.ObserveAmbiguity(string(t))
	}

	emergency := e.rules.EvaluateEmergencyEscalation(ctx, req.TenantID, req.Message)

	flowResult := e.flows.ManageFlow(ctx, &flow.Request{
		ConversationID:   req.ConversationID,
		TenantID:         req.TenantID,
		Message:          req.Message,
		PhoneNumber:      req.PhoneNumber,
		Intent:           req.Intent,
		Ambiguity:        ambResult,
		RelevantContexts: req.RelevantContexts,
	})

	decision = &Decision{
		Action:     flowResult.Decision.Action,
		Reasoning:  flowResult.Decision.Reasoning,
		Confidence: flowResult.FlowConfidence,
		Ambiguity:  ambResult,
		Flow:       flowResult,
		Emergency:  emergency,
		DecidedAt:  e.Now().UTC(),
	}
	if flowResult.Decision.RequiresHumanIntervention || emergency.RequiresEscalation {
		decision.RequiresHumanIntervention = true
	}

	e.recordTurnState(ctx, req.ConversationID, ambResult)

	e.metrics.ObserveDecision(decision.Action)
	e.metrics.ObserveTurnLatency(flowResult.ActiveFlow != nil, e.Now().Sub(started).Seconds())
	if flowResult.Decision.RequiresHumanIntervention {
		e.metrics.ObserveEscalation("flow_error")
	}

	e.logger.Info("decision composed",
		"tenant_id", req.TenantID,
		"conversation_id", req.ConversationID,
		"action", decision.Action,
		"ambiguous", ambResult.IsAmbiguous,
		"escalate", decision.RequiresHumanIntervention,
	)
	return decision
}

// recordTurnState stamps conversation activity and queues clarification
// questions for the response layer. State faults are logged only; turn
// output never depends on them.
func (e *Engine) recordTurnState(ctx context.Context, conversationID int64, ambResult *ambiguity.Result) {
	if e.state == nil {
		return
	}
	if err := e.state.Touch(ctx, conversationID); err != nil {
		e.logger.Warn("failed to record conversation activity",
			"conversation_id", conversationID, "error", err)
	}
	if ambResult.IsAmbiguous {
		for _, question := range ambResult.ClarificationQuestions {
			if err := e.state.AddPendingClarification(ctx, conversationID, question); err != nil {
				e.logger.Warn("failed to queue clarification",
					"conversation_id", conversationID, "error", err)
				break
			}
		}
	}
}
