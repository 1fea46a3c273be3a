package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hostr-app/guest-messaging-platform/internal/ambiguity"
	"github.com/hostr-app/guest-messaging-platform/internal/convstate"
	"github.com/hostr-app/guest-messaging-platform/internal/observability/metrics"
	"github.com/hostr-app/guest-messaging-platform/internal/temporal"
	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

var flowTracer = otel.Tracer("hostr/flow-manager")

// FlowStore is the persistence boundary for flows and their steps.
type FlowStore interface {
	CreateFlow(ctx context.Context, f *Flow) error
	GetActiveFlow(ctx context.Context, conversationID int64) (*Flow, error)
	SaveTurn(ctx context.Context, f *Flow, step *Step) error
	FinishFlow(ctx context.Context, flowID uuid.UUID, status Status, reason string, at time.Time) error
}

// StateReader exposes the conversation-state reads continuation checks
// need.
type StateReader interface {
	GetVariable(ctx context.Context, conversationID int64, key string) (string, error)
	LastActivity(ctx context.Context, conversationID int64) (time.Time, error)
}

// Request carries everything one ManageFlow turn needs.
type Request struct {
	ConversationID   int64
	TenantID         int64
	Message          string
	PhoneNumber      string
	Intent           string
	Ambiguity        *ambiguity.Result
	RelevantContexts []RelevantContext
}

// Manager drives the conversation flow state machine: one Active flow per
// conversation, advanced strictly in step order, abandoned lazily on
// timeout. ManageFlow never returns an error; every fault degrades to a
// well-formed error decision steering toward human handoff.
type Manager struct {
	logger   *logging.Logger
	store    FlowStore
	state    StateReader
	temporal *temporal.Service
	metrics  *metrics.EngineMetrics

	// Now is the clock used for timeout checks; overridable in tests.
	Now func() time.Time
}

// NewManager creates a flow manager.
func NewManager(logger *logging.Logger, store FlowStore, state StateReader, temporalSvc *temporal.Service, m *metrics.EngineMetrics) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		logger:   logger.WithComponent("flow-manager"),
		store:    store,
		state:    state,
		temporal: temporalSvc,
		metrics:  m,
		Now:      time.Now,
	}
}

// ManageFlow handles one conversation turn: continues the Active flow if
// one exists, otherwise decides whether to start one or answer as a
// single-turn interaction.
func (m *Manager) ManageFlow(ctx context.Context, req *Request) (result *Result) {
	ctx, span := flowTracer.Start(ctx, "flow.manage")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("conversation.id", req.ConversationID),
		attribute.Int64("tenant.id", req.TenantID),
	)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("flow management panicked",
				"conversation_id", req.ConversationID,
				"panic", fmt.Sprint(r),
			)
			result = errorResult()
		}
	}()

	active, err := m.store.GetActiveFlow(ctx, req.ConversationID)
	if err != nil {
		m.logger.Error("failed to load active flow",
			"conversation_id", req.ConversationID, "error", err)
		return errorResult()
	}

	if active != nil {
		result = m.continueExistingFlow(ctx, active, req)
	} else if start := m.shouldStartNewFlow(ctx, req); start.shouldStart {
		result = m.startNewFlow(ctx, start.flowType, start.reasoning, req)
	} else {
		result = simpleInteractionResult()
	}

	result.FlowConfidence = m.flowConfidence(result, req)

	m.logger.Info("managed conversation flow",
		"conversation_id", req.ConversationID,
		"action", result.Decision.Action,
	)
	return result
}

// ShouldContinueFlow reports whether an Active flow is still eligible to
// continue: not timed out, not explicitly exited, prerequisites held.
// Timed-out flows are abandoned as a side effect.
func (m *Manager) ShouldContinueFlow(ctx context.Context, f *Flow) (bool, error) {
	if f.Status != StatusActive {
		return false, nil
	}

	lastActivity, err := m.state.LastActivity(ctx, f.ConversationID)
	if err != nil {
		return false, fmt.Errorf("flow: read last activity: %w", err)
	}
	if lastActivity.IsZero() {
		lastActivity = f.CreatedAt
	}
	if m.Now().UTC().Sub(lastActivity) > f.Type.Timeout() {
		if err := m.store.FinishFlow(ctx, f.ID, StatusAbandoned, "Timeout due to inactivity", m.Now().UTC()); err != nil {
			return false, fmt.Errorf("flow: abandon timed-out flow: %w", err)
		}
		f.Status = StatusAbandoned
		return false, nil
	}

	exit, err := m.state.GetVariable(ctx, f.ConversationID, convstate.VarExitFlow)
	if err != nil {
		return false, fmt.Errorf("flow: read exit variable: %w", err)
	}
	if exit == "true" {
		return false, nil
	}

	return m.prerequisitesHold(ctx, f), nil
}

// prerequisitesHold checks flow-type-specific preconditions. Service
// requests outside business hours are allowed but logged for follow-up.
func (m *Manager) prerequisitesHold(ctx context.Context, f *Flow) bool {
	if f.Type == TypeServiceRequest && m.temporal != nil {
		tc, err := m.temporal.GetCurrentTimeContext(ctx, f.TenantID)
		if err == nil && !tc.IsBusinessHours {
			m.logger.Info("service request flow continuing outside business hours",
				"conversation_id", f.ConversationID,
				"flow_id", f.ID,
			)
		}
	}
	return true
}

// CompleteFlow ends the conversation's Active flow with the given reason.
func (m *Manager) CompleteFlow(ctx context.Context, conversationID int64, reason string) error {
	active, err := m.store.GetActiveFlow(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("flow: load flow to complete: %w", err)
	}
	if active == nil {
		return nil
	}
	if err := m.store.FinishFlow(ctx, active.ID, StatusCompleted, reason, m.Now().UTC()); err != nil {
		return err
	}
	m.logger.Info("completed flow",
		"conversation_id", conversationID,
		"reason", reason,
	)
	return nil
}

func (m *Manager) continueExistingFlow(ctx context.Context, f *Flow, req *Request) *Result {
	result := &Result{ActiveFlow: f}

	eligible, err := m.ShouldContinueFlow(ctx, f)
	if err != nil {
		m.logger.Error("flow continuation check failed",
			"conversation_id", req.ConversationID, "error", err)
		return errorResult()
	}
	if !eligible {
		if f.Status == StatusActive {
			if err := m.store.FinishFlow(ctx, f.ID, StatusCompleted, "Flow discontinued", m.Now().UTC()); err != nil {
				m.logger.Error("failed to discontinue flow", "flow_id", f.ID, "error", err)
				return errorResult()
			}
		}
		result.FlowCompleted = true
		result.Decision = Decision{
			Action:     ActionComplete,
			Reasoning:  "Flow was discontinued",
			Confidence: 1.0,
		}
		return result
	}

	currentStep := f.CurrentStep()
	if currentStep == nil {
		if err := m.store.FinishFlow(ctx, f.ID, StatusCompleted, "All steps completed", m.Now().UTC()); err != nil {
			m.logger.Error("failed to complete flow", "flow_id", f.ID, "error", err)
			return errorResult()
		}
		result.FlowCompleted = true
		result.Decision = Decision{
			Action:     ActionComplete,
			Reasoning:  "All flow steps completed",
			Confidence: 1.0,
		}
		return result
	}

	analysis := analyzeMessageForStep(req.Message, currentStep)

	// Compute the full next state first, persist once after the
	// decision is made.
	if analysis.IsStepComplete {
		now := m.Now().UTC()
		currentStep.IsCompleted = true
		currentStep.CompletedAt = &now
		currentStep.CollectedValue = analysis.ExtractedValue
	}

	result.Decision = m.decideNext(f, currentStep, analysis)

	if analysis.IsStepComplete {
		f.CurrentStepIndex++
	}

	if err := m.store.SaveTurn(ctx, f, currentStep); err != nil {
		m.logger.Error("failed to persist flow turn",
			"flow_id", f.ID, "error", err)
		return errorResult()
	}

	result.NextSteps = f.UpcomingSteps(3)
	result.RequiresUserInput = requiresUserInput(currentStep)
	result.NextExpectedInput = expectedInputDescription(currentStep)
	result.FlowData = flowDataSnapshot(f)
	return result
}

func (m *Manager) startNewFlow(ctx context.Context, flowType Type, reasoning string, req *Request) *Result {
	f := &Flow{
		ID:               uuid.New(),
		ConversationID:   req.ConversationID,
		TenantID:         req.TenantID,
		Type:             flowType,
		Status:           StatusActive,
		CurrentStepIndex: 0,
		CreatedAt:        m.Now().UTC(),
		FlowData: map[string]any{
			"intent":       req.Intent,
			"start_time":   m.Now().UTC().Format(time.RFC3339),
			"phone_number": req.PhoneNumber,
			"tenant_id":    req.TenantID,
		},
	}
	f.Steps = newSteps(f.ID, flowType)

	if err := m.store.CreateFlow(ctx, f); err != nil {
		m.logger.Error("failed to create flow",
			"conversation_id", req.ConversationID,
			"flow_type", string(flowType),
			"error", err,
		)
		return errorResult()
	}
	m.metrics.ObserveFlowStarted(string(flowType))
	m.logger.Info("created new flow",
		"conversation_id", req.ConversationID,
		"flow_type", string(flowType),
	)

	result := &Result{
		ActiveFlow: f,
		NextSteps:  f.UpcomingSteps(3),
		Decision: Decision{
			Action:       ActionStart,
			Reasoning:    reasoning,
			Confidence:   0.8,
			NextStepType: f.Steps[0].Type,
		},
	}
	firstStep := &f.Steps[0]
	result.RequiresUserInput = requiresUserInput(firstStep)
	result.NextExpectedInput = expectedInputDescription(firstStep)
	result.FlowData = flowDataSnapshot(f)
	return result
}

type startDecision struct {
	shouldStart bool
	flowType    Type
	reasoning   string
}

func (m *Manager) shouldStartNewFlow(ctx context.Context, req *Request) startDecision {
	if req.Ambiguity != nil && req.Ambiguity.IsAmbiguous {
		return startDecision{
			shouldStart: true,
			flowType:    TypeClarification,
			reasoning:   "Ambiguity detected requiring clarification flow",
		}
	}

	multiStep, reasoning := intentRequiresMultipleSteps(req.Intent, req.Message)
	if multiStep {
		return startDecision{
			shouldStart: true,
			flowType:    flowTypeForIntent(req.Intent),
			reasoning:   fmt.Sprintf("Multi-step process detected: %s", reasoning),
		}
	}

	return startDecision{flowType: TypeSimpleQuery, reasoning: "Simple query requiring single response"}
}

// Requests for these items are fulfillable in one turn and never need a
// structured flow.
var simpleRequestItems = []string{
	"towel", "pillow", "blanket", "water", "coffee",
	"ice", "soap", "shampoo", "toilet paper",
}

func intentRequiresMultipleSteps(intent, message string) (bool, string) {
	lower := strings.ToLower(intent)
	switch {
	case strings.Contains(lower, "booking") || strings.Contains(lower, "reservation"):
		return true, "Booking requests typically require multiple pieces of information"
	case strings.Contains(lower, "service") || strings.Contains(lower, "request"):
		if containsAny(strings.ToLower(message), simpleRequestItems) {
			return false, "Simple service request"
		}
		return true, "Service request requires details collection"
	case strings.Contains(lower, "complaint") || strings.Contains(lower, "issue"):
		return true, "Complaint resolution requires structured information gathering"
	default:
		return false, "Simple query or information request"
	}
}

func flowTypeForIntent(intent string) Type {
	lower := strings.ToLower(intent)
	switch {
	case strings.Contains(lower, "booking") || strings.Contains(lower, "reservation"):
		return TypeMultiStepBooking
	case strings.Contains(lower, "service") || strings.Contains(lower, "request"):
		return TypeServiceRequest
	case strings.Contains(lower, "complaint") || strings.Contains(lower, "issue"):
		return TypeComplaintResolution
	case strings.Contains(lower, "menu") || strings.Contains(lower, "food"):
		return TypeMenuInquiry
	case strings.Contains(lower, "emergency"):
		return TypeEmergencyEscalation
	default:
		return TypeInformationGathering
	}
}

func (m *Manager) decideNext(f *Flow, currentStep *Step, analysis StepAnalysis) Decision {
	switch {
	case analysis.IsStepComplete && analysis.ValidationResult == ValidationValid:
		return Decision{
			Action:       ActionContinue,
			Reasoning:    "Step completed successfully, continuing to next step",
			Confidence:   analysis.Confidence,
			NextStepType: f.NextStepType(currentStep),
		}
	case analysis.ValidationResult == ValidationNeedsClarification:
		return Decision{
			Action:       ActionClarify,
			Reasoning:    "Response needs clarification",
			Confidence:   0.7,
			NextStepType: StepQuestion,
		}
	default:
		return Decision{
			Action:       ActionRepeat,
			Reasoning:    "Step not completed, repeating question",
			Confidence:   0.5,
			NextStepType: currentStep.Type,
		}
	}
}

// flowConfidence adjusts the decision confidence upward by flow progress
// and by the average relevance of supplied historical context, capped at
// 1.0.
func (m *Manager) flowConfidence(result *Result, req *Request) float64 {
	confidence := result.Decision.Confidence

	if result.ActiveFlow != nil {
		confidence += result.ActiveFlow.ProgressPercentage() / 100.0 * 0.2
	}

	if len(req.RelevantContexts) > 0 {
		total := 0.0
		for _, rc := range req.RelevantContexts {
			total += rc.RelevanceScore
		}
		confidence += total / float64(len(req.RelevantContexts)) * 0.1
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func requiresUserInput(step *Step) bool {
	return step.Type == StepQuestion || step.Type == StepConfirmation
}

func expectedInputDescription(step *Step) string {
	switch step.Type {
	case StepQuestion:
		return step.Description
	case StepConfirmation:
		return "Please confirm (yes/no)"
	default:
		return "Continue conversation"
	}
}

func flowDataSnapshot(f *Flow) map[string]any {
	data := map[string]any{
		"flow_type":    string(f.Type),
		"current_step": f.CurrentStepIndex,
		"total_steps":  len(f.Steps),
		"progress":     f.ProgressPercentage(),
		"status":       string(f.Status),
	}
	for _, step := range f.Steps {
		if step.IsCompleted && step.CollectedValue != "" {
			key := fmt.Sprintf("step_%d_%s", step.StepIndex,
				strings.ToLower(strings.ReplaceAll(step.Title, " ", "_")))
			data[key] = step.CollectedValue
		}
	}
	return data
}

func simpleInteractionResult() *Result {
	return &Result{
		FlowCompleted: true,
		Decision: Decision{
			Action:       ActionSimpleResponse,
			Reasoning:    "Single-turn interaction, no flow needed",
			Confidence:   1.0,
			NextStepType: StepInformation,
		},
	}
}

func errorResult() *Result {
	return &Result{
		Decision: Decision{
			Action:                    ActionError,
			Reasoning:                 "Error in flow management",
			Confidence:                0.1,
			RequiresHumanIntervention: true,
		},
	}
}
