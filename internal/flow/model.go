package flow

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies which step template a flow is built from.
type Type string

const (
	TypeSimpleQuery          Type = "SIMPLE_QUERY"
	TypeMultiStepBooking     Type = "MULTI_STEP_BOOKING"
	TypeServiceRequest       Type = "SERVICE_REQUEST"
	TypeComplaintResolution  Type = "COMPLAINT_RESOLUTION"
	TypeMenuInquiry          Type = "MENU_INQUIRY"
	TypeEmergencyEscalation  Type = "EMERGENCY_ESCALATION"
	TypeInformationGathering Type = "INFORMATION_GATHERING"
	TypeClarification        Type = "CLARIFICATION"
)

// Status is the flow lifecycle state.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusAbandoned Status = "ABANDONED"
	StatusEscalated Status = "ESCALATED"
)

// StepType classifies one unit of a flow template.
type StepType string

const (
	StepInformation  StepType = "INFORMATION"
	StepQuestion     StepType = "QUESTION"
	StepConfirmation StepType = "CONFIRMATION"
	StepAction       StepType = "ACTION"
	StepEscalation   StepType = "ESCALATION"
	StepCompletion   StepType = "COMPLETION"
)

// Flow is one multi-turn structured interaction. At most one flow per
// conversation may be Active; the store enforces this with a partial
// unique index.
type Flow struct {
	ID               uuid.UUID
	ConversationID   int64
	TenantID         int64
	Type             Type
	Status           Status
	CurrentStepIndex int
	FlowData         map[string]any
	CreatedAt        time.Time
	CompletedAt      *time.Time
	CompletionReason string
	Steps            []Step
}

// Step is one unit of a flow's template, visited strictly in index order.
type Step struct {
	FlowID         uuid.UUID
	StepIndex      int
	Type           StepType
	Title          string
	Description    string
	IsCompleted    bool
	CompletedAt    *time.Time
	CollectedValue string
	IsRequired     bool
}

// ProgressPercentage is how far through its template the flow has advanced.
func (f *Flow) ProgressPercentage() float64 {
	if len(f.Steps) == 0 {
		return 0
	}
	return float64(f.CurrentStepIndex) / float64(len(f.Steps)) * 100
}

// CurrentStep returns the first incomplete step at or after the current
// index, or nil when every remaining step is done.
func (f *Flow) CurrentStep() *Step {
	for i := range f.Steps {
		step := &f.Steps[i]
		if step.StepIndex >= f.CurrentStepIndex && !step.IsCompleted {
			return step
		}
	}
	return nil
}

// NextStepType returns the type of the step after the given one, or
// Completion when it is the last.
func (f *Flow) NextStepType(after *Step) StepType {
	for i := range f.Steps {
		if f.Steps[i].StepIndex > after.StepIndex {
			return f.Steps[i].Type
		}
	}
	return StepCompletion
}

// UpcomingSteps returns up to count steps from the current index onward.
func (f *Flow) UpcomingSteps(count int) []Step {
	var steps []Step
	for _, step := range f.Steps {
		if step.StepIndex >= f.CurrentStepIndex {
			steps = append(steps, step)
			if len(steps) == count {
				break
			}
		}
	}
	return steps
}

// Timeout returns how long a flow of this type may sit without
// conversation activity before it is abandoned.
func (t Type) Timeout() time.Duration {
	switch t {
	case TypeEmergencyEscalation:
		return 5 * time.Minute
	case TypeComplaintResolution:
		return 30 * time.Minute
	case TypeMultiStepBooking:
		return 2 * time.Hour
	default:
		return time.Hour
	}
}

// Decision actions.
const (
	ActionStart          = "start"
	ActionContinue       = "continue"
	ActionClarify        = "clarify"
	ActionRepeat         = "repeat"
	ActionComplete       = "complete"
	ActionSimpleResponse = "simple_response"
	ActionNoFlow         = "no_flow"
	ActionError          = "error"
)

// Decision is the per-turn flow verdict consumed by response generation.
type Decision struct {
	Action                    string
	Reasoning                 string
	Confidence                float64
	NextStepType              StepType
	RequiresHumanIntervention bool
}

// Validation outcomes of a step analysis.
const (
	ValidationValid              = "valid"
	ValidationNeedsClarification = "needs_clarification"
	ValidationNeedsMoreDetail    = "needs_more_detail"
)

// StepAnalysis is the outcome of matching one message against the current
// step's expected input.
type StepAnalysis struct {
	IsStepComplete   bool
	Confidence       float64
	ExtractedValue   string
	ValidationResult string
}

// RelevantContext is one piece of retrieved conversation history supplied
// by the caller, scored for relevance to the current message.
type RelevantContext struct {
	Content        string
	RelevanceScore float64
}

// Result is the full outcome of one ManageFlow turn.
type Result struct {
	Decision          Decision
	ActiveFlow        *Flow
	NextSteps         []Step
	FlowCompleted     bool
	RequiresUserInput bool
	NextExpectedInput string
	FlowData          map[string]any
	FlowConfidence    float64
}
