package flow

import "github.com/google/uuid"

type stepTemplate struct {
	Type        StepType
	Title       string
	Description string
}

// Static step templates per flow type, loaded once and never mutated.
var flowTemplates = map[Type][]stepTemplate{
	TypeMultiStepBooking: {
		{StepInformation, "Booking Intent", "Confirm booking request"},
		{StepQuestion, "Check-in Date", "When would you like to check in?"},
		{StepQuestion, "Check-out Date", "When would you like to check out?"},
		{StepQuestion, "Guest Count", "How many guests will be staying?"},
		{StepQuestion, "Room Preferences", "Do you have any specific room preferences?"},
		{StepConfirmation, "Booking Summary", "Please confirm your booking details"},
		{StepAction, "Create Booking", "Process the booking request"},
		{StepCompletion, "Booking Complete", "Provide booking confirmation"},
	},
	TypeServiceRequest: {
		{StepInformation, "Service Request", "Understand service needed"},
		{StepQuestion, "Service Type", "What type of service do you need?"},
		{StepQuestion, "Urgency", "How urgent is this request?"},
		{StepQuestion, "Location", "Where should the service be provided?"},
		{StepConfirmation, "Service Summary", "Please confirm service request details"},
		{StepAction, "Create Task", "Create staff task for service"},
		{StepCompletion, "Service Scheduled", "Confirm service has been scheduled"},
	},
	TypeComplaintResolution: {
		{StepInformation, "Complaint Received", "Acknowledge the complaint"},
		{StepQuestion, "Issue Details", "Can you provide more details about the issue?"},
		{StepQuestion, "When Occurred", "When did this issue occur?"},
		{StepQuestion, "Previous Contact", "Have you contacted us about this before?"},
		{StepConfirmation, "Issue Summary", "Let me confirm I understand the issue correctly"},
		{StepAction, "Resolution Plan", "Propose resolution approach"},
		{StepEscalation, "Manager Review", "Escalate to management if needed"},
		{StepCompletion, "Resolution Confirmed", "Confirm resolution is satisfactory"},
	},
	TypeClarification: {
		{StepInformation, "Clarification Needed", "Identify what needs clarification"},
		{StepQuestion, "Clarifying Question", "Ask specific clarifying question"},
		{StepConfirmation, "Understanding Check", "Confirm understanding of clarification"},
		{StepCompletion, "Clarification Complete", "Continue with original intent"},
	},
	TypeSimpleQuery: {
		{StepInformation, "Query Received", "Understand the question"},
		{StepCompletion, "Query Answered", "Provide the answer"},
	},
}

// TemplateStepCount returns the number of steps a flow of this type is
// created with.
func TemplateStepCount(t Type) int {
	return len(templateFor(t))
}

// templateFor returns the step template for a flow type, falling back to
// the minimal SimpleQuery template for unknown types.
func templateFor(t Type) []stepTemplate {
	if templates, ok := flowTemplates[t]; ok {
		return templates
	}
	return flowTemplates[TypeSimpleQuery]
}

// newSteps instantiates a flow type's template as fresh steps.
func newSteps(flowID uuid.UUID, t Type) []Step {
	templates := templateFor(t)
	steps := make([]Step, len(templates))
	for i, template := range templates {
		steps[i] = Step{
			FlowID:      flowID,
			StepIndex:   i,
			Type:        template.Type,
			Title:       template.Title,
			Description: template.Description,
			IsRequired:  true,
		}
	}
	return steps
}
