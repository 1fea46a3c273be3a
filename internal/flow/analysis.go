package flow

import (
	"regexp"
	"strings"
)

// Question kinds inferred from a step's title.
const (
	questionDate   = "date"
	questionNumber = "number"
	questionChoice = "choice"
	questionText   = "text"
)

var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`),
		regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{2,4}`),
		regexp.MustCompile(`(?i)\b(today|tomorrow|yesterday)\b`),
		regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
	}
	numberRe = regexp.MustCompile(`\d+`)

	confirmationTerms = []string{"yes", "confirm", "correct", "right", "ok", "okay", "sure"}
	rejectionTerms    = []string{"no", "wrong", "incorrect", "cancel", "stop"}

	// Short answers that carry a complete meaning on their own, so the
	// length check must not reject them.
	shorthandAnswers = map[string]struct{}{
		"asap":   {},
		"now":    {},
		"urgent": {},
		"soon":   {},
		"any":    {},
		"none":   {},
	}
)

// analyzeMessageForStep matches the guest's message against the current
// step's expected input. Steps that expect no input complete immediately.
func analyzeMessageForStep(message string, step *Step) StepAnalysis {
	switch step.Type {
	case StepQuestion:
		return analyzeQuestionResponse(message, step)
	case StepConfirmation:
		return analyzeConfirmationResponse(message)
	case StepInformation:
		return StepAnalysis{
			IsStepComplete:   true,
			Confidence:       0.8,
			ExtractedValue:   message,
			ValidationResult: ValidationValid,
		}
	default:
		return StepAnalysis{IsStepComplete: true, Confidence: 1.0, ValidationResult: ValidationValid}
	}
}

func analyzeQuestionResponse(message string, step *Step) StepAnalysis {
	switch questionTypeFromTitle(step.Title) {
	case questionDate:
		return analyzeDateResponse(message)
	case questionNumber:
		return analyzeNumberResponse(message)
	case questionChoice:
		return analyzeChoiceResponse(message)
	default:
		return analyzeTextResponse(message)
	}
}

// questionTypeFromTitle infers the expected answer kind from the step
// title, e.g. "Check-in Date" expects a date.
func questionTypeFromTitle(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "date"):
		return questionDate
	case strings.Contains(lower, "count") || strings.Contains(lower, "number"):
		return questionNumber
	case strings.Contains(lower, "preference") || strings.Contains(lower, "type"):
		return questionChoice
	default:
		return questionText
	}
}

func analyzeDateResponse(message string) StepAnalysis {
	hasDate := false
	for _, re := range datePatterns {
		if re.MatchString(message) {
			hasDate = true
			break
		}
	}
	analysis := StepAnalysis{
		IsStepComplete:   hasDate,
		Confidence:       0.2,
		ExtractedValue:   message,
		ValidationResult: ValidationNeedsClarification,
	}
	if hasDate {
		analysis.Confidence = 0.8
		analysis.ValidationResult = ValidationValid
	}
	return analysis
}

func analyzeNumberResponse(message string) StepAnalysis {
	match := numberRe.FindString(message)
	analysis := StepAnalysis{
		IsStepComplete:   match != "",
		Confidence:       0.1,
		ExtractedValue:   message,
		ValidationResult: ValidationNeedsClarification,
	}
	if match != "" {
		analysis.Confidence = 0.9
		analysis.ExtractedValue = match
		analysis.ValidationResult = ValidationValid
	}
	return analysis
}

func analyzeChoiceResponse(message string) StepAnalysis {
	return StepAnalysis{
		IsStepComplete:   strings.TrimSpace(message) != "",
		Confidence:       0.7,
		ExtractedValue:   message,
		ValidationResult: ValidationValid,
	}
}

func analyzeTextResponse(message string) StepAnalysis {
	trimmed := strings.TrimSpace(message)
	_, shorthand := shorthandAnswers[strings.ToLower(trimmed)]
	substantive := shorthand || len(trimmed) > 5
	analysis := StepAnalysis{
		IsStepComplete:   substantive,
		Confidence:       0.3,
		ExtractedValue:   message,
		ValidationResult: ValidationNeedsMoreDetail,
	}
	if substantive {
		analysis.Confidence = 0.8
		analysis.ValidationResult = ValidationValid
	}
	return analysis
}

func analyzeConfirmationResponse(message string) StepAnalysis {
	lower := strings.ToLower(message)
	confirmed := containsAny(lower, confirmationTerms)
	rejected := containsAny(lower, rejectionTerms)

	extracted := "unclear"
	if confirmed {
		extracted = "confirmed"
	} else if rejected {
		extracted = "rejected"
	}

	decided := confirmed || rejected
	analysis := StepAnalysis{
		IsStepComplete:   decided,
		Confidence:       0.3,
		ExtractedValue:   extracted,
		ValidationResult: ValidationNeedsClarification,
	}
	if decided {
		analysis.Confidence = 0.9
		analysis.ValidationResult = ValidationValid
	}
	return analysis
}

func containsAny(haystack string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
