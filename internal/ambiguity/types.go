package ambiguity

// Type labels one category of ambiguity detected in a guest message.
type Type string

const (
	TypeNone               Type = ""
	TypeMultipleOptions    Type = "MULTIPLE_OPTIONS"
	TypeMissingContext     Type = "MISSING_CONTEXT"
	TypeTemporalVague      Type = "TEMPORAL_VAGUE"
	TypePrivacyViolation   Type = "PRIVACY_VIOLATION"
	TypeConflictingContext Type = "CONFLICTING_CONTEXT"
	TypeIncompleteRequest  Type = "INCOMPLETE_REQUEST"
	TypeMultipleIntents    Type = "MULTIPLE_INTENTS"
	TypeImpossibleRequest  Type = "IMPOSSIBLE_REQUEST"
)

// ConfidenceLevel buckets how sure the classifier is about its verdict.
type ConfidenceLevel string

const (
	ConfidenceVeryLow  ConfidenceLevel = "VERY_LOW"
	ConfidenceLow      ConfidenceLevel = "LOW"
	ConfidenceMedium   ConfidenceLevel = "MEDIUM"
	ConfidenceHigh     ConfidenceLevel = "HIGH"
	ConfidenceVeryHigh ConfidenceLevel = "VERY_HIGH"
)

// severityWeights are static per-type weights used for ordering detected
// types and for confidence scoring. Unknown types default to 0.1.
var severityWeights = map[Type]float64{
	TypePrivacyViolation:   1.0,
	TypeImpossibleRequest:  0.9,
	TypeConflictingContext: 0.8,
	TypeMultipleOptions:    0.7,
	TypeMultipleIntents:    0.6,
	TypeIncompleteRequest:  0.5,
	TypeTemporalVague:      0.4,
	TypeMissingContext:     0.3,
}

// SeverityWeight returns the static severity weight for a type.
func SeverityWeight(t Type) float64 {
	if w, ok := severityWeights[t]; ok {
		return w
	}
	return 0.1
}

// Option is one candidate the guest can be offered to resolve an ambiguity.
type Option struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price,omitempty"`
	Source      string `json:"source"` // "menu", "request" or "static"
}

// Result is the outcome of a single classification call. It is created fresh
// per call and never mutated after being returned.
type Result struct {
	IsAmbiguous            bool                `json:"is_ambiguous"`
	Types                  []Type              `json:"types"`
	AmbiguousTerms         []string            `json:"ambiguous_terms"`
	ClarificationQuestions []string            `json:"clarification_questions"`
	SuggestedOptions       map[string][]Option `json:"suggested_options"`
	Confidence             ConfidenceLevel     `json:"confidence"`
	Explanation            string              `json:"explanation"`
}

// HasType reports whether the result contains the given ambiguity type.
func (r *Result) HasType(t Type) bool {
	for _, detected := range r.Types {
		if detected == t {
			return true
		}
	}
	return false
}
