package ambiguity

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hostr-app/guest-messaging-platform/internal/catalog"
	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

var classifierTracer = otel.Tracer("hostr/ambiguity-classifier")

// CatalogLookup resolves a name fragment against the tenant's menu and
// request-item catalog. Implemented by catalog.Repository and catalog.Cache.
type CatalogLookup interface {
	FindItemsByNameFragment(ctx context.Context, tenantID int64, fragment string) ([]catalog.Item, error)
}

// StateReader exposes read-only conversation state used by contextual checks.
// A missing variable is reported as an empty string, not an error.
type StateReader interface {
	GetVariable(ctx context.Context, conversationID int64, key string) (string, error)
}

// pattern is a single matcher within a category. When unless is non-nil a
// match of unless suppresses the match of re (regexp has no lookahead, so
// the exclusion lives in a second expression).
type pattern struct {
	re     *regexp.Regexp
	unless *regexp.Regexp
}

func (p *pattern) match(message string) (string, bool) {
	m := p.re.FindString(message)
	if m == "" {
		return "", false
	}
	if p.unless != nil && p.unless.MatchString(message) {
		return "", false
	}
	return m, true
}

// Classifier detects under-specified, unsafe or contextually conflicting
// guest messages and produces clarification prompts for them.
type Classifier struct {
	logger   *logging.Logger
	catalog  CatalogLookup
	state    StateReader
	patterns map[Type][]*pattern
}

// NewClassifier creates a classifier. catalog and state may be nil; the
// corresponding contextual checks are then skipped.
func NewClassifier(logger *logging.Logger, cat CatalogLookup, state StateReader) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}

	c := &Classifier{
		logger:   logger.WithComponent("ambiguity"),
		catalog:  cat,
		state:    state,
		patterns: make(map[Type][]*pattern),
	}

	c.patterns[TypeTemporalVague] = []*pattern{
		{re: regexp.MustCompile(`(?i)\b(later|soon|sometime|eventually|when possible|asap|whenever)\b`)},
		{
			re:     regexp.MustCompile(`(?i)\b(this week|next week|weekend)\b`),
			unless: regexp.MustCompile(`(?i)\b(this week|next week|weekend)\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
		},
		{
			re:     regexp.MustCompile(`(?i)\b(morning|afternoon|evening)\b`),
			unless: regexp.MustCompile(`(?i)\b(morning|afternoon|evening)\s+(tomorrow|today|yesterday|at|around)\b`),
		},
		{re: regexp.MustCompile(`(?i)\b(in a (bit|while|moment)|shortly|promptly)\b`)},
		{re: regexp.MustCompile(`(?i)\b(around\s+)?\d{1,2}ish(\s*(am|pm))?\b`)},
	}

	c.patterns[TypeMissingContext] = []*pattern{
		{re: regexp.MustCompile(`(?i)\bis (it|that|this) (available|open|ready|possible|working|included)\b`)},
		{re: regexp.MustCompile(`(?i)\bcan (i|you) (get|have|do|fix|change) (it|that|this)\b`)},
		{re: regexp.MustCompile(`(?i)\b(what about (it|that|this)|how about (it|that|this))\b`)},
		{
			re:     regexp.MustCompile(`(?i)\bhow much (is it|does it cost|will it be)\b`),
			unless: regexp.MustCompile(`(?i)\bhow much (is it|does it cost|will it be)\s+(for|to)\b`),
		},
		{re: regexp.MustCompile(`(?i)\b(where is (it|that|this)|when is (it|that|this))\b`)},
	}

	c.patterns[TypeIncompleteRequest] = []*pattern{
		{
			re:     regexp.MustCompile(`(?i)\b(i need help|help me|can you help|assist me)\b`),
			unless: regexp.MustCompile(`(?i)\b(i need help|help me|can you help|assist me)\s+(with|finding|getting)\b`),
		},
		{re: regexp.MustCompile(`(?i)\b(i want|i need|i would like|could i get)\s+(help|assistance)\b`)},
		{
			re:     regexp.MustCompile(`(?i)\b(book|reserve|cancel|change|order|request)\b`),
			unless: regexp.MustCompile(`(?i)\b(book|reserve|cancel|change|order|request)\s+\w+`),
		},
		{
			re:     regexp.MustCompile(`(?i)\b(tell me about|what is|explain|show me)\b`),
			unless: regexp.MustCompile(`(?i)\b(tell me about|what is|explain|show me)\s+\w+`),
		},
		{re: regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good morning|good afternoon|good evening)\s*[.!]*\s*$`)},
	}

	c.patterns[TypeMultipleOptions] = []*pattern{
		{re: regexp.MustCompile(`(?i)\b(change|modify|update|cancel)\s+(my|the)\s+(booking|reservation|appointment|order)\b`)},
		{re: regexp.MustCompile(`(?i)\bwhich\s+(room|table|booking|reservation)\b`)},
	}

	c.patterns[TypePrivacyViolation] = []*pattern{
		{re: regexp.MustCompile(`\b(?i:where is|what room|room number of)\s+(?:(?i:mr|mrs|ms)\.?\s+\w+|[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`)},
		{re: regexp.MustCompile(`(?i)\b(who is in|guest in|staying in|occupying)\s+room\s+\d+`)},
		{re: regexp.MustCompile(`\b(?i:contact|call|reach|find)\s+(?:(?i:mr|mrs|ms)\.?\s+\w+|[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`)},
		{re: regexp.MustCompile(`(?i)\b(guest list|who's staying|other guests)\b`)},
	}

	c.patterns[TypeMultipleIntents] = []*pattern{
		{re: regexp.MustCompile(`(?i)\b(and also|and then|plus|as well as|additionally|furthermore)\b`)},
		{re: regexp.MustCompile(`(?i)\b(book .*and .*(order|request)|reserve .*and .*(cancel|change)|order .*and .*(book|reserve))\b`)},
		{re: regexp.MustCompile(`(?i)\b(first .*then|after that|once .*also)\b`)},
	}

	c.patterns[TypeImpossibleRequest] = []*pattern{
		{re: regexp.MustCompile(`(?i)\b(extend|upgrade)\s+checkout\b`)},
		{re: regexp.MustCompile(`(?i)\b(book|reserve)\s+.*\s+(yesterday|last\s+(week|month))`)},
		{re: regexp.MustCompile(`(?i)\b(cancel|change)\s+.*\s+(completed|finished|past)\b`)},
	}

	return c
}

// Analyze classifies one guest message. It never fails: any internal fault
// degrades to a non-ambiguous, low-confidence result so a classifier bug can
// never block a conversation.
func (c *Classifier) Analyze(ctx context.Context, message string, tenantID, conversationID int64) (result *Result) {
	ctx, span := classifierTracer.Start(ctx, "ambiguity.analyze")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("ambiguity analysis panicked, failing open",
				"conversation_id", conversationID,
				"panic", fmt.Sprint(r),
			)
			result = failOpenResult()
		}
	}()

	result = &Result{SuggestedOptions: map[string][]Option{}}

	var detected []Type
	var matched []string

	for _, ambiguityType := range patternOrder {
		for _, p := range c.patterns[ambiguityType] {
			if value, ok := p.match(message); ok {
				detected = append(detected, ambiguityType)
				matched = append(matched, fmt.Sprintf("%s: %s", ambiguityType, value))
				break
			}
		}
	}

	detected = append(detected, c.contextualTypes(ctx, message, tenantID, conversationID)...)

	result.Types = dedupeBySeverity(detected)
	result.IsAmbiguous = len(result.Types) > 0

	if result.IsAmbiguous {
		result.AmbiguousTerms = ExtractAmbiguousTerms(message)
		c.generateClarifications(ctx, result, message, tenantID, conversationID)
		result.Confidence = confidenceLevel(result.Types, message)
		result.Explanation = explain(result.Types, matched)
	} else {
		result.Confidence = ConfidenceVeryHigh
		result.Explanation = "Message is clear and unambiguous."
	}

	span.SetAttributes(
		attribute.Bool("ambiguity.detected", result.IsAmbiguous),
		attribute.Int("ambiguity.type_count", len(result.Types)),
		attribute.String("ambiguity.confidence", string(result.Confidence)),
	)

	c.logger.Info("ambiguity analysis complete",
		"conversation_id", conversationID,
		"is_ambiguous", result.IsAmbiguous,
		"types", typeStrings(result.Types),
		"confidence", result.Confidence,
	)

	return result
}

// HasAmbiguousTimeReference reports whether the message contains a vague
// temporal reference ("later", "soon", ...).
func (c *Classifier) HasAmbiguousTimeReference(message string) bool {
	for _, p := range c.patterns[TypeTemporalVague] {
		if _, ok := p.match(message); ok {
			return true
		}
	}
	return false
}

// HasPrivacyViolation reports whether the message asks for another guest's
// whereabouts or identity.
func (c *Classifier) HasPrivacyViolation(message string) bool {
	for _, p := range c.patterns[TypePrivacyViolation] {
		if _, ok := p.match(message); ok {
			return true
		}
	}
	return false
}

// patternOrder fixes the iteration order over the pattern battery so the
// matched-pattern trace is deterministic.
var patternOrder = []Type{
	TypeTemporalVague,
	TypeMissingContext,
	TypeIncompleteRequest,
	TypeMultipleOptions,
	TypePrivacyViolation,
	TypeMultipleIntents,
	TypeImpossibleRequest,
}

func dedupeBySeverity(types []Type) []Type {
	seen := make(map[Type]struct{}, len(types))
	out := make([]Type, 0, len(types))
	for _, t := range types {
		if t == TypeNone {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return SeverityWeight(out[i]) > SeverityWeight(out[j])
	})
	return out
}

func confidenceLevel(types []Type, message string) ConfidenceLevel {
	if len(types) == 0 {
		return ConfidenceVeryHigh
	}

	var totalWeight float64
	for _, t := range types {
		totalWeight += SeverityWeight(t)
	}

	// Longer, more specific messages get discounted: if the guest already
	// named a room, time or service, the ambiguity is probably narrow.
	adjusted := totalWeight * (1.0 - messageSpecificity(message)*0.3)

	switch {
	case adjusted >= 0.8:
		return ConfidenceVeryHigh
	case adjusted >= 0.6:
		return ConfidenceHigh
	case adjusted >= 0.4:
		return ConfidenceMedium
	case adjusted >= 0.2:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

var (
	roomNumberRe = regexp.MustCompile(`\b\d{3,4}\b`)
	clockTimeRe  = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*(am|pm)?\b`)
	weekdayRe    = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	serviceRe    = regexp.MustCompile(`(?i)\b(spa|restaurant|room service|housekeeping|maintenance|concierge)\b`)
)

func messageSpecificity(message string) float64 {
	score := 0.0
	words := strings.Fields(message)

	if roomNumberRe.MatchString(message) {
		score += 0.2
	}
	if clockTimeRe.MatchString(message) {
		score += 0.2
	}
	if weekdayRe.MatchString(message) {
		score += 0.1
	}
	if serviceRe.MatchString(message) {
		score += 0.2
	}
	if len(words) > 10 {
		score += 0.1
	}
	if len(words) > 20 {
		score += 0.2
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

func explain(types []Type, matched []string) string {
	if len(types) == 0 {
		return "Message is clear and unambiguous."
	}

	explanations := make([]string, 0, len(types))
	for _, t := range types {
		var e string
		switch t {
		case TypeTemporalVague:
			e = "Contains vague time references that need clarification"
		case TypeMissingContext:
			e = "Missing specific context about what is being referenced"
		case TypeIncompleteRequest:
			e = "Request is incomplete and needs more details to proceed"
		case TypeMultipleOptions:
			e = "Could refer to multiple items, bookings, or services"
		case TypePrivacyViolation:
			e = "May involve sharing private information about other guests (not allowed)"
		case TypeConflictingContext:
			e = "Conflicts with current guest status or booking context"
		case TypeMultipleIntents:
			e = "Contains multiple different requests that should be handled separately"
		case TypeImpossibleRequest:
			e = "Request may not be possible given current constraints"
		default:
			e = "Contains unclear elements"
		}
		explanations = append(explanations, e)
	}

	result := fmt.Sprintf("Ambiguous because: %s.", strings.Join(explanations, "; "))
	if len(matched) > 0 {
		if len(matched) > 3 {
			matched = matched[:3]
		}
		result += fmt.Sprintf(" Detected patterns: %s.", strings.Join(matched, ", "))
	}
	return result
}

func failOpenResult() *Result {
	return &Result{
		IsAmbiguous:      false,
		Confidence:       ConfidenceLow,
		SuggestedOptions: map[string][]Option{},
		Explanation:      "Classifier fault, treating message as unambiguous.",
	}
}

func typeStrings(types []Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
