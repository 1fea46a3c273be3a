package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hostr-app/guest-messaging-platform/internal/catalog"
	"github.com/hostr-app/guest-messaging-platform/internal/observability/metrics"
	"github.com/hostr-app/guest-messaging-platform/internal/temporal"
	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

var rulesTracer = otel.Tracer("hostr/rules-engine")

// Context carries the situational facts a rule predicate is tested against.
type Context map[string]any

// Context keys used by the built-in predicates.
const (
	CtxServiceName       = "service_name"
	CtxRequestedTime     = "requested_time"
	CtxGuestPhone        = "guest_phone"
	CtxExistingBookings  = "existing_bookings"
	CtxRoomNumber        = "room_number"
	CtxRequestedItems    = "requested_items"
	CtxMealPeriod        = "meal_period"
	CtxMessage           = "message"
	CtxEmergencyKeywords = "emergency_keywords"
	CtxDetectedAt        = "detected_at"
	CtxTimeContext       = "time_context"
)

// Store loads persisted business rules and booking counts.
type Store interface {
	GetActiveRules(ctx context.Context, tenantID int64) ([]BusinessRule, error)
	GetRulesByType(ctx context.Context, tenantID int64, ruleType RuleType) ([]BusinessRule, error)
	CountBookingsForDate(ctx context.Context, tenantID int64, guestPhone string, date time.Time) (int, error)
}

// MenuLookup resolves requested room-service items against the catalog.
type MenuLookup interface {
	FindItemsByNameFragment(ctx context.Context, tenantID int64, fragment string) ([]catalog.Item, error)
}

// Messages containing any of these terms escalate immediately. Matching is
// substring over whitespace-split words, so "emergencies" still matches.
var emergencyKeywords = []string{
	"emergency", "urgent", "help", "fire", "medical", "police", "ambulance",
	"injured", "hurt", "bleeding", "chest pain", "can't breathe", "overdose",
	"assault", "theft", "break in", "flood", "gas leak", "elevator stuck",
}

const maxConcurrentBookings = 3

// Engine evaluates business rules against turn context. Every entry point
// returns a Result rather than an error: policy evaluation faults degrade
// into the result's safe default (blocked for availability and bookings,
// escalated for emergencies, warned for room service).
type Engine struct {
	logger   *logging.Logger
	store    Store
	temporal *temporal.Service
	menu     MenuLookup
	metrics  *metrics.EngineMetrics

	// Now is the clock used for effectiveness checks; overridable in tests.
	Now func() time.Time
}

// NewEngine creates a rules engine. store and menu may be nil, in which
// case only built-in checks run.
func NewEngine(logger *logging.Logger, store Store, temporalSvc *temporal.Service, menu MenuLookup, m *metrics.EngineMetrics) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		logger:   logger.WithComponent("rules-engine"),
		store:    store,
		temporal: temporalSvc,
		menu:     menu,
		metrics:  m,
		Now:      time.Now,
	}
}

// GetActiveRules returns every effective rule for the tenant, global rules
// included. Store faults return an empty set.
func (e *Engine) GetActiveRules(ctx context.Context, tenantID int64) []BusinessRule {
	if e.store == nil {
		return nil
	}
	rules, err := e.store.GetActiveRules(ctx, tenantID)
	if err != nil {
		e.logger.Error("failed to load active rules", "tenant_id", tenantID, "error", err)
		return nil
	}
	now := e.Now().UTC()
	effective := rules[:0]
	for _, rule := range rules {
		if rule.IsEffectiveAt(now) {
			effective = append(effective, rule)
		}
	}
	return effective
}

// Apply tests every effective rule against the context in ascending
// priority order and merges the triggered rules' effects. A panic or fault
// in one rule is logged and skipped; the remaining rules still run.
func (e *Engine) Apply(ctx context.Context, rules []BusinessRule, ruleCtx Context) *Result {
	_, span := rulesTracer.Start(ctx, "rules.apply")
	defer span.End()
	span.SetAttributes(attribute.Int("rules.count", len(rules)))

	ordered := make([]BusinessRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	result := NewResult()
	now := e.Now().UTC()
	for i := range ordered {
		rule := &ordered[i]
		if !rule.IsEffectiveAt(now) {
			continue
		}
		triggered := e.safeEvaluate(rule, ruleCtx)
		if !triggered {
			continue
		}
		result.TriggeredRules = append(result.TriggeredRules, *rule)
		e.applyEffect(rule, result)
		e.metrics.ObserveRuleTriggered(string(rule.Severity))
	}
	return result
}

// safeEvaluate runs the rule's condition predicate, converting panics into
// a non-trigger so one bad rule cannot take down the turn.
func (e *Engine) safeEvaluate(rule *BusinessRule, ruleCtx Context) (triggered bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("rule evaluation panicked, skipping rule",
				"rule", rule.Name,
				"rule_type", string(rule.Type),
				"panic", fmt.Sprint(r),
			)
			triggered = false
		}
	}()
	return e.evaluateConditions(rule, ruleCtx)
}

func (e *Engine) evaluateConditions(rule *BusinessRule, ruleCtx Context) bool {
	switch rule.Type {
	case RuleServiceAvailability:
		return e.serviceAvailabilityTriggered(rule, ruleCtx)
	case RuleEmergencyEscalation:
		keywords, ok := ruleCtx[CtxEmergencyKeywords].([]string)
		return ok && len(keywords) > 0
	default:
		// Other rule types carry their predicate in effectiveness
		// (date window, weekday, time-of-day); reaching here means
		// the rule applies.
		return true
	}
}

// serviceAvailabilityTriggered fires when the requested time falls outside
// the rule's allowed window. Rules without a window never trigger.
func (e *Engine) serviceAvailabilityTriggered(rule *BusinessRule, ruleCtx Context) bool {
	if rule.StartTime == nil || rule.EndTime == nil {
		return false
	}
	requested, ok := ruleCtx[CtxRequestedTime].(time.Time)
	if !ok {
		return false
	}
	tod := timeOfDay(requested)
	return tod < *rule.StartTime || tod > *rule.EndTime
}

func (e *Engine) applyEffect(rule *BusinessRule, result *Result) {
	message := rule.Description
	switch rule.Severity {
	case SeverityBlock:
		result.IsAllowed = false
		if message == "" {
			message = fmt.Sprintf("Rule '%s' prevents this action", rule.Name)
		}
		result.Violations = append(result.Violations, message)
	case SeverityWarning:
		if message == "" {
			message = fmt.Sprintf("Rule '%s' suggests caution", rule.Name)
		}
		result.Warnings = append(result.Warnings, message)
	case SeverityEscalate:
		result.RequiresEscalation = true
		if message == "" {
			message = fmt.Sprintf("Rule '%s' requires human intervention", rule.Name)
		}
		result.Violations = append(result.Violations, message)
	case SeverityInfo:
		if message == "" {
			message = fmt.Sprintf("Rule '%s' provides information", rule.Name)
		}
		result.Recommendations = append(result.Recommendations, message)
	}
}

// EvaluateServiceAvailability checks whether the named service can be used
// at the requested time (zero means now). Faults fail closed: an evaluation
// error blocks the action.
func (e *Engine) EvaluateServiceAvailability(ctx context.Context, tenantID int64, serviceName string, requestedTime time.Time) *Result {
	ctx, span := rulesTracer.Start(ctx, "rules.evaluate_service_availability")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("tenant.id", tenantID),
		attribute.String("service.name", serviceName),
	)

	result := NewResult()
	evaluationTime := requestedTime
	if evaluationTime.IsZero() {
		evaluationTime = e.Now().UTC()
	}

	if e.temporal == nil {
		return result
	}

	service, err := e.temporal.GetService(ctx, tenantID, serviceName)
	if err != nil {
		e.logger.Error("service availability evaluation failed",
			"tenant_id", tenantID, "service", serviceName, "error", err)
		return blockedResult("Unable to evaluate service availability")
	}
	if service == nil {
		result.IsAllowed = false
		result.Violations = append(result.Violations, fmt.Sprintf("Service '%s' is not available", serviceName))
		return result
	}
	if !service.IsAvailable {
		result.IsAllowed = false
		result.Violations = append(result.Violations, fmt.Sprintf("Service '%s' is currently unavailable", serviceName))
		return result
	}

	available, err := e.temporal.IsServiceAvailable(ctx, tenantID, serviceName, evaluationTime)
	if err != nil {
		e.logger.Error("service hours check failed",
			"tenant_id", tenantID, "service", serviceName, "error", err)
		return blockedResult("Unable to evaluate service availability")
	}
	if !available {
		result.IsAllowed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("Service '%s' is not available at the requested time", serviceName))
		if service.AvailableHours != "" {
			result.AlternativeSuggestion = fmt.Sprintf("Service is available during: %s", service.AvailableHours)
		}
	}

	if service.RequiresAdvanceBooking && service.AdvanceBookingHours > 0 {
		minBookingTime := e.Now().UTC().Add(time.Duration(service.AdvanceBookingHours) * time.Hour)
		if evaluationTime.Before(minBookingTime) {
			result.IsAllowed = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("Service '%s' requires %d hours advance booking", serviceName, service.AdvanceBookingHours))
		}
	}

	tenantRules := e.rulesByType(ctx, tenantID, RuleServiceAvailability)
	ruleResult := e.Apply(ctx, tenantRules, Context{
		CtxServiceName:   serviceName,
		CtxRequestedTime: evaluationTime,
	})
	result.Merge(ruleResult)

	e.logger.Info("service availability evaluated",
		"tenant_id", tenantID,
		"service", serviceName,
		"allowed", result.IsAllowed,
	)
	return result
}

// ValidateBookingConstraints checks booking-time policy for a guest. Faults
// fail closed.
func (e *Engine) ValidateBookingConstraints(ctx context.Context, tenantID int64, guestPhone string, requestedTime time.Time) *Result {
	ctx, span := rulesTracer.Start(ctx, "rules.validate_booking_constraints")
	defer span.End()
	span.SetAttributes(attribute.Int64("tenant.id", tenantID))

	result := NewResult()

	existing := 0
	if e.store != nil {
		count, err := e.store.CountBookingsForDate(ctx, tenantID, guestPhone, requestedTime)
		if err != nil {
			e.logger.Error("booking constraint validation failed",
				"tenant_id", tenantID, "error", err)
			return blockedResult("Unable to validate booking constraints")
		}
		existing = count
	}

	if existing > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Guest has %d existing booking(s) for the requested date", existing))
	}
	if existing >= maxConcurrentBookings {
		result.IsAllowed = false
		result.Violations = append(result.Violations, "Maximum number of concurrent bookings exceeded")
	}

	timeRules := e.rulesByType(ctx, tenantID, RuleTimeConstraint)
	ruleResult := e.Apply(ctx, timeRules, Context{
		CtxGuestPhone:       guestPhone,
		CtxRequestedTime:    requestedTime,
		CtxExistingBookings: existing,
	})
	result.Merge(ruleResult)
	return result
}

// CheckRoomServiceConstraints validates a room-service order: service hours,
// menu availability for the current meal period, and delivery rules. Faults
// degrade to a warning rather than a block; a broken menu lookup should not
// starve a guest.
func (e *Engine) CheckRoomServiceConstraints(ctx context.Context, tenantID int64, roomNumber string, requestedItems []string) *Result {
	ctx, span := rulesTracer.Start(ctx, "rules.check_room_service_constraints")
	defer span.End()
	span.SetAttributes(attribute.Int64("tenant.id", tenantID))

	result := NewResult()

	var timeCtx temporal.Context
	if e.temporal != nil {
		available, err := e.temporal.IsServiceAvailable(ctx, tenantID, "Room Service", time.Time{})
		if err == nil && !available {
			result.IsAllowed = false
			result.Violations = append(result.Violations, "Room service is not currently available")
			return result
		}
		tc, err := e.temporal.GetCurrentTimeContext(ctx, tenantID)
		if err != nil {
			e.logger.Warn("time context unavailable for room service check",
				"tenant_id", tenantID, "error", err)
		} else {
			timeCtx = tc
		}
	}

	var unavailable []string
	for _, item := range requestedItems {
		if e.menu == nil {
			break
		}
		matches, err := e.menu.FindItemsByNameFragment(ctx, tenantID, item)
		if err != nil {
			e.logger.Warn("menu lookup failed during room service check",
				"tenant_id", tenantID, "item", item, "error", err)
			result.Warnings = append(result.Warnings, "Unable to fully validate room service constraints")
			continue
		}
		menuItem := firstMenuItem(matches)
		if menuItem == nil {
			unavailable = append(unavailable, item)
			continue
		}
		if outsideMealPeriod(menuItem.MealType, timeCtx.MealPeriod) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("'%s' is not typically available during %s", item, strings.ToLower(string(timeCtx.MealPeriod))))
		}
	}
	if len(unavailable) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Some items may not be available: %s", strings.Join(unavailable, ", ")))
	}

	deliveryRules := e.rulesByType(ctx, tenantID, RuleRoomServiceLimit)
	ruleResult := e.Apply(ctx, deliveryRules, Context{
		CtxRoomNumber:     roomNumber,
		CtxRequestedItems: requestedItems,
		CtxMealPeriod:     timeCtx.MealPeriod,
		CtxRequestedTime:  timeCtx.LocalTime,
	})
	result.Merge(ruleResult)
	return result
}

// EvaluateEmergencyEscalation scans the message for emergency keywords and
// applies escalation rules. Faults fail closed: any error escalates.
func (e *Engine) EvaluateEmergencyEscalation(ctx context.Context, tenantID int64, messageContent string) (result *Result) {
	ctx, span := rulesTracer.Start(ctx, "rules.evaluate_emergency_escalation")
	defer span.End()
	span.SetAttributes(attribute.Int64("tenant.id", tenantID))

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("emergency evaluation panicked, failing closed",
				"tenant_id", tenantID,
				"panic", fmt.Sprint(r),
			)
			result = NewResult()
			result.RequiresEscalation = true
			result.Violations = append(result.Violations,
				"Emergency evaluation failed, escalating to staff")
		}
	}()

	result = NewResult()

	matches := MatchEmergencyKeywords(messageContent)
	if len(matches) == 0 {
		return result
	}

	result.RequiresEscalation = true
	result.Violations = append(result.Violations,
		fmt.Sprintf("Emergency situation detected: %s", strings.Join(matches, ", ")))
	e.metrics.ObserveEscalation("emergency_keyword")

	emergencyRules := e.rulesByType(ctx, tenantID, RuleEmergencyEscalation)
	ruleResult := e.Apply(ctx, emergencyRules, Context{
		CtxMessage:           messageContent,
		CtxEmergencyKeywords: matches,
		CtxDetectedAt:        e.Now().UTC(),
	})
	result.Merge(ruleResult)

	e.logger.Warn("emergency escalation triggered",
		"tenant_id", tenantID,
		"keywords", strings.Join(matches, ","),
	)
	return result
}

// MatchEmergencyKeywords returns the emergency terms present in the message.
// Multi-word keywords match as phrases, single words as substrings of any
// word.
func MatchEmergencyKeywords(message string) []string {
	lower := strings.ToLower(message)
	words := strings.Fields(lower)

	var matches []string
	for _, keyword := range emergencyKeywords {
		if strings.Contains(keyword, " ") || strings.Contains(keyword, "'") {
			if strings.Contains(lower, keyword) {
				matches = append(matches, keyword)
			}
			continue
		}
		for _, word := range words {
			if strings.Contains(word, keyword) {
				matches = append(matches, keyword)
				break
			}
		}
	}
	return matches
}

func (e *Engine) rulesByType(ctx context.Context, tenantID int64, ruleType RuleType) []BusinessRule {
	if e.store == nil {
		return nil
	}
	rules, err := e.store.GetRulesByType(ctx, tenantID, ruleType)
	if err != nil {
		e.logger.Error("failed to load rules by type",
			"tenant_id", tenantID, "rule_type", string(ruleType), "error", err)
		return nil
	}
	return rules
}

func blockedResult(violation string) *Result {
	r := NewResult()
	r.IsAllowed = false
	r.Violations = append(r.Violations, violation)
	return r
}

func firstMenuItem(items []catalog.Item) *catalog.Item {
	for i := range items {
		if items[i].Source == "menu" {
			return &items[i]
		}
	}
	return nil
}

func outsideMealPeriod(mealType string, period temporal.MealPeriod) bool {
	if mealType == "" || mealType == "all" || period == "" {
		return false
	}
	return !strings.EqualFold(mealType, string(period))
}
