package rules

import (
	"strconv"
	"strings"
	"time"
)

// RuleType identifies which condition predicate a rule is evaluated with.
type RuleType string

const (
	RuleServiceAvailability RuleType = "SERVICE_AVAILABILITY"
	RuleBookingConstraint   RuleType = "BOOKING_CONSTRAINT"
	RuleTimeConstraint      RuleType = "TIME_CONSTRAINT"
	RuleCapacityLimit       RuleType = "CAPACITY_LIMIT"
	RuleEmergencyEscalation RuleType = "EMERGENCY_ESCALATION"
	RuleMenuAvailability    RuleType = "MENU_AVAILABILITY"
	RuleRoomServiceLimit    RuleType = "ROOM_SERVICE_LIMIT"
	RuleStaffAvailability   RuleType = "STAFF_AVAILABILITY"
	RulePriorityGuest       RuleType = "PRIORITY_GUEST"
	RuleComplianceCheck     RuleType = "COMPLIANCE_CHECK"
)

// Severity maps a triggered rule to its effect on the evaluation result.
type Severity string

const (
	SeverityInfo     Severity = "INFO"     // recommendation only
	SeverityWarning  Severity = "WARNING"  // warn but allow
	SeverityBlock    Severity = "BLOCK"    // block the action
	SeverityEscalate Severity = "ESCALATE" // route to human staff
)

// BusinessRule is a configured, time/priority-scoped policy predicate.
// Rules are read-only configuration; the engine never mutates them.
type BusinessRule struct {
	ID            int64
	TenantID      int64 // 0 = global rule
	Name          string
	Type          RuleType
	Severity      Severity
	Priority      int // 1 = highest, evaluated first
	IsActive      bool
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	DaysOfWeek    []time.Weekday // nil = every day
	StartTime     *time.Duration // offset from midnight, nil = no window
	EndTime       *time.Duration
	Description   string
}

// IsEffectiveAt reports whether the rule applies at the given instant:
// active, inside its date window, matching day-of-week and time-of-day
// constraints where set. Service-availability rules are exempt from the
// time-of-day effectiveness check because their window is predicate data
// (the allowed service hours), not a rule activation window.
func (r *BusinessRule) IsEffectiveAt(now time.Time) bool {
	if !r.IsActive {
		return false
	}
	if !r.EffectiveFrom.IsZero() && now.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && now.After(*r.EffectiveTo) {
		return false
	}

	if len(r.DaysOfWeek) > 0 {
		matched := false
		for _, day := range r.DaysOfWeek {
			if now.Weekday() == day {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if r.Type != RuleServiceAvailability && r.StartTime != nil && r.EndTime != nil {
		tod := timeOfDay(now)
		if tod < *r.StartTime || tod > *r.EndTime {
			return false
		}
	}

	return true
}

// WindowLabel renders the rule's time-of-day window for guest-facing
// messages, e.g. "06:00 - 23:00".
func (r *BusinessRule) WindowLabel() string {
	if r.StartTime == nil || r.EndTime == nil {
		return ""
	}
	return formatOffset(*r.StartTime) + " - " + formatOffset(*r.EndTime)
}

func formatOffset(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return pad(h) + ":" + pad(m)
}

func pad(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

// ParseDaysOfWeek decodes the persisted "0,1,2" weekday list (Sunday = 0).
func ParseDaysOfWeek(encoded string) []time.Weekday {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(encoded, ",") {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || value < 0 || value > 6 {
			continue
		}
		days = append(days, time.Weekday(value))
	}
	return days
}

// Result accumulates the effects of all triggered rules in one evaluation.
type Result struct {
	IsAllowed             bool
	RequiresEscalation    bool
	Violations            []string
	Warnings              []string
	Recommendations       []string
	TriggeredRules        []BusinessRule
	AlternativeSuggestion string
	EvaluatedAt           time.Time
}

// NewResult returns an empty, permissive result.
func NewResult() *Result {
	return &Result{IsAllowed: true, EvaluatedAt: time.Now().UTC()}
}

// Merge folds another result into this one: booleans OR toward the more
// restrictive value, message lists concatenate.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	if !other.IsAllowed {
		r.IsAllowed = false
	}
	if other.RequiresEscalation {
		r.RequiresEscalation = true
	}
	r.Violations = append(r.Violations, other.Violations...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Recommendations = append(r.Recommendations, other.Recommendations...)
	r.TriggeredRules = append(r.TriggeredRules, other.TriggeredRules...)
	if r.AlternativeSuggestion == "" {
		r.AlternativeSuggestion = other.AlternativeSuggestion
	}
}
