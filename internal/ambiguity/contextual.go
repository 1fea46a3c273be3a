package ambiguity

import (
	"context"
	"regexp"
	"strings"
)

// Conversation state variables consulted by contextual checks. They are
// maintained by the messaging layer, not by this package.
const (
	StateGuestStatus      = "guest_status"
	StateHasActiveBooking = "has_active_booking"

	GuestStatusCheckedIn  = "CheckedIn"
	GuestStatusCheckedOut = "CheckedOut"
)

var (
	offHoursTimeRe   = regexp.MustCompile(`(?i)\b(midnight|2\s*am|3\s*am|4\s*am|5\s*am)\b`)
	checkoutRe       = regexp.MustCompile(`(?i)\b(check out|checking out)\b`)
	extendStayRe     = regexp.MustCompile(`(?i)\b(extend|late checkout|stay longer)\b`)
	earlyCheckinRe   = regexp.MustCompile(`(?i)\b(early checkin|early check-in|check in now)\b`)
	bookingChangeRe  = regexp.MustCompile(`(?i)\b(change|modify|cancel)\b.*\bbooking\b`)
	bookingRefRe     = regexp.MustCompile(`(?i)\b(my|the) (booking|reservation|appointment)\b`)
	qualifiedWaterRe = regexp.MustCompile(`(?i)\b(still|sparkling|bottled|tap)\s*water\b`)
)

// drinkTerms maps catalog-backed drink fragments to their word-boundary
// matchers. Only these terms go through the catalog multi-match check.
var drinkTermOrder = []string{"water", "coffee", "tea", "juice", "soda", "beer", "wine"}

var drinkTerms = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(drinkTermOrder))
	for _, term := range drinkTermOrder {
		m[term] = regexp.MustCompile(`\b` + term + `\b`)
	}
	return m
}()

// contextualTypes runs the checks that need conversation state or catalog
// access. Failures inside any single check are swallowed: contextual signals
// enrich the classification, they must never break it.
func (c *Classifier) contextualTypes(ctx context.Context, message string, tenantID, conversationID int64) []Type {
	var detected []Type

	if hasServiceAvailabilityConflict(message) {
		detected = append(detected, TypeImpossibleRequest)
	}

	if c.hasBookingStatusConflict(ctx, message, conversationID) {
		detected = append(detected, TypeConflictingContext)
	}

	if c.hasMultipleBookingReferences(ctx, message, conversationID) {
		detected = append(detected, TypeMultipleOptions)
	}

	if c.hasAmbiguousCatalogReference(ctx, message, tenantID) {
		detected = append(detected, TypeMultipleOptions)
	}

	return detected
}

// hasServiceAvailabilityConflict flags requests that name a time clearly
// outside plausible service hours.
func hasServiceAvailabilityConflict(message string) bool {
	return offHoursTimeRe.MatchString(message)
}

// hasBookingStatusConflict flags requests that contradict the guest's known
// status, e.g. asking to check out after already checking out.
func (c *Classifier) hasBookingStatusConflict(ctx context.Context, message string, conversationID int64) bool {
	if c.state == nil {
		return false
	}

	status, err := c.state.GetVariable(ctx, conversationID, StateGuestStatus)
	if err != nil {
		c.logger.Warn("could not read guest status", "conversation_id", conversationID, "error", err)
		return false
	}

	if status == GuestStatusCheckedOut && (checkoutRe.MatchString(message) || extendStayRe.MatchString(message)) {
		return true
	}
	if status == GuestStatusCheckedIn && earlyCheckinRe.MatchString(message) {
		return true
	}

	if bookingChangeRe.MatchString(message) {
		hasBooking, err := c.state.GetVariable(ctx, conversationID, StateHasActiveBooking)
		if err != nil {
			c.logger.Warn("could not read booking flag", "conversation_id", conversationID, "error", err)
			return false
		}
		if hasBooking == "false" {
			return true
		}
	}

	return false
}

// hasMultipleBookingReferences is a presence heuristic: a bare "my booking"
// reference is treated as potentially ambiguous without counting the guest's
// actual bookings. Known gap, kept deliberately.
func (c *Classifier) hasMultipleBookingReferences(ctx context.Context, message string, conversationID int64) bool {
	return bookingRefRe.MatchString(message)
}

// hasAmbiguousCatalogReference reports a drink-term reference that the
// tenant catalog resolves to more than one entry. A term the guest already
// qualified ("sparkling water") is not ambiguous regardless of the catalog.
func (c *Classifier) hasAmbiguousCatalogReference(ctx context.Context, message string, tenantID int64) bool {
	if c.catalog == nil {
		return false
	}

	lower := strings.ToLower(message)
	for _, term := range drinkTermOrder {
		if !drinkTerms[term].MatchString(lower) {
			continue
		}
		if term == "water" && qualifiedWaterRe.MatchString(lower) {
			continue
		}

		items, err := c.catalog.FindItemsByNameFragment(ctx, tenantID, term)
		if err != nil {
			c.logger.Warn("catalog lookup failed during ambiguity check",
				"tenant_id", tenantID,
				"term", term,
				"error", err,
			)
			continue
		}
		if len(items) > 1 {
			c.logger.Info("ambiguous catalog reference detected",
				"tenant_id", tenantID,
				"term", term,
				"matches", len(items),
			)
			return true
		}
	}

	return false
}
