package ambiguity

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hostr-app/guest-messaging-platform/internal/catalog"
)

var bookingWordRe = regexp.MustCompile(`(?i)\b(booking|reservation)\b`)

// drinkQuestions holds the guest-facing question per catalog drink term.
var drinkQuestions = map[string]string{
	"water":  "Would you prefer sparkling water or still water?",
	"coffee": "What type of coffee would you like?",
	"tea":    "What type of tea would you prefer?",
	"juice":  "What type of juice would you like?",
	"soda":   "What type of soda would you like?",
	"beer":   "What type of beer would you prefer?",
	"wine":   "What type of wine would you prefer?",
}

// generateClarifications fills the result's questions and option sets, one
// entry per detected type. Catalog-backed types get live options.
func (c *Classifier) generateClarifications(ctx context.Context, result *Result, message string, tenantID, conversationID int64) {
	for _, ambiguityType := range result.Types {
		switch ambiguityType {
		case TypeTemporalVague:
			result.ClarificationQuestions = append(result.ClarificationQuestions,
				"When would you like this to happen? Could you specify the date and time?")
			result.SuggestedOptions["time_options"] = []Option{
				{Name: "This morning", Source: "static"},
				{Name: "This afternoon", Source: "static"},
				{Name: "This evening", Source: "static"},
				{Name: "Tomorrow", Source: "static"},
				{Name: "Specific time", Source: "static"},
			}

		case TypeMissingContext:
			result.ClarificationQuestions = append(result.ClarificationQuestions,
				"Could you please clarify what specifically you're referring to?")

		case TypeIncompleteRequest:
			result.ClarificationQuestions = append(result.ClarificationQuestions,
				"I'd be happy to help! Could you tell me more about what you need assistance with?")

		case TypeMultipleOptions:
			c.clarifyMultipleOptions(ctx, result, message, tenantID)

		case TypePrivacyViolation:
			result.ClarificationQuestions = append(result.ClarificationQuestions,
				"I cannot provide information about other guests due to privacy policies. Are you looking for someone you're traveling with?")

		case TypeConflictingContext:
			result.ClarificationQuestions = append(result.ClarificationQuestions,
				"I notice there might be a conflict with your current status. Could you provide more details?")

		case TypeMultipleIntents:
			result.ClarificationQuestions = append(result.ClarificationQuestions,
				"I see you're asking about multiple things. Would you like me to help with them one at a time? Which should we start with?")

		case TypeImpossibleRequest:
			result.ClarificationQuestions = append(result.ClarificationQuestions,
				"That request may not be possible right now. Could you share a bit more so I can find an alternative?")
		}
	}
}

// clarifyMultipleOptions picks the most specific question for a
// multiple-options ambiguity: bookings first, then catalog drink terms.
func (c *Classifier) clarifyMultipleOptions(ctx context.Context, result *Result, message string, tenantID int64) {
	if bookingWordRe.MatchString(message) {
		result.ClarificationQuestions = append(result.ClarificationQuestions,
			"I see you have multiple bookings. Which one would you like to modify?")
		return
	}

	lower := strings.ToLower(message)
	for _, term := range drinkTermOrder {
		if !drinkTerms[term].MatchString(lower) {
			continue
		}
		result.ClarificationQuestions = append(result.ClarificationQuestions, drinkQuestions[term])
		if options := c.catalogOptions(ctx, tenantID, term); len(options) > 0 {
			result.SuggestedOptions[term+"_options"] = options
		}
		return
	}

	result.ClarificationQuestions = append(result.ClarificationQuestions,
		"I found multiple options that match your request. Could you be more specific?")
}

// catalogOptions loads live option candidates for a term. Lookup faults
// yield no options rather than an error; the question still goes out.
func (c *Classifier) catalogOptions(ctx context.Context, tenantID int64, term string) []Option {
	if c.catalog == nil {
		return nil
	}

	items, err := c.catalog.FindItemsByNameFragment(ctx, tenantID, term)
	if err != nil {
		c.logger.Warn("could not load catalog options",
			"tenant_id", tenantID,
			"term", term,
			"error", err,
		)
		return nil
	}

	options := make([]Option, 0, len(items))
	for _, item := range items {
		options = append(options, optionFromItem(item))
	}
	return options
}

func optionFromItem(item catalog.Item) Option {
	option := Option{
		Name:        item.Name,
		Description: item.Description,
		Source:      item.Source,
	}
	if price := item.PriceLabel(); price != "" {
		option.Price = price
	}
	return option
}

// DescribeOption renders an option for plain-text channels.
func DescribeOption(o Option) string {
	if o.Price != "" {
		return fmt.Sprintf("%s (%s)", o.Name, o.Price)
	}
	return o.Name
}
