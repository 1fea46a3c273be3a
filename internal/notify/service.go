package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

// Escalation describes a conversation handed off to staff.
type Escalation struct {
	TenantID       int64
	ConversationID int64
	PhoneNumber    string
	Message        string
	Action         string
	Reason         string
	Violations     []string
	OccurredAt     time.Time
}

// Service sends staff notifications when the decision engine escalates a
// conversation.
type Service struct {
	email      EmailSender
	recipients []string
	logger     *logging.Logger
}

// NewService creates a notification service. recipients are the staff
// addresses escalation emails go to.
func NewService(email EmailSender, recipients []string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:      email,
		recipients: recipients,
		logger:     logger,
	}
}

// NotifyEscalation emails staff about an escalated conversation. Partial
// delivery failures are aggregated into one error.
func (s *Service) NotifyEscalation(ctx context.Context, esc Escalation) error {
	if s.email == nil || len(s.recipients) == 0 {
		s.logger.Debug("notify: no escalation recipients configured, skipping")
		return nil
	}

	subject := fmt.Sprintf("Guest escalation - conversation %d", esc.ConversationID)

	violations := ""
	if len(esc.Violations) > 0 {
		violations = fmt.Sprintf("\nViolations:\n- %s", strings.Join(esc.Violations, "\n- "))
	}

	body := fmt.Sprintf(`A guest conversation needs staff attention.

Conversation: %d
Tenant: %d
Guest phone: %s
Decided action: %s
Reason: %s
At: %s

Guest message:
%s%s

Please take over this conversation as soon as possible.`,
		esc.ConversationID, esc.TenantID, esc.PhoneNumber, esc.Action, esc.Reason,
		esc.OccurredAt.Format("January 2, 2006 at 3:04 PM MST"),
		esc.Message, violations)

	var errs []error
	for _, recipient := range s.recipients {
		msg := EmailMessage{
			To:      recipient,
			Subject: subject,
			Body:    body,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: failed to send escalation email", "error", err, "to", recipient)
			errs = append(errs, err)
			continue
		}
		s.logger.Info("notify: escalation email sent",
			"to", recipient,
			"conversation_id", esc.ConversationID,
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return nil
}
