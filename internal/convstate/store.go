package convstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

// Well-known state variables.
const (
	VarExitFlow         = "exit_flow"
	VarGuestStatus      = "guest_status"
	VarHasActiveBooking = "has_active_booking"
	VarLastIntent       = "last_intent"
)

const defaultTTL = 24 * time.Hour

// Store keeps per-conversation working state in Redis: a variable hash,
// a pending-clarifications list and a last-activity timestamp. State is
// short-lived context, not the durable conversation record, so every key
// carries a TTL refreshed on write.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger

	// Now is the clock stamped into last-activity; overridable in tests.
	Now func() time.Time
}

// NewStore creates a conversation state store. ttl <= 0 uses the default.
func NewStore(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Store {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client: client,
		ttl:    ttl,
		logger: logger.WithComponent("convstate"),
		Now:    time.Now,
	}
}

func varsKey(conversationID int64) string {
	return fmt.Sprintf("convstate:%d:vars", conversationID)
}

func clarificationsKey(conversationID int64) string {
	return fmt.Sprintf("convstate:%d:clarifications", conversationID)
}

func activityKey(conversationID int64) string {
	return fmt.Sprintf("convstate:%d:activity", conversationID)
}

// GetVariable returns the named variable, or empty string when unset.
func (s *Store) GetVariable(ctx context.Context, conversationID int64, key string) (string, error) {
	value, err := s.client.HGet(ctx, varsKey(conversationID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("convstate: get variable %q: %w", key, err)
	}
	return value, nil
}

// SetVariable writes one variable and refreshes the state TTL.
func (s *Store) SetVariable(ctx context.Context, conversationID int64, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, varsKey(conversationID), key, value)
	pipe.Expire(ctx, varsKey(conversationID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("convstate: set variable %q: %w", key, err)
	}
	return nil
}

// GetVariables returns every variable for the conversation.
func (s *Store) GetVariables(ctx context.Context, conversationID int64) (map[string]string, error) {
	vars, err := s.client.HGetAll(ctx, varsKey(conversationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("convstate: get variables: %w", err)
	}
	return vars, nil
}

// Touch records conversation activity now. Flow timeout checks compare
// against this timestamp.
func (s *Store) Touch(ctx context.Context, conversationID int64) error {
	err := s.client.Set(ctx, activityKey(conversationID), s.Now().UTC().Format(time.RFC3339Nano), s.ttl).Err()
	if err != nil {
		return fmt.Errorf("convstate: touch: %w", err)
	}
	return nil
}

// LastActivity returns the last recorded activity time, or zero when the
// conversation has no recorded activity.
func (s *Store) LastActivity(ctx context.Context, conversationID int64) (time.Time, error) {
	value, err := s.client.Get(ctx, activityKey(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("convstate: last activity: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("convstate: parse last activity: %w", err)
	}
	return t, nil
}

// AddPendingClarification appends a clarification question awaiting an
// answer.
func (s *Store) AddPendingClarification(ctx context.Context, conversationID int64, question string) error {
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, clarificationsKey(conversationID), question)
	pipe.Expire(ctx, clarificationsKey(conversationID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("convstate: add pending clarification: %w", err)
	}
	return nil
}

// GetPendingClarifications returns outstanding clarification questions in
// the order they were asked.
func (s *Store) GetPendingClarifications(ctx context.Context, conversationID int64) ([]string, error) {
	questions, err := s.client.LRange(ctx, clarificationsKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("convstate: get pending clarifications: %w", err)
	}
	return questions, nil
}

// ClearPendingClarifications drops all outstanding clarification questions.
func (s *Store) ClearPendingClarifications(ctx context.Context, conversationID int64) error {
	if err := s.client.Del(ctx, clarificationsKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("convstate: clear pending clarifications: %w", err)
	}
	return nil
}

// Clear removes all state for a conversation.
func (s *Store) Clear(ctx context.Context, conversationID int64) error {
	err := s.client.Del(ctx,
		varsKey(conversationID),
		clarificationsKey(conversationID),
		activityKey(conversationID),
	).Err()
	if err != nil {
		return fmt.Errorf("convstate: clear: %w", err)
	}
	return nil
}
