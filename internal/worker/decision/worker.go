package decisionworker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hostr-app/guest-messaging-platform/internal/engine"
	"github.com/hostr-app/guest-messaging-platform/internal/flow"
	"github.com/hostr-app/guest-messaging-platform/internal/notify"
	"github.com/hostr-app/guest-messaging-platform/internal/tenancy"
	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

// InboundMessage is the queue payload for one guest message awaiting a
// decision.
type InboundMessage struct {
	TenantID       int64   `json:"tenant_id"`
	ConversationID int64   `json:"conversation_id"`
	PhoneNumber    string  `json:"phone_number"`
	Message        string  `json:"message"`
	Intent         string  `json:"intent"`
	Contexts       []struct {
		Content        string  `json:"content"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"contexts,omitempty"`
}

// Worker consumes inbound guest messages from SQS, runs the decision
// engine on each, and notifies staff about escalations. Malformed
// messages are deleted rather than retried; transient engine faults
// already degrade to safe decisions, so every received message is
// acknowledged.
type Worker struct {
	logger   *logging.Logger
	queue    queueClient
	engine   *engine.Engine
	notifier *notify.Service

	workerCount int
	pollWait    time.Duration
}

// NewWorker creates a decision worker. workerCount <= 0 defaults to 1.
func NewWorker(logger *logging.Logger, queue queueClient, eng *engine.Engine, notifier *notify.Service, workerCount int, pollWait time.Duration) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	if pollWait <= 0 {
		pollWait = 20 * time.Second
	}
	return &Worker{
		logger:      logger.WithComponent("decision-worker"),
		queue:       queue,
		engine:      eng,
		notifier:    notifier,
		workerCount: workerCount,
		pollWait:    pollWait,
	}
}

// Run starts the poll loops and blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if w.queue == nil {
		return fmt.Errorf("decisionworker: queue not configured")
	}

	w.logger.Info("decision worker starting", "workers", w.workerCount)

	var wg sync.WaitGroup
	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.pollLoop(ctx, id)
		}(i)
	}
	wg.Wait()

	w.logger.Info("decision worker stopped")
	return nil
}

func (w *Worker) pollLoop(ctx context.Context, id int) {
	waitSeconds := int(w.pollWait.Seconds())
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, 10, waitSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive messages", "worker", id, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var inbound InboundMessage
	if err := json.Unmarshal([]byte(msg.Body), &inbound); err != nil {
		w.logger.Error("dropping malformed queue message", "message_id", msg.ID, "error", err)
		w.ack(ctx, msg)
		return
	}
	if inbound.TenantID <= 0 || inbound.ConversationID <= 0 || inbound.Message == "" {
		w.logger.Error("dropping incomplete queue message", "message_id", msg.ID)
		w.ack(ctx, msg)
		return
	}

	tenantCtx := tenancy.WithTenantID(ctx, inbound.TenantID)

	contexts := make([]flow.RelevantContext, 0, len(inbound.Contexts))
	for _, c := range inbound.Contexts {
		contexts = append(contexts, flow.RelevantContext{
			Content:        c.Content,
			RelevanceScore: c.RelevanceScore,
		})
	}

	decision := w.engine.Decide(tenantCtx, &engine.Request{
		TenantID:         inbound.TenantID,
		ConversationID:   inbound.ConversationID,
		Message:          inbound.Message,
		PhoneNumber:      inbound.PhoneNumber,
		Intent:           inbound.Intent,
		RelevantContexts: contexts,
	})

	if decision.RequiresHumanIntervention && w.notifier != nil {
		esc := notify.Escalation{
			TenantID:       inbound.TenantID,
			ConversationID: inbound.ConversationID,
			PhoneNumber:    inbound.PhoneNumber,
			Message:        inbound.Message,
			Action:         decision.Action,
			Reason:         decision.Reasoning,
			OccurredAt:     decision.DecidedAt,
		}
		if decision.Emergency != nil {
			esc.Violations = decision.Emergency.Violations
		}
		if err := w.notifier.NotifyEscalation(tenantCtx, esc); err != nil {
			w.logger.Error("escalation notification failed",
				"conversation_id", inbound.ConversationID, "error", err)
		}
	}

	w.logger.Info("processed inbound message",
		"conversation_id", inbound.ConversationID,
		"action", decision.Action,
	)
	w.ack(ctx, msg)
}

func (w *Worker) ack(ctx context.Context, msg queueMessage) {
	if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		w.logger.Error("failed to delete queue message", "message_id", msg.ID, "error", err)
	}
}
