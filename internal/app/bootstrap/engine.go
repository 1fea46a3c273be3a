package bootstrap

import (
	"database/sql"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hostr-app/guest-messaging-platform/internal/ambiguity"
	"github.com/hostr-app/guest-messaging-platform/internal/catalog"
	appconfig "github.com/hostr-app/guest-messaging-platform/internal/config"
	"github.com/hostr-app/guest-messaging-platform/internal/convstate"
	"github.com/hostr-app/guest-messaging-platform/internal/engine"
	"github.com/hostr-app/guest-messaging-platform/internal/flow"
	"github.com/hostr-app/guest-messaging-platform/internal/notify"
	"github.com/hostr-app/guest-messaging-platform/internal/observability/metrics"
	"github.com/hostr-app/guest-messaging-platform/internal/rules"
	"github.com/hostr-app/guest-messaging-platform/internal/temporal"
	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

// Engine bundles the decision engine with the repositories the HTTP
// surface needs alongside it.
type Engine struct {
	Engine    *engine.Engine
	RulesRepo *rules.Repository
	State     *convstate.Store
}

// BuildEngine wires the classifier, the business rules evaluator and the
// flow state machine around the shared Postgres and Redis stores.
func BuildEngine(cfg *appconfig.Config, logger *logging.Logger, pool *pgxpool.Pool, db *sql.DB, redisClient *redis.Client, m *metrics.EngineMetrics) *Engine {
	if logger == nil {
		logger = logging.Default()
	}

	catalogRepo := catalog.NewRepository(db)
	catalogLookup := catalog.NewCache(catalogRepo, redisClient, cfg.CatalogCacheTTL, logger)
	state := convstate.NewStore(redisClient, 0, logger)

	temporalSvc := temporal.NewService(logger, catalogRepo, cfg.DefaultTimezone)
	if start, err := temporal.ParseClock(cfg.BusinessHoursStart); err == nil {
		temporalSvc.BusinessStart = start
	}
	if end, err := temporal.ParseClock(cfg.BusinessHoursEnd); err == nil {
		temporalSvc.BusinessEnd = end
	}

	rulesRepo := rules.NewRepository(pool)
	rulesEngine := rules.NewEngine(logger, rulesRepo, temporalSvc, catalogLookup, m)

	flowStore := flow.NewStore(pool)
	flowManager := flow.NewManager(logger, flowStore, state, temporalSvc, m)

	classifier := ambiguity.NewClassifier(logger, catalogLookup, state)

	return &Engine{
		Engine:    engine.New(logger, classifier, flowManager, rulesEngine, state, m),
		RulesRepo: rulesRepo,
		State:     state,
	}
}

// BuildEmailSender selects the configured escalation email transport.
// Unknown providers fall back to the stub sender that only logs.
func BuildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	switch strings.ToLower(cfg.EmailProvider) {
	case "ses":
		if sesClient == nil {
			logger.Warn("ses selected but no client available; using stub email sender")
			return notify.NewStubEmailSender(logger)
		}
		return notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	case "sendgrid":
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	default:
		return notify.NewStubEmailSender(logger)
	}
}

// EscalationRecipients parses the comma-separated staff address list.
func EscalationRecipients(raw string) []string {
	var recipients []string
	for _, addr := range strings.Split(raw, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return recipients
}
