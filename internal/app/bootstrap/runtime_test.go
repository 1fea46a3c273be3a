package bootstrap

import (
	"context"
	"testing"

	appconfig "github.com/hostr-app/guest-messaging-platform/internal/config"
	"github.com/hostr-app/guest-messaging-platform/internal/notify"
	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

func TestBuildRedisClientDisabledWhenAddrEmpty(t *testing.T) {
	cfg := &appconfig.Config{}
	if client := BuildRedisClient(context.Background(), cfg, nil, false); client != nil {
		t.Fatalf("expected nil client when addr is empty")
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := ConnectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestBuildEmailSenderFallsBackToStub(t *testing.T) {
	logger := logging.New("error")

	cases := []struct {
		name string
		cfg  *appconfig.Config
	}{
		{"unknown provider", &appconfig.Config{EmailProvider: "carrier-pigeon"}},
		{"ses without client", &appconfig.Config{EmailProvider: "ses"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender := BuildEmailSender(tc.cfg, nil, logger)
			if _, ok := sender.(*notify.StubEmailSender); !ok {
				t.Fatalf("expected stub sender, got %T", sender)
			}
		})
	}
}

func TestEscalationRecipients(t *testing.T) {
	got := EscalationRecipients(" ops@hostr.app, frontdesk@hostr.app ,,")
	if len(got) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(got))
	}
	if got[0] != "ops@hostr.app" || got[1] != "frontdesk@hostr.app" {
		t.Fatalf("unexpected recipients: %v", got)
	}
}
