package tenancy

import (
	"context"
	"testing"
)

func TestWithTenantIDAndTenantIDFromContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithTenantID(ctx, 42)

	got, ok := TenantIDFromContext(ctx)
	if !ok {
		t.Fatalf("expected tenant id to be present")
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestTenantIDFromContext_MissingOrInvalid(t *testing.T) {
	ctx := context.Background()
	if _, ok := TenantIDFromContext(ctx); ok {
		t.Fatalf("expected missing tenant id to return false")
	}

	ctx = context.WithValue(ctx, tenantKey, "not-an-int")
	if _, ok := TenantIDFromContext(ctx); ok {
		t.Fatalf("expected non-int tenant id to return false")
	}

	ctx = WithTenantID(context.Background(), 0)
	if _, ok := TenantIDFromContext(ctx); ok {
		t.Fatalf("expected zero tenant id to return false")
	}
}
