package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hostr-app/guest-messaging-platform/internal/temporal"
)

// GetTenantTimezone returns the tenant's configured IANA timezone, or an
// empty string when the tenant has none set.
func (r *Repository) GetTenantTimezone(ctx context.Context, tenantID int64) (string, error) {
	var timezone sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT timezone FROM tenants WHERE id = $1`, tenantID,
	).Scan(&timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("catalog: query tenant timezone: %w", err)
	}
	return timezone.String, nil
}

// ListTenantServices returns the tenant's configured hotel services with
// their opening hours and advance-booking requirements.
func (r *Repository) ListTenantServices(ctx context.Context, tenantID int64) ([]temporal.TenantService, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, COALESCE(available_hours, ''), is_available,
		       requires_advance_booking, COALESCE(advance_booking_hours, 0)
		FROM services
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("catalog: query services: %w", err)
	}
	defer rows.Close()

	var services []temporal.TenantService
	for rows.Next() {
		var svc temporal.TenantService
		if err := rows.Scan(&svc.Name, &svc.AvailableHours, &svc.IsAvailable,
			&svc.RequiresAdvanceBooking, &svc.AdvanceBookingHours); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate services: %w", err)
	}
	return services, nil
}
