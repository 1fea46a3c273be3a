package rules

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists business rules in Postgres. Rules are stored with
// seconds-from-midnight time windows and a comma-separated weekday list.
type Repository struct {
	pool PgxPool
}

func NewRepository(pool PgxPool) *Repository {
	if pool == nil {
		return nil
	}
	return &Repository{pool: pool}
}

const ruleColumns = `id, tenant_id, name, rule_type, severity, priority, is_active,
	effective_from, effective_to, days_of_week, start_seconds, end_seconds, description`

// GetActiveRules returns the tenant's active rules plus global rules
// (tenant_id 0), ordered by priority.
func (r *Repository) GetActiveRules(ctx context.Context, tenantID int64) ([]BusinessRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM business_rules
		WHERE (tenant_id = $1 OR tenant_id = 0) AND is_active = TRUE
		ORDER BY priority, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("rules: query active rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

// GetRulesByType returns the tenant's active rules of one type, global
// rules included, ordered by priority.
func (r *Repository) GetRulesByType(ctx context.Context, tenantID int64, ruleType RuleType) ([]BusinessRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM business_rules
		WHERE (tenant_id = $1 OR tenant_id = 0) AND rule_type = $2 AND is_active = TRUE
		ORDER BY priority, id
	`, tenantID, string(ruleType))
	if err != nil {
		return nil, fmt.Errorf("rules: query rules by type: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

// CountBookingsForDate counts the guest's bookings whose stay covers the
// requested date.
func (r *Repository) CountBookingsForDate(ctx context.Context, tenantID int64, guestPhone string, date time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE tenant_id = $1 AND phone = $2
		  AND check_in_date <= $3::date AND check_out_date >= $3::date
	`, tenantID, guestPhone, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("rules: count bookings: %w", err)
	}
	return count, nil
}

// CreateRule inserts a rule and returns its assigned ID.
func (r *Repository) CreateRule(ctx context.Context, rule *BusinessRule) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO business_rules
			(tenant_id, name, rule_type, severity, priority, is_active,
			 effective_from, effective_to, days_of_week, start_seconds, end_seconds, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`,
		rule.TenantID, rule.Name, string(rule.Type), string(rule.Severity),
		rule.Priority, rule.IsActive, rule.EffectiveFrom, rule.EffectiveTo,
		encodeDaysOfWeek(rule.DaysOfWeek), encodeSeconds(rule.StartTime), encodeSeconds(rule.EndTime),
		rule.Description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("rules: create rule: %w", err)
	}
	return id, nil
}

// UpdateRule rewrites a rule's mutable fields. Returns pgx.ErrNoRows when
// the rule does not belong to the tenant.
func (r *Repository) UpdateRule(ctx context.Context, rule *BusinessRule) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE business_rules
		SET name = $3, rule_type = $4, severity = $5, priority = $6, is_active = $7,
		    effective_from = $8, effective_to = $9, days_of_week = $10,
		    start_seconds = $11, end_seconds = $12, description = $13, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`,
		rule.ID, rule.TenantID, rule.Name, string(rule.Type), string(rule.Severity),
		rule.Priority, rule.IsActive, rule.EffectiveFrom, rule.EffectiveTo,
		encodeDaysOfWeek(rule.DaysOfWeek), encodeSeconds(rule.StartTime), encodeSeconds(rule.EndTime),
		rule.Description,
	)
	if err != nil {
		return fmt.Errorf("rules: update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteRule deactivates a rule. Rules are never hard-deleted so triggered
// history stays explainable.
func (r *Repository) DeleteRule(ctx context.Context, tenantID, ruleID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE business_rules SET is_active = FALSE, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, ruleID, tenantID)
	if err != nil {
		return fmt.Errorf("rules: delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanRules(rows pgx.Rows) ([]BusinessRule, error) {
	var rules []BusinessRule
	for rows.Next() {
		var (
			rule         BusinessRule
			ruleType     string
			severity     string
			effectiveTo  sql.NullTime
			daysEncoded  sql.NullString
			startSeconds sql.NullInt64
			endSeconds   sql.NullInt64
			description  sql.NullString
		)
		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &ruleType, &severity,
			&rule.Priority, &rule.IsActive, &rule.EffectiveFrom, &effectiveTo,
			&daysEncoded, &startSeconds, &endSeconds, &description,
		); err != nil {
			return nil, fmt.Errorf("rules: scan rule: %w", err)
		}
		rule.Type = RuleType(ruleType)
		rule.Severity = Severity(severity)
		if effectiveTo.Valid {
			t := effectiveTo.Time
			rule.EffectiveTo = &t
		}
		if daysEncoded.Valid {
			rule.DaysOfWeek = ParseDaysOfWeek(daysEncoded.String)
		}
		rule.StartTime = decodeSeconds(startSeconds)
		rule.EndTime = decodeSeconds(endSeconds)
		rule.Description = description.String
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rules: iterate rules: %w", err)
	}
	return rules, nil
}

func encodeDaysOfWeek(days []time.Weekday) *string {
	if len(days) == 0 {
		return nil
	}
	encoded := ""
	for i, day := range days {
		if i > 0 {
			encoded += ","
		}
		encoded += fmt.Sprint(int(day))
	}
	return &encoded
}

func encodeSeconds(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	seconds := int64(d.Seconds())
	return &seconds
}

func decodeSeconds(v sql.NullInt64) *time.Duration {
	if !v.Valid {
		return nil
	}
	d := time.Duration(v.Int64) * time.Second
	return &d
}
