package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Item is one menu or request-item catalog entry.
type Item struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int    `json:"price_cents,omitempty"`
	Currency    string `json:"currency,omitempty"`
	MealType    string `json:"meal_type,omitempty"` // "all", "breakfast", "lunch", "dinner", "late_night"
	Source      string `json:"source"`              // "menu" or "request"
}

// PriceLabel formats the item price for guest-facing option lists.
func (i Item) PriceLabel() string {
	if i.PriceCents <= 0 || i.Currency == "" {
		return ""
	}
	return fmt.Sprintf("%.2f %s", float64(i.PriceCents)/100.0, i.Currency)
}

// Repository reads the tenant catalog (menu items and request items) from
// Postgres. Lookups are read-only; catalog administration is external.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a catalog repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// FindItemsByNameFragment returns all available catalog entries whose name
// contains the fragment, menu items first.
func (r *Repository) FindItemsByNameFragment(ctx context.Context, tenantID int64, fragment string) ([]Item, error) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" {
		return nil, nil
	}

	var items []Item

	menuRows, err := r.db.QueryContext(ctx, `
		SELECT name, COALESCE(description, ''), COALESCE(price_cents, 0), COALESCE(currency, ''), COALESCE(meal_type, 'all')
		FROM menu_items
		WHERE tenant_id = $1 AND is_available = TRUE AND LOWER(name) LIKE '%' || $2 || '%'
		ORDER BY name
	`, tenantID, fragment)
	if err != nil {
		return nil, fmt.Errorf("catalog: query menu items: %w", err)
	}
	defer menuRows.Close()

	for menuRows.Next() {
		item := Item{Source: "menu"}
		if err := menuRows.Scan(&item.Name, &item.Description, &item.PriceCents, &item.Currency, &item.MealType); err != nil {
			return nil, fmt.Errorf("catalog: scan menu item: %w", err)
		}
		items = append(items, item)
	}
	if err := menuRows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate menu items: %w", err)
	}

	requestRows, err := r.db.QueryContext(ctx, `
		SELECT name, COALESCE(description, '')
		FROM request_items
		WHERE tenant_id = $1 AND is_available = TRUE AND LOWER(name) LIKE '%' || $2 || '%'
		ORDER BY name
	`, tenantID, fragment)
	if err != nil {
		return nil, fmt.Errorf("catalog: query request items: %w", err)
	}
	defer requestRows.Close()

	for requestRows.Next() {
		item := Item{Source: "request"}
		if err := requestRows.Scan(&item.Name, &item.Description); err != nil {
			return nil, fmt.Errorf("catalog: scan request item: %w", err)
		}
		items = append(items, item)
	}
	if err := requestRows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate request items: %w", err)
	}

	return items, nil
}
