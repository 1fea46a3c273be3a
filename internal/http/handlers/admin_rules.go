package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/hostr-app/guest-messaging-platform/internal/rules"
	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

// AdminRulesHandler manages tenant business rules.
type AdminRulesHandler struct {
	logger *logging.Logger
	repo   *rules.Repository
}

// NewAdminRulesHandler creates an admin rules handler.
func NewAdminRulesHandler(logger *logging.Logger, repo *rules.Repository) *AdminRulesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminRulesHandler{logger: logger, repo: repo}
}

type rulePayload struct {
	ID            int64      `json:"id,omitempty"`
	TenantID      int64      `json:"tenant_id"`
	Name          string     `json:"name"`
	Type          string     `json:"type"`
	Severity      string     `json:"severity"`
	Priority      int        `json:"priority"`
	IsActive      bool       `json:"is_active"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	DaysOfWeek    string     `json:"days_of_week,omitempty"` // "0,1,2", Sunday = 0
	StartMinutes  *int       `json:"start_minutes,omitempty"`
	EndMinutes    *int       `json:"end_minutes,omitempty"`
	Description   string     `json:"description,omitempty"`
}

func (p *rulePayload) toRule() *rules.BusinessRule {
	rule := &rules.BusinessRule{
		ID:            p.ID,
		TenantID:      p.TenantID,
		Name:          p.Name,
		Type:          rules.RuleType(p.Type),
		Severity:      rules.Severity(p.Severity),
		Priority:      p.Priority,
		IsActive:      p.IsActive,
		EffectiveFrom: p.EffectiveFrom,
		EffectiveTo:   p.EffectiveTo,
		DaysOfWeek:    rules.ParseDaysOfWeek(p.DaysOfWeek),
		Description:   p.Description,
	}
	if p.StartMinutes != nil {
		d := time.Duration(*p.StartMinutes) * time.Minute
		rule.StartTime = &d
	}
	if p.EndMinutes != nil {
		d := time.Duration(*p.EndMinutes) * time.Minute
		rule.EndTime = &d
	}
	return rule
}

func payloadFromRule(rule rules.BusinessRule) rulePayload {
	p := rulePayload{
		ID:            rule.ID,
		TenantID:      rule.TenantID,
		Name:          rule.Name,
		Type:          string(rule.Type),
		Severity:      string(rule.Severity),
		Priority:      rule.Priority,
		IsActive:      rule.IsActive,
		EffectiveFrom: rule.EffectiveFrom,
		EffectiveTo:   rule.EffectiveTo,
		Description:   rule.Description,
	}
	for i, day := range rule.DaysOfWeek {
		if i > 0 {
			p.DaysOfWeek += ","
		}
		p.DaysOfWeek += strconv.Itoa(int(day))
	}
	if rule.StartTime != nil {
		minutes := int(rule.StartTime.Minutes())
		p.StartMinutes = &minutes
	}
	if rule.EndTime != nil {
		minutes := int(rule.EndTime.Minutes())
		p.EndMinutes = &minutes
	}
	return p
}

// List handles GET /admin/rules?tenant_id=N.
func (h *AdminRulesHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		respondError(w, http.StatusBadRequest, "valid tenant_id query parameter is required")
		return
	}

	loaded, err := h.repo.GetActiveRules(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to list rules", "tenant_id", tenantID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}

	payloads := make([]rulePayload, 0, len(loaded))
	for _, rule := range loaded {
		payloads = append(payloads, payloadFromRule(rule))
	}
	respondJSON(w, http.StatusOK, map[string]any{"rules": payloads})
}

// Create handles POST /admin/rules.
func (h *AdminRulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload rulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.TenantID < 0 || payload.Name == "" || payload.Type == "" || payload.Severity == "" {
		respondError(w, http.StatusBadRequest, "tenant_id, name, type and severity are required")
		return
	}
	if payload.EffectiveFrom.IsZero() {
		payload.EffectiveFrom = time.Now().UTC()
	}

	rule := payload.toRule()
	id, err := h.repo.CreateRule(r.Context(), rule)
	if err != nil {
		h.logger.Error("failed to create rule", "tenant_id", payload.TenantID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}
	rule.ID = id

	h.logger.Info("rule created", "rule_id", id, "tenant_id", rule.TenantID, "name", rule.Name)
	respondJSON(w, http.StatusCreated, payloadFromRule(*rule))
}

// Update handles PUT /admin/rules/{ruleID}.
func (h *AdminRulesHandler) Update(w http.ResponseWriter, r *http.Request) {
	ruleID, err := strconv.ParseInt(chi.URLParam(r, "ruleID"), 10, 64)
	if err != nil || ruleID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	var payload rulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	payload.ID = ruleID

	if err := h.repo.UpdateRule(r.Context(), payload.toRule()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "rule not found")
			return
		}
		h.logger.Error("failed to update rule", "rule_id", ruleID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update rule")
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

// Delete handles DELETE /admin/rules/{ruleID}?tenant_id=N. Rules are
// deactivated, not removed.
func (h *AdminRulesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ruleID, err := strconv.ParseInt(chi.URLParam(r, "ruleID"), 10, 64)
	if err != nil || ruleID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	if err != nil || tenantID < 0 {
		respondError(w, http.StatusBadRequest, "valid tenant_id query parameter is required")
		return
	}

	if err := h.repo.DeleteRule(r.Context(), tenantID, ruleID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "rule not found")
			return
		}
		h.logger.Error("failed to delete rule", "rule_id", ruleID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
