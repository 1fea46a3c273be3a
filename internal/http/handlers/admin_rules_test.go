package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostr-app/guest-messaging-platform/internal/rules"
)

func newAdminRulesRouter(t *testing.T) (chi.Router, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	h := NewAdminRulesHandler(nil, rules.NewRepository(mock))
	r := chi.NewRouter()
	r.Get("/admin/rules", h.List)
	r.Post("/admin/rules", h.Create)
	r.Put("/admin/rules/{ruleID}", h.Update)
	r.Delete("/admin/rules/{ruleID}", h.Delete)
	return r, mock
}

func adminRuleRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "tenant_id", "name", "rule_type", "severity", "priority", "is_active",
		"effective_from", "effective_to", "days_of_week", "start_seconds", "end_seconds", "description",
	})
}

func TestAdminRulesList(t *testing.T) {
	router, mock := newAdminRulesRouter(t)
	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM business_rules").
		WithArgs(int64(7)).
		WillReturnRows(adminRuleRows().
			AddRow(int64(1), int64(7), "spa hours", "SERVICE_AVAILABILITY", "BLOCK", 1, true,
				from, nil, "1,2,3,4,5", int64(9*3600), int64(17*3600), "Spa open 9 to 5"))

	req := httptest.NewRequest(http.MethodGet, "/admin/rules?tenant_id=7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rules []rulePayload `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rules, 1)
	assert.Equal(t, "spa hours", body.Rules[0].Name)
	assert.Equal(t, "1,2,3,4,5", body.Rules[0].DaysOfWeek)
	require.NotNil(t, body.Rules[0].StartMinutes)
	assert.Equal(t, 9*60, *body.Rules[0].StartMinutes)
}

func TestAdminRulesListRequiresTenant(t *testing.T) {
	router, _ := newAdminRulesRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/rules", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRulesCreate(t *testing.T) {
	router, mock := newAdminRulesRouter(t)

	mock.ExpectQuery("INSERT INTO business_rules").
		WithArgs(int64(7), "quiet hours", "TIME_CONSTRAINT", "WARNING", 5, true,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			"No loud music after 10 pm").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	payload := `{
		"tenant_id": 7,
		"name": "quiet hours",
		"type": "TIME_CONSTRAINT",
		"severity": "WARNING",
		"priority": 5,
		"is_active": true,
		"start_minutes": 1320,
		"end_minutes": 1439,
		"description": "No loud music after 10 pm"
	}`
	req := httptest.NewRequest(http.MethodPost, "/admin/rules", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var created rulePayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(42), created.ID)
	assert.Equal(t, "quiet hours", created.Name)
	require.NotNil(t, created.StartMinutes)
	assert.Equal(t, 1320, *created.StartMinutes)
}

func TestAdminRulesCreateValidation(t *testing.T) {
	router, _ := newAdminRulesRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"missing name", `{"tenant_id": 7, "type": "TIME_CONSTRAINT", "severity": "WARNING"}`},
		{"missing severity", `{"tenant_id": 7, "name": "x", "type": "TIME_CONSTRAINT"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/rules", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAdminRulesUpdateNotFound(t *testing.T) {
	router, mock := newAdminRulesRouter(t)

	mock.ExpectExec("UPDATE business_rules").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	payload := `{"tenant_id": 7, "name": "spa hours", "type": "SERVICE_AVAILABILITY", "severity": "BLOCK"}`
	req := httptest.NewRequest(http.MethodPut, "/admin/rules/99", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRulesUpdateInvalidID(t *testing.T) {
	router, _ := newAdminRulesRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/admin/rules/abc", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRulesDelete(t *testing.T) {
	router, mock := newAdminRulesRouter(t)

	mock.ExpectExec("UPDATE business_rules SET is_active = FALSE").
		WithArgs(int64(12), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	req := httptest.NewRequest(http.MethodDelete, "/admin/rules/12?tenant_id=7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRulesDeleteMissingTenant(t *testing.T) {
	router, _ := newAdminRulesRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/admin/rules/12", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
