package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"labdesk/internal/billing"
	"labdesk/internal/config"
	"labdesk/internal/handlers"
	"labdesk/internal/intake"
	"labdesk/internal/locks"
	"labdesk/internal/logger"
	"labdesk/internal/logstore"
	"labdesk/internal/metrics"
	"labdesk/internal/models"
	"labdesk/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

const password = "Secret123!"

type harness struct {
	t      *testing.T
	router *gin.Engine
	db     *gorm.DB
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	lg := logger.Nop()
	m := metrics.New()
	locker := locks.NewKeyedMutex()

	h := handlers.New(handlers.Deps{
		DB:         db,
		Intake:     intake.NewService(db, logstore.New(), m, lg),
		Invoices:   billing.NewInvoiceService(db, locker, nil, m, lg),
		Reconciler: billing.NewReconciler(db, locker, m, lg),
		Log:        lg,
	})
	cfg := &config.Config{AppEnv: "test", SessionSecret: "router-test-secret-0123456789abcdef"}
	return &harness{
		t:      t,
		router: NewRouter(cfg, Deps{DB: db, Handler: h, Log: lg, Metrics: m}),
		db:     db,
	}
}

func (h *harness) user(username string, role models.UserRole) models.User {
	h.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(h.t, err)
	u := models.User{Username: username, PasswordHash: string(hash), Role: role}
	require.NoError(h.t, h.db.Create(&u).Error)
	return u
}

func (h *harness) call(method, path string, cookies []*http.Cookie, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) login(username string) []*http.Cookie {
	h.t.Helper()
	w := h.call(http.MethodPost, "/api/auth/login", nil, map[string]string{"username": username, "password": password})
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(h.t, cookies)
	return cookies
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w := h.call(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestLoginSessionAndLogout(t *testing.T) {
	h := newHarness(t)
	h.user("desk", models.RoleReceptionist)

	w := h.call(http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.call(http.MethodPost, "/api/auth/login", nil, map[string]string{"username": "desk", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_credentials")

	w = h.call(http.MethodPost, "/api/auth/login", nil, map[string]string{"username": "ghost", "password": password})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	cookies := h.login("desk")
	w = h.call(http.MethodGet, "/api/auth/me", cookies, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Username    string   `json:"username"`
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "desk", me.Username)
	assert.Equal(t, "receptionist", me.Role)
	assert.Equal(t, []string{"client.manage", "sample.receive"}, me.Permissions)
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w = h.call(http.MethodPost, "/api/auth/logout", cookies, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = h.call(http.MethodGet, "/api/auth/me", w.Result().Cookies(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPermissionGates(t *testing.T) {
	h := newHarness(t)
	h.user("desk", models.RoleReceptionist)
	h.user("tech", models.RoleTechnician)
	desk := h.login("desk")
	tech := h.login("tech")

	cases := []struct {
		name    string
		cookies []*http.Cookie
		method  string
		path    string
		want    int
	}{
		{"anonymous receive", nil, http.MethodPost, "/api/samples/receive", http.StatusUnauthorized},
		{"receptionist invoices", desk, http.MethodPost, "/api/invoices", http.StatusForbidden},
		{"receptionist payments", desk, http.MethodPost, "/api/payments", http.StatusForbidden},
		{"technician audit", tech, http.MethodGet, "/api/audit", http.StatusForbidden},
		{"technician clients", tech, http.MethodPost, "/api/clients", http.StatusForbidden},
		{"technician catalog", tech, http.MethodGet, "/api/tests", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := h.call(tc.method, tc.path, tc.cookies, map[string]string{})
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestReceiveInvoiceAndPayThroughRouter(t *testing.T) {
	h := newHarness(t)
	desk := h.user("desk", models.RoleReceptionist)
	books := h.user("books", models.RoleAccountant)
	testutil.CreateTest(t, h.db, "BR-WA", "Water Absorption", "bricks", 20000)

	w := h.call(http.MethodPost, "/api/samples/receive", h.login("desk"), map[string]interface{}{
		"clientName":   "Acme Builders",
		"projectTitle": "Riverside Towers",
		"receivedDate": "2024-03-04",
		"receivedBy":   desk.ID,
		"sets":         []map[string]interface{}{{"category": "bricks", "assignedTests": []string{"Water Absorption"}}},
		"tests":        []map[string]string{{"materialTest": "Water Absorption"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res intake.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.SucceededSets, 1)
	assert.Equal(t, models.LogWaterAbsorption, res.SucceededSets[0].LogKind)

	acct := h.login("books")
	w = h.call(http.MethodPost, "/api/invoices", acct, map[string]interface{}{
		"clientId": res.Client.ID,
		"sampleId": res.Sample.ID,
		"issuedBy": books.ID,
		"dueDate":  "2099-01-31",
		"items":    []map[string]interface{}{{"description": "Water Absorption", "quantity": 2, "unitPrice": "20000"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inv models.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
	assert.Equal(t, "47200", inv.TotalAmount.String())

	w = h.call(http.MethodPost, "/api/payments", acct, map[string]interface{}{
		"invoiceId":     inv.ID,
		"amount":        "47200",
		"paymentMethod": "cash",
		"receivedBy":    books.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rec billing.Reconciliation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.True(t, rec.Settled)

	w = h.call(http.MethodGet, fmt.Sprintf("/api/audit?sample_id=%d", res.Sample.ID), acct, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.call(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `http_requests_total{method="POST",route="/api/samples/receive",status="201"} 1`)
	assert.Contains(t, body, `intake_sets_total{kind="water_absorption",outcome="logged"} 1`)
	assert.Contains(t, body, "invoices_created_total 1")
	assert.Contains(t, body, `payments_applied_total{settled="true"} 1`)
}
