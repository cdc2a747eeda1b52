package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"electricity-billing/internal/clock"
	"electricity-billing/internal/config"
	"electricity-billing/internal/database/dbtest"
	"electricity-billing/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

type client struct {
	t      *testing.T
	engine *gin.Engine
}

func (c client) do(method, path, bearer string, body any) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	c.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec.Code, env
}

func (c client) login(email, password string) string {
	c.t.Helper()
	code, env := c.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(c.t, http.StatusOK, code, env.Error)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(c.t, data.Token)
	return data.Token
}

func dataField(t *testing.T, env envelope, field string) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &m))
	v, _ := m[field].(string)
	return v
}

func newTestApp(t *testing.T) client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test", CORSOrigins: []string{"http://localhost:5173"}},
		Auth:   config.AuthConfig{JWTSecret: "server-test", TokenTTL: time.Hour},
		Admin:  config.AdminBootstrap{Email: "root@example.com", Password: "rootpass"},
	}
	app, err := New(Deps{
		Config:  cfg,
		DB:      dbtest.New(t),
		Clock:   clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		Metrics: metrics.New(nil),
		Log:     zap.NewNop(),
	})
	require.NoError(t, err)
	return client{t: t, engine: app.Engine}
}

func TestBillingFlowOverHTTP(t *testing.T) {
	c := newTestApp(t)
	admin := c.login("root@example.com", "rootpass")

	code, env := c.do(http.MethodPost, "/api/admin/providers", admin, map[string]string{
		"name":              "North Grid",
		"initial_kwh_price": "10",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	providerID := dataField(t, env, "id")

	newUser := func(email string, roles ...string) string {
		code, env := c.do(http.MethodPost, "/api/admin/users", admin, map[string]any{
			"name":        email,
			"email":       email,
			"password":    "secret1",
			"provider_id": providerID,
			"roles":       roles,
		})
		require.Equal(t, http.StatusCreated, code, env.Error)
		return dataField(t, env, "id")
	}
	newUser("creator@example.com", "Invoice_Creator")
	customerID := newUser("customer@example.com", "Customer")

	creator := c.login("creator@example.com", "secret1")
	code, env = c.do(http.MethodPost, "/api/invoices", creator, map[string]string{
		"customer_id":  customerID,
		"kwh_consumed": "100",
		"issue_date":   "2025-03-01",
		"due_date":     "2025-03-31",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	assert.Equal(t, "1000", dataField(t, env, "total_amount"))
	invoiceID := dataField(t, env, "id")

	customer := c.login("customer@example.com", "secret1")
	code, env = c.do(http.MethodGet, "/api/invoices/"+invoiceID, customer, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "Pending", dataField(t, env, "payment_status"))

	code, env = c.do(http.MethodGet, "/api/admin/providers/"+providerID+"/statistics?from=2025-03-01&to=2025-03-31", admin, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "1000.00", dataField(t, env, "total_outstanding"))

	// route policy: customers cannot create invoices
	code, _ = c.do(http.MethodPost, "/api/invoices", customer, map[string]string{})
	assert.Equal(t, http.StatusForbidden, code)

	// route policy: creators cannot reach admin routes
	code, _ = c.do(http.MethodGet, "/api/admin/providers", creator, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = c.do(http.MethodGet, "/api/invoices/my-invoices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLoginFailures(t *testing.T) {
	c := newTestApp(t)

	code, _ := c.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "root@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = c.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOperationalEndpoints(t *testing.T) {
	c := newTestApp(t)

	code, _ := c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
