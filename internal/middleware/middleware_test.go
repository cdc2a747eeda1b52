package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"electricity-billing/internal/clock"
	"electricity-billing/internal/database/dbtest"
	"electricity-billing/internal/model"
	"electricity-billing/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newIssuer() *token.Issuer {
	return token.NewIssuer("middleware-secret", time.Hour, clock.NewFakeClock(time.Now()))
}

func TestAuthenticate(t *testing.T) {
	issuer := newIssuer()
	r := gin.New()
	r.GET("/me", Authenticate(issuer), func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, string(p.Role))
	})

	signed, _, err := issuer.Issue(uuid.New(), model.RoleAuditor)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{"bearer header", "Bearer " + signed, "", http.StatusOK},
		{"cookie", "", signed, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + signed, "", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "access_token", Value: tc.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "Auditor", w.Body.String())
			}
		})
	}
}

func TestRequireRoutePermission(t *testing.T) {
	enforcer, err := NewRouteEnforcer(dbtest.New(t))
	require.NoError(t, err)

	issuer := newIssuer()
	r := gin.New()
	api := r.Group("/api", Authenticate(issuer), RequireRoutePermission(enforcer, zap.NewNop()))
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	api.GET("/invoices/my-invoices", ok)
	api.GET("/invoices/my-created", ok)
	api.GET("/invoices/provider", ok)
	api.GET("/invoices/provider/statistics", ok)
	api.POST("/invoices", ok)
	api.GET("/invoices/:id", ok)
	api.PUT("/invoices/:id", ok)
	api.GET("/admin/providers", ok)
	api.DELETE("/admin/users/:id/roles/:role", ok)
	api.GET("/audit/logs", ok)

	cases := []struct {
		role   model.Role
		method string
		path   string
		want   int
	}{
		{model.RoleCustomer, http.MethodGet, "/api/invoices/my-invoices", http.StatusNoContent},
		{model.RoleCustomer, http.MethodGet, "/api/invoices/" + uuid.NewString(), http.StatusNoContent},
		{model.RoleCustomer, http.MethodPut, "/api/invoices/" + uuid.NewString(), http.StatusForbidden},
		{model.RoleCustomer, http.MethodPost, "/api/invoices", http.StatusForbidden},
		{model.RoleInvoiceCreator, http.MethodPost, "/api/invoices", http.StatusNoContent},
		{model.RoleInvoiceCreator, http.MethodGet, "/api/invoices/my-created", http.StatusNoContent},
		{model.RoleInvoiceCreator, http.MethodGet, "/api/invoices/provider", http.StatusForbidden},
		{model.RoleSuperCreator, http.MethodGet, "/api/invoices/provider", http.StatusNoContent},
		{model.RoleSuperCreator, http.MethodGet, "/api/invoices/provider/statistics", http.StatusNoContent},
		{model.RoleInvoiceCreator, http.MethodGet, "/api/invoices/provider/statistics", http.StatusForbidden},
		{model.RoleSuperCreator, http.MethodPut, "/api/invoices/" + uuid.NewString(), http.StatusNoContent},
		{model.RoleAdmin, http.MethodGet, "/api/admin/providers", http.StatusNoContent},
		{model.RoleAdmin, http.MethodDelete, "/api/admin/users/x/roles/Customer", http.StatusNoContent},
		{model.RoleAdmin, http.MethodGet, "/api/invoices/my-invoices", http.StatusForbidden},
		{model.RoleAuditor, http.MethodGet, "/api/audit/logs", http.StatusNoContent},
		{model.RoleAuditor, http.MethodGet, "/api/admin/providers", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(string(tc.role)+" "+tc.method+" "+tc.path, func(t *testing.T) {
			signed, _, err := issuer.Issue(uuid.New(), tc.role)
			require.NoError(t, err)
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("Authorization", "Bearer "+signed)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestNewRouteEnforcer_Idempotent(t *testing.T) {
	db := dbtest.New(t)
	_, err := NewRouteEnforcer(db)
	require.NoError(t, err)
	enforcer, err := NewRouteEnforcer(db)
	require.NoError(t, err)

	policies, err := enforcer.GetPolicy()
	require.NoError(t, err)
	assert.Len(t, policies, len(routePolicies))
}

func TestDecimalBinding(t *testing.T) {
	require.NoError(t, RegisterValidators())

	type body struct {
		Price string `json:"price" binding:"required,decimal"`
	}
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var b body
		if err := c.ShouldBindJSON(&b); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	for payload, want := range map[string]int{
		`{"price":"12.5000"}`: http.StatusOK,
		`{"price":"-3"}`:      http.StatusOK,
		`{"price":"twelve"}`:  http.StatusBadRequest,
		`{}`:                  http.StatusBadRequest,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload)))
		assert.Equal(t, want, w.Code, payload)
	}
}
