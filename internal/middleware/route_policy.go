package middleware

import (
	_ "embed"
	"fmt"
	"net/http"

	"electricity-billing/internal/model"
	"electricity-billing/pkg/response"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed route_model.conf
var routeModelText string

// routePolicies lists which active role may call which route. Objects are gin
// route patterns, actions are anchored method regexps.
var routePolicies = [][]string{
	{string(model.RoleAdmin), "/api/admin/*", "^(GET|POST|PUT|DELETE)$"},

	{string(model.RoleCustomer), "/api/invoices/my-invoices", "^GET$"},
	{string(model.RoleCustomer), "/api/invoices/:id", "^GET$"},

	{string(model.RoleInvoiceCreator), "/api/invoices/my-created", "^GET$"},
	{string(model.RoleInvoiceCreator), "/api/invoices", "^POST$"},
	{string(model.RoleInvoiceCreator), "/api/invoices/:id", "^(GET|PUT)$"},

	{string(model.RoleSuperCreator), "/api/invoices/provider", "^GET$"},
	{string(model.RoleSuperCreator), "/api/invoices/provider/statistics", "^GET$"},
	{string(model.RoleSuperCreator), "/api/invoices", "^POST$"},
	{string(model.RoleSuperCreator), "/api/invoices/:id", "^(GET|PUT)$"},

	{string(model.RoleAuditor), "/api/audit/*", "^GET$"},
}

// NewRouteEnforcer builds the casbin enforcer over the casbin_rule table and
// makes sure the built-in route policies are present.
func NewRouteEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("casbin adapter: %w", err)
	}
	m, err := casbinmodel.NewModelFromString(routeModelText)
	if err != nil {
		return nil, fmt.Errorf("casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	for _, p := range routePolicies {
		if _, err := enforcer.AddPolicy(p); err != nil {
			return nil, fmt.Errorf("seed route policy %v: %w", p, err)
		}
	}
	return enforcer, nil
}

// RequireRoutePermission checks the principal's active role against the
// matched route. It must run after Authenticate.
func RequireRoutePermission(enforcer *casbin.SyncedEnforcer, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}

		route := c.FullPath()
		allowed, err := enforcer.Enforce(string(principal.Role), route, c.Request.Method)
		if err != nil {
			log.Error("route permission check failed", zap.String("route", route), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}
		c.Next()
	}
}
