package handler

import (
	"net/http"

	"electricity-billing/internal/middleware"
	"electricity-billing/internal/service"
	"electricity-billing/internal/token"
	"electricity-billing/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService   service.AuthService
	issuer        *token.Issuer
	cookieMaxAge  int
	secureCookies bool
}

func NewAuthHandler(authService service.AuthService, issuer *token.Issuer, cookieMaxAge int, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		issuer:        issuer,
		cookieMaxAge:  cookieMaxAge,
		secureCookies: secureCookies,
	}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/select-role", h.SelectRole)
		auth.POST("/logout", h.Logout)
		// any authenticated role may switch to another role it holds
		auth.POST("/switch-role", middleware.Authenticate(h.issuer), h.SwitchRole)
	}
}

// Login verifies credentials
// @Summary      Log in
// @Description  Issues a token when the user holds exactly one role; otherwise asks the client to pick one
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Credentials"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      401      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondSession(c, res)
}

// SelectRole completes a multi-role login
// @Summary      Select role
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SelectRoleRequest  true  "Credentials and role"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      401      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/auth/select-role [post]
func (h *AuthHandler) SelectRole(c *gin.Context) {
	var req service.SelectRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	res, err := h.authService.SelectRole(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondSession(c, res)
}

// SwitchRole re-issues the session token under another held role
// @Summary      Switch role
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SwitchRoleRequest  true  "Target role"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      403      {object}  response.Response
// @Router       /api/auth/switch-role [post]
func (h *AuthHandler) SwitchRole(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.SwitchRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	res, err := h.authService.SwitchRole(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondSession(c, res)
}

// Logout clears the session cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearTokenCookie(c, h.secureCookies)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Logged out"))
}

func (h *AuthHandler) respondSession(c *gin.Context, res service.LoginResponse) {
	if res.Token != "" {
		middleware.SetTokenCookie(c, res.Token, h.cookieMaxAge, h.secureCookies)
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
