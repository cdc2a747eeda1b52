package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"electricity-billing/internal/apperror"
	"electricity-billing/internal/model"
	"electricity-billing/internal/repository"
	"electricity-billing/internal/token"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SelectRoleRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type SwitchRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type LoginResponse struct {
	Token                 string   `json:"token,omitempty"`
	Type                  string   `json:"type"`
	UserID                string   `json:"user_id"`
	Name                  string   `json:"name"`
	Email                 string   `json:"email"`
	Roles                 []string `json:"roles"`
	SelectedRole          string   `json:"selected_role,omitempty"`
	ProviderID            *string  `json:"provider_id"`
	ProviderName          *string  `json:"provider_name"`
	ExpiresAt             *string  `json:"expires_at,omitempty"`
	RequiresRoleSelection bool     `json:"requires_role_selection"`
}

// --- Interface ---

// AuthService issues session tokens bound to one active role.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	SelectRole(ctx context.Context, req SelectRoleRequest) (LoginResponse, error)
	SwitchRole(ctx context.Context, principal model.Principal, req SwitchRoleRequest) (LoginResponse, error)
}

type authService struct {
	userRepo repository.UserRepository
	roles    RoleService
	issuer   *token.Issuer
	log      *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, roles RoleService, issuer *token.Issuer, log *zap.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		roles:    roles,
		issuer:   issuer,
		log:      log.Named("auth.service"),
	}
}

// --- Implementation ---

func (s *authService) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	user, roles, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return LoginResponse{}, err
	}
	if len(roles) == 1 {
		return s.issue(user, roles, roles.Slice()[0])
	}

	resp := newLoginResponse(user, roles)
	resp.RequiresRoleSelection = true
	return resp, nil
}

func (s *authService) SelectRole(ctx context.Context, req SelectRoleRequest) (LoginResponse, error) {
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return LoginResponse{}, apperror.BadRequest("unknown role %q", req.Role)
	}
	user, roles, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return LoginResponse{}, err
	}
	if !roles.Has(role) {
		return LoginResponse{}, apperror.Unauthorized("you don't hold the %s role", role)
	}
	return s.issue(user, roles, role)
}

func (s *authService) SwitchRole(ctx context.Context, principal model.Principal, req SwitchRoleRequest) (LoginResponse, error) {
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return LoginResponse{}, apperror.BadRequest("unknown role %q", req.Role)
	}
	user, err := s.userRepo.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LoginResponse{}, apperror.Unauthenticated("user no longer exists")
		}
		return LoginResponse{}, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return LoginResponse{}, apperror.Unauthenticated("account is disabled")
	}
	roles, err := s.roles.RolesOf(ctx, user.ID)
	if err != nil {
		return LoginResponse{}, err
	}
	if !roles.Has(role) {
		return LoginResponse{}, apperror.Unauthorized("you don't hold the %s role", role)
	}
	s.log.Info("role switched",
		zap.String("user_id", user.ID.String()),
		zap.String("from", string(principal.Role)),
		zap.String("to", string(role)))
	return s.issue(user, roles, role)
}

// --- Helpers ---

func (s *authService) authenticate(ctx context.Context, email, password string) (*model.User, model.RoleSet, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperror.Unauthenticated("invalid email or password")
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return nil, nil, apperror.Unauthenticated("invalid email or password")
	}
	if !user.IsActive {
		return nil, nil, apperror.Unauthenticated("account is disabled")
	}

	roles, err := s.roles.RolesOf(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(roles) == 0 {
		return nil, nil, apperror.BadRequest("user has no roles assigned")
	}
	return user, roles, nil
}

func (s *authService) issue(user *model.User, roles model.RoleSet, role model.Role) (LoginResponse, error) {
	signed, expiresAt, err := s.issuer.Issue(user.ID, role)
	if err != nil {
		return LoginResponse{}, err
	}
	resp := newLoginResponse(user, roles)
	resp.Token = signed
	resp.SelectedRole = string(role)
	exp := expiresAt.UTC().Format(time.RFC3339)
	resp.ExpiresAt = &exp
	return resp, nil
}

func newLoginResponse(user *model.User, roles model.RoleSet) LoginResponse {
	resp := LoginResponse{
		Type:   "Bearer",
		UserID: user.ID.String(),
		Name:   user.Name,
		Email:  user.Email,
		Roles:  roleNames(roles.Slice()),
	}
	if user.ProviderID != nil {
		id := user.ProviderID.String()
		resp.ProviderID = &id
	}
	if user.Provider != nil {
		name := user.Provider.Name
		resp.ProviderName = &name
	}
	return resp
}
