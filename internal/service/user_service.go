package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"electricity-billing/internal/apperror"
	"electricity-billing/internal/clock"
	"electricity-billing/internal/model"
	"electricity-billing/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateUserRequest struct {
	Name        string   `json:"name" binding:"required"`
	Email       string   `json:"email" binding:"required,email"`
	Password    string   `json:"password" binding:"required,min=6"`
	PhoneNumber string   `json:"phone_number"`
	Address     string   `json:"address"`
	ProviderID  *string  `json:"provider_id" binding:"omitempty,uuid"`
	Roles       []string `json:"roles"`
}

type UserResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	PhoneNumber  string   `json:"phone_number"`
	Address      string   `json:"address"`
	ProviderID   *string  `json:"provider_id"`
	ProviderName *string  `json:"provider_name"`
	Roles        []string `json:"roles"`
	IsActive     bool     `json:"is_active"`
	CreatedAt    string   `json:"created_at"`
}

type UpdateUserRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1"`
	Email       *string `json:"email" binding:"omitempty,email"`
	PhoneNumber *string `json:"phone_number"`
	Address     *string `json:"address"`
	IsActive    *bool   `json:"is_active"`
}

// --- Interface ---

// UserService manages user accounts. Role grants after creation go through
// RoleService.
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (UserResponse, error)
	GetUser(ctx context.Context, id string) (UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (UserResponse, error)
	DeleteUser(ctx context.Context, id string) error

	// EnsureAdmin creates the platform admin account, or grants the Admin
	// role to an existing account with that email.
	EnsureAdmin(ctx context.Context, email, password string) error
}

type userService struct {
	providerRepo repository.ProviderRepository
	userRepo     repository.UserRepository
	roleRepo     repository.RoleRepository
	roles        RoleService
	txManager    repository.TransactionManager
	clock        clock.Clock
	log          *zap.Logger
}

func NewUserService(
	providerRepo repository.ProviderRepository,
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	roles RoleService,
	txManager repository.TransactionManager,
	clk clock.Clock,
	log *zap.Logger,
) UserService {
	return &userService{
		providerRepo: providerRepo,
		userRepo:     userRepo,
		roleRepo:     roleRepo,
		roles:        roles,
		txManager:    txManager,
		clock:        clk,
		log:          log.Named("user.service"),
	}
}

// --- Implementation ---

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (UserResponse, error) {
	roles, err := parseRoles(req.Roles)
	if err != nil {
		return UserResponse{}, err
	}

	var providerID *uuid.UUID
	if req.ProviderID != nil && *req.ProviderID != "" {
		id, err := parseID(*req.ProviderID, "provider")
		if err != nil {
			return UserResponse{}, err
		}
		providerID = &id
	}
	if providerID == nil {
		for _, r := range roles {
			if r != model.RoleAdmin {
				return UserResponse{}, apperror.BadRequest("role %s requires a provider", r)
			}
		}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user := &model.User{
		ProviderID:  providerID,
		Name:        req.Name,
		Email:       email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		IsActive:    true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.userRepo.FindByEmail(txCtx, email); err == nil {
			return apperror.Conflict("email already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check email: %w", err)
		}

		if providerID != nil {
			provider, err := s.providerRepo.FindByID(txCtx, *providerID)
			if err != nil {
				return apperror.From(err, "provider")
			}
			user.Provider = provider
		}

		if err := s.userRepo.Create(txCtx, user); err != nil {
			return apperror.From(err, "user")
		}

		now := s.clock.Now()
		for _, r := range roles {
			grant := &model.UserRole{UserID: user.ID, Role: r, AssignedAt: now}
			if err := s.roleRepo.Create(txCtx, grant); err != nil {
				return apperror.From(err, "role")
			}
			user.Roles = append(user.Roles, *grant)
		}
		return nil
	})
	if err != nil {
		return UserResponse{}, err
	}

	s.log.Info("user created",
		zap.String("user_id", user.ID.String()),
		zap.Strings("roles", roleNames(roles)))
	return toUserResponse(user, model.NewRoleSet(roles...)), nil
}

func (s *userService) GetUser(ctx context.Context, id string) (UserResponse, error) {
	userID, err := parseID(id, "user")
	if err != nil {
		return UserResponse{}, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return UserResponse{}, apperror.From(err, "user")
	}
	roles, err := s.roles.RolesOf(ctx, user.ID)
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(user, roles), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	users, total, err := s.userRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}
	res := make([]UserResponse, 0, len(users))
	for i := range users {
		res = append(res, toUserResponse(&users[i], rolesFromGrants(users[i].Roles)))
	}
	return res, total, nil
}

// UpdateUser changes profile fields and the active flag. Deactivated users
// can no longer log in or act with tokens issued earlier.
func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (UserResponse, error) {
	userID, err := parseID(id, "user")
	if err != nil {
		return UserResponse{}, err
	}

	var user *model.User
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.userRepo.FindByIDForUpdate(txCtx, userID)
		if err != nil {
			return apperror.From(err, "user")
		}
		user = locked

		if req.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*req.Email))
			if email != user.Email {
				if _, err := s.userRepo.FindByEmail(txCtx, email); err == nil {
					return apperror.Conflict("email already exists")
				} else if !errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("failed to check email: %w", err)
				}
				user.Email = email
			}
		}
		if req.Name != nil {
			user.Name = *req.Name
		}
		if req.PhoneNumber != nil {
			user.PhoneNumber = *req.PhoneNumber
		}
		if req.Address != nil {
			user.Address = *req.Address
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}

		if err := s.userRepo.Update(txCtx, user); err != nil {
			return apperror.From(err, "user")
		}
		return nil
	})
	if err != nil {
		return UserResponse{}, err
	}

	s.log.Info("user updated", zap.String("user_id", user.ID.String()), zap.Bool("active", user.IsActive))
	return s.GetUser(ctx, user.ID.String())
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	userID, err := parseID(id, "user")
	if err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return apperror.From(err, "user")
	}
	s.log.Info("user deleted", zap.String("user_id", userID.String()))
	return nil
}

func (s *userService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_, err := s.CreateUser(ctx, CreateUserRequest{
			Name:     "Administrator",
			Email:    email,
			Password: password,
			Roles:    []string{string(model.RoleAdmin)},
		})
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to load admin: %w", err)
	}

	held, err := s.roles.HasRole(ctx, existing.ID, model.RoleAdmin)
	if err != nil || held {
		return err
	}
	if _, err := s.roles.AssignRole(ctx, existing.ID, model.RoleAdmin); err != nil {
		return err
	}
	s.log.Info("admin role granted to existing account", zap.String("user_id", existing.ID.String()))
	return nil
}

// --- Helpers ---

// parseRoles validates the requested roles, dropping duplicates. An empty
// list means Customer.
func parseRoles(raw []string) ([]model.Role, error) {
	if len(raw) == 0 {
		return []model.Role{model.RoleCustomer}, nil
	}
	seen := make(model.RoleSet, len(raw))
	roles := make([]model.Role, 0, len(raw))
	for _, r := range raw {
		role, ok := model.ParseRole(r)
		if !ok {
			return nil, apperror.BadRequest("unknown role %q", r)
		}
		if seen.Has(role) {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles, nil
}

func roleNames(roles []model.Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return names
}

// --- Mapping ---

func toUserResponse(u *model.User, roles model.RoleSet) UserResponse {
	resp := UserResponse{
		ID:          u.ID.String(),
		Name:        u.Name,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Address:     u.Address,
		Roles:       roleNames(roles.Slice()),
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.ProviderID != nil {
		id := u.ProviderID.String()
		resp.ProviderID = &id
	}
	if u.Provider != nil {
		name := u.Provider.Name
		resp.ProviderName = &name
	}
	return resp
}
