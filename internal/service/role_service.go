package service

import (
	"context"
	"errors"
	"fmt"
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

type AssignRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type UserRoleResponse struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	AssignedAt string `json:"assigned_at"`
}

// --- Interface ---

// RoleService is the role registry. Every user keeps at least one role.
type RoleService interface {
	AssignRole(ctx context.Context, userID uuid.UUID, role model.Role) (*model.UserRole, error)
	RemoveRole(ctx context.Context, userID uuid.UUID, role model.Role) error
	RolesOf(ctx context.Context, userID uuid.UUID) (model.RoleSet, error)
	HasRole(ctx context.Context, userID uuid.UUID, role model.Role) (bool, error)
	ListGrants(ctx context.Context, userID uuid.UUID) ([]UserRoleResponse, error)
}

type roleService struct {
	userRepo  repository.UserRepository
	roleRepo  repository.RoleRepository
	txManager repository.TransactionManager
	clock     clock.Clock
	log       *zap.Logger
}

func NewRoleService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	txManager repository.TransactionManager,
	clk clock.Clock,
	log *zap.Logger,
) RoleService {
	return &roleService{
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		txManager: txManager,
		clock:     clk,
		log:       log.Named("role.service"),
	}
}

// --- Implementation ---

func (s *roleService) AssignRole(ctx context.Context, userID uuid.UUID, role model.Role) (*model.UserRole, error) {
	if !role.Valid() {
		return nil, apperror.BadRequest("unknown role %q", role)
	}

	var grant *model.UserRole
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.userRepo.FindByIDForUpdate(txCtx, userID); err != nil {
			return apperror.From(err, "user")
		}

		exists, err := s.roleRepo.Exists(txCtx, userID, role)
		if err != nil {
			return fmt.Errorf("failed to check role: %w", err)
		}
		if exists {
			return apperror.Conflict("user already has this role")
		}

		grant = &model.UserRole{UserID: userID, Role: role, AssignedAt: s.clock.Now()}
		if err := s.roleRepo.Create(txCtx, grant); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict("user already has this role")
			}
			return fmt.Errorf("failed to assign role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("role assigned", zap.String("user_id", userID.String()), zap.String("role", string(role)))
	return grant, nil
}

// RemoveRole locks the user row so two concurrent removals cannot both pass
// the last-role check.
func (s *roleService) RemoveRole(ctx context.Context, userID uuid.UUID, role model.Role) error {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.userRepo.FindByIDForUpdate(txCtx, userID); err != nil {
			return apperror.From(err, "user")
		}

		grants, err := s.roleRepo.ListByUser(txCtx, userID)
		if err != nil {
			return fmt.Errorf("failed to fetch roles: %w", err)
		}
		roles := rolesFromGrants(grants)
		if !roles.Has(role) {
			return apperror.NotFound("user doesn't have this role")
		}
		if len(roles) <= 1 {
			return apperror.Conflict("cannot remove the last role, a user must have at least one role")
		}

		if _, err := s.roleRepo.Delete(txCtx, userID, role); err != nil {
			return fmt.Errorf("failed to remove role: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("role removed", zap.String("user_id", userID.String()), zap.String("role", string(role)))
	return nil
}

func (s *roleService) RolesOf(ctx context.Context, userID uuid.UUID) (model.RoleSet, error) {
	grants, err := s.roleRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	return rolesFromGrants(grants), nil
}

func (s *roleService) HasRole(ctx context.Context, userID uuid.UUID, role model.Role) (bool, error) {
	ok, err := s.roleRepo.Exists(ctx, userID, role)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return ok, nil
}

func (s *roleService) ListGrants(ctx context.Context, userID uuid.UUID) ([]UserRoleResponse, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, apperror.From(err, "user")
	}
	grants, err := s.roleRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	res := make([]UserRoleResponse, 0, len(grants))
	for _, g := range grants {
		res = append(res, UserRoleResponse{
			UserID:     g.UserID.String(),
			Role:       string(g.Role),
			AssignedAt: g.AssignedAt.UTC().Format(time.RFC3339),
		})
	}
	return res, nil
}

// --- Helpers ---

func rolesFromGrants(grants []model.UserRole) model.RoleSet {
	set := make(model.RoleSet, len(grants))
	for _, g := range grants {
		set[g.Role] = struct{}{}
	}
	return set
}
