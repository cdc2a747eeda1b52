package repository

import (
	"context"

	"electricity-billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleRepository stores user-role grants.
type RoleRepository interface {
	Create(ctx context.Context, grant *model.UserRole) error
	Delete(ctx context.Context, userID uuid.UUID, role model.Role) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.UserRole, error)
	Exists(ctx context.Context, userID uuid.UUID, role model.Role) (bool, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, grant *model.UserRole) error {
	return GetDB(ctx, r.db).Create(grant).Error
}

func (r *roleRepository) Delete(ctx context.Context, userID uuid.UUID, role model.Role) (int64, error) {
	res := GetDB(ctx, r.db).Where("user_id = ? AND role = ?", userID, role).Delete(&model.UserRole{})
	return res.RowsAffected, res.Error
}

func (r *roleRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.UserRole, error) {
	var grants []model.UserRole
	if err := GetDB(ctx, r.db).Where("user_id = ?", userID).Order("assigned_at asc").Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *roleRepository) Exists(ctx context.Context, userID uuid.UUID, role model.Role) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.UserRole{}).Where("user_id = ? AND role = ?", userID, role).Count(&count).Error
	return count > 0, err
}
