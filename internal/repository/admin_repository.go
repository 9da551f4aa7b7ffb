package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"devbot/internal/model"
)

// AdminRepository owns the admins table. Grants are keyed by users.id.
type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// FindGrantID returns the id of any grant held by the user. Only existence matters to callers.
func (r *AdminRepository) FindGrantID(ctx context.Context, userID model.InternalUserID) (model.GrantID, error) {
	var grant model.Admin
	err := r.db.WithContext(ctx).Select("id").Where("users_id = ?", userID).Take(&grant).Error
	if err != nil {
		return 0, translate(err)
	}
	return grant.ID, nil
}

func (r *AdminRepository) FindGrant(ctx context.Context, userID model.InternalUserID) (*model.Admin, error) {
	var grant model.Admin
	if err := r.db.WithContext(ctx).Where("users_id = ?", userID).Take(&grant).Error; err != nil {
		return nil, translate(err)
	}
	return &grant, nil
}

// FindGrantByExternalID looks a grant up by Telegram id, joining through users.
func (r *AdminRepository) FindGrantByExternalID(ctx context.Context, externalID model.ExternalUserID) (*model.Admin, error) {
	var grant model.Admin
	err := r.db.WithContext(ctx).
		Joins("JOIN users ON users.id = admins.users_id").
		Where("users.user_id = ?", externalID).
		Take(&grant).Error
	if err != nil {
		return nil, translate(err)
	}
	return &grant, nil
}

// Grant gives the user admin rights. An existing grant is returned unchanged.
func (r *AdminRepository) Grant(ctx context.Context, userID, addedBy model.InternalUserID) (*model.Admin, error) {
	existing, err := r.FindGrant(ctx, userID)
	switch {
	case err == nil:
		return existing, nil
	case errors.Is(err, ErrNotFound):
		grant := model.Admin{UsersID: userID, AddedBy: addedBy}
		if err := r.db.WithContext(ctx).Create(&grant).Error; err != nil {
			return nil, fmt.Errorf("create grant: %w", translate(err))
		}
		return &grant, nil
	default:
		return nil, fmt.Errorf("find grant: %w", err)
	}
}

// ListAdmins returns every user holding at least one grant.
func (r *AdminRepository) ListAdmins(ctx context.Context) ([]model.User, error) {
	var users []model.User
	db := r.db.WithContext(ctx)
	err := db.
		Where("id IN (?)", db.Model(&model.Admin{}).Select("users_id")).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return users, nil
}
