package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"devbot/internal/model"
)

// UserRepository owns the users table.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindInternalID resolves a Telegram id to the users.id primary key.
func (r *UserRepository) FindInternalID(ctx context.Context, externalID model.ExternalUserID) (model.InternalUserID, error) {
	var user model.User
	err := r.db.WithContext(ctx).Select("id").Where("user_id = ?", externalID).Take(&user).Error
	if err != nil {
		return 0, translate(err)
	}
	return user.ID, nil
}

func (r *UserRepository) FindByInternalID(ctx context.Context, id model.InternalUserID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByExternalID(ctx context.Context, externalID model.ExternalUserID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("user_id = ?", externalID).Take(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// Insert creates a users row. It does not check for an existing row first;
// a second insert for the same Telegram id fails with ErrDuplicate.
func (r *UserRepository) Insert(ctx context.Context, p model.Profile) error {
	user := model.NewUser(p)
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		return fmt.Errorf("insert user: %w", translate(err))
	}
	return nil
}

// Register inserts the user unless a row with the same Telegram id exists and
// returns the stored row. created reports whether this call inserted it.
func (r *UserRepository) Register(ctx context.Context, p model.Profile) (user *model.User, created bool, err error) {
	row := model.NewUser(p)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return nil, false, fmt.Errorf("register user: %w", translate(res.Error))
	}
	if res.RowsAffected == 1 && row.ID != 0 {
		return &row, true, nil
	}

	existing, err := r.FindByExternalID(ctx, p.ID)
	if err != nil {
		return nil, false, fmt.Errorf("load registered user: %w", err)
	}
	return existing, false, nil
}

// Count returns the number of known users.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
