package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"devbot/internal/model"
)

// UserStore is the part of the user repository the admin service needs.
type UserStore interface {
	Register(ctx context.Context, p model.Profile) (*model.User, bool, error)
}

// GrantStore is the part of the admin repository the admin service needs.
type GrantStore interface {
	Grant(ctx context.Context, userID, addedBy model.InternalUserID) (*model.Admin, error)
}

// AdminService seeds admin grants configured outside the bot.
type AdminService struct {
	users  UserStore
	grants GrantStore
	logger *zap.Logger
}

func NewAdminService(users UserStore, grants GrantStore, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{users: users, grants: grants, logger: logger.Named("admins")}
}

// Bootstrap makes every id an admin. Users who never wrote to the bot get a
// placeholder row that registration leaves untouched later. Grants are
// recorded as added by the system.
func (s *AdminService) Bootstrap(ctx context.Context, ids []model.ExternalUserID) error {
	for _, id := range ids {
		user, created, err := s.users.Register(ctx, model.Profile{ID: id})
		if err != nil {
			return fmt.Errorf("bootstrap admin %d: %w", id, err)
		}
		if _, err := s.grants.Grant(ctx, user.ID, model.SystemGrantor); err != nil {
			return fmt.Errorf("bootstrap admin %d: %w", id, err)
		}
		s.logger.Info("bootstrap admin ready",
			zap.Int64("user_id", int64(id)),
			zap.Bool("placeholder_created", created))
	}
	return nil
}
