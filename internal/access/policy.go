package access

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"devbot/internal/event"
	"devbot/internal/model"
	"devbot/internal/repository"
)

// Handler processes one inbound event.
type Handler func(ctx context.Context, ev *event.Event) error

// Policy intercepts an event before the handler runs. It either calls next or
// returns an error explaining why it did not.
type Policy interface {
	Intercept(ctx context.Context, ev *event.Event, next Handler) error
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, ev *event.Event, next Handler) error

func (f PolicyFunc) Intercept(ctx context.Context, ev *event.Event, next Handler) error {
	return f(ctx, ev, next)
}

// Chain wraps h with policies. The first policy is the outermost.
func Chain(h Handler, policies ...Policy) Handler {
	for i := len(policies) - 1; i >= 0; i-- {
		p, next := policies[i], h
		h = func(ctx context.Context, ev *event.Event) error {
			return p.Intercept(ctx, ev, next)
		}
	}
	return h
}

// UserRegistry is the part of the user store the gate needs.
type UserRegistry interface {
	FindInternalID(ctx context.Context, externalID model.ExternalUserID) (model.InternalUserID, error)
	Register(ctx context.Context, p model.Profile) (*model.User, bool, error)
}

// AdminRegistry is the part of the admin store the gate needs.
type AdminRegistry interface {
	FindGrantID(ctx context.Context, userID model.InternalUserID) (model.GrantID, error)
}

type userIDKey struct{}

// UserIDFromContext returns the internal id stored by Registration.
func UserIDFromContext(ctx context.Context) (model.InternalUserID, bool) {
	id, ok := ctx.Value(userIDKey{}).(model.InternalUserID)
	return id, ok
}

func withUserID(ctx context.Context, id model.InternalUserID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// Registration resolves the sender to a users row, creating it on first
// contact, and stores the internal id in the context.
type Registration struct {
	Users  UserRegistry
	Logger *zap.Logger
}

func (r Registration) Intercept(ctx context.Context, ev *event.Event, next Handler) error {
	id, err := r.resolve(ctx, ev.Sender())
	if err != nil {
		return err
	}
	return next(withUserID(ctx, id), ev)
}

func (r Registration) resolve(ctx context.Context, p model.Profile) (model.InternalUserID, error) {
	id, err := r.Users.FindInternalID(ctx, p.ID)
	switch {
	case err == nil:
		return id, nil
	case !errors.Is(err, repository.ErrNotFound):
		return 0, &StoreFault{Op: "resolve user", Err: err}
	}

	user, created, err := r.Users.Register(ctx, p)
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent first contact inserted the row between our lookup and insert.
		id, err = r.Users.FindInternalID(ctx, p.ID)
		if err != nil {
			return 0, &StoreFault{Op: "resolve user after duplicate", Err: err}
		}
		return id, nil
	}
	if err != nil {
		return 0, &StoreFault{Op: "register user", Err: err}
	}
	if created {
		usersRegistered.Inc()
		r.Logger.Info("user registered",
			zap.Int64("user_id", int64(p.ID)),
			zap.Int64("internal_id", int64(user.ID)),
			zap.String("username", p.Username))
	}
	return user.ID, nil
}

// AdminOnly lets the event through only when the registered sender holds an admin grant.
// It must run after Registration.
type AdminOnly struct {
	Admins AdminRegistry
}

func (a AdminOnly) Intercept(ctx context.Context, ev *event.Event, next Handler) error {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return ErrNotRegistered
	}
	_, err := a.Admins.FindGrantID(ctx, id)
	switch {
	case err == nil:
		return next(ctx, ev)
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotAuthorized
	default:
		return &StoreFault{Op: "check admin grant", Err: err}
	}
}
