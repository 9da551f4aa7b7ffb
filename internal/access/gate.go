// Package access gates command handlers behind user registration and admin
// grants. Every gated event ends in exactly one of: the handler runs, a deny
// reply is sent, or an error reply is sent.
package access

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"devbot/internal/event"
)

// Level is the privilege a handler requires.
type Level int

const (
	LevelUser Level = iota
	LevelAdmin
)

func (l Level) String() string {
	if l == LevelAdmin {
		return "admin"
	}
	return "user"
}

// Replies sent instead of running the handler.
const (
	DenyMessage  = "🚫 <b>У вас нет доступа</b>\nВы не являетесь администратором."
	DenyCallback = "🚫 У вас нет доступа\nВы не являетесь администратором"

	AdminErrorMessage  = "🚫 <b>Произошла ошибка при проверке прав доступа</b>."
	AdminErrorCallback = "🚫 Произошла ошибка при проверке прав доступа."
	UserErrorMessage   = "🚫 <b>Произошла ошибка при проверке</b>."
	UserErrorCallback  = "🚫 Произошла ошибка при проверке."
)

// Replier delivers gate replies. Reply answers in the event's chat, Alert
// answers a callback query with an alert popup.
type Replier interface {
	Reply(ctx context.Context, ev *event.Event, text string) error
	Alert(ctx context.Context, ev *event.Event, text string) error
}

// Gate builds gated handlers.
type Gate struct {
	users   UserRegistry
	admins  AdminRegistry
	replier Replier
	logger  *zap.Logger
}

func NewGate(users UserRegistry, admins AdminRegistry, replier Replier, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{users: users, admins: admins, replier: replier, logger: logger.Named("gate")}
}

// RequireUser registers unknown senders and then runs h.
func (g *Gate) RequireUser(h Handler) Handler {
	return g.wrap(LevelUser, h)
}

// RequireAdmin registers unknown senders and runs h only for admins.
func (g *Gate) RequireAdmin(h Handler) Handler {
	return g.wrap(LevelAdmin, h)
}

// Policies returns the chain enforced for level, outermost first.
func (g *Gate) Policies(level Level) []Policy {
	policies := []Policy{Registration{Users: g.users, Logger: g.logger}}
	if level == LevelAdmin {
		policies = append(policies, AdminOnly{Admins: g.admins})
	}
	return policies
}

type invocationKey struct{}

type invocation struct{ invoked bool }

func (g *Gate) wrap(level Level, h Handler) Handler {
	terminal := func(ctx context.Context, ev *event.Event) error {
		if inv, ok := ctx.Value(invocationKey{}).(*invocation); ok {
			inv.invoked = true
		}
		return h(ctx, ev)
	}
	chained := Chain(terminal, g.Policies(level)...)

	return func(ctx context.Context, ev *event.Event) error {
		inv := &invocation{}
		err := chained(context.WithValue(ctx, invocationKey{}, inv), ev)
		if inv.invoked {
			gateOutcomes.WithLabelValues(level.String(), "invoked").Inc()
			return err
		}
		return g.reject(ctx, level, ev, err)
	}
}

// reject turns a policy failure into the matching reply. Handler errors never reach here.
func (g *Gate) reject(ctx context.Context, level Level, ev *event.Event, cause error) error {
	sender := ev.Sender()
	if cause == nil || errors.Is(cause, ErrNotAuthorized) {
		gateOutcomes.WithLabelValues(level.String(), "denied").Inc()
		g.logger.Info("access denied",
			zap.String("event_id", ev.ID),
			zap.Int64("user_id", int64(sender.ID)),
			zap.Stringer("level", level))
		if ev.Kind == event.KindCallback {
			return g.replier.Alert(ctx, ev, DenyCallback)
		}
		return g.replier.Reply(ctx, ev, DenyMessage)
	}

	gateOutcomes.WithLabelValues(level.String(), "error").Inc()
	g.logger.Error("access check failed",
		zap.String("event_id", ev.ID),
		zap.Int64("user_id", int64(sender.ID)),
		zap.Stringer("level", level),
		zap.Stringer("kind", ev.Kind),
		zap.Error(cause))

	message, alert := UserErrorMessage, UserErrorCallback
	if level == LevelAdmin {
		message, alert = AdminErrorMessage, AdminErrorCallback
	}
	if ev.Kind == event.KindCallback {
		return g.replier.Alert(ctx, ev, alert)
	}
	return g.replier.Reply(ctx, ev, message)
}
