package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"devbot/internal/access"
	"devbot/internal/event"
	"devbot/internal/repository"
	"devbot/internal/service"
	"devbot/internal/state"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewAPI authorizes token against Telegram.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

// Bot aggregates Telegram API with the stores and services.
type Bot struct {
	api          API
	userRepo     *repository.UserRepository
	adminRepo    *repository.AdminRepository
	states       state.Store
	reportSvc    *service.ReportService
	gate         *access.Gate
	router       *Router
	logger       *zap.Logger
	workers      int
	registerOnce sync.Once
}

func New(api API, userRepo *repository.UserRepository, adminRepo *repository.AdminRepository, states state.Store, reportSvc *service.ReportService, logger *zap.Logger, workers int) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	b := &Bot{
		api:       api,
		userRepo:  userRepo,
		adminRepo: adminRepo,
		states:    states,
		reportSvc: reportSvc,
		router:    NewRouter(states),
		logger:    logger.Named("bot"),
		workers:   workers,
	}
	b.gate = access.NewGate(userRepo, adminRepo, b, logger)
	return b
}

// Router returns the bot's command router.
func (b *Bot) Router() *Router {
	return b.router
}

// Start begins polling updates until ctx is cancelled. Up to workers updates
// are handled at once; Start returns after in-flight handlers finish.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates", zap.Int("workers", b.workers))

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	// Handlers keep running on shutdown so a half-processed update still gets its reply.
	handlerCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(b.workers)
	for update := range updates {
		update := update
		g.Go(func() error {
			b.HandleUpdate(handlerCtx, update)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// HandleUpdate routes one update. Errors are logged, never returned.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ev, ok := event.FromUpdate(update)
	if !ok {
		return
	}

	log := b.logger.With(
		zap.String("event_id", ev.ID),
		zap.Stringer("kind", ev.Kind),
		zap.Int64("user_id", int64(ev.Sender().ID)),
	)
	log.Debug("update received", zap.String("command", ev.Command()), zap.String("text", ev.Text()))

	matched, err := b.router.Dispatch(ctx, ev)
	switch {
	case err != nil:
		updatesTotal.WithLabelValues(ev.Kind.String(), "failed").Inc()
		log.Error("handle update", zap.Error(err))
	case !matched:
		updatesTotal.WithLabelValues(ev.Kind.String(), "unmatched").Inc()
		log.Debug("no route for update")
		if ev.Kind == event.KindCallback {
			if err := b.ack(ev, ""); err != nil {
				log.Warn("callback ack", zap.Error(err))
			}
		}
	default:
		updatesTotal.WithLabelValues(ev.Kind.String(), "handled").Inc()
	}
}

// Reply sends an HTML message to the chat the event came from.
func (b *Bot) Reply(_ context.Context, ev *event.Event, text string) error {
	chatID := ev.ChatID()
	if chatID == 0 {
		return fmt.Errorf("event %s has no chat to reply to", ev.ID)
	}
	return b.sendText(chatID, text)
}

// Alert answers a callback query with an alert popup. Message events get a plain reply.
func (b *Bot) Alert(ctx context.Context, ev *event.Event, text string) error {
	if ev.Kind != event.KindCallback {
		return b.Reply(ctx, ev, text)
	}
	_, err := b.api.Request(tgbotapi.NewCallbackWithAlert(ev.Callback.ID, text))
	return err
}

func (b *Bot) ack(ev *event.Event, text string) error {
	_, err := b.api.Request(tgbotapi.NewCallback(ev.Callback.ID, text))
	return err
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

// sendChunks sends parts in order; the last one carries markup when it is not nil.
func (b *Bot) sendChunks(chatID int64, parts []string, markup interface{}) error {
	for i, part := range parts {
		var err error
		if i == len(parts)-1 && markup != nil {
			err = b.sendWithReplyMarkup(chatID, part, markup)
		} else {
			err = b.sendText(chatID, part)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SetCommands publishes the command list shown in Telegram clients.
func (b *Bot) SetCommands() error {
	cmds := make([]tgbotapi.BotCommand, 0, len(commandList))
	for _, c := range commandList {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c.name, Description: c.description})
	}
	_, err := b.api.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}

// SendSystemReports sends the host report to every admin.
func (b *Bot) SendSystemReports(ctx context.Context) error {
	admins, err := b.adminRepo.ListAdmins(ctx)
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		return nil
	}
	parts := b.reportSvc.ScheduledReport(ctx, time.Now())
	for _, admin := range admins {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.sendChunks(int64(admin.UserID), parts, nil); err != nil {
			b.logger.Warn("send system report", zap.Int64("user_id", int64(admin.UserID)), zap.Error(err))
		}
	}
	return nil
}
