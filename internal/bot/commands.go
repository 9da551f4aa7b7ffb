package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"devbot/internal/access"
	"devbot/internal/event"
	"devbot/internal/model"
	"devbot/internal/repository"
	"devbot/internal/sysinfo"
)

const (
	callbackDebug         = "debug"
	callbackSystemRefresh = "system:refresh"

	stateGrantAwaitID = "grant:await_id"
)

type command struct {
	name        string
	description string
}

var commandList = []command{
	{"start", "Приветствие"},
	{"help", "Список команд"},
	{"id", "Показать ваш Telegram ID"},
	{"cancel", "Отменить текущее действие"},
	{"message", "JSON сообщения (админ)"},
	{"message_id", "ID сообщения (админ)"},
	{"debug", "Отладочная информация (админ)"},
	{"system", "Состояние сервера (админ)"},
	{"grant", "Выдать права администратора (админ)"},
}

// RegisterAll binds every command to r. Only the first call has an effect.
func (b *Bot) RegisterAll(r *Router) {
	b.registerOnce.Do(func() {
		user, admin := b.gate.RequireUser, b.gate.RequireAdmin

		r.Handle(Route{Kind: event.KindMessage, Command: "start", State: AnyState, Handler: user(b.handleStart)})
		r.Handle(Route{Kind: event.KindMessage, Command: "help", State: AnyState, Handler: user(b.handleHelp)})
		r.Handle(Route{Kind: event.KindMessage, Command: "id", State: AnyState, Handler: user(b.handleID)})
		r.Handle(Route{Kind: event.KindMessage, Command: "cancel", State: AnyState, Handler: user(b.handleCancel)})

		r.Handle(Route{Kind: event.KindMessage, Command: "message", State: AnyState, Handler: admin(b.handleMessageDump)})
		r.Handle(Route{Kind: event.KindMessage, Command: "message_id", State: AnyState, Handler: admin(b.handleMessageID)})
		r.Handle(Route{Kind: event.KindMessage, Command: "debug", State: AnyState, Handler: admin(b.handleDebug)})
		r.Handle(Route{Kind: event.KindCallback, Command: callbackDebug, State: AnyState, Handler: admin(b.handleDebug)})
		r.Handle(Route{Kind: event.KindMessage, Command: "system", State: AnyState, Handler: admin(b.handleSystem)})
		r.Handle(Route{Kind: event.KindCallback, Command: callbackSystemRefresh, State: AnyState, Handler: admin(b.handleSystemRefresh)})
		r.Handle(Route{Kind: event.KindMessage, Command: "grant", State: AnyState, Handler: admin(b.handleGrant)})
		r.Handle(Route{Kind: event.KindMessage, Command: "", State: stateGrantAwaitID, Handler: admin(b.handleGrantInput)})

		b.logger.Info("commands registered", zap.Int("routes", len(r.Routes())))
	})
}

func (b *Bot) handleStart(ctx context.Context, ev *event.Event) error {
	name := strings.TrimSpace(ev.Sender().FullName())
	if name == "" {
		name = "друг"
	}
	text := fmt.Sprintf("👋 Привет, <b>%s</b>!\nЯ служебный бот: показываю идентификаторы, отладочную информацию и состояние сервера.\n\n%s",
		html.EscapeString(name), helpText)
	return b.Reply(ctx, ev, text)
}

const helpText = "Команды:\n" +
	"• /id — ваш Telegram ID\n" +
	"• /cancel — отменить текущее действие\n" +
	"• /help — этот список\n\n" +
	"Для администраторов:\n" +
	"• /message — JSON сообщения\n" +
	"• /message_id — ID сообщения (ответом на сообщение)\n" +
	"• /debug — отладочная информация\n" +
	"• /system — состояние сервера\n" +
	"• /grant &lt;id&gt; — выдать права администратора"

func (b *Bot) handleHelp(ctx context.Context, ev *event.Event) error {
	return b.Reply(ctx, ev, "ℹ️ <b>Подсказки</b>\n"+helpText)
}

func (b *Bot) handleID(ctx context.Context, ev *event.Event) error {
	return b.Reply(ctx, ev, strconv.FormatInt(int64(ev.Sender().ID), 10))
}

func (b *Bot) handleCancel(ctx context.Context, ev *event.Event) error {
	if err := b.states.Reset(ctx, stateKey(ev)); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return b.Reply(ctx, ev, "⏪ Текущее действие отменено.")
}

func (b *Bot) handleMessageDump(ctx context.Context, ev *event.Event) error {
	raw, err := json.MarshalIndent(ev.Message, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	// Leave room for the <pre> wrapper in every chunk.
	parts := sysinfo.Chunk(html.EscapeString(string(raw)), sysinfo.DefaultChunkSize-len("<pre></pre>"))
	for i := range parts {
		parts[i] = "<pre>" + parts[i] + "</pre>"
	}
	return b.sendChunks(ev.ChatID(), parts, nil)
}

func (b *Bot) handleMessageID(ctx context.Context, ev *event.Event) error {
	id := ev.Message.MessageID
	if ev.Message.ReplyToMessage != nil {
		id = ev.Message.ReplyToMessage.MessageID
	}
	return b.Reply(ctx, ev, strconv.Itoa(id))
}

func (b *Bot) handleDebug(ctx context.Context, ev *event.Event) error {
	if ev.Kind == event.KindCallback {
		if err := b.ack(ev, ""); err != nil {
			b.logger.Warn("callback ack", zap.String("event_id", ev.ID), zap.Error(err))
		}
	}

	key := stateKey(ev)
	current, err := b.states.State(ctx, key)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	data, err := b.states.Data(ctx, key)
	if err != nil {
		return fmt.Errorf("load state data: %w", err)
	}

	sender := ev.Sender()
	internalID, _ := access.UserIDFromContext(ctx)

	var sb strings.Builder
	sb.WriteString("🐞 <b>Отладка</b>\n")
	fmt.Fprintf(&sb, "Пользователь: %s\n", html.EscapeString(sender.FullName()))
	if sender.Username != "" {
		fmt.Fprintf(&sb, "Username: @%s\n", html.EscapeString(sender.Username))
	}
	fmt.Fprintf(&sb, "Telegram ID: <code>%d</code>\n", sender.ID)
	fmt.Fprintf(&sb, "Внутренний ID: <code>%d</code>\n", internalID)
	fmt.Fprintf(&sb, "Chat ID: <code>%d</code>\n", ev.ChatID())
	fmt.Fprintf(&sb, "Текст: <code>%s</code>\n", html.EscapeString(ev.Text()))
	if current == "" {
		sb.WriteString("Состояние: —\n")
	} else {
		fmt.Fprintf(&sb, "Состояние: <code>%s</code>\n", html.EscapeString(current))
	}
	if len(data) > 0 {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("Данные:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "• %s = <code>%s</code>\n", html.EscapeString(k), html.EscapeString(data[k]))
		}
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Обновить", callbackDebug),
	))
	return b.sendWithReplyMarkup(ev.ChatID(), strings.TrimRight(sb.String(), "\n"), keyboard)
}

func systemKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Обновить", callbackSystemRefresh),
	))
}

func (b *Bot) handleSystem(ctx context.Context, ev *event.Event) error {
	parts := b.reportSvc.SystemReport(ctx)
	return b.sendChunks(ev.ChatID(), parts, systemKeyboard())
}

func (b *Bot) handleSystemRefresh(ctx context.Context, ev *event.Event) error {
	if err := b.ack(ev, "Обновлено"); err != nil {
		b.logger.Warn("callback ack", zap.String("event_id", ev.ID), zap.Error(err))
	}

	parts := b.reportSvc.SystemReport(ctx)
	source := ev.SourceMessage()
	if source == nil || source.Chat == nil {
		return nil
	}
	if len(parts) == 0 {
		return nil
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(source.Chat.ID, source.MessageID, parts[0], systemKeyboard())
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Request(edit); err != nil {
		// Telegram rejects edits that leave the message unchanged.
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("edit system report: %w", err)
	}
	return b.sendChunks(source.Chat.ID, parts[1:], nil)
}

func (b *Bot) handleGrant(ctx context.Context, ev *event.Event) error {
	if args := strings.TrimSpace(ev.Arguments()); args != "" {
		return b.grantTo(ctx, ev, args)
	}
	if err := b.states.SetState(ctx, stateKey(ev), stateGrantAwaitID); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return b.Reply(ctx, ev, "👤 Отправьте Telegram ID пользователя, которому нужно выдать права администратора.\n/cancel — отменить.")
}

func (b *Bot) handleGrantInput(ctx context.Context, ev *event.Event) error {
	if err := b.states.Reset(ctx, stateKey(ev)); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return b.grantTo(ctx, ev, strings.TrimSpace(ev.Text()))
}

func (b *Bot) grantTo(ctx context.Context, ev *event.Event, raw string) error {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return b.Reply(ctx, ev, "⚠️ ID должен быть числом.")
	}
	target := model.ExternalUserID(id)

	userID, err := b.userRepo.FindInternalID(ctx, target)
	if errors.Is(err, repository.ErrNotFound) {
		return b.Reply(ctx, ev, fmt.Sprintf("⚠️ Пользователь <code>%d</code> ещё не писал боту.", target))
	}
	if err != nil {
		return fmt.Errorf("find grant target: %w", err)
	}

	granter, _ := access.UserIDFromContext(ctx)
	if _, err := b.adminRepo.Grant(ctx, userID, granter); err != nil {
		return fmt.Errorf("grant admin: %w", err)
	}
	b.logger.Info("admin granted",
		zap.Int64("user_id", int64(target)),
		zap.Int64("added_by", int64(granter)))
	return b.Reply(ctx, ev, fmt.Sprintf("✅ Пользователь <code>%d</code> назначен администратором.", target))
}
