// Package event wraps inbound Telegram updates into a single type the access
// gate and the command router can work with.
package event

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"devbot/internal/model"
)

// Kind distinguishes direct messages from callback queries.
type Kind int

const (
	KindMessage Kind = iota
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Event is one inbound update. Exactly one of Message and Callback is set.
type Event struct {
	ID       string
	Kind     Kind
	Message  *tgbotapi.Message
	Callback *tgbotapi.CallbackQuery
}

// FromUpdate builds an Event. ok is false for updates the bot does not handle
// or that carry no sender.
func FromUpdate(update tgbotapi.Update) (ev *Event, ok bool) {
	switch {
	case update.CallbackQuery != nil:
		if update.CallbackQuery.From == nil {
			return nil, false
		}
		return NewCallback(update.CallbackQuery), true
	case update.Message != nil:
		if update.Message.From == nil || update.Message.Chat == nil {
			return nil, false
		}
		return NewMessage(update.Message), true
	default:
		return nil, false
	}
}

func NewMessage(msg *tgbotapi.Message) *Event {
	return &Event{ID: uuid.NewString(), Kind: KindMessage, Message: msg}
}

func NewCallback(cb *tgbotapi.CallbackQuery) *Event {
	return &Event{ID: uuid.NewString(), Kind: KindCallback, Callback: cb}
}

func (e *Event) from() *tgbotapi.User {
	if e.Kind == KindCallback {
		return e.Callback.From
	}
	return e.Message.From
}

// Sender returns the profile fields of the user who produced the event.
func (e *Event) Sender() model.Profile {
	u := e.from()
	if u == nil {
		return model.Profile{}
	}
	return model.Profile{
		ID:           model.ExternalUserID(u.ID),
		Username:     u.UserName,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
	}
}

// ChatID is the chat replies go to. For callbacks on inline messages there is
// no chat and ChatID returns 0.
func (e *Event) ChatID() int64 {
	msg := e.SourceMessage()
	if msg == nil || msg.Chat == nil {
		return 0
	}
	return msg.Chat.ID
}

// SourceMessage is the message itself, or the message the callback button was attached to.
func (e *Event) SourceMessage() *tgbotapi.Message {
	if e.Kind == KindCallback {
		return e.Callback.Message
	}
	return e.Message
}

// Command is the bot command without the leading slash, empty for plain text and callbacks.
func (e *Event) Command() string {
	if e.Kind != KindMessage || !e.Message.IsCommand() {
		return ""
	}
	return e.Message.Command()
}

// Arguments is the text after the command, or the full text of a non-command message.
func (e *Event) Arguments() string {
	if e.Kind != KindMessage {
		return ""
	}
	if e.Message.IsCommand() {
		return e.Message.CommandArguments()
	}
	return e.Message.Text
}

// Text is the message text, or the callback data.
func (e *Event) Text() string {
	if e.Kind == KindCallback {
		return e.Callback.Data
	}
	return e.Message.Text
}
