package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"devbot/internal/access"
	"devbot/internal/model"
	"devbot/internal/repository"
	"devbot/internal/service"
	"devbot/internal/state"
	"devbot/internal/sysinfo"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopOnce sync.Once
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 16)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.stopOnce.Do(func() { close(f.updates) })
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) texts() []string {
	var out []string
	for _, m := range f.messages() {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeAPI) callbacks() []tgbotapi.CallbackConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.CallbackConfig
	for _, c := range f.sent {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb)
		}
	}
	return out
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

type staticCollector struct{}

func (staticCollector) Collect(context.Context) *sysinfo.Info {
	return &sysinfo.Info{Hostname: "test-host"}
}

type fixture struct {
	api    *fakeAPI
	bot    *Bot
	db     *gorm.DB
	users  *repository.UserRepository
	admins *repository.AdminRepository
	states *state.MemoryStore
	logs   *observer.ObservedLogs
}

const (
	adminID int64 = 777
	userID  int64 = 555
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "bot.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	users := repository.NewUserRepository(db)
	admins := repository.NewAdminRepository(db)
	if err := service.NewAdminService(users, admins, nil).Bootstrap(context.Background(), []model.ExternalUserID{model.ExternalUserID(adminID)}); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	api := newFakeAPI()
	states := state.NewMemoryStore()
	b := New(api, users, admins, states, service.NewReportService(staticCollector{}), zap.New(core), 2)
	b.RegisterAll(b.Router())

	return &fixture{api: api, bot: b, db: db, users: users, admins: admins, states: states, logs: logs}
}

func textUpdate(from int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 100,
		From:      &tgbotapi.User{ID: from, FirstName: "Ivan", UserName: "ivan"},
		Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		n := strings.IndexByte(text, ' ')
		if n < 0 {
			n = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: from, FirstName: "Ivan"},
		Message: &tgbotapi.Message{
			MessageID: 5,
			Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
		},
		Data: data,
	}}
}

func (f *fixture) handle(update tgbotapi.Update) {
	f.bot.HandleUpdate(context.Background(), update)
}

func TestBot_IDRegistersSender(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(userID, "/id"))

	if diff := cmp.Diff([]string{"555"}, f.api.texts()); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}
	u, err := f.users.FindByExternalID(context.Background(), model.ExternalUserID(userID))
	if err != nil {
		t.Fatalf("FindByExternalID: %v", err)
	}
	if u.FirstName != "Ivan" {
		t.Errorf("first name = %q, want Ivan", u.FirstName)
	}
}

func TestBot_DebugDeniedForNonAdmin(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(userID, "/debug"))

	if diff := cmp.Diff([]string{access.DenyMessage}, f.api.texts()); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}
	if n, _ := f.users.Count(context.Background()); n != 2 {
		t.Errorf("users = %d, want 2 (admin and the new sender)", n)
	}
}

func TestBot_DebugCallbackDeniedWithAlert(t *testing.T) {
	f := newFixture(t)

	f.handle(callbackUpdate(userID, callbackDebug))

	if got := f.api.texts(); len(got) != 0 {
		t.Errorf("unexpected messages: %v", got)
	}
	cbs := f.api.callbacks()
	if len(cbs) != 1 {
		t.Fatalf("callback answers = %d, want 1", len(cbs))
	}
	if !cbs[0].ShowAlert || cbs[0].Text != access.DenyCallback {
		t.Errorf("answer = %+v, want deny alert", cbs[0])
	}
}

func TestBot_DebugForAdmin(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(adminID, "/debug"))

	texts := f.api.texts()
	if len(texts) != 1 {
		t.Fatalf("replies = %v, want one", texts)
	}
	for _, want := range []string{"Отладка", "<code>777</code>", "@ivan", "Состояние: —"} {
		if !strings.Contains(texts[0], want) {
			t.Errorf("debug output missing %q:\n%s", want, texts[0])
		}
	}
}

func TestBot_MessageIDForAdmin(t *testing.T) {
	f := newFixture(t)

	update := textUpdate(adminID, "/message_id")
	update.Message.ReplyToMessage = &tgbotapi.Message{MessageID: 42}
	f.handle(update)

	if diff := cmp.Diff([]string{"42"}, f.api.texts()); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}
}

func TestBot_MessageDumpForAdmin(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(adminID, "/message"))

	texts := f.api.texts()
	if len(texts) == 0 {
		t.Fatal("no reply")
	}
	if !strings.HasPrefix(texts[0], "<pre>") || !strings.HasSuffix(texts[len(texts)-1], "</pre>") {
		t.Errorf("dump not wrapped in <pre>: %q", texts[0])
	}
	if !strings.Contains(texts[0], `&#34;message_id&#34;: 100`) {
		t.Errorf("dump missing message_id: %s", texts[0])
	}
}

func TestBot_StoreUnreachable(t *testing.T) {
	f := newFixture(t)
	sqlDB, err := f.db.DB()
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	sqlDB.Close()

	f.handle(textUpdate(userID, "/id"))

	if diff := cmp.Diff([]string{access.UserErrorMessage}, f.api.texts()); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}
	if n := f.logs.FilterLevelExact(zapcore.ErrorLevel).Len(); n != 1 {
		t.Errorf("error log entries = %d, want 1", n)
	}
}

func TestBot_GrantFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handle(textUpdate(userID, "/start"))
	f.handle(textUpdate(adminID, "/grant"))

	key := state.Key{ChatID: adminID, UserID: adminID}
	if got, _ := f.states.State(ctx, key); got != stateGrantAwaitID {
		t.Fatalf("state = %q, want %q", got, stateGrantAwaitID)
	}

	f.api.reset()
	f.handle(textUpdate(adminID, "555"))

	texts := f.api.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "назначен") {
		t.Fatalf("replies = %v, want grant confirmation", texts)
	}
	if got, _ := f.states.State(ctx, key); got != "" {
		t.Errorf("state after grant = %q, want empty", got)
	}

	grant, err := f.admins.FindGrantByExternalID(ctx, model.ExternalUserID(userID))
	if err != nil {
		t.Fatalf("FindGrantByExternalID: %v", err)
	}
	granter, err := f.users.FindInternalID(ctx, model.ExternalUserID(adminID))
	if err != nil {
		t.Fatalf("FindInternalID: %v", err)
	}
	if grant.AddedBy != granter {
		t.Errorf("added_by = %d, want %d", grant.AddedBy, granter)
	}

	f.api.reset()
	f.handle(textUpdate(userID, "/message_id"))
	if diff := cmp.Diff([]string{"100"}, f.api.texts()); diff != "" {
		t.Errorf("new admin replies mismatch (-want +got):\n%s", diff)
	}
}

func TestBot_GrantRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "unknown user", text: "/grant 999", want: "ещё не писал"},
		{name: "not a number", text: "/grant abc", want: "числом"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.handle(textUpdate(adminID, tt.text))

			texts := f.api.texts()
			if len(texts) != 1 || !strings.Contains(texts[0], tt.want) {
				t.Errorf("replies = %v, want one containing %q", texts, tt.want)
			}
		})
	}
}

func TestBot_CancelClearsState(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(adminID, "/grant"))
	f.handle(textUpdate(adminID, "/cancel"))
	f.api.reset()

	// With no state the plain text has no route and is ignored.
	f.handle(textUpdate(adminID, "555"))
	if got := f.api.texts(); len(got) != 0 {
		t.Errorf("unexpected replies: %v", got)
	}
	if _, err := f.admins.FindGrantByExternalID(context.Background(), model.ExternalUserID(userID)); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("grant lookup err = %v, want ErrNotFound", err)
	}
}

func TestBot_UnmatchedCallbackAcked(t *testing.T) {
	f := newFixture(t)

	f.handle(callbackUpdate(userID, "unknown"))

	cbs := f.api.callbacks()
	if len(cbs) != 1 {
		t.Fatalf("callback answers = %d, want 1", len(cbs))
	}
	if cbs[0].ShowAlert || cbs[0].Text != "" {
		t.Errorf("answer = %+v, want silent ack", cbs[0])
	}
}

func TestBot_SystemReport(t *testing.T) {
	f := newFixture(t)

	f.handle(textUpdate(adminID, "/system"))

	msgs := f.api.messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "test-host") {
		t.Errorf("report missing hostname:\n%s", msgs[0].Text)
	}
	markup, ok := msgs[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("reply markup = %T, want inline keyboard", msgs[0].ReplyMarkup)
	}
	data := markup.InlineKeyboard[0][0].CallbackData
	if data == nil || *data != callbackSystemRefresh {
		t.Errorf("button data = %v, want %q", data, callbackSystemRefresh)
	}
}

func TestBot_SystemRefreshEditsMessage(t *testing.T) {
	f := newFixture(t)

	f.handle(callbackUpdate(adminID, callbackSystemRefresh))

	f.api.mu.Lock()
	defer f.api.mu.Unlock()
	var edits []tgbotapi.EditMessageTextConfig
	for _, c := range f.api.sent {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			edits = append(edits, e)
		}
	}
	if len(edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(edits))
	}
	if edits[0].MessageID != 5 || edits[0].ChatID != adminID {
		t.Errorf("edit target = %d/%d, want %d/5", edits[0].ChatID, edits[0].MessageID, adminID)
	}
}

func TestBot_SendSystemReports(t *testing.T) {
	f := newFixture(t)

	if err := f.bot.SendSystemReports(context.Background()); err != nil {
		t.Fatalf("SendSystemReports: %v", err)
	}
	msgs := f.api.messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].ChatID != adminID {
		t.Errorf("chat = %d, want %d", msgs[0].ChatID, adminID)
	}
	if !strings.Contains(msgs[0].Text, "Плановый отчёт") {
		t.Errorf("missing header:\n%s", msgs[0].Text)
	}
}

func TestBot_SetCommands(t *testing.T) {
	f := newFixture(t)

	if err := f.bot.SetCommands(); err != nil {
		t.Fatalf("SetCommands: %v", err)
	}
	f.api.mu.Lock()
	defer f.api.mu.Unlock()
	cfg, ok := f.api.sent[0].(tgbotapi.SetMyCommandsConfig)
	if !ok {
		t.Fatalf("sent %T, want SetMyCommandsConfig", f.api.sent[0])
	}
	if len(cfg.Commands) != len(commandList) {
		t.Errorf("commands = %d, want %d", len(cfg.Commands), len(commandList))
	}
}

func TestBot_RegisterAllOnce(t *testing.T) {
	f := newFixture(t)
	before := len(f.bot.Router().Routes())

	f.bot.RegisterAll(f.bot.Router())

	if after := len(f.bot.Router().Routes()); after != before {
		t.Errorf("routes = %d after second RegisterAll, want %d", after, before)
	}
}

func TestBot_StartStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.api.updates <- textUpdate(userID, "/id")
	f.api.updates <- textUpdate(adminID, "/id")

	done := make(chan error, 1)
	go func() { done <- f.bot.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	got := f.api.texts()
	if diff := cmp.Diff([]string{"555", "777"}, got, sortStrings()); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}
}
