package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mr-tron/base58"

	"solmon"
)

const (
	adminChat = int64(1)
	userChat  = int64(2)
)

// validKey returns a parseable base58 private key whose bytes start at seed.
func validKey(seed byte) string {
	raw := make([]byte, 64)
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	return base58.Encode(raw)
}

func arrayKey() string {
	parts := make([]string, 64)
	for i := range parts {
		parts[i] = fmt.Sprint(i + 1)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func brokenArrayKey() string {
	parts := make([]string, 64)
	for i := range parts {
		parts[i] = "1"
	}
	parts[10] = "999" // out of byte range
	return "[" + strings.Join(parts, ", ") + "]"
}

func commandUpdate(chat int64, text string) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i > 0 {
		cmdLen = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: chat, UserName: "tester", FirstName: "Test"},
		Chat:      &tgbotapi.Chat{ID: chat},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func textUpdate(chat int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: chat},
		Chat:      &tgbotapi.Chat{ID: chat},
		Text:      text,
	}}
}

func callbackUpdate(chat int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: chat},
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: chat}},
		Data:    data,
	}}
}

type botFixture struct {
	bot      *Bot
	api      *fakeAPI
	registry *fakeBotRegistry
	settings *fakeBotSettings
	chain    *fakeBalances
}

func newBotFixture() *botFixture {
	f := &botFixture{
		api:      newFakeAPI(),
		registry: &fakeBotRegistry{},
		settings: &fakeBotSettings{floor: solmon.DefaultMinNotifyLamports},
		chain:    &fakeBalances{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.bot = NewBot(f.api, f.registry, f.settings, fakeSealer{}, f.chain, adminChat, log)
	return f
}

func (f *botFixture) dispatch(u tgbotapi.Update) {
	f.bot.dispatch(context.Background(), u)
}

func TestStartRegistersUserAndWelcomes(t *testing.T) {
	f := newBotFixture()
	f.dispatch(commandUpdate(userChat, "/start"))

	if got := f.registry.userCount(); got != 1 {
		t.Fatalf("registered users = %d, want 1", got)
	}
	if got := f.api.lastText(); got != msgWelcome {
		t.Errorf("reply = %q, want welcome", got)
	}
}

func TestMonitorThenKeyAddsWatch(t *testing.T) {
	f := newBotFixture()
	key := validKey(1)

	f.dispatch(commandUpdate(userChat, "/monitor"))
	if got := f.api.lastText(); got != msgEnterKey {
		t.Fatalf("prompt = %q, want key prompt", got)
	}

	f.dispatch(textUpdate(userChat, key))
	watches := f.registry.watchesOf(userChat)
	if len(watches) != 1 {
		t.Fatalf("watches = %d, want 1", len(watches))
	}
	if watches[0].Credential != "sealed:"+key {
		t.Errorf("credential = %q, want the sealed raw key", watches[0].Credential)
	}
	if watches[0].Account == "" || watches[0].Account == key {
		t.Errorf("account = %q, want a derived address", watches[0].Account)
	}
	if !strings.Contains(f.api.lastText(), "Now monitoring wallet") {
		t.Errorf("reply = %q, want monitoring confirmation", f.api.lastText())
	}
	if f.api.lastMarkup() == nil {
		t.Error("confirmation lacks the add/start keyboard")
	}
}

func TestGarbageKeyIsRejected(t *testing.T) {
	f := newBotFixture()
	f.dispatch(commandUpdate(userChat, "/monitor"))
	f.dispatch(textUpdate(userChat, "definitely not a key"))

	if got := f.registry.watchesOf(userChat); len(got) != 0 {
		t.Fatalf("watches = %d after garbage input, want 0", len(got))
	}
	if got := f.api.lastText(); got != msgInvalidKey {
		t.Errorf("reply = %q, want invalid-key text", got)
	}
}

func TestTextWithoutPendingStateShowsHelp(t *testing.T) {
	f := newBotFixture()
	f.dispatch(textUpdate(userChat, "hello?"))
	if got := f.api.lastText(); got != msgHelp {
		t.Errorf("reply = %q, want help", got)
	}
}

func TestBulkIntakeReportsEveryOutcome(t *testing.T) {
	f := newBotFixture()
	dupKey := validKey(3)

	// Pre-existing watch makes dupKey a duplicate.
	f.bot.intakeSingle(userChat, dupKey)
	f.api.reset()

	text := "here are my keys\n" + validKey(9) + "\nsome noise\n" + dupKey + "\n" + brokenArrayKey()
	f.dispatch(commandUpdate(userChat, "/add"))
	f.dispatch(textUpdate(userChat, text))

	report := f.api.lastText()
	for _, want := range []string{"🔢 Keys found: 3", "✅ Added: 1", "🔄 Already watched: 1", "❌ Failed: 1"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
	if got := f.registry.watchesOf(userChat); len(got) != 2 {
		t.Errorf("watches = %d, want 2", len(got))
	}
}

func TestBulkIntakeWithNoKeys(t *testing.T) {
	f := newBotFixture()
	f.dispatch(commandUpdate(userChat, "/add"))
	f.dispatch(textUpdate(userChat, "no keys here"))
	if got := f.api.lastText(); got != msgNoKeysFound {
		t.Errorf("reply = %q, want no-keys text", got)
	}
}

func TestStopKeyboardThenCallbackRemoves(t *testing.T) {
	f := newBotFixture()
	key := validKey(5)
	f.bot.intakeSingle(userChat, key)
	account := f.registry.watchesOf(userChat)[0].Account
	f.api.reset()

	f.dispatch(commandUpdate(userChat, "/stop"))
	markup := f.api.lastMarkup()
	if markup == nil || len(markup.InlineKeyboard) != 1 {
		t.Fatalf("stop keyboard = %+v, want one row", markup)
	}
	btn := markup.InlineKeyboard[0][0]
	if btn.CallbackData == nil || *btn.CallbackData != "stop_"+account {
		t.Fatalf("callback data = %v, want stop_%s", btn.CallbackData, account)
	}

	f.dispatch(callbackUpdate(userChat, *btn.CallbackData))
	if got := f.registry.watchesOf(userChat); len(got) != 0 {
		t.Errorf("watches = %d after stop, want 0", len(got))
	}
	if !f.api.acked() {
		t.Error("callback was not acknowledged")
	}
	if !strings.Contains(f.api.lastEdit(), "Stopped monitoring") {
		t.Errorf("edit = %q, want stop confirmation", f.api.lastEdit())
	}
}

func TestCallbackForUnknownWallet(t *testing.T) {
	f := newBotFixture()
	f.dispatch(callbackUpdate(userChat, "stop_nothere"))
	if got := f.api.lastEdit(); got != msgWatchNotFound {
		t.Errorf("edit = %q, want not-found text", got)
	}
}

func TestAddAnotherCallbackRearmsKeyPrompt(t *testing.T) {
	f := newBotFixture()
	f.dispatch(callbackUpdate(userChat, "add_wallet"))
	if got := f.api.lastEdit(); got != msgEnterKey {
		t.Fatalf("edit = %q, want key prompt", got)
	}
	// The next plain text must be treated as a key.
	f.dispatch(textUpdate(userChat, validKey(7)))
	if got := f.registry.watchesOf(userChat); len(got) != 1 {
		t.Errorf("watches = %d after rearmed prompt, want 1", len(got))
	}
}

func TestListShowsBalances(t *testing.T) {
	f := newBotFixture()
	f.bot.intakeSingle(userChat, validKey(11))
	f.chain.lamports = 2_500_000_000
	f.api.reset()

	f.dispatch(commandUpdate(userChat, "/list"))
	got := f.api.lastText()
	if !strings.Contains(got, "2.5000 SOL") {
		t.Errorf("list = %q, want balance 2.5000 SOL", got)
	}
}

func TestExportKeysSendsDocument(t *testing.T) {
	f := newBotFixture()
	key := validKey(13)
	f.bot.intakeSingle(userChat, key)
	account := f.registry.watchesOf(userChat)[0].Account
	f.api.reset()

	f.dispatch(commandUpdate(userChat, "/k"))
	doc := f.api.lastDocument()
	if doc == nil {
		t.Fatal("no document sent")
	}
	file, ok := doc.File.(tgbotapi.FileBytes)
	if !ok {
		t.Fatalf("document payload is %T, want FileBytes", doc.File)
	}
	if !strings.HasPrefix(file.Name, "solana_keys_2_") {
		t.Errorf("file name = %q, want solana_keys_<chat>_ prefix", file.Name)
	}
	body := string(file.Bytes)
	if !strings.Contains(body, account) || !strings.Contains(body, key) {
		t.Errorf("export missing address or key:\n%s", body)
	}
	if !strings.Contains(body, "SECURITY WARNING") {
		t.Error("export missing the warning footer")
	}
}

func TestFilterIsAdminGated(t *testing.T) {
	f := newBotFixture()

	f.dispatch(commandUpdate(userChat, "/filter 0.5"))
	if got := f.api.lastText(); got != msgAdminOnly {
		t.Fatalf("reply = %q, want admin-only", got)
	}
	if f.settings.setCalls != 0 {
		t.Fatal("non-admin changed the floor")
	}

	f.dispatch(commandUpdate(adminChat, "/filter"))
	if !strings.Contains(f.api.lastText(), "0.0001 SOL") {
		t.Errorf("show reply = %q, want current floor", f.api.lastText())
	}

	f.dispatch(commandUpdate(adminChat, "/filter 0.5"))
	if f.settings.lastSet != 0.5 || f.settings.setCalls != 1 {
		t.Errorf("floor set to %v (%d calls), want 0.5 once", f.settings.lastSet, f.settings.setCalls)
	}
	if !strings.Contains(f.api.lastText(), "0.5 SOL") {
		t.Errorf("confirm reply = %q, want new floor", f.api.lastText())
	}

	f.dispatch(commandUpdate(adminChat, "/filter nonsense"))
	if got := f.api.lastText(); got != msgFilterUsage {
		t.Errorf("reply = %q, want usage text", got)
	}
}

func TestTransferIsAdminGated(t *testing.T) {
	f := newBotFixture()
	f.registry.transfer = solmon.TransferStats{Transferred: 2, AlreadyOwned: 1, Deactivated: 3}

	f.dispatch(commandUpdate(userChat, "/transfer"))
	if got := f.api.lastText(); got != msgAdminOnly {
		t.Fatalf("reply = %q, want admin-only", got)
	}

	f.dispatch(commandUpdate(adminChat, "/transfer"))
	got := f.api.lastText()
	for _, want := range []string{"Moved to you: 2", "Already yours: 1", "Duplicates deactivated: 3"} {
		if !strings.Contains(got, want) {
			t.Errorf("report %q missing %q", got, want)
		}
	}
}

func TestExtractPrivateKeys(t *testing.T) {
	b58 := validKey(1)
	arr := arrayKey()
	text := "junk " + b58 + " more junk\n" + arr + "\nand a repeat " + b58

	keys := extractPrivateKeys(text)
	if len(keys) != 2 {
		t.Fatalf("extracted %d keys, want 2 (deduplicated)", len(keys))
	}
	if keys[0] != b58 {
		t.Errorf("keys[0] = %q, want the base58 key", keys[0])
	}
	if !strings.HasPrefix(keys[1], "[") {
		t.Errorf("keys[1] = %q, want the array key", keys[1])
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newBotFixture()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	f.api.updates <- commandUpdate(userChat, "/help")
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if !f.api.stoppedPolling() {
		t.Error("Run exited without stopping the update stream")
	}
}

// --- fakes ---

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
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
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) stoppedPolling() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.requests = nil
}

func (f *fakeAPI) acked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.requests {
		if _, ok := c.(tgbotapi.CallbackConfig); ok {
			return true
		}
	}
	return false
}

func (f *fakeAPI) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if m, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return m.Text
		}
	}
	return ""
}

func (f *fakeAPI) lastEdit() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if m, ok := f.sent[i].(tgbotapi.EditMessageTextConfig); ok {
			return m.Text
		}
	}
	return ""
}

func (f *fakeAPI) lastMarkup() *tgbotapi.InlineKeyboardMarkup {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		m, ok := f.sent[i].(tgbotapi.MessageConfig)
		if !ok {
			continue
		}
		if kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			return &kb
		}
	}
	return nil
}

func (f *fakeAPI) lastDocument() *tgbotapi.DocumentConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if d, ok := f.sent[i].(tgbotapi.DocumentConfig); ok {
			return &d
		}
	}
	return nil
}

type fakeBotRegistry struct {
	mu       sync.Mutex
	users    []int64
	watches  []solmon.Watch
	transfer solmon.TransferStats
}

func (f *fakeBotRegistry) UpsertUser(chatID int64, _, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, chatID)
	return nil
}

func (f *fakeBotRegistry) AddWatch(w solmon.Watch) (solmon.AddOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, have := range f.watches {
		if have.Subscriber == w.Subscriber && have.Account == w.Account {
			return solmon.AddDuplicate, nil
		}
	}
	f.watches = append(f.watches, w)
	return solmon.AddAdded, nil
}

func (f *fakeBotRegistry) RemoveWatch(subscriber int64, account string) (solmon.RemoveOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.watches {
		if w.Subscriber == subscriber && w.Account == account {
			f.watches = append(f.watches[:i], f.watches[i+1:]...)
			return solmon.Removed, nil
		}
	}
	return solmon.NotFound, nil
}

func (f *fakeBotRegistry) WatchesFor(subscriber int64) ([]solmon.Watch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []solmon.Watch
	for _, w := range f.watches {
		if w.Subscriber == subscriber {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeBotRegistry) TransferAllTo(int64) (solmon.TransferStats, error) {
	return f.transfer, nil
}

func (f *fakeBotRegistry) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func (f *fakeBotRegistry) watchesOf(subscriber int64) []solmon.Watch {
	out, _ := f.WatchesFor(subscriber)
	return out
}

type fakeBotSettings struct {
	floor    int64
	lastSet  float64
	setCalls int
}

func (f *fakeBotSettings) MinNotifyLamports() (int64, error) { return f.floor, nil }

func (f *fakeBotSettings) SetMinNotifySOL(sol float64) error {
	f.lastSet = sol
	f.setCalls++
	return nil
}

type fakeSealer struct{}

func (fakeSealer) Seal(secret string) (string, error) { return "sealed:" + secret, nil }

func (fakeSealer) Open(sealed string) (string, error) {
	return strings.TrimPrefix(sealed, "sealed:"), nil
}

type fakeBalances struct {
	lamports uint64
}

func (f *fakeBalances) Balance(context.Context, string) (uint64, error) {
	return f.lamports, nil
}
