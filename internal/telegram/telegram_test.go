package telegram

import (
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Alias1177/goldscalper/internal/analysis/regime"
	"github.com/Alias1177/goldscalper/internal/trading/executor"
	"github.com/Alias1177/goldscalper/internal/trading/profit"
	"github.com/Alias1177/goldscalper/models"
)

type fakeSender struct {
	sent     []tgbotapi.MessageConfig
	answered []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answered = append(f.answered, cb.Text)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakeController struct {
	commands []executor.Command
	full     bool
	state    executor.State
}

func (f *fakeController) Submit(cmd executor.Command) bool {
	if f.full {
		return false
	}
	f.commands = append(f.commands, cmd)
	return true
}

func (f *fakeController) State() (executor.State, string) { return f.state, "" }

const chatID = 4242

func newTestBot() (*Bot, *fakeSender, *fakeController) {
	api := &fakeSender{}
	ctrl := &fakeController{state: executor.StateRunning}
	return newBot(api, chatID, ctrl), api, ctrl
}

func command(chat int64, text string) *tgbotapi.Message {
	name := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chat},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func drain(b *Bot) []outgoing {
	var out []outgoing
	for {
		select {
		case o := <-b.outbox:
			out = append(out, o)
		default:
			return out
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    executor.Command
		wantErr bool
	}{
		{"status", "", executor.Command{Kind: executor.CmdStatus}, false},
		{"positions", "", executor.Command{Kind: executor.CmdPositions}, false},
		{"pause", "", executor.Command{Kind: executor.CmdPause}, false},
		{"resume", "", executor.Command{Kind: executor.CmdResume}, false},
		{"close", "#1234", executor.Command{Kind: executor.CmdClose, Ticket: 1234}, false},
		{"close", "abc", executor.Command{}, true},
		{"close", "-5", executor.Command{}, true},
		{"mode", "sniper", executor.Command{Kind: executor.CmdSetMode, Mode: models.ModeSniper}, false},
		{"mode", "BREAKOUT_ONLY", executor.Command{Kind: executor.CmdSetMode, Mode: models.ModeBreakout}, false},
		{"mode", "yolo", executor.Command{}, true},
		{"buy", "", executor.Command{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name+" "+tt.args, func(t *testing.T) {
			got, err := parseCommand(tt.name, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCommand(%q, %q) error = %v, wantErr %v", tt.name, tt.args, err, tt.wantErr)
			}
			if got.Kind != tt.want.Kind || got.Ticket != tt.want.Ticket || got.Mode != tt.want.Mode {
				t.Errorf("parseCommand(%q, %q) = %+v, want %+v", tt.name, tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data    string
		want    executor.CommandKind
		wantErr bool
	}{
		{"menu_refresh", executor.CmdStatus, false},
		{"menu_positions", executor.CmdPositions, false},
		{"bot_pause", executor.CmdPause, false},
		{"bot_resume", executor.CmdResume, false},
		{"panic_execute", executor.CmdCloseAll, false},
		{"close_77", executor.CmdClose, false},
		{"mode_TREND_ONLY", executor.CmdSetMode, false},
		{"close_x", "", true},
		{"rm_rf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := parseCallback(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCallback(%q) error = %v, wantErr %v", tt.data, err, tt.wantErr)
			}
			if got.Kind != tt.want {
				t.Errorf("parseCallback(%q).Kind = %q, want %q", tt.data, got.Kind, tt.want)
			}
		})
	}
	if _, err := parseCallback("nope"); !errors.Is(err, errUnknownCommand) {
		t.Errorf("parseCallback() error = %v, want errUnknownCommand", err)
	}
}

func TestUnauthorizedChatIgnored(t *testing.T) {
	b, _, ctrl := newTestBot()
	b.handleMessage(command(1, "/pause"))
	if len(ctrl.commands) != 0 || len(drain(b)) != 0 {
		t.Errorf("foreign chat produced %d commands, want none", len(ctrl.commands))
	}
}

func TestCommandRateLimit(t *testing.T) {
	b, _, ctrl := newTestBot()
	b.handleMessage(command(chatID, "/status"))
	b.handleMessage(command(chatID, "/status"))
	if len(ctrl.commands) != 1 {
		t.Errorf("submitted %d commands within a second, want 1", len(ctrl.commands))
	}
}

func TestCommandReplyReachesChat(t *testing.T) {
	b, api, ctrl := newTestBot()
	b.handleMessage(command(chatID, "/close 55"))
	if len(ctrl.commands) != 1 || ctrl.commands[0].Ticket != 55 {
		t.Fatalf("commands = %+v, want close #55", ctrl.commands)
	}

	ctrl.commands[0].Reply("Closed #55 ✅")
	for _, o := range drain(b) {
		b.deliver(o)
	}
	if len(api.sent) != 1 || api.sent[0].Text != "Closed #55 ✅" || api.sent[0].ChatID != chatID {
		t.Fatalf("sent = %+v, want the reply", api.sent)
	}
	if api.sent[0].ParseMode != "" {
		t.Errorf("reply ParseMode = %q, want plain text", api.sent[0].ParseMode)
	}
}

func TestCloseAllNeedsConfirmation(t *testing.T) {
	b, api, ctrl := newTestBot()
	b.handleMessage(command(chatID, "/closeall"))
	if len(ctrl.commands) != 0 {
		t.Fatal("/closeall submitted without confirmation")
	}
	out := drain(b)
	if len(out) != 1 || !strings.Contains(out[0].text, "CONFIRMATION REQUIRED") {
		t.Fatalf("outbox = %+v, want confirmation prompt", out)
	}

	b.handleCallback(&tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    "panic_execute",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	})
	if len(ctrl.commands) != 1 || ctrl.commands[0].Kind != executor.CmdCloseAll {
		t.Errorf("commands = %+v, want closeall", ctrl.commands)
	}
	if len(api.answered) != 1 {
		t.Errorf("answered = %v, want one callback answer", api.answered)
	}
}

func TestQueueFullReply(t *testing.T) {
	b, _, ctrl := newTestBot()
	ctrl.full = true
	b.handleMessage(command(chatID, "/pause"))
	out := drain(b)
	if len(out) != 1 || !strings.Contains(out[0].text, "queue full") {
		t.Errorf("outbox = %+v, want queue full reply", out)
	}
}

func TestMenuShowsResumeWhenPaused(t *testing.T) {
	b, _, ctrl := newTestBot()
	ctrl.state = executor.StatePaused
	kb := b.menuKeyboard()
	if got := *kb.InlineKeyboard[1][0].CallbackData; got != "bot_resume" {
		t.Errorf("toggle button = %q, want bot_resume", got)
	}
}

func TestNotificationRateLimit(t *testing.T) {
	b, _, _ := newTestBot()
	now := time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	ev := executor.ActionEvent{Kind: executor.ActionTrailing, Ticket: 1, StopLoss: 2001}
	b.NotifyAction(ev)
	b.NotifyAction(ev)
	b.NotifyStatus("ERROR", "gateway down")
	b.NotifyStatus("ERROR", "gateway down")
	if got := len(drain(b)); got != 3 {
		t.Errorf("queued %d notifications, want 3 (one trailing, two critical)", got)
	}

	now = now.Add(3 * time.Second)
	b.NotifyAction(ev)
	if got := len(drain(b)); got != 1 {
		t.Errorf("queued %d notifications after interval, want 1", got)
	}
}

func TestFormatEntry(t *testing.T) {
	msg := formatEntry(executor.EntryEvent{
		Ticket: 7, Symbol: "XAUUSD", Side: models.SideBuy, Volume: 0.05,
		Entry: 2000, StopLoss: 1995, TakeProfit: 2010, Risk: 25,
		Mode: models.ModeSniper, Session: "london", Regime: regime.Ranging,
		Score: 2.5, MinConf: 2, RSI: 28, HasRSI: true, ATR: 3.2,
		Balance: 1000, Equity: 1000,
		Time: time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC),
	})
	for _, want := range []string{"NEW TRADE EXECUTED", "#7", "(+$50.00)", "1:2.00", "`2.50%`", "`LONDON`", "Oversold", "RANGING", "2025-01-07 10:00:00 UTC"} {
		if !strings.Contains(msg, want) {
			t.Errorf("formatEntry() missing %q in:\n%s", want, msg)
		}
	}
}

func TestFormatExit(t *testing.T) {
	tests := []struct {
		profit float64
		want   string
	}{
		{12.5, "WIN"},
		{-3, "LOSS"},
		{0, "BREAKEVEN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			msg := formatExit(executor.ExitEvent{
				Ticket: 1, Profit: tt.profit, Reason: "TP", Duration: 90 * time.Second,
				Today: profit.Stats{Profit: 10, Trades: 2}, Target: 20,
			})
			if !strings.Contains(msg, "TRADE CLOSED - "+tt.want) || !strings.Contains(msg, "1m 30s") {
				t.Errorf("formatExit(%v) = %q", tt.profit, msg)
			}
			if !strings.Contains(msg, "▰▰▰▰▰▱▱▱▱▱ 50%") {
				t.Errorf("formatExit() progress missing in %q", msg)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{125 * time.Second, "2m 5s"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestProgressBar(t *testing.T) {
	if got := progressBar(-5, 20, 4); got != "▱▱▱▰ 25%" {
		t.Errorf("progressBar(-5, 20) = %q", got)
	}
	if got := progressBar(50, 20, 4); got != "▰▰▰▰ 100%" {
		t.Errorf("progressBar(50, 20) = %q", got)
	}
}

func TestFormatStatusEscapesDetails(t *testing.T) {
	msg := formatStatus("TARGET_REACHED", "mode SNIPER_ONLY", time.Time{})
	if !strings.Contains(msg, `SNIPER\_ONLY`) || !strings.Contains(msg, "🎯") {
		t.Errorf("formatStatus() = %q", msg)
	}
}
