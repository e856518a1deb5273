// Package telegram is the remote command channel and notification sink of
// the trading bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Alias1177/goldscalper/internal/trading/executor"
	"github.com/Alias1177/goldscalper/models"
)

const (
	outboxSize      = 64
	notifyInterval  = 2 * time.Second
	commandInterval = time.Second
	updatesTimeout  = 60
)

var errUnknownCommand = errors.New("unknown command")

// Controller is the part of the executor the bot drives.
type Controller interface {
	Submit(cmd executor.Command) bool
	State() (executor.State, string)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type outgoing struct {
	text     string
	markup   any
	markdown bool
}

// Bot answers operator commands from one whitelisted chat and delivers
// executor events to it.
type Bot struct {
	api    sender
	client *tgbotapi.BotAPI
	chatID int64
	ctrl   Controller

	commands *rate.Limiter
	outbox   chan outgoing

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time

	logger zerolog.Logger
}

// New authorizes token with the Telegram API.
func New(token string, chatID int64, ctrl Controller) (*Bot, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram: token and chat id are required")
	}
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	b := newBot(client, chatID, ctrl)
	b.client = client
	b.logger.Info().Str("username", client.Self.UserName).Msg("Authorized on Telegram")
	return b, nil
}

func newBot(api sender, chatID int64, ctrl Controller) *Bot {
	return &Bot{
		api:      api,
		chatID:   chatID,
		ctrl:     ctrl,
		commands: rate.NewLimiter(rate.Every(commandInterval), 1),
		outbox:   make(chan outgoing, outboxSize),
		lastSent: make(map[string]time.Time),
		now:      time.Now,
		logger:   log.With().Str("component", "telegram").Logger(),
	}
}

// SetController attaches the executor once it exists.
func (b *Bot) SetController(ctrl Controller) { b.ctrl = ctrl }

// Run polls for updates and flushes the outbox until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	var updates tgbotapi.UpdatesChannel
	if b.client != nil {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = updatesTimeout
		updates = b.client.GetUpdatesChan(u)
		defer b.client.StopReceivingUpdates()
	}
	b.logger.Info().Msg("Telegram Command Center: ONLINE")

	for {
		select {
		case <-ctx.Done():
			b.flush()
			return
		case out := <-b.outbox:
			b.deliver(out)
		case update, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if update.Message != nil {
				b.handleMessage(update.Message)
			} else if update.CallbackQuery != nil {
				b.handleCallback(update.CallbackQuery)
			}
		}
	}
}

// flush delivers what is already queued, used on shutdown.
func (b *Bot) flush() {
	for {
		select {
		case out := <-b.outbox:
			b.deliver(out)
		default:
			return
		}
	}
}

func (b *Bot) deliver(out outgoing) {
	msg := tgbotapi.NewMessage(b.chatID, out.text)
	if out.markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	msg.DisableWebPagePreview = true
	if out.markup != nil {
		msg.ReplyMarkup = out.markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Msg("Telegram send error")
	}
}

// enqueue never blocks; a full outbox drops the message.
func (b *Bot) enqueue(out outgoing) {
	select {
	case b.outbox <- out:
	default:
		b.logger.Warn().Msg("telegram outbox full, message dropped")
	}
}

// notify rate limits messages of the same kind. Critical messages always go
// out.
func (b *Bot) notify(kind, text string, critical bool) {
	if !critical && !b.allow(kind) {
		b.logger.Debug().Str("kind", kind).Msg("notification rate limited")
		return
	}
	b.enqueue(outgoing{text: text, markdown: true})
}

// reply sends plain text; executor reports carry mode names that Markdown
// would misparse.
func (b *Bot) reply(text string, markup any) {
	b.enqueue(outgoing{text: text, markup: markup})
}

func (b *Bot) allow(kind string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if last, ok := b.lastSent[kind]; ok && now.Sub(last) < notifyInterval {
		return false
	}
	b.lastSent[kind] = now
	return true
}

// authorized checks the whitelist and the command rate limit.
func (b *Bot) authorized(chatID int64) bool {
	if chatID != b.chatID {
		b.logger.Warn().Int64("chat_id", chatID).Msg("UNAUTHORIZED TELEGRAM ACCESS")
		return false
	}
	return b.commands.Allow()
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.Chat == nil || !msg.IsCommand() || !b.authorized(msg.Chat.ID) {
		return
	}
	switch msg.Command() {
	case "start", "help", "menu":
		b.sendMenu("🎮 *COMMAND CENTER*")
		return
	case "closeall":
		b.confirmCloseAll()
		return
	}
	cmd, err := parseCommand(msg.Command(), msg.CommandArguments())
	if err != nil {
		b.reply("❌ "+err.Error()+"\n"+usage, nil)
		return
	}
	b.submit(cmd)
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil || cb.Message.Chat.ID != b.chatID {
		return
	}
	answer := func(text string) {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
			b.logger.Debug().Err(err).Msg("callback answer failed")
		}
	}

	switch cb.Data {
	case "menu_main":
		answer("")
		b.sendMenu("🎮 *COMMAND CENTER*")
		return
	case "panic_confirm":
		answer("")
		b.confirmCloseAll()
		return
	}
	cmd, err := parseCallback(cb.Data)
	if err != nil {
		b.logger.Warn().Err(err).Str("data", cb.Data).Msg("Callback Error")
		answer("❌ Failed")
		return
	}
	answer(callbackAck(cmd))
	b.submit(cmd)
}

// submit hands cmd to the executor; the reply is delivered asynchronously.
func (b *Bot) submit(cmd executor.Command) {
	if b.ctrl == nil {
		b.reply("⚠️ Trading engine not running", nil)
		return
	}
	kind := cmd.Kind
	cmd.Reply = func(text string) {
		var markup any
		if kind == executor.CmdPause || kind == executor.CmdResume || kind == executor.CmdSetMode || kind == executor.CmdCloseAll {
			markup = b.menuKeyboard()
		}
		b.reply(text, markup)
	}
	if !b.ctrl.Submit(cmd) {
		b.reply("⚠️ Command queue full, try again", nil)
	}
}

func (b *Bot) sendMenu(title string) {
	b.enqueue(outgoing{text: title, markup: b.menuKeyboard(), markdown: true})
}

func (b *Bot) confirmCloseAll() {
	b.enqueue(outgoing{
		text:     "⚠️ *CONFIRMATION REQUIRED*\nClose ALL positions immediately?",
		markup:   confirmKeyboard(),
		markdown: true,
	})
}

func (b *Bot) menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	toggle := tgbotapi.NewInlineKeyboardButtonData("⏸️ Pause", "bot_pause")
	if b.ctrl != nil {
		if s, _ := b.ctrl.State(); s == executor.StatePaused {
			toggle = tgbotapi.NewInlineKeyboardButtonData("▶️ Resume", "bot_resume")
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Status", "menu_refresh"),
			tgbotapi.NewInlineKeyboardButtonData("💼 Positions", "menu_positions"),
		),
		tgbotapi.NewInlineKeyboardRow(
			toggle,
			tgbotapi.NewInlineKeyboardButtonData("🛑 CLOSE ALL", "panic_confirm"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🤖 Auto", "mode_AUTO"),
			tgbotapi.NewInlineKeyboardButtonData("🎯 Sniper", "mode_SNIPER_ONLY"),
			tgbotapi.NewInlineKeyboardButtonData("📈 Trend", "mode_TREND_ONLY"),
		),
	)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔥 YES, CLOSE ALL", "panic_execute"),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Cancel", "menu_main"),
		),
	)
}

const usage = "Commands: /menu /status /positions /pause /resume /closeall /close <ticket> /mode <AUTO|SNIPER|TREND|PULLBACK|BREAKOUT>"

// parseCommand maps a slash command and its arguments to an executor command.
func parseCommand(name, args string) (executor.Command, error) {
	args = strings.TrimSpace(args)
	switch strings.ToLower(name) {
	case "status":
		return executor.Command{Kind: executor.CmdStatus}, nil
	case "positions":
		return executor.Command{Kind: executor.CmdPositions}, nil
	case "pause":
		return executor.Command{Kind: executor.CmdPause}, nil
	case "resume":
		return executor.Command{Kind: executor.CmdResume}, nil
	case "close":
		ticket, err := strconv.ParseInt(strings.TrimPrefix(args, "#"), 10, 64)
		if err != nil || ticket <= 0 {
			return executor.Command{}, fmt.Errorf("invalid ticket %q", args)
		}
		return executor.Command{Kind: executor.CmdClose, Ticket: ticket}, nil
	case "mode":
		mode, err := models.ParseMode(args)
		if err != nil {
			return executor.Command{}, err
		}
		return executor.Command{Kind: executor.CmdSetMode, Mode: mode}, nil
	}
	return executor.Command{}, fmt.Errorf("%w /%s", errUnknownCommand, name)
}

// parseCallback maps inline keyboard data to an executor command.
func parseCallback(data string) (executor.Command, error) {
	switch data {
	case "menu_refresh":
		return executor.Command{Kind: executor.CmdStatus}, nil
	case "menu_positions":
		return executor.Command{Kind: executor.CmdPositions}, nil
	case "bot_pause":
		return executor.Command{Kind: executor.CmdPause}, nil
	case "bot_resume":
		return executor.Command{Kind: executor.CmdResume}, nil
	case "panic_execute":
		return executor.Command{Kind: executor.CmdCloseAll}, nil
	}
	if rest, ok := strings.CutPrefix(data, "close_"); ok {
		return parseCommand("close", rest)
	}
	if rest, ok := strings.CutPrefix(data, "mode_"); ok {
		return parseCommand("mode", rest)
	}
	return executor.Command{}, fmt.Errorf("%w %q", errUnknownCommand, data)
}

func callbackAck(cmd executor.Command) string {
	switch cmd.Kind {
	case executor.CmdPause:
		return "Bot PAUSED ⏸️"
	case executor.CmdResume:
		return "Bot RESUMED ▶️"
	case executor.CmdSetMode:
		return "Mode: " + string(cmd.Mode)
	case executor.CmdCloseAll:
		return "Closing all positions..."
	}
	return ""
}

var _ executor.Notifier = (*Bot)(nil)
