package executor

import (
	"time"

	"github.com/Alias1177/goldscalper/internal/analysis/regime"
	"github.com/Alias1177/goldscalper/internal/indicators"
	"github.com/Alias1177/goldscalper/internal/trading/profit"
	"github.com/Alias1177/goldscalper/models"
)

// State is the coarse status of the control loop.
type State string

const (
	StateStarting   State = "STARTING"
	StateRunning    State = "RUNNING"
	StatePaused     State = "PAUSED"
	StatePausedSwap State = "PAUSED_SWAP"
	StatePausedPTM  State = "PAUSED_PTM"
	StateFridayStop State = "FRIDAY_STOP"
	StateError      State = "ERROR"
)

// CommandKind names an operator command.
type CommandKind string

const (
	CmdPause     CommandKind = "pause"
	CmdResume    CommandKind = "resume"
	CmdCloseAll  CommandKind = "closeall"
	CmdClose     CommandKind = "close"
	CmdSetMode   CommandKind = "mode"
	CmdStatus    CommandKind = "status"
	CmdPositions CommandKind = "positions"
)

// Command is a request from the remote command channel. Commands are only
// executed by the control loop goroutine; Reply, when set, receives the
// human readable outcome.
type Command struct {
	Kind   CommandKind
	Ticket int64
	Mode   models.Mode
	Reply  func(string)
}

// EntryEvent describes a filled entry order.
type EntryEvent struct {
	Ticket     int64
	Symbol     string
	Side       models.Side
	Volume     float64
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	Risk       float64

	Mode       models.Mode
	Session    string
	Regime     regime.Regime
	Score      float64
	MinConf    float64
	Confidence float64
	RSI        float64
	HasRSI     bool
	ATR        float64
	MATrend    indicators.Signal

	Balance float64
	Equity  float64
	Time    time.Time
}

// ExitEvent describes a position that left the book, closed either by the
// bot or by the broker.
type ExitEvent struct {
	Ticket   int64
	Side     models.Side
	Profit   float64
	Reason   string
	Duration time.Duration
	Today    profit.Stats
	Target   float64
	Time     time.Time
}

// ActionKind is a position management transition.
type ActionKind string

const (
	ActionScaleOut  ActionKind = "scale_out"
	ActionBreakeven ActionKind = "breakeven"
	ActionTrailing  ActionKind = "trailing"
)

// ActionEvent describes one applied management action. StopLoss is set for
// breakeven and trailing, Volume for scale-out.
type ActionEvent struct {
	Kind     ActionKind
	Ticket   int64
	StopLoss float64
	Volume   float64
	Locked   float64
	Time     time.Time
}

// RegimeEvent is emitted when the regime label changes.
type RegimeEvent struct {
	From           regime.Regime
	To             regime.Regime
	Assessment     regime.Assessment
	Recommendation regime.Recommendation
	Time           time.Time
}

// Notifier receives trade and status events. Implementations must not block
// the control loop for long.
type Notifier interface {
	NotifyEntry(EntryEvent)
	NotifyExit(ExitEvent)
	NotifyAction(ActionEvent)
	NotifyRegime(RegimeEvent)
	NotifyStatus(status, details string)
}

type nopNotifier struct{}

func (nopNotifier) NotifyEntry(EntryEvent) {}
func (nopNotifier) NotifyExit(ExitEvent) {}
func (nopNotifier) NotifyAction(ActionEvent) {}
func (nopNotifier) NotifyRegime(RegimeEvent) {}
func (nopNotifier) NotifyStatus(string, string) {}
