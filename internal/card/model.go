package card

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"

	"timercard/internal/protocol"
	"timercard/internal/transport"
)

// SyncPhase is the fast-path refresh state machine. The background loops
// run independently of it and keep attempting recovery after GivenUp.
type SyncPhase string

const (
	PhaseIdle       SyncPhase = "idle"
	PhaseRequesting SyncPhase = "requesting"
	PhaseWaiting    SyncPhase = "waiting_response"
	PhaseRetrying   SyncPhase = "retrying"
	PhaseGivenUp    SyncPhase = "given_up"
)

// Timing parameters. These are protocol-compatibility constants: the retry
// and polling cadence must match what the backend and sibling cards expect.
const (
	countdownInterval   = time.Second
	pollInterval        = 15 * time.Second
	resyncInterval      = 30 * time.Second
	forceResyncAfter    = 60 * time.Second
	responseTimeout     = 5 * time.Second
	maxRetries          = 3
	backoffCap          = 10 * time.Second
	scheduleRefresh     = 5 * time.Second
	scrollInterval      = 30 * time.Millisecond
	scrollStep          = 0.8
	jitterBandSeconds   = 3
	connectedWindow     = 120 * time.Second
	connectRetryDelay   = time.Second
	connectFailDelay    = 2 * time.Second
	visibleSyncDelay    = 100 * time.Millisecond
	createRefreshDelay  = 500 * time.Millisecond
	expiryRefreshDelay  = 2 * time.Second
	commandRefreshDelay = time.Second
	cancelAllSpacing    = 500 * time.Millisecond
	staleAttemptAfter   = 10 * time.Second
	activeResyncAfter   = 30 * time.Second
	defaultRowHeight    = 30
)

// TimerState is the one countdown bound to the card's entity. The remaining
// seconds tick locally; EndTime is authoritative when the backend supplied
// one.
type TimerState struct {
	EntityID         string
	Duration         string
	RemainingSeconds int
	TotalSeconds     int
	EndTime          *time.Time
}

// ProgressPercent derives remaining/total, clamped to 0..100.
func (t TimerState) ProgressPercent() float64 {
	if t.TotalSeconds <= 0 {
		return 100
	}
	p := float64(t.RemainingSeconds) / float64(t.TotalSeconds) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ScheduleState is one active recurring rule as last reported. The countdown
// is re-derived from NextExecution on every refresh, never stored
// authoritatively.
type ScheduleState struct {
	ScheduleID       string
	EntityID         string
	EntityName       string
	RepeatType       string
	ScheduleTime     string
	Weekdays         []string
	MonthDays        []int
	NextExecution    *time.Time
	CountdownSeconds int
	Summary          string
}

// TaskEntry is the display union of a running timer and an active schedule,
// used only by the multi-item list.
type TaskEntry struct {
	IsSchedule bool
	Timer      protocol.Timer
	Schedule   ScheduleState
}

func (e TaskEntry) EntityID() string {
	if e.IsSchedule {
		return e.Schedule.EntityID
	}
	return e.Timer.EntityID
}

// CountdownSeconds returns whole seconds left for either variant.
func (e TaskEntry) CountdownSeconds(now time.Time) int {
	if e.IsSchedule {
		return e.Schedule.CountdownSeconds
	}
	if e.Timer.EndTime != nil {
		d := e.Timer.EndTime.Sub(now)
		if d < 0 {
			return 0
		}
		return int(d / time.Second)
	}
	if e.Timer.RemainingSeconds < 0 {
		return 0
	}
	return int(e.Timer.RemainingSeconds)
}

// SyncStatus is the card-wide view of the reconciliation protocol.
type SyncStatus struct {
	Phase            SyncPhase
	RetryCount       int
	LastSyncAttempt  time.Time
	LastSyncSuccess  time.Time
	LastSyncFailed   bool
	BackendConnected bool
	LastError        string
}

// Connected reports whether a successful sync happened recently enough to
// show the card as online.
func (s SyncStatus) Connected(now time.Time) bool {
	if s.LastSyncSuccess.IsZero() {
		return false
	}
	return now.Sub(s.LastSyncSuccess) < connectedWindow
}

type StatusBar struct {
	Text    string
	IsError bool
}

// Config is the static configuration surface supplied at instantiation.
// Cosmetic parameters pass through to the view verbatim.
type Config struct {
	Entity          string
	DefaultDuration string
	UserID          string
	CardStyle       string // "mini" or "normal"
	NormalHeight    int    // viewport height in px for the task list
	RowHeight       int    // per-row height; defaults to 30
	ShowButtons     bool
	Cosmetic        map[string]string
}

func (c Config) rowHeight() int {
	if c.RowHeight > 0 {
		return c.RowHeight
	}
	return defaultRowHeight
}

// PickerField selects which HH:MM:SS column the duration picker is editing.
type PickerField int

const (
	FieldHours PickerField = iota
	FieldMinutes
	FieldSeconds
)

// DurationPicker is the flip-clock style duration selector. Hours wrap at
// 24, minutes and seconds at 60.
type DurationPicker struct {
	Hours   int
	Minutes int
	Seconds int
	Field   PickerField
}

type TimerMode string

const (
	ModeCountdown TimerMode = "countdown"
	ModeAbsolute  TimerMode = "absolute_time"
	ModeRecurring TimerMode = "recurring"
)

// ScrollState drives the continuous wrap-around scroll of the task list.
type ScrollState struct {
	Offset float64
	Active bool
}

type PaletteState struct {
	Active bool
	Input  textinput.Model
}

// Model is the whole widget: one mutable state bundle per card instance,
// mutated only by Update which runs each message to completion.
type Model struct {
	cfg  Config
	bus  transport.Bus
	gate VisibilityGate
	now  func() time.Time

	timer      *TimerState
	schedules  []ScheduleState
	tasks      []TaskEntry
	taskCount  int
	restoring  bool
	timeoutSeq int

	sync    SyncStatus
	visible bool
	scroll  ScrollState

	picker       DurationPicker
	mode         TimerMode
	repeatType   protocol.RepeatType
	repeatDays   []string
	repeatDates  []int
	pendingQueue []protocol.Command
	pendingMake  *protocol.Command

	palette     PaletteState
	spin        spinner.Model
	bar         progress.Model
	helpVisible bool
	status      StatusBar
	debugInfo   string
	quitting    bool
}

// Messages. Every timer callback of the widget is a typed message; stale
// timeout messages are recognized by sequence number instead of clearing
// platform timer handles.
type (
	eventMsg          struct{ resp protocol.Response }
	eventsClosedMsg   struct{}
	countdownTickMsg  struct{}
	pollTickMsg       struct{}
	resyncTickMsg     struct{}
	scheduleTickMsg   struct{}
	scrollTickMsg     struct{}
	connectTickMsg    struct{}
	responseExpired   struct{ seq int }
	retryDelayElapsed struct{ seq int }
	deferredSyncMsg   struct{ full bool }
	drainQueueMsg     struct{}
	sendPendingMsg    struct{}
	visibilityMsg     struct{ visible bool }
)

// New builds a card bound to the given bus and visibility gate.
func New(cfg Config, bus transport.Bus, gate VisibilityGate) Model {
	if cfg.DefaultDuration == "" {
		cfg.DefaultDuration = "00:30:00"
	}
	if cfg.UserID == "" {
		cfg.UserID = "user"
	}
	if cfg.CardStyle == "" {
		cfg.CardStyle = "mini"
	}
	if cfg.NormalHeight <= 0 {
		cfg.NormalHeight = 100
	}
	if gate == nil {
		gate = AlwaysVisible{}
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	bar := progress.New(progress.WithDefaultGradient())
	input := textinput.New()
	input.Prompt = "/"
	input.CharLimit = 120

	m := Model{
		cfg:        cfg,
		bus:        bus,
		gate:       gate,
		now:        time.Now,
		mode:       ModeCountdown,
		repeatType: protocol.RepeatDaily,
		sync:       SyncStatus{Phase: PhaseIdle},
		spin:       sp,
		bar:        bar,
		palette:    PaletteState{Input: input},
	}
	m.picker = pickerFromDuration(cfg.DefaultDuration)
	return m
}

func pickerFromDuration(d string) DurationPicker {
	secs, err := protocol.ParseDuration(d)
	if err != nil {
		secs = 1800
	}
	return DurationPicker{
		Hours:   (secs / 3600) % 24,
		Minutes: (secs % 3600) / 60,
		Seconds: secs % 60,
	}
}

// Duration renders the picker as HH:MM:SS.
func (p DurationPicker) Duration() string {
	return protocol.FormatSeconds(p.Hours*3600 + p.Minutes*60 + p.Seconds)
}

func (p DurationPicker) TotalSeconds() int {
	return p.Hours*3600 + p.Minutes*60 + p.Seconds
}

func (m *Model) ready() bool {
	return m.bus != nil && m.bus.Ready()
}

// bumpSeq invalidates any armed response timeout or backoff retry; their
// messages still arrive but are ignored as stale.
func (m *Model) bumpSeq() int {
	m.timeoutSeq++
	return m.timeoutSeq
}
