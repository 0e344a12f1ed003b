package card

import (
	"errors"
	"math"
	"testing"
	"time"

	"timercard/internal/protocol"
)

type fakeBus struct {
	ready   bool
	sendErr error
	sent    []protocol.Command
	events  chan protocol.Response
}

func newFakeBus() *fakeBus {
	return &fakeBus{ready: true, events: make(chan protocol.Response, 8)}
}

func (b *fakeBus) Send(cmd protocol.Command) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, cmd)
	return nil
}

func (b *fakeBus) Events() <-chan protocol.Response { return b.events }
func (b *fakeBus) Ready() bool                      { return b.ready }
func (b *fakeBus) Close() error                     { return nil }

func newTestModel(t *testing.T, bus *fakeBus) (*Model, time.Time) {
	t.Helper()
	m := New(Config{Entity: "light.kitchen", UserID: "tester"}, bus, nil)
	base := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	return &m, base
}

func TestCountdownMonotonic(t *testing.T) {
	m, _ := newTestModel(t, newFakeBus())
	m.timer = &TimerState{EntityID: "light.kitchen", RemainingSeconds: 5, TotalSeconds: 5}
	m.sync.LastSyncSuccess = m.now()

	for want := 4; want >= 1; want-- {
		m.onCountdownTick()
		if m.timer == nil || m.timer.RemainingSeconds != want {
			t.Fatalf("remaining = %+v, want %d", m.timer, want)
		}
	}
	m.onCountdownTick()
	if m.timer != nil {
		t.Fatalf("timer should clear when remaining hits 0, got %+v", m.timer)
	}
}

func TestAntiJitterBand(t *testing.T) {
	cases := []struct {
		server float64
		want   int
	}{
		{99, 100},
		{101, 100},
		{102, 100},
		{103, 100},
		{90, 90},
		{115, 115},
		{104, 104},
	}
	for _, tc := range cases {
		m, _ := newTestModel(t, newFakeBus())
		m.timer = &TimerState{EntityID: "light.kitchen", RemainingSeconds: 100, TotalSeconds: 600}
		m.handleResponse(protocol.Response{
			Action: protocol.ActionTimersList,
			Timers: []protocol.Timer{{
				EntityID:         "light.kitchen",
				RemainingSeconds: tc.server,
				Status:           "running",
			}},
		})
		if m.timer == nil || m.timer.RemainingSeconds != tc.want {
			t.Fatalf("server=%v: remaining = %+v, want %d", tc.server, m.timer, tc.want)
		}
	}
}

func TestEndTimePrecedence(t *testing.T) {
	m, base := newTestModel(t, newFakeBus())
	end := base.Add(time.Hour)
	m.handleResponse(protocol.Response{
		Action: protocol.ActionTimersList,
		Timers: []protocol.Timer{{
			EntityID:         "light.kitchen",
			RemainingSeconds: 5,
			EndTime:          &end,
			Status:           "running",
		}},
	})
	if m.timer == nil {
		t.Fatal("timer not bound")
	}
	if got := m.timer.RemainingSeconds; got < 3595 || got > 3600 {
		t.Fatalf("remaining = %d, want about 3600", got)
	}
}

func TestBackoffSequence(t *testing.T) {
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	for n, w := range want {
		if got := backoffDelay(n + 1); got != w {
			t.Fatalf("backoffDelay(%d) = %v, want %v", n+1, got, w)
		}
	}
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	bus := newFakeBus()
	bus.sendErr = errors.New("socket closed")
	m, _ := newTestModel(t, bus)

	for i := 0; i < maxRetries; i++ {
		m.performRefresh()
	}
	if m.sync.RetryCount != maxRetries {
		t.Fatalf("retryCount = %d, want %d", m.sync.RetryCount, maxRetries)
	}
	m.performRefresh()
	if m.sync.Phase != PhaseGivenUp {
		t.Fatalf("phase = %s, want %s", m.sync.Phase, PhaseGivenUp)
	}
	if m.sync.BackendConnected {
		t.Fatal("backendConnected should be false after give-up")
	}
}

func TestStalenessForcesResyncAfterGiveUp(t *testing.T) {
	bus := newFakeBus()
	bus.sendErr = errors.New("down")
	m, base := newTestModel(t, bus)
	m.visible = true

	for i := 0; i <= maxRetries; i++ {
		m.performRefresh()
	}
	if m.sync.Phase != PhaseGivenUp {
		t.Fatalf("phase = %s, want %s", m.sync.Phase, PhaseGivenUp)
	}

	// Transport comes back 70 seconds later; the staleness guard in the
	// poll loop must restart the fast path.
	bus.sendErr = nil
	m.now = func() time.Time { return base.Add(70 * time.Second) }
	m.onPollTick()

	if len(bus.sent) == 0 {
		t.Fatal("poll loop should have sent a snapshot request")
	}
	if m.sync.Phase != PhaseWaiting {
		t.Fatalf("phase = %s, want %s", m.sync.Phase, PhaseWaiting)
	}
	if m.sync.RetryCount != 1 {
		t.Fatalf("retryCount = %d, want 1 after reset and one attempt", m.sync.RetryCount)
	}
}

func TestScrollWrapIsSeamless(t *testing.T) {
	bus := newFakeBus()
	m, _ := newTestModel(t, bus)
	m.cfg.CardStyle = "normal"
	m.cfg.NormalHeight = 60
	m.cfg.RowHeight = 30
	m.visible = true

	for i := 0; i < 5; i++ {
		m.tasks = append(m.tasks, TaskEntry{Timer: protocol.Timer{EntityID: string(rune('a' + i))}})
	}
	m.taskCount = len(m.tasks)
	m.adjustScroll()
	if !m.scroll.Active {
		t.Fatal("scroll should be active for 5 rows in a 2-row viewport")
	}

	cycle := m.cycleHeight()
	if cycle != 150 {
		t.Fatalf("cycle = %v, want 150", cycle)
	}

	m.scroll.Offset = cycle - scrollStep/2
	m.onScrollTick()
	if m.scroll.Offset >= cycle || m.scroll.Offset < 0 {
		t.Fatalf("offset = %v, want wrapped into [0, %v)", m.scroll.Offset, cycle)
	}

	// The window at offset x and offset x+cycle must be identical.
	m.scroll.Offset = 40
	before := m.VisibleWindow()
	m.scroll.Offset = math.Mod(40+cycle, cycle)
	after := m.VisibleWindow()
	if len(before) != len(after) {
		t.Fatalf("window lengths differ: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].EntityID() != after[i].EntityID() {
			t.Fatalf("row %d differs across wrap: %q vs %q", i, before[i].EntityID(), after[i].EntityID())
		}
	}
}

func TestRunningSetFilter(t *testing.T) {
	m, base := newTestModel(t, newFakeBus())
	future := base.Add(10 * time.Second)
	m.handleResponse(protocol.Response{
		Action: protocol.ActionTimersList,
		Timers: []protocol.Timer{
			{EntityID: "a", Status: "completed"},
			{EntityID: "b", RemainingSeconds: 0},
			{EntityID: "c", EndTime: &future},
		},
	})
	if m.taskCount != 1 {
		t.Fatalf("taskCount = %d, want 1", m.taskCount)
	}
	if m.tasks[0].EntityID() != "c" {
		t.Fatalf("kept %q, want c", m.tasks[0].EntityID())
	}
}

func TestUnknownActionFlagsFailureWithoutMutation(t *testing.T) {
	m, _ := newTestModel(t, newFakeBus())
	m.timer = &TimerState{EntityID: "light.kitchen", RemainingSeconds: 42, TotalSeconds: 60}

	m.handleResponse(protocol.Response{Action: "mystery_blob"})

	if !m.sync.LastSyncFailed {
		t.Fatal("unknown action should flag lastSyncFailed")
	}
	if m.sync.BackendConnected {
		t.Fatal("unknown action must not count as backend contact")
	}
	if m.timer == nil || m.timer.RemainingSeconds != 42 {
		t.Fatalf("timer state mutated: %+v", m.timer)
	}
}

func TestBackendErrorCountsAsContact(t *testing.T) {
	m, _ := newTestModel(t, newFakeBus())
	m.handleResponse(protocol.Response{Action: protocol.ActionError, Error: "no such entity"})

	if !m.sync.BackendConnected {
		t.Fatal("explicit error still proves the backend is alive")
	}
	if !m.sync.LastSyncFailed {
		t.Fatal("explicit error should flag lastSyncFailed")
	}
	if m.sync.LastError != "no such entity" {
		t.Fatalf("lastError = %q", m.sync.LastError)
	}
}

func TestSnapshotClearsUnmatchedTimer(t *testing.T) {
	m, _ := newTestModel(t, newFakeBus())
	m.timer = &TimerState{EntityID: "light.kitchen", RemainingSeconds: 42, TotalSeconds: 60}
	m.sync.RetryCount = 2

	m.handleResponse(protocol.Response{
		Action: protocol.ActionTimersList,
		Timers: []protocol.Timer{{EntityID: "fan.attic", Status: "running", RemainingSeconds: 9}},
	})

	if m.timer != nil {
		t.Fatalf("timer should clear when the snapshot lacks the bound entity, got %+v", m.timer)
	}
	if m.sync.RetryCount != 0 {
		t.Fatalf("retryCount = %d, want 0", m.sync.RetryCount)
	}
}

func TestStaleTimeoutIgnoredAfterSnapshot(t *testing.T) {
	bus := newFakeBus()
	m, _ := newTestModel(t, bus)
	m.visible = true

	m.performRefresh()
	staleSeq := m.timeoutSeq
	if m.sync.Phase != PhaseWaiting {
		t.Fatalf("phase = %s, want %s", m.sync.Phase, PhaseWaiting)
	}

	m.handleResponse(protocol.Response{Action: protocol.ActionTimersList})
	sentBefore := len(bus.sent)

	if cmd := m.onResponseTimeout(responseExpired{seq: staleSeq}); cmd != nil {
		t.Fatal("stale timeout should be ignored")
	}
	if len(bus.sent) != sentBefore {
		t.Fatal("stale timeout must not trigger another request")
	}
}

func TestOptimisticStart(t *testing.T) {
	bus := newFakeBus()
	m, _ := newTestModel(t, bus)

	m.StartTimer("00:10:00")

	if m.timer == nil || m.timer.RemainingSeconds != 600 || m.timer.TotalSeconds != 600 {
		t.Fatalf("optimistic timer = %+v", m.timer)
	}
	if len(bus.sent) != 1 || bus.sent[0].Action != protocol.ActionCreateTimer {
		t.Fatalf("sent = %+v", bus.sent)
	}
	if bus.sent[0].Duration != "00:10:00" || bus.sent[0].EntityID != "light.kitchen" {
		t.Fatalf("bad create command: %+v", bus.sent[0])
	}
	if !m.restoring {
		t.Fatal("locally started timer should be marked unconfirmed")
	}

	m.applySnapshot(protocol.Response{
		Action: protocol.ActionTimersList,
		Timers: []protocol.Timer{{
			EntityID:         "light.kitchen",
			Duration:         "00:10:00",
			RemainingSeconds: 598,
			Status:           "running",
		}},
	})
	if m.restoring {
		t.Fatal("snapshot echo should confirm the timer")
	}
}

func TestCancelAllSpacesCommands(t *testing.T) {
	bus := newFakeBus()
	m, _ := newTestModel(t, bus)
	m.tasks = []TaskEntry{
		{Timer: protocol.Timer{EntityID: "light.kitchen"}},
		{Timer: protocol.Timer{EntityID: "fan.attic"}},
		{IsSchedule: true, Schedule: ScheduleState{ScheduleID: "s1"}},
	}

	cmd := m.CancelAll()
	if cmd == nil {
		t.Fatal("expected a drain command")
	}
	if len(bus.sent) != 1 {
		t.Fatalf("first drain should send exactly one command, sent %d", len(bus.sent))
	}
	if len(m.pendingQueue) != 2 {
		t.Fatalf("pending = %d, want 2", len(m.pendingQueue))
	}

	m.drainQueue()
	m.drainQueue()
	if len(bus.sent) != 3 {
		t.Fatalf("sent = %d, want 3", len(bus.sent))
	}
}

func TestDurationUntilRollsToTomorrow(t *testing.T) {
	now := time.Date(2026, time.March, 14, 23, 0, 0, 0, time.UTC)
	if got := DurationUntil(22, 30, now); got != "23:30:00" {
		t.Fatalf("DurationUntil past time = %q, want 23:30:00", got)
	}
	if got := DurationUntil(23, 30, now); got != "00:30:00" {
		t.Fatalf("DurationUntil future time = %q, want 00:30:00", got)
	}
}

func TestVisibleWindowWrapsRows(t *testing.T) {
	m, _ := newTestModel(t, newFakeBus())
	m.cfg.CardStyle = "normal"
	m.cfg.NormalHeight = 60
	m.cfg.RowHeight = 30
	m.visible = true
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		m.tasks = append(m.tasks, TaskEntry{Timer: protocol.Timer{EntityID: id}})
	}
	m.scroll.Active = true
	m.scroll.Offset = 4 * 30 // first row index 4, window must wrap to a

	win := m.VisibleWindow()
	if len(win) != 3 {
		t.Fatalf("window length = %d, want maxVisible+1 = 3", len(win))
	}
	want := []string{"e", "a", "b"}
	for i, id := range want {
		if win[i].EntityID() != id {
			t.Fatalf("window[%d] = %q, want %q", i, win[i].EntityID(), id)
		}
	}
}

func TestCreatedEchoRefreshGatedOnBoundEntity(t *testing.T) {
	m, _ := newTestModel(t, newFakeBus())

	if cmd := m.handleResponse(protocol.Response{
		Action:   protocol.ActionTimerCreated,
		EntityID: "fan.attic",
	}); cmd != nil {
		t.Fatal("created echo for another entity must not schedule a refresh")
	}

	if cmd := m.handleResponse(protocol.Response{
		Action:   protocol.ActionTimerCreated,
		EntityID: "light.kitchen",
	}); cmd == nil {
		t.Fatal("created echo for the bound entity must schedule a refresh")
	}
}

func TestCancelledEchoClearsWithoutRefresh(t *testing.T) {
	m, _ := newTestModel(t, newFakeBus())
	m.timer = &TimerState{EntityID: "light.kitchen", RemainingSeconds: 100, TotalSeconds: 600}

	if cmd := m.handleResponse(protocol.Response{
		Action:   protocol.ActionTimerCancelled,
		EntityID: "fan.attic",
	}); cmd != nil || m.timer == nil {
		t.Fatal("cancel echo for another entity must leave the timer alone")
	}

	if cmd := m.handleResponse(protocol.Response{
		Action:   protocol.ActionTimerCompleted,
		EntityID: "light.kitchen",
	}); cmd != nil {
		t.Fatal("complete echo must not schedule a refresh")
	}
	if m.timer != nil {
		t.Fatal("complete echo for the bound entity must clear the timer")
	}
}
