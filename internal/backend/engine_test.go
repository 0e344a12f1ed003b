package backend

import (
	"testing"
	"time"
)

func TestEngineEmitsInFireOrder(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	now := time.Now().UTC()
	if err := engine.Schedule(FireEvent{ID: "later", Kind: KindTimer, FireAt: now.Add(80 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule later: %v", err)
	}
	if err := engine.Schedule(FireEvent{ID: "sooner", Kind: KindTimer, FireAt: now.Add(20 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule sooner: %v", err)
	}

	first := waitEvent(t, engine.C(), time.Second)
	second := waitEvent(t, engine.C(), time.Second)
	if first.ID != "sooner" || second.ID != "later" {
		t.Fatalf("unexpected order: first=%s second=%s", first.ID, second.ID)
	}
}

func TestEngineCancelSuppressesEvent(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	now := time.Now().UTC()
	if err := engine.Schedule(FireEvent{ID: "doomed", Kind: KindTimer, FireAt: now.Add(30 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := engine.Schedule(FireEvent{ID: "kept", Kind: KindTimer, FireAt: now.Add(60 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	engine.Cancel("doomed")

	got := waitEvent(t, engine.C(), time.Second)
	if got.ID != "kept" {
		t.Fatalf("got %s, want kept", got.ID)
	}
}

func TestEngineNonBlockingDropsWhenConsumerIsSlow(t *testing.T) {
	engine := NewEngine(1)
	engine.Start()
	defer engine.Stop()

	now := time.Now().UTC().Add(20 * time.Millisecond)
	for i := 0; i < 25; i++ {
		if err := engine.Schedule(FireEvent{ID: "evt", Kind: KindTimer, FireAt: now}); err != nil {
			t.Fatalf("schedule event: %v", err)
		}
	}

	time.Sleep(120 * time.Millisecond)
	if engine.Dropped() == 0 {
		t.Fatalf("expected dropped events > 0, got %d", engine.Dropped())
	}
}

func TestScheduleValidatesFireTime(t *testing.T) {
	engine := NewEngine(1)
	if err := engine.Schedule(FireEvent{ID: "bad"}); err != ErrInvalidFireTime {
		t.Fatalf("expected ErrInvalidFireTime, got %v", err)
	}
}

func waitEvent(t *testing.T, ch <-chan FireEvent, timeout time.Duration) FireEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
		return FireEvent{}
	}
}
