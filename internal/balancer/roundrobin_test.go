package balancer

import "testing"

func newRoundRobinForTest(hosts []string) *roundRobinBalancer {
	return &roundRobinBalancer{statusBase: newStatusBase(hosts)}
}

func TestRoundRobinRotatesWhenAllOnline(t *testing.T) {
	b := newRoundRobinForTest([]string{"a:1", "b:1", "c:1"})
	for id := 0; id < 3; id++ {
		b.MarkOnline(id)
	}

	want := []int{0, 1, 2, 0, 1, 2}
	for i, wantID := range want {
		info, err := b.Next()
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if info.ID != wantID {
			t.Fatalf("call %d: selected %d, want %d", i, info.ID, wantID)
		}
	}
}

func TestRoundRobinRetriesUndefCursor(t *testing.T) {
	b := newRoundRobinForTest([]string{"a:1", "b:1", "c:1"})

	// An untried cursor position is picked without advancing, so a failing
	// endpoint at the cursor is retried until it settles.
	for i := 0; i < 3; i++ {
		info, err := b.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.ID != 0 {
			t.Fatalf("call %d: selected %d, want cursor position 0", i, info.ID)
		}
	}
}

func TestRoundRobinSkipsOfflineCursor(t *testing.T) {
	b := newRoundRobinForTest([]string{"a:1", "b:1", "c:1"})
	b.MarkOffline(0)

	// Cursor endpoint is offline and nothing is online: the smallest undef
	// endpoint is picked and the cursor advances past it.
	info, err := b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 1 {
		t.Fatalf("selected %d, want 1", info.ID)
	}

	// Cursor is now 2.
	info, err = b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 2 {
		t.Fatalf("selected %d, want cursor position 2", info.ID)
	}
}

func TestRoundRobinPrefersOnlineOverUndefCursor(t *testing.T) {
	b := newRoundRobinForTest([]string{"a:1", "b:1", "c:1"})
	b.MarkOnline(2)

	// Cursor 0 is undef but endpoint 2 is online; the online endpoint wins.
	info, err := b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 2 {
		t.Fatalf("selected %d, want online endpoint 2", info.ID)
	}
}

func TestRoundRobinOptimalLifetime(t *testing.T) {
	b := newRoundRobinForTest([]string{"a:1", "b:1"})
	b.MarkOnline(0)

	info, err := b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Settings.UseFallbackSessionLifetime {
		t.Error("round robin never uses the fallback lifetime")
	}
}

func TestRoundRobinNoBetterHost(t *testing.T) {
	b := newRoundRobinForTest([]string{"a:1", "b:1"})
	b.MarkOnline(1)

	if b.HasBetter(0) {
		t.Error("round robin has no notion of a better host")
	}
	if got := b.WorthChecking(0); got != nil {
		t.Errorf("WorthChecking = %v, want nil", got)
	}
}
