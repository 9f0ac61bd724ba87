package balancer

import "testing"

func newFirstOrRandomForTest(hosts []string) *firstOrRandomBalancer {
	return &firstOrRandomBalancer{statusBase: newStatusBase(hosts)}
}

func TestFirstOrRandomPrefersPrimary(t *testing.T) {
	b := newFirstOrRandomForTest([]string{"a:1", "b:1", "c:1"})

	// Primary is undef: picked as optimal.
	info, err := b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 0 || info.Settings.UseFallbackSessionLifetime {
		t.Fatalf("selected %+v, want optimal endpoint 0", info)
	}

	// Primary online: still picked, even when others are online too.
	b.MarkOnline(0)
	b.MarkOnline(2)
	info, err = b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 0 || info.Settings.UseFallbackSessionLifetime {
		t.Fatalf("selected %+v, want optimal endpoint 0", info)
	}
}

func TestFirstOrRandomFallbackLifetime(t *testing.T) {
	b := newFirstOrRandomForTest([]string{"a:1", "b:1", "c:1"})
	b.MarkOffline(0)

	// Primary offline: a random available endpoint gets the fallback
	// lifetime so the primary is re-tried soon.
	seen := make(map[int]bool)
	for i := 0; i < 50; i++ {
		info, err := b.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.ID == 0 {
			t.Fatal("selected the offline primary")
		}
		if !info.Settings.UseFallbackSessionLifetime {
			t.Fatal("fallback selection must use the fallback lifetime")
		}
		seen[info.ID] = true
	}
	if !seen[1] || !seen[2] {
		t.Errorf("fallback endpoints not covered, seen %v", seen)
	}
}

func TestFirstOrRandomPrefersOnlineOverUndefPrimary(t *testing.T) {
	b := newFirstOrRandomForTest([]string{"a:1", "b:1"})
	b.MarkOnline(1)

	info, err := b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 1 || !info.Settings.UseFallbackSessionLifetime {
		t.Fatalf("selected %+v, want fallback endpoint 1", info)
	}
}

func TestFirstOrRandomHasBetter(t *testing.T) {
	b := newFirstOrRandomForTest([]string{"a:1", "b:1"})

	if b.HasBetter(1) {
		t.Error("no better host while the primary is not online")
	}

	b.MarkOnline(0)
	if !b.HasBetter(1) {
		t.Error("primary online is better than any other endpoint")
	}
	if b.HasBetter(0) {
		t.Error("nothing is better than the primary itself")
	}
}

func TestFirstOrRandomWorthChecking(t *testing.T) {
	b := newFirstOrRandomForTest([]string{"a:1", "b:1"})

	got := b.WorthChecking(1)
	if len(got) != 1 || got[0].ID != 0 || got[0].Settings.UseFallbackSessionLifetime {
		t.Errorf("WorthChecking(1) = %v, want the primary as optimal", got)
	}

	if got := b.WorthChecking(0); got != nil {
		t.Errorf("WorthChecking(0) = %v, want nil", got)
	}
}
