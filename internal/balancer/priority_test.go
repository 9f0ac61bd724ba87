package balancer

import "testing"

func newPriorityForTest(hosts []string, priorities []int) *priorityBalancer {
	i := 0
	return newPriorityBalancer(newStatusBase(hosts), func(Endpoint) int {
		p := priorities[i]
		i++
		return p
	})
}

func TestPriorityInOrder(t *testing.T) {
	b := newPriorityBalancer(newStatusBase([]string{"a:1", "b:1", "c:1"}), priorityInOrder)

	// All undef: lowest id wins and is optimal.
	info, err := b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 0 || info.Settings.UseFallbackSessionLifetime {
		t.Fatalf("selected %+v, want optimal endpoint 0", info)
	}

	// First endpoint offline: the next in order is picked, as sub-optimal.
	b.MarkOffline(0)
	info, err = b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 1 || !info.Settings.UseFallbackSessionLifetime {
		t.Fatalf("selected %+v, want fallback endpoint 1", info)
	}
}

func TestPriorityOnlineBeatsUndef(t *testing.T) {
	b := newPriorityForTest([]string{"a:1", "b:1"}, []int{1, 0})

	// Endpoint 1 is preferred, but only endpoint 0 is online.
	b.MarkOnline(0)
	info, err := b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 0 {
		t.Fatalf("selected %d, want the online endpoint 0", info.ID)
	}
	if !info.Settings.UseFallbackSessionLifetime {
		t.Error("endpoint 0 is not globally optimal, want fallback lifetime")
	}

	// Once endpoint 1 comes online it wins, as optimal.
	b.MarkOnline(1)
	info, err = b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 1 || info.Settings.UseFallbackSessionLifetime {
		t.Fatalf("selected %+v, want optimal endpoint 1", info)
	}
}

func TestPriorityNeverPicksWorseOnline(t *testing.T) {
	b := newPriorityForTest([]string{"a:1", "b:1", "c:1"}, []int{2, 0, 1})
	for id := 0; id < 3; id++ {
		b.MarkOnline(id)
	}

	for i := 0; i < 10; i++ {
		info, err := b.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.ID != 1 {
			t.Fatalf("selected %d, want minimum priority endpoint 1", info.ID)
		}
	}
}

func TestPriorityTieBreaksByLowestID(t *testing.T) {
	b := newPriorityForTest([]string{"a:1", "b:1", "c:1"}, []int{5, 5, 5})
	for id := 0; id < 3; id++ {
		b.MarkOnline(id)
	}

	info, err := b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 0 {
		t.Errorf("selected %d, want lowest id 0", info.ID)
	}
}

func TestPriorityHasBetter(t *testing.T) {
	b := newPriorityForTest([]string{"a:1", "b:1"}, []int{1, 0})

	// Better endpoint exists but is not online yet.
	b.MarkOnline(0)
	if b.HasBetter(0) {
		t.Error("endpoint 1 is preferred but not online, HasBetter must be false")
	}

	b.MarkOnline(1)
	if !b.HasBetter(0) {
		t.Error("endpoint 1 is online and preferred over 0")
	}
	if b.HasBetter(1) {
		t.Error("nothing is better than the best online endpoint")
	}
}

func TestPriorityWorthChecking(t *testing.T) {
	b := newPriorityForTest([]string{"a:1", "b:1", "c:1"}, []int{1, 0, 2})
	b.MarkOnline(0)
	b.MarkOffline(2)

	// With a current endpoint, only strictly better candidates are listed.
	got := b.WorthChecking(0)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("WorthChecking(0) = %v, want only endpoint 1", got)
	}

	// Without a current endpoint, every undef and offline endpoint counts.
	got = b.WorthChecking(NoCurrentEndpoint)
	if len(got) != 2 {
		t.Fatalf("WorthChecking(none) = %v, want endpoints 1 and 2", got)
	}
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("WorthChecking(none) ids = %d, %d, want 1, 2", got[0].ID, got[1].ID)
	}
}

func TestPriorityOptimalHint(t *testing.T) {
	b := newPriorityForTest([]string{"a:1", "b:1"}, []int{0, 3})

	// Selected endpoint carries the optimal hint only when its priority is
	// the global minimum, regardless of statuses.
	b.MarkOnline(1)
	info, err := b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 1 || !info.Settings.UseFallbackSessionLifetime {
		t.Fatalf("selected %+v, want fallback endpoint 1", info)
	}

	b.MarkOnline(0)
	info, err = b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 0 || info.Settings.UseFallbackSessionLifetime {
		t.Fatalf("selected %+v, want optimal endpoint 0", info)
	}
}

func TestPriorityNearestHostname(t *testing.T) {
	b, err := New(Config{
		Hosts:         []string{"zk-eu-1:2181", "zk-us-1:2181", "zk-eu-2:2181"},
		Policy:        PolicyNearestHostname,
		LocalHostname: "zk-eu-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Exact hostname match outranks everything.
	info, err := b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 0 {
		t.Errorf("selected %d, want nearest endpoint 0", info.ID)
	}
}

func TestPriorityLevenshtein(t *testing.T) {
	b, err := New(Config{
		Hosts:         []string{"keeper-b:2181", "keeper-a:2181"},
		Policy:        PolicyLevenshtein,
		LocalHostname: "keeper-a",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := b.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ID != 1 {
		t.Errorf("selected %d, want levenshtein-closest endpoint 1", info.ID)
	}
}
