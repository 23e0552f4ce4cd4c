package view

import "testing"

func TestBeginRender_InvalidatesEarlierTickets(t *testing.T) {
	tr := NewTracker(System)

	first := tr.BeginRender(System)
	if tr.IsStale(first) {
		t.Fatal("freshly issued ticket should not be stale")
	}

	second := tr.BeginRender(System)
	if !tr.IsStale(first) {
		t.Error("earlier ticket must be stale once a newer one exists")
	}
	if tr.IsStale(second) {
		t.Error("most recent ticket must be valid")
	}
}

func TestIsStale_ViewSwitch(t *testing.T) {
	tr := NewTracker(System)
	ticket := tr.BeginRender(System)

	// Switching views issues a new ticket for the new view.
	tr.BeginRender(Docker)

	if !tr.IsStale(ticket) {
		t.Error("ticket from the previous view must be stale")
	}
	if got := tr.Current(); got != Docker {
		t.Errorf("Current() = %q, want %q", got, Docker)
	}
}

func TestIsStale_NeverRevalidates(t *testing.T) {
	tr := NewTracker(System)
	ticket := tr.BeginRender(System)
	tr.BeginRender(Docker)

	// Returning to the original view does not revive the old ticket:
	// the epoch has advanced.
	tr.BeginRender(System)
	if !tr.IsStale(ticket) {
		t.Error("an invalidated ticket must never become valid again")
	}
}

func TestBeginRender_MonotonicEpochs(t *testing.T) {
	tr := NewTracker(System)
	var last uint64
	for i := 0; i < 100; i++ {
		tk := tr.BeginRender(System)
		if tk.Epoch <= last {
			t.Fatalf("epoch %d not greater than previous %d", tk.Epoch, last)
		}
		last = tk.Epoch
	}
}
