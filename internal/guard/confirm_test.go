package guard

import (
	"testing"
	"time"

	"github.com/kverlaine/opsdeck/internal/clock"
)

func TestConfirm_ConsumeWithinWindow(t *testing.T) {
	clk := clock.NewFake()
	c := NewConfirm(clk, 8*time.Second)

	c.Arm("remove", "web-1")
	clk.Advance(3 * time.Second)

	if !c.Armed("remove", "web-1") {
		t.Fatal("record must be armed within the window")
	}
	if !c.Consume("remove", "web-1") {
		t.Fatal("matching second press within window must consume")
	}
	if c.Consume("remove", "web-1") {
		t.Error("consume is one-shot; third press must not fire")
	}
}

func TestConfirm_ExpiresLazily(t *testing.T) {
	clk := clock.NewFake()
	c := NewConfirm(clk, 8*time.Second)

	c.Arm("remove", "web-1")
	clk.Advance(8*time.Second + time.Millisecond)

	if c.Armed("remove", "web-1") {
		t.Error("record must be invalid at t0+8001ms")
	}
	if c.Consume("remove", "web-1") {
		t.Error("expired record must not consume")
	}
}

func TestConfirm_MismatchedPairDoesNotConsume(t *testing.T) {
	clk := clock.NewFake()
	c := NewConfirm(clk, 8*time.Second)

	c.Arm("remove", "web-1")

	if c.Consume("remove", "web-2") {
		t.Error("different target must not consume")
	}
	if c.Consume("stop", "web-1") {
		t.Error("different action must not consume")
	}
	if !c.Consume("remove", "web-1") {
		t.Error("original pair must still be armed after mismatched presses")
	}
}

func TestConfirm_TargetChangeInvalidatesImmediately(t *testing.T) {
	clk := clock.NewFake()
	c := NewConfirm(clk, 8*time.Second)

	c.Arm("remove", "web-1")
	clk.Advance(time.Millisecond)

	// Selection change wins over expiry timing, even at t0+1ms.
	c.OnTargetChanged("web-2")
	if c.Armed("remove", "web-1") {
		t.Error("target change must invalidate immediately")
	}

	// Re-selecting the original target within the window must not
	// revive the record.
	c.OnTargetChanged("web-1")
	if c.Armed("remove", "web-1") {
		t.Error("invalidation is terminal; re-selection must not re-arm")
	}
}

func TestConfirm_ViewChangeAndAdvancedModeInvalidate(t *testing.T) {
	clk := clock.NewFake()
	c := NewConfirm(clk, 8*time.Second)

	c.Arm("remove", "web-1")
	c.OnViewChanged()
	if c.Armed("remove", "web-1") {
		t.Error("view change must invalidate")
	}

	c.Arm("remove", "web-1")
	c.OnAdvancedModeDisabled()
	if c.Armed("remove", "web-1") {
		t.Error("disabling advanced mode must invalidate")
	}
}

func TestConfirm_Remaining(t *testing.T) {
	clk := clock.NewFake()
	c := NewConfirm(clk, 8*time.Second)

	if c.Remaining() != 0 {
		t.Error("unarmed record has no remaining window")
	}

	c.Arm("remove", "web-1")
	clk.Advance(3 * time.Second)
	if got := c.Remaining(); got != 5*time.Second {
		t.Errorf("Remaining = %v, want 5s", got)
	}
}
