package registry_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/registry"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"go.uber.org/zap"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	return registry.New(zap.NewNop(), 10, 50*time.Millisecond)
}

func TestInsertCreatesLevelAndOrder(t *testing.T) {
	r := newRegistry(t)
	now := time.Now()

	res := r.Insert("o1", flowtypes.SideBid, 100, 5, now)
	if !res.IsNewLevel {
		t.Fatal("expected first insert at a price to report a new level")
	}
	if res.Level.Count != 1 || res.Level.TotalSize != 5 {
		t.Fatalf("unexpected level state: %+v", res.Level)
	}
	if r.OrderCount() != 1 || r.LevelCount() != 1 {
		t.Fatalf("expected 1 order and 1 level, got %d/%d", r.OrderCount(), r.LevelCount())
	}

	res2 := r.Insert("o2", flowtypes.SideBid, 100, 3, now)
	if res2.IsNewLevel {
		t.Fatal("second insert at the same price should not report a new level")
	}
	if res2.Level.Count != 2 || res2.Level.TotalSize != 8 {
		t.Fatalf("unexpected aggregate after second insert: %+v", res2.Level)
	}
}

func TestInsertOfKnownIdentityIsReplace(t *testing.T) {
	r := newRegistry(t)
	now := time.Now()

	r.Insert("o1", flowtypes.SideBid, 100, 5, now)
	res := r.Insert("o1", flowtypes.SideBid, 100, 9, now.Add(time.Millisecond))

	if !res.TreatedAsReplace {
		t.Fatal("re-inserting a known id must be treated as a replace")
	}
	lvl, ok := r.Level(flowtypes.LevelKey{Side: flowtypes.SideBid, Price: 100})
	if !ok || lvl.TotalSize != 9 {
		t.Fatalf("expected level size 9 after replace, got %+v", lvl)
	}
}

func TestCancelRemovesOrderAndDeletesEmptyLevel(t *testing.T) {
	r := newRegistry(t)
	now := time.Now()

	r.Insert("o1", flowtypes.SideAsk, 200, 10, now)
	cr := r.Cancel("o1", now.Add(time.Millisecond))

	if !cr.Found {
		t.Fatal("expected cancel to find the order")
	}
	if cr.Size != 10 {
		t.Fatalf("expected cancelled size 10, got %d", cr.Size)
	}
	if !cr.LevelRemoved {
		t.Fatal("level should be removed once its last order cancels")
	}
	if r.OrderCount() != 0 || r.LevelCount() != 0 {
		t.Fatalf("expected empty registry, got %d orders / %d levels", r.OrderCount(), r.LevelCount())
	}
}

func TestCancelOfUnknownIdentityIsIgnored(t *testing.T) {
	r := newRegistry(t)
	cr := r.Cancel("ghost", time.Now())
	if cr.Found {
		t.Fatal("cancel of an unknown identity must not be reported as found")
	}
}

func TestReplaceToZeroFollowsCancelPath(t *testing.T) {
	r := newRegistry(t)
	now := time.Now()

	r.Insert("o1", flowtypes.SideBid, 100, 5, now)
	rr := r.Replace("o1", 0, now.Add(time.Millisecond))

	if !rr.WentToZero || !rr.Removed {
		t.Fatalf("expected replace-to-zero to remove the order: %+v", rr)
	}
	if !rr.Cancel.Found || !rr.Cancel.LevelRemoved {
		t.Fatalf("expected the cancel path to run for a replace to zero: %+v", rr.Cancel)
	}
}

func TestReplaceShrinkWithoutTradeCueCountsAsCancel(t *testing.T) {
	r := newRegistry(t)
	now := time.Now()

	r.Insert("o1", flowtypes.SideBid, 100, 10, now)
	rr := r.Replace("o1", 4, now.Add(time.Millisecond))

	if rr.ConsumedCue {
		t.Fatal("no opposing trade was recorded, so this shrink must not read as consumption")
	}
	lvl, _ := r.Level(flowtypes.LevelKey{Side: flowtypes.SideBid, Price: 100})
	if lvl.Cancels != 1 {
		t.Fatalf("expected one cancel counted against the level, got %d", lvl.Cancels)
	}
	if lvl.TotalSize != 4 {
		t.Fatalf("expected level size 4 after shrink, got %d", lvl.TotalSize)
	}
}

func TestReplaceShrinkMatchingTradeReadsAsConsumption(t *testing.T) {
	r := newRegistry(t)
	now := time.Now()

	r.Insert("o1", flowtypes.SideBid, 100, 10, now)
	r.OnTrade(flowtypes.TradeEvent{
		Price: 100, Size: 6, Aggressor: flowtypes.SideAsk, Timestamp: now.Add(10 * time.Millisecond),
	})
	rr := r.Replace("o1", 4, now.Add(20*time.Millisecond))

	if !rr.ConsumedCue {
		t.Fatal("a matching opposing trade within the consumption window should read as consumption")
	}
	lvl, _ := r.Level(flowtypes.LevelKey{Side: flowtypes.SideBid, Price: 100})
	if lvl.Cancels != 0 {
		t.Fatalf("a consumption-driven shrink must not be counted as a cancel, got %d", lvl.Cancels)
	}
}

func TestConsumedOrderIsNotSpoofEligibleOnSubsequentCancel(t *testing.T) {
	r := newRegistry(t)
	now := time.Now()

	r.Insert("o1", flowtypes.SideBid, 100, 10, now)
	r.OnTrade(flowtypes.TradeEvent{
		Price: 100, Size: 10, Aggressor: flowtypes.SideAsk, Timestamp: now.Add(5 * time.Millisecond),
	})
	// Shrink to a non-zero size via the trade cue, then cancel the remainder.
	r.Replace("o1", 2, now.Add(10*time.Millisecond))
	cr := r.Cancel("o1", now.Add(15*time.Millisecond))

	if !cr.WasConsumed {
		t.Fatal("an order that was partially filled via the trade cue must carry WasConsumed through to cancel")
	}
}

func TestAdaptiveWindowFedOnEveryLevelChange(t *testing.T) {
	r := newRegistry(t)
	now := time.Now()

	for i := 0; i < 15; i++ {
		r.Insert(flowtypes.OrderID(time.Duration(i).String()), flowtypes.SideAsk, 100, 1, now.Add(time.Duration(i)*time.Millisecond))
	}
	if r.Window().Len() != 10 {
		t.Fatalf("expected window bounded at its configured capacity of 10, got %d", r.Window().Len())
	}
}

func TestReplaceOfUnknownIdentityIsIgnored(t *testing.T) {
	r := newRegistry(t)
	rr := r.Replace("ghost", 5, time.Now())
	if rr.Found {
		t.Fatal("replace of an unknown identity must not be reported as found")
	}
}
