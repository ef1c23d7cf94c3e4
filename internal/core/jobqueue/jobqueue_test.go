package jobqueue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/forgepm/forge/internal/core/id"
	"github.com/forgepm/forge/internal/core/unitgraph"
)

func smallGraph(t *testing.T) (*unitgraph.Graph, unitgraph.UnitID, unitgraph.UnitID) {
	t.Helper()
	in := id.NewInterner()
	base := in.Intern("base", "1.0.0", id.Source{})
	top := in.Intern("top", "1.0.0", id.Source{})

	baseID := unitgraph.UnitID{Package: base, Target: "lib", TKind: unitgraph.TargetLibrary}
	topID := unitgraph.UnitID{Package: top, Target: "lib", TKind: unitgraph.TargetLibrary}

	g := &unitgraph.Graph{
		Roots: []unitgraph.UnitID{topID},
		Units: map[unitgraph.UnitID]*unitgraph.Unit{
			baseID: {ID: baseID, Package: base, Target: unitgraph.Target{Name: "lib", Kind: unitgraph.TargetLibrary}},
			topID:  {ID: topID, Package: top, Target: unitgraph.Target{Name: "lib", Kind: unitgraph.TargetLibrary}, Deps: []unitgraph.UnitID{baseID}},
		},
	}
	return g, baseID, topID
}

type fakeInvoker struct {
	mu      sync.Mutex
	ran     []unitgraph.UnitID
	failing map[unitgraph.UnitID]bool
}

func (f *fakeInvoker) Run(ctx context.Context, u *unitgraph.Unit, stdout, stderr func(string)) error {
	f.mu.Lock()
	f.ran = append(f.ran, u.ID)
	fail := f.failing[u.ID]
	f.mu.Unlock()
	stdout("compiling " + string(u.Package.Name()))
	if fail {
		return errors.New("boom")
	}
	return nil
}

type fakeFreshness struct {
	mu        sync.Mutex
	fresh     map[unitgraph.UnitID]bool
	committed map[unitgraph.UnitID]bool
}

func (f *fakeFreshness) IsFresh(u *unitgraph.Unit) (bool, error) {
	return f.fresh[u.ID], nil
}

func (f *fakeFreshness) Commit(u *unitgraph.Unit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.committed == nil {
		f.committed = map[unitgraph.UnitID]bool{}
	}
	f.committed[u.ID] = true
	return nil
}

func TestRunDispatchesDepsBeforeDependents(t *testing.T) {
	g, baseID, topID := smallGraph(t)
	inv := &fakeInvoker{failing: map[unitgraph.UnitID]bool{}}
	fresh := &fakeFreshness{fresh: map[unitgraph.UnitID]bool{}}

	q := New(g, inv, fresh, nil, Diagnostics{}, 2)
	if err := q.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(inv.ran) != 2 {
		t.Fatalf("expected 2 units run, got %d", len(inv.ran))
	}
	if inv.ran[0] != baseID {
		t.Fatalf("expected base unit to run before top unit; order was %v", inv.ran)
	}
	_ = topID
}

func TestRunSkipsTokenForFreshUnits(t *testing.T) {
	g, baseID, topID := smallGraph(t)
	inv := &fakeInvoker{failing: map[unitgraph.UnitID]bool{}}
	fresh := &fakeFreshness{fresh: map[unitgraph.UnitID]bool{baseID: true}}

	var statuses []Status
	diag := Diagnostics{OnStatus: func(u *unitgraph.Unit, s Status) {
		if u.ID == baseID {
			statuses = append(statuses, s)
		}
	}}

	q := New(g, inv, fresh, nil, diag, 2)
	if err := q.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, uid := range inv.ran {
		if uid == baseID {
			t.Fatal("fresh unit should not have been dispatched to the invoker")
		}
	}
	foundFresh := false
	for _, s := range statuses {
		if s == StatusFresh {
			foundFresh = true
		}
	}
	if !foundFresh {
		t.Fatal("expected a StatusFresh notification for the fresh unit")
	}
	_ = topID
}

func TestRunDrainsInFlightThenReturnsFirstError(t *testing.T) {
	g, baseID, topID := smallGraph(t)
	inv := &fakeInvoker{failing: map[unitgraph.UnitID]bool{baseID: true}}
	fresh := &fakeFreshness{fresh: map[unitgraph.UnitID]bool{}}

	q := New(g, inv, fresh, nil, Diagnostics{}, 2)
	err := q.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error from the failing base unit")
	}

	found := false
	for _, uid := range inv.ran {
		if uid == baseID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the failing unit to actually have been dispatched")
	}
	_ = topID
}

// TestRunCommitsOnlyDirtyUnitsThatSucceed guards the invariant a freshness
// checker's IsFresh must never persist on its own: the queue commits a
// unit's fingerprint exactly once, after its job has actually run and
// succeeded, and never for a unit that was skipped as already fresh or one
// whose job failed. A checker that persisted inside IsFresh instead would
// make the queue's own later re-check of the same unit see that write and
// report it fresh without ever building it.
func TestRunCommitsOnlyDirtyUnitsThatSucceed(t *testing.T) {
	g, baseID, topID := smallGraph(t)
	inv := &fakeInvoker{failing: map[unitgraph.UnitID]bool{}}
	fresh := &fakeFreshness{fresh: map[unitgraph.UnitID]bool{baseID: true}}

	q := New(g, inv, fresh, nil, Diagnostics{}, 2)
	if err := q.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fresh.committed[baseID] {
		t.Fatal("a unit skipped as fresh must not be committed")
	}
	if !fresh.committed[topID] {
		t.Fatal("a unit that actually compiled successfully must be committed")
	}
}

func TestRunDoesNotCommitAFailedUnit(t *testing.T) {
	g, baseID, _ := smallGraph(t)
	inv := &fakeInvoker{failing: map[unitgraph.UnitID]bool{baseID: true}}
	fresh := &fakeFreshness{fresh: map[unitgraph.UnitID]bool{}}

	q := New(g, inv, fresh, nil, Diagnostics{}, 2)
	if err := q.Run(context.Background()); err == nil {
		t.Fatal("expected an error from the failing base unit")
	}

	if fresh.committed[baseID] {
		t.Fatal("a unit whose job failed must not be committed")
	}
}
