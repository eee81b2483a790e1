package coordinator

import "testing"

func TestRegistryGetAndList(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	b, err := New(Config{
		Engine:   newFakeEngine(1),
		Registry: r,
		Teams:    testTeams(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.bid = 7
	r.Add(b)

	if got, ok := r.Get(7); !ok || got != b {
		t.Errorf("Get(7): %v, %v", got, ok)
	}
	if _, ok := r.Get(8); ok {
		t.Error("Get(8): want miss")
	}
	list := r.List()
	if len(list) != 1 || list[0].BattleID != 7 {
		t.Errorf("List: %+v", list)
	}

	r.Remove(b)
	if r.Len() != 0 {
		t.Errorf("Len after remove: %d", r.Len())
	}
	// Removing again is a no-op.
	r.Remove(b)
}
