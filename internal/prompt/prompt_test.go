package prompt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

func promptContext() *models.BattleContext {
	return &models.BattleContext{
		Pokemon: models.Pokemon{
			Name:  "Starmie",
			Moves: []models.Move{{Name: "Surf", CurrentPP: 15}, {Name: "Recover", CurrentPP: 10}},
		},
		Opponents: []models.Target{{Party: 1, Slot: 0}},
	}
}

func TestPromptResolve(t *testing.T) {
	t.Parallel()

	m := New()
	published := make(chan Prompt, 1)
	m.Publish = func(p Prompt) { published <- p }

	type result struct {
		turn models.Turn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		turn, err := m.PromptTurn(context.Background(), "misty", promptContext())
		done <- result{turn, err}
	}()

	var p Prompt
	select {
	case p = <-published:
	case <-time.After(time.Second):
		t.Fatal("prompt never published")
	}
	if p.Handle != "misty" || p.Pokemon != "Starmie" || len(p.Moves) != 2 {
		t.Fatalf("published prompt: %+v", p)
	}

	if err := m.Resolve(p.ID, 1); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	res := <-done
	if res.err != nil {
		t.Fatalf("PromptTurn: %v", res.err)
	}
	ft, ok := res.turn.(models.FightTurn)
	if !ok {
		t.Fatalf("PromptTurn: got %T", res.turn)
	}
	if ft.Move != 1 || ft.Target.Party != 1 {
		t.Errorf("turn: %+v", ft)
	}

	// Resolved prompts are no longer pending.
	if n := len(m.List()); n != 0 {
		t.Errorf("List after resolve: %d pending", n)
	}
}

func TestListOrderedByCreation(t *testing.T) {
	t.Parallel()

	m := New()
	published := make(chan Prompt, 2)
	m.Publish = func(p Prompt) { published <- p }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the prompts one at a time so creation order is deterministic.
	for _, handle := range []string{"ash", "misty"} {
		handle := handle
		go func() {
			_, _ = m.PromptTurn(ctx, handle, promptContext())
		}()
		select {
		case <-published:
		case <-time.After(time.Second):
			t.Fatal("prompt never published")
		}
	}

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("List: %d pending, want 2", len(list))
	}
	if list[0].Handle != "ash" || list[1].Handle != "misty" {
		t.Errorf("List order: got %q then %q, want ash then misty", list[0].Handle, list[1].Handle)
	}
	if list[0].CreatedAt.After(list[1].CreatedAt) {
		t.Error("List: CreatedAt not ascending")
	}
}

func TestPromptTimeout(t *testing.T) {
	t.Parallel()

	m := New()
	m.Timeout = 20 * time.Millisecond
	_, err := m.PromptTurn(context.Background(), "misty", promptContext())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("PromptTurn: got %v, want ErrTimeout", err)
	}
}

func TestPromptContextCancel(t *testing.T) {
	t.Parallel()

	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := m.PromptTurn(ctx, "misty", promptContext())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("PromptTurn: got %v, want context.Canceled", err)
	}
}

func TestResolveUnknown(t *testing.T) {
	t.Parallel()

	m := New()
	if err := m.Resolve("nope", 0); !errors.Is(err, ErrUnknownPrompt) {
		t.Errorf("Resolve: got %v, want ErrUnknownPrompt", err)
	}
}

func TestResolveOutOfRangeMove(t *testing.T) {
	t.Parallel()

	m := New()
	m.Timeout = 200 * time.Millisecond
	published := make(chan Prompt, 1)
	m.Publish = func(p Prompt) { published <- p }

	errc := make(chan error, 1)
	go func() {
		_, err := m.PromptTurn(context.Background(), "misty", promptContext())
		errc <- err
	}()
	p := <-published

	if err := m.Resolve(p.ID, 5); err == nil {
		t.Error("Resolve with out-of-range move: want error")
	}
	// The prompt stays pending and then times out.
	if err := <-errc; !errors.Is(err, ErrTimeout) {
		t.Errorf("PromptTurn: got %v, want ErrTimeout", err)
	}
}
