package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/dyc3/discord-pokemon-battles/internal/strategy"
	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

func TestNewBotUnknownStrategy(t *testing.T) {
	t.Parallel()

	reg := strategy.NewRegistry()
	if _, err := NewBot(reg, "does-not-exist", ""); !errors.Is(err, strategy.ErrUnknown) {
		t.Errorf("NewBot: got %v, want ErrUnknown", err)
	}
}

func TestBotDefaultName(t *testing.T) {
	t.Parallel()

	reg := strategy.NewRegistry()
	b, err := NewBot(reg, "simple", "")
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	if got, want := b.Name(), "Bot (simple)"; got != want {
		t.Errorf("Name: got %q, want %q", got, want)
	}
	if b.Mention() != b.Name() {
		t.Errorf("Mention: got %q, want %q", b.Mention(), b.Name())
	}
}

func TestBotGetTurn(t *testing.T) {
	t.Parallel()

	reg := strategy.NewRegistry()
	b, err := NewBot(reg, "simple", "rocko")
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	bc := &models.BattleContext{
		Pokemon:   models.Pokemon{Moves: []models.Move{{Name: "Tackle", CurrentPP: 10}}},
		Opponents: []models.Target{{Party: 1, Slot: 0}},
	}
	turn, err := b.GetTurn(context.Background(), bc)
	if err != nil {
		t.Fatalf("GetTurn: %v", err)
	}
	if _, ok := turn.(models.FightTurn); !ok {
		t.Errorf("GetTurn: got %T, want FightTurn", turn)
	}
}

type fixedPrompter struct {
	turn models.Turn
	err  error
}

func (p fixedPrompter) PromptTurn(context.Context, string, *models.BattleContext) (models.Turn, error) {
	return p.turn, p.err
}

func TestHumanGetTurn(t *testing.T) {
	t.Parallel()

	want := models.FightTurn{Move: 2}
	h := &Human{Handle: "misty", Prompter: fixedPrompter{turn: want}}
	turn, err := h.GetTurn(context.Background(), &models.BattleContext{})
	if err != nil {
		t.Fatalf("GetTurn: %v", err)
	}
	if turn != models.Turn(want) {
		t.Errorf("GetTurn: got %v, want %v", turn, want)
	}
	if got := h.Mention(); got != "@misty" {
		t.Errorf("Mention: got %q", got)
	}
}

func TestHumanWithoutPrompter(t *testing.T) {
	t.Parallel()

	h := &Human{Handle: "misty"}
	if _, err := h.GetTurn(context.Background(), &models.BattleContext{}); !errors.Is(err, ErrUnreachableParticipant) {
		t.Errorf("GetTurn: got %v, want ErrUnreachableParticipant", err)
	}
}
