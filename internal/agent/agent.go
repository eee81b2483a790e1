// Package agent defines battle participants. An agent is anything that can be
// asked for a turn given a battle context: a bot driven by a strategy, or a
// human whose answer is collected through a prompter.
package agent

import (
	"context"
	"fmt"

	"github.com/dyc3/discord-pokemon-battles/internal/strategy"
	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

// ErrUnreachableParticipant is returned when a human agent has no way to be
// asked for a turn.
var ErrUnreachableParticipant = fmt.Errorf("participant cannot be reached for a turn")

// Agent is one battle participant. Participant order in a battle matches
// team order; the agent at index i decides for team i.
type Agent interface {
	// Name is the display name used in round reports and results.
	Name() string
	// Mention is the address used when notifying the participant directly.
	// For bots it equals Name.
	Mention() string
	// GetTurn decides the participant's action for the current round. It
	// blocks until a decision is made, ctx is done, or the participant is
	// determined to be unreachable.
	GetTurn(ctx context.Context, bc *models.BattleContext) (models.Turn, error)
}

// Bot is a computer-controlled participant backed by a named strategy.
type Bot struct {
	name string
	fn   strategy.Func
}

// NewBot builds a bot using the named strategy from reg. An unknown strategy
// name fails here, at battle assembly, rather than mid-round.
func NewBot(reg *strategy.Registry, strategyName, name string) (*Bot, error) {
	fn, err := reg.Lookup(strategyName)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = fmt.Sprintf("Bot (%s)", strategyName)
	}
	return &Bot{name: name, fn: fn}, nil
}

func (b *Bot) Name() string    { return b.name }
func (b *Bot) Mention() string { return b.name }

func (b *Bot) GetTurn(ctx context.Context, bc *models.BattleContext) (models.Turn, error) {
	turn, err := b.fn(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("bot %s: %w", b.name, err)
	}
	return turn, nil
}

// Prompter collects a turn decision from a human. Implementations block until
// the human answers, the prompt times out, or ctx is done.
type Prompter interface {
	PromptTurn(ctx context.Context, handle string, bc *models.BattleContext) (models.Turn, error)
}

// Human is a human-controlled participant. Its turns are gathered by
// prompting through the configured Prompter.
type Human struct {
	// Handle identifies the human on the chat platform.
	Handle   string
	Prompter Prompter
}

func (h *Human) Name() string    { return h.Handle }
func (h *Human) Mention() string { return "@" + h.Handle }

func (h *Human) GetTurn(ctx context.Context, bc *models.BattleContext) (models.Turn, error) {
	if h.Prompter == nil {
		return nil, fmt.Errorf("human %s: %w", h.Handle, ErrUnreachableParticipant)
	}
	turn, err := h.Prompter.PromptTurn(ctx, h.Handle, bc)
	if err != nil {
		return nil, fmt.Errorf("human %s: %w", h.Handle, err)
	}
	return turn, nil
}
