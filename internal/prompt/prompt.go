// Package prompt collects turn decisions from humans. A prompt is published
// to the outside (event stream, chat notification) with a unique id, and the
// decision comes back through Resolve, typically from an HTTP handler.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dyc3/discord-pokemon-battles/pkg/models"
	"github.com/google/uuid"
)

// ErrTimeout is returned when a human does not answer a prompt in time.
var ErrTimeout = fmt.Errorf("prompt timed out")

// ErrUnknownPrompt is returned by Resolve for an id that is not pending.
// Either the id is bogus or the prompt already timed out.
var ErrUnknownPrompt = fmt.Errorf("no such pending prompt")

// DefaultTimeout is how long a human has to answer before their turn (and the
// battle) fails.
const DefaultTimeout = 3 * time.Minute

// MoveOption is one selectable move shown to the human.
type MoveOption struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	CurrentPP int    `json:"current_pp"`
	MaxPP     int    `json:"max_pp"`
	Power     int    `json:"power"`
}

// Prompt is the published view of one pending decision.
type Prompt struct {
	ID        string       `json:"id"`
	Handle    string       `json:"handle"`
	Pokemon   string       `json:"pokemon"`
	Moves     []MoveOption `json:"moves"`
	CreatedAt time.Time    `json:"created_at"`
}

// Answer is a resolved decision.
type Answer struct {
	Move int `json:"move"`
}

type pending struct {
	prompt Prompt
	moves  int
	answer chan Answer
}

// Manager tracks pending prompts. The zero value is not usable; use New.
type Manager struct {
	mu      sync.Mutex
	pending map[string]*pending

	// Timeout bounds how long PromptTurn waits for an answer.
	Timeout time.Duration
	// Publish, when set, is called with each new Prompt so subscribers can
	// surface it. Called outside the manager lock.
	Publish func(p Prompt)
}

// New returns a manager with the default timeout.
func New() *Manager {
	return &Manager{
		pending: make(map[string]*pending),
		Timeout: DefaultTimeout,
	}
}

// PromptTurn publishes a prompt for the given context and blocks until the
// human answers, the timeout passes, or ctx is done. It satisfies the
// coordinator's prompter contract for human agents.
func (m *Manager) PromptTurn(ctx context.Context, handle string, bc *models.BattleContext) (models.Turn, error) {
	if len(bc.Opponents) == 0 {
		return nil, fmt.Errorf("battle context has no opponents")
	}

	p := &pending{
		prompt: Prompt{
			ID:        uuid.NewString(),
			Handle:    handle,
			Pokemon:   bc.Pokemon.Name,
			CreatedAt: time.Now(),
		},
		moves:  len(bc.Pokemon.Moves),
		answer: make(chan Answer, 1),
	}
	for i, mv := range bc.Pokemon.Moves {
		p.prompt.Moves = append(p.prompt.Moves, MoveOption{
			Index:     i,
			Name:      mv.Name,
			CurrentPP: mv.CurrentPP,
			MaxPP:     mv.MaxPP,
			Power:     mv.Power,
		})
	}

	m.mu.Lock()
	m.pending[p.prompt.ID] = p
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.pending, p.prompt.ID)
		m.mu.Unlock()
	}()

	slog.Info("prompting for turn", "prompt", p.prompt.ID, "handle", handle, "pokemon", bc.Pokemon.Name)
	if m.Publish != nil {
		m.Publish(p.prompt)
	}

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case a := <-p.answer:
		return bc.Fight(bc.Opponents[0], a.Move), nil
	case <-timer.C:
		return nil, fmt.Errorf("prompt %s for %s: %w", p.prompt.ID, handle, ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve answers the pending prompt with the given move index.
func (m *Manager) Resolve(id string, move int) error {
	m.mu.Lock()
	p, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("prompt %s: %w", id, ErrUnknownPrompt)
	}
	if move < 0 || move >= p.moves {
		return fmt.Errorf("prompt %s: move index %d out of range", id, move)
	}
	select {
	case p.answer <- Answer{Move: move}:
		return nil
	default:
		// Already answered; first answer wins.
		return nil
	}
}

// List returns the currently pending prompts, newest last.
func (m *Manager) List() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Prompt, 0, len(m.pending))
	for _, p := range m.pending {
		out = append(out, p.prompt)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
