// Package coordinator runs battles against the remote battle engine. A battle
// gathers turns from its agents each round, submits them, advances the
// simulation, and reports what happened, until the engine declares the battle
// over.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dyc3/discord-pokemon-battles/internal/agent"
	"github.com/dyc3/discord-pokemon-battles/internal/notify"
	"github.com/dyc3/discord-pokemon-battles/internal/otel"
	"github.com/dyc3/discord-pokemon-battles/internal/report"
	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

// Engine is the remote battle simulation API the coordinator drives. The
// concrete implementation lives in internal/battleapi.
type Engine interface {
	CreateBattle(ctx context.Context, teams []models.Team) (bid int, activePokemon int, err error)
	BattleContext(ctx context.Context, bid, participant int) (*models.BattleContext, error)
	SubmitTurn(ctx context.Context, bid, participant int, turn models.Turn) error
	SimulateRound(ctx context.Context, bid int) (*models.RoundResult, error)
	Results(ctx context.Context, bid int) (*models.BattleResults, error)
}

// PokemonSaver persists a pokemon's post-battle state.
type PokemonSaver interface {
	SavePokemon(ctx context.Context, p *models.Pokemon) error
}

// State is a battle's lifecycle phase.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateConcluding State = "concluding"
	StateTerminated State = "terminated"
)

// DefaultBotDelay paces bot-only battles so spectators can follow along.
const DefaultBotDelay = 2 * time.Second

// The sentinel sent to human participants when a battle dies on an error.
const discardedMessage = "Whoops, something bad happened, so the battle has been discarded."

// Config assembles a battle. Engine, Registry, and Teams are required; the
// rest default to no-ops.
type Config struct {
	Engine   Engine
	Registry *Registry
	// Teams defines the sides. Team i is played by the agent at index i.
	Teams []models.Team
	// Store receives post-battle pokemon updates. Nil skips reconciliation.
	Store PokemonSaver
	// Channel receives round commentary and results. Nil drops commentary.
	Channel notify.Channel
	// Publish receives battle lifecycle events for stream subscribers.
	Publish func(event Event)
	// BotDelay is the pause between rounds when every agent is a bot.
	// Zero means DefaultBotDelay; negative disables the pause.
	BotDelay time.Duration
}

// Battle is one running battle. Create with New, add agents, then Start.
type Battle struct {
	cfg Config

	mu           sync.Mutex
	bid          int
	state        State
	round        int
	agents       []agent.Agent
	transactions []models.Transaction
	winner       string
	err          error

	done chan struct{}
}

// New returns an unstarted battle.
func New(cfg Config) (*Battle, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("coordinator: engine is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("coordinator: registry is required")
	}
	if len(cfg.Teams) == 0 {
		return nil, fmt.Errorf("coordinator: teams are required")
	}
	if cfg.BotDelay == 0 {
		cfg.BotDelay = DefaultBotDelay
	}
	return &Battle{
		cfg:   cfg,
		state: StatePending,
		done:  make(chan struct{}),
	}, nil
}

// AddAgent appends a participant. Agent order must match team order. Agents
// can only be added before Start; the round loop reads the list unlocked.
func (b *Battle) AddAgent(a agent.Agent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StatePending {
		return fmt.Errorf("battle already started")
	}
	b.agents = append(b.agents, a)
	return nil
}

// isJustBots reports whether every participant is computer controlled.
func (b *Battle) isJustBots() bool {
	for _, a := range b.agents {
		if _, ok := a.(*agent.Human); ok {
			return false
		}
	}
	return true
}

// Start creates the battle on the engine and launches the round loop in the
// background. The returned battle id is also available via Status. ctx bounds
// the whole battle, not just creation.
func (b *Battle) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StatePending {
		b.mu.Unlock()
		return fmt.Errorf("battle already started")
	}
	if len(b.agents) != len(b.cfg.Teams) {
		n, m := len(b.agents), len(b.cfg.Teams)
		b.mu.Unlock()
		return fmt.Errorf("battle has %d agents for %d teams", n, m)
	}
	b.mu.Unlock()

	bid, active, err := b.cfg.Engine.CreateBattle(ctx, b.cfg.Teams)
	if err != nil {
		return fmt.Errorf("create battle: %w", err)
	}

	b.mu.Lock()
	b.bid = bid
	b.state = StateInProgress
	b.mu.Unlock()

	b.cfg.Registry.Add(b)
	slog.Info("battle created", "bid", bid, "active_pokemon", active, "agents", len(b.agents))
	b.publish(Event{Type: EventBattleStarted, BattleID: bid, Detail: b.matchup()})

	go b.run(ctx)
	return nil
}

// run drives the battle to completion. It owns the state transitions from
// in_progress onward.
func (b *Battle) run(ctx context.Context) {
	err := b.simulate(ctx)

	b.mu.Lock()
	b.err = err
	b.state = StateTerminated
	bid := b.bid
	b.mu.Unlock()

	outcome := "completed"
	if err != nil {
		outcome = "failed"
		slog.Error("battle failed", "bid", bid, "err", err)
		b.notifyHumans(discardedMessage)
	}
	otel.RecordBattle(ctx, outcome)
	b.publish(Event{Type: EventBattleEnded, BattleID: bid, Detail: outcome})

	b.cfg.Registry.Remove(b)
	close(b.done)
}

func (b *Battle) simulate(ctx context.Context) error {
	bid := b.bidLocked()
	for {
		start := time.Now()
		if err := b.gatherTurns(ctx); err != nil {
			return fmt.Errorf("gather turns: %w", err)
		}

		slog.Debug("simulating round", "bid", bid, "round", b.Round())
		result, err := b.cfg.Engine.SimulateRound(ctx, bid)
		if err != nil {
			return fmt.Errorf("simulate round: %w", err)
		}
		otel.RecordRound(ctx, time.Since(start))

		b.mu.Lock()
		b.round++
		round := b.round
		b.transactions = append(b.transactions, result.Transactions...)
		b.mu.Unlock()

		chunks := report.PrettyAll(result.Transactions, b.cfg.Teams)
		if len(chunks) == 0 {
			chunks = []string{"[No transactions]"}
		}
		for _, text := range chunks {
			b.send(ctx, text)
		}
		b.publish(Event{Type: EventRoundCompleted, BattleID: bid, Round: round, Lines: chunks})

		if result.Ended {
			break
		}
		if b.isJustBots() && b.cfg.BotDelay > 0 {
			select {
			case <-time.After(b.cfg.BotDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	b.mu.Lock()
	b.state = StateConcluding
	b.mu.Unlock()

	results, err := b.cfg.Engine.Results(ctx, bid)
	if err != nil {
		return fmt.Errorf("fetch results: %w", err)
	}

	winner := fmt.Sprintf("team %d", results.Winner)
	if results.Winner >= 0 && results.Winner < len(b.agents) {
		winner = b.agents[results.Winner].Name()
	}
	b.mu.Lock()
	b.winner = winner
	b.mu.Unlock()

	slog.Info("battle concluded", "bid", bid, "winner", winner)
	b.send(ctx, fmt.Sprintf("Battle Results\nWinner: %s", winner))
	b.reconcile(ctx, results)
	return nil
}

// gatherTurns collects a turn from every agent concurrently. A failure or
// timeout for any one agent aborts the whole gather; the remaining agents'
// contexts are canceled.
func (b *Battle) gatherTurns(ctx context.Context) error {
	bid := b.bidLocked()
	slog.Debug("asking agents for turns", "bid", bid, "agents", len(b.agents))

	g, ctx := errgroup.WithContext(ctx)
	for i, a := range b.agents {
		g.Go(func() error {
			bc, err := b.cfg.Engine.BattleContext(ctx, bid, i)
			if err != nil {
				return fmt.Errorf("context for %s: %w", a.Name(), err)
			}
			turn, err := a.GetTurn(ctx, bc)
			if err != nil {
				return err
			}
			otel.RecordTurn(ctx, a.Name())
			slog.Debug("submitting turn", "bid", bid, "agent", a.Name(), "type", turn.TurnType())
			if err := b.cfg.Engine.SubmitTurn(ctx, bid, i, turn); err != nil {
				return fmt.Errorf("submit turn for %s: %w", a.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// reconcile copies the engine's final pokemon state back onto the original
// teams and saves any pokemon that came from storage. Mismatched pairs are
// logged and skipped; reconciliation never fails the battle.
func (b *Battle) reconcile(ctx context.Context, results *models.BattleResults) {
	if b.cfg.Store == nil {
		return
	}
	parties := models.FlattenParties(b.cfg.Teams)
	for pi, party := range parties {
		if pi >= len(results.Parties) {
			break
		}
		final := results.Parties[pi].Pokemon
		for si := range party.Pokemon {
			if si >= len(final) {
				break
			}
			orig := &party.Pokemon[si]
			if orig.NatDex != final[si].NatDex {
				slog.Error("post-battle pokemon mismatch, skipping", "bid", b.bidLocked(), "party", pi, "slot", si, "have", orig.NatDex, "got", final[si].NatDex)
				continue
			}
			if orig.ID == "" {
				continue
			}
			id := orig.ID
			*orig = final[si]
			orig.ID = id
			if err := b.cfg.Store.SavePokemon(ctx, orig); err != nil {
				slog.Error("saving pokemon after battle", "bid", b.bidLocked(), "pokemon", orig.Name, "err", err)
			}
		}
	}
}

func (b *Battle) send(ctx context.Context, text string) {
	if b.cfg.Channel == nil {
		return
	}
	if err := b.cfg.Channel.Send(ctx, text); err != nil {
		slog.Warn("sending battle commentary", "bid", b.bidLocked(), "err", err)
	}
}

// notifyHumans sends a direct message to every human participant, mentioning
// them. Send failures are swallowed; the battle is already dead.
func (b *Battle) notifyHumans(text string) {
	if b.cfg.Channel == nil {
		return
	}
	for _, a := range b.agents {
		if _, ok := a.(*agent.Human); !ok {
			continue
		}
		if err := b.cfg.Channel.Send(context.Background(), a.Mention()+" "+text); err != nil {
			slog.Warn("notifying participant", "agent", a.Name(), "err", err)
		}
	}
}

func (b *Battle) publish(e Event) {
	if b.cfg.Publish == nil {
		return
	}
	b.cfg.Publish(e)
}

func (b *Battle) matchup() string {
	names := make([]string, 0, len(b.agents))
	for _, a := range b.agents {
		names = append(names, a.Name())
	}
	out := ""
	for i, n := range names {
		if i > 0 {
			out += " vs. "
		}
		out += n
	}
	return out
}

func (b *Battle) bidLocked() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bid
}

// Round returns the number of completed rounds.
func (b *Battle) Round() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.round
}

// Done is closed when the battle has fully terminated and left the registry.
func (b *Battle) Done() <-chan struct{} { return b.done }

// Err returns the battle's terminal error, nil while running or on success.
func (b *Battle) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Status is a point-in-time snapshot of a battle.
type Status struct {
	BattleID     int      `json:"battle_id"`
	State        State    `json:"state"`
	Round        int      `json:"round"`
	Agents       []string `json:"agents"`
	Transactions int      `json:"transactions"`
	Winner       string   `json:"winner,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Status returns a snapshot of the battle.
func (b *Battle) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Status{
		BattleID:     b.bid,
		State:        b.state,
		Round:        b.round,
		Transactions: len(b.transactions),
		Winner:       b.winner,
	}
	for _, a := range b.agents {
		s.Agents = append(s.Agents, a.Name())
	}
	if b.err != nil {
		s.Error = b.err.Error()
	}
	return s
}
