package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dyc3/discord-pokemon-battles/internal/agent"
	"github.com/dyc3/discord-pokemon-battles/internal/notify"
	"github.com/dyc3/discord-pokemon-battles/internal/strategy"
	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

// fakeEngine simulates a battle that ends after a fixed number of rounds. It
// records turn submissions so tests can assert on the round protocol.
type fakeEngine struct {
	rounds int

	mu        sync.Mutex
	round     int
	submitted map[int][]models.Turn
	simulated int
}

func newFakeEngine(rounds int) *fakeEngine {
	return &fakeEngine{rounds: rounds, submitted: make(map[int][]models.Turn)}
}

func (e *fakeEngine) CreateBattle(ctx context.Context, teams []models.Team) (int, int, error) {
	return 42, len(teams), nil
}

func (e *fakeEngine) BattleContext(ctx context.Context, bid, participant int) (*models.BattleContext, error) {
	return &models.BattleContext{
		Pokemon: models.Pokemon{
			Name:  "Geodude",
			Moves: []models.Move{{Name: "Tackle", CurrentPP: 10}},
		},
		Team:      participant,
		Opponents: []models.Target{{Party: 1 - participant, Slot: 0}},
	}, nil
}

func (e *fakeEngine) SubmitTurn(ctx context.Context, bid, participant int, turn models.Turn) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitted[participant] = append(e.submitted[participant], turn)
	return nil
}

func (e *fakeEngine) SimulateRound(ctx context.Context, bid int) (*models.RoundResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.round++
	e.simulated++
	return &models.RoundResult{
		Transactions: []models.Transaction{{
			Name: "DamageTransaction",
			Args: map[string]any{
				"Target": map[string]any{"Pokemon": map[string]any{"Name": "Geodude"}},
				"Damage": 5,
			},
		}},
		Ended: e.round >= e.rounds,
	}, nil
}

func (e *fakeEngine) Results(ctx context.Context, bid int) (*models.BattleResults, error) {
	return &models.BattleResults{Winner: 0, Parties: testParties()}, nil
}

func testParties() []models.Party {
	return []models.Party{
		{Pokemon: []models.Pokemon{{Name: "Geodude", NatDex: 74, CurrentHP: 30}}},
		{Pokemon: []models.Pokemon{{Name: "Geodude", NatDex: 74, CurrentHP: 0}}},
	}
}

func testTeams() []models.Team {
	return models.BuildTeamsSingle(
		models.Party{Pokemon: []models.Pokemon{{Name: "Geodude", NatDex: 74, CurrentHP: 40}}},
		models.Party{Pokemon: []models.Pokemon{{Name: "Geodude", NatDex: 74, CurrentHP: 40}}},
	)
}

func newBotBattle(t *testing.T, cfg Config) *Battle {
	t.Helper()
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reg := strategy.NewRegistry()
	for i := 0; i < len(cfg.Teams); i++ {
		bot, err := agent.NewBot(reg, "simple", "")
		if err != nil {
			t.Fatalf("NewBot: %v", err)
		}
		if err := b.AddAgent(bot); err != nil {
			t.Fatalf("AddAgent: %v", err)
		}
	}
	return b
}

func waitDone(t *testing.T, b *Battle) {
	t.Helper()
	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("battle did not terminate")
	}
}

func TestBattleRunsToCompletion(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine(3)
	registry := NewRegistry()
	var sent strings.Builder
	b := newBotBattle(t, Config{
		Engine:   engine,
		Registry: registry,
		Teams:    testTeams(),
		Channel:  &notify.Writer{W: &sent},
		BotDelay: -1,
	})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, b)

	if err := b.Err(); err != nil {
		t.Fatalf("battle error: %v", err)
	}
	if b.Round() != 3 {
		t.Errorf("rounds: got %d, want 3", b.Round())
	}
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.simulated != 3 {
		t.Errorf("simulated: got %d, want 3", engine.simulated)
	}
	// Every participant submitted one turn per round.
	for p := 0; p < 2; p++ {
		if got := len(engine.submitted[p]); got != 3 {
			t.Errorf("participant %d submitted %d turns, want 3", p, got)
		}
	}
	if !strings.Contains(sent.String(), "Winner: Bot (simple)") {
		t.Errorf("summary not sent: %q", sent.String())
	}
	if !strings.Contains(sent.String(), "took 5 damage.") {
		t.Errorf("commentary not sent: %q", sent.String())
	}
}

func TestRegistryEmptyAfterBattles(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	var battles []*Battle
	for i := 0; i < 5; i++ {
		b := newBotBattle(t, Config{
			Engine:   newFakeEngine(2),
			Registry: registry,
			Teams:    testTeams(),
			BotDelay: -1,
		})
		if err := b.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		battles = append(battles, b)
	}
	for _, b := range battles {
		waitDone(t, b)
	}
	if n := registry.Len(); n != 0 {
		t.Errorf("registry: %d battles left", n)
	}
}

func TestBattleEvents(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var events []Event
	b := newBotBattle(t, Config{
		Engine:   newFakeEngine(2),
		Registry: NewRegistry(),
		Teams:    testTeams(),
		BotDelay: -1,
		Publish: func(e Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	})
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, b)

	mu.Lock()
	defer mu.Unlock()
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	want := []string{EventBattleStarted, EventRoundCompleted, EventRoundCompleted, EventBattleEnded}
	if len(types) != len(want) {
		t.Fatalf("events: %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, types[i], want[i])
		}
	}
}

// failingAgent never produces a turn.
type failingAgent struct{}

func (failingAgent) Name() string    { return "broken" }
func (failingAgent) Mention() string { return "broken" }
func (failingAgent) GetTurn(ctx context.Context, bc *models.BattleContext) (models.Turn, error) {
	return nil, errors.New("no turn for you")
}

func TestGatherAbortsOnAgentFailure(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	b, err := New(Config{
		Engine:   newFakeEngine(2),
		Registry: registry,
		Teams:    testTeams(),
		BotDelay: -1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sreg := strategy.NewRegistry()
	bot, err := agent.NewBot(sreg, "simple", "")
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	if err := b.AddAgent(bot); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := b.AddAgent(failingAgent{}); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, b)

	if err := b.Err(); err == nil || !strings.Contains(err.Error(), "no turn for you") {
		t.Errorf("battle error: %v", err)
	}
	if registry.Len() != 0 {
		t.Error("failed battle left in registry")
	}
}

func TestUnreachableHumanFailsBattle(t *testing.T) {
	t.Parallel()

	var sent strings.Builder
	ch := &notify.Writer{W: &sent}
	b, err := New(Config{
		Engine:   newFakeEngine(2),
		Registry: NewRegistry(),
		Teams:    testTeams(),
		Channel:  ch,
		BotDelay: -1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sreg := strategy.NewRegistry()
	bot, _ := agent.NewBot(sreg, "simple", "")
	if err := b.AddAgent(bot); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := b.AddAgent(&agent.Human{Handle: "misty"}); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, b)

	if err := b.Err(); !errors.Is(err, agent.ErrUnreachableParticipant) {
		t.Errorf("battle error: %v", err)
	}
	if !strings.Contains(sent.String(), "@misty "+discardedMessage) {
		t.Errorf("human not notified: %q", sent.String())
	}
}

func TestStartValidatesAgentCount(t *testing.T) {
	t.Parallel()

	b, err := New(Config{
		Engine:   newFakeEngine(1),
		Registry: NewRegistry(),
		Teams:    testTeams(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Start(context.Background()); err == nil {
		t.Error("Start with no agents: want error")
	}
}

// savingStore records saved pokemon.
type savingStore struct {
	mu    sync.Mutex
	saved []models.Pokemon
}

func (s *savingStore) SavePokemon(ctx context.Context, p *models.Pokemon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, *p)
	return nil
}

func TestReconcileSavesOwnedPokemon(t *testing.T) {
	t.Parallel()

	store := &savingStore{}
	teams := models.BuildTeamsSingle(
		models.Party{Pokemon: []models.Pokemon{{ID: "abc-123", Name: "Geodude", NatDex: 74, CurrentHP: 40}}},
		models.Party{Pokemon: []models.Pokemon{{Name: "Geodude", NatDex: 74, CurrentHP: 40}}},
	)
	b := newBotBattle(t, Config{
		Engine:   newFakeEngine(1),
		Registry: NewRegistry(),
		Teams:    teams,
		Store:    store,
		BotDelay: -1,
	})
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, b)
	if err := b.Err(); err != nil {
		t.Fatalf("battle error: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	// Only the pokemon with a storage id is saved; the ephemeral one is not.
	if len(store.saved) != 1 {
		t.Fatalf("saved %d pokemon, want 1", len(store.saved))
	}
	p := store.saved[0]
	if p.ID != "abc-123" {
		t.Errorf("saved pokemon lost its id: %q", p.ID)
	}
	if p.CurrentHP != 30 {
		t.Errorf("saved pokemon HP: got %d, want final state 30", p.CurrentHP)
	}
}

func TestReconcileSkipsMismatchedSpecies(t *testing.T) {
	t.Parallel()

	store := &savingStore{}
	teams := models.BuildTeamsSingle(
		models.Party{Pokemon: []models.Pokemon{{ID: "abc-123", Name: "Geodude", NatDex: 74, CurrentHP: 40}}},
		models.Party{Pokemon: []models.Pokemon{{ID: "def-456", Name: "Staryu", NatDex: 120, CurrentHP: 40}}},
	)
	b := newBotBattle(t, Config{
		Engine:   newFakeEngine(1),
		Registry: NewRegistry(),
		Teams:    teams,
		Store:    store,
		BotDelay: -1,
	})

	// The engine reports a different species in the first slot.
	results := &models.BattleResults{Winner: 0, Parties: []models.Party{
		{Pokemon: []models.Pokemon{{Name: "Onix", NatDex: 95, CurrentHP: 12}}},
		{Pokemon: []models.Pokemon{{Name: "Staryu", NatDex: 120, CurrentHP: 5}}},
	}}
	b.reconcile(context.Background(), results)

	if got := teams[0].Parties[0].Pokemon[0]; got.NatDex != 74 || got.CurrentHP != 40 {
		t.Errorf("mismatched pokemon was modified: %+v", got)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saved) != 1 {
		t.Fatalf("saved %d pokemon, want 1", len(store.saved))
	}
	if p := store.saved[0]; p.ID != "def-456" || p.CurrentHP != 5 {
		t.Errorf("matching pair not reconciled: %+v", p)
	}
}

func TestAddAgentAfterStart(t *testing.T) {
	t.Parallel()

	b := newBotBattle(t, Config{
		Engine:   newFakeEngine(1),
		Registry: NewRegistry(),
		Teams:    testTeams(),
		BotDelay: -1,
	})
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	reg := strategy.NewRegistry()
	bot, _ := agent.NewBot(reg, "simple", "")
	if err := b.AddAgent(bot); err == nil {
		t.Error("AddAgent after Start should fail")
	}
	waitDone(t, b)
}

func TestStatusSnapshot(t *testing.T) {
	t.Parallel()

	b := newBotBattle(t, Config{
		Engine:   newFakeEngine(1),
		Registry: NewRegistry(),
		Teams:    testTeams(),
		BotDelay: -1,
	})
	if got := b.Status().State; got != StatePending {
		t.Errorf("state before start: %s", got)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, b)

	s := b.Status()
	if s.State != StateTerminated {
		t.Errorf("state: %s", s.State)
	}
	if s.BattleID != 42 {
		t.Errorf("battle id: %d", s.BattleID)
	}
	if s.Winner != "Bot (simple)" {
		t.Errorf("winner: %q", s.Winner)
	}
	if len(s.Agents) != 2 {
		t.Errorf("agents: %v", s.Agents)
	}
}
