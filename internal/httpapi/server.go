// Package httpapi is brock's HTTP surface: battle creation and inspection,
// pending turn prompts, pokemon storage, and the spectator event stream.
package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dyc3/discord-pokemon-battles/internal/agent"
	"github.com/dyc3/discord-pokemon-battles/internal/battleapi"
	"github.com/dyc3/discord-pokemon-battles/internal/coordinator"
	"github.com/dyc3/discord-pokemon-battles/internal/notify"
	"github.com/dyc3/discord-pokemon-battles/internal/prompt"
	"github.com/dyc3/discord-pokemon-battles/internal/store"
	"github.com/dyc3/discord-pokemon-battles/internal/strategy"
	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

// defaultMaxRequestBodyBytes is the default limit for request body size (1 MiB) to prevent OOM.
const defaultMaxRequestBodyBytes = 1 << 20

// Engine is the battle engine surface the HTTP API needs: everything the
// coordinator drives plus pokemon generation.
type Engine interface {
	coordinator.Engine
	GeneratePokemon(ctx context.Context, opts battleapi.GenerateOptions) (*models.Pokemon, error)
}

// ServerOptions configures the HTTP server and the battle plumbing behind it.
type ServerOptions struct {
	Addr           string
	APIKey         string       // if set, require X-API-Key header or query api_key
	Dev            bool         // enables CORS for a dev frontend on another origin
	MetricsHandler http.Handler // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics

	Engine     Engine
	Store      store.Store
	Strategies *strategy.Registry
	Prompts    *prompt.Manager
	Battles    *coordinator.Registry
	Channel    notify.Channel
	BotDelay   time.Duration
}

// App holds the HTTP server and the shared battle plumbing.
type App struct {
	Server  *http.Server
	Hub     *SSEHub
	Store   store.Store
	Battles *coordinator.Registry
	opts    ServerOptions
}

// NewApp builds the HTTP app and registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	if opts.Engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	if opts.Strategies == nil {
		opts.Strategies = strategy.NewRegistry()
	}
	if opts.Prompts == nil {
		opts.Prompts = prompt.New()
	}
	if opts.Battles == nil {
		opts.Battles = coordinator.NewRegistry()
	}

	hub := NewSSEHub()
	app := &App{Hub: hub, Store: opts.Store, Battles: opts.Battles, opts: opts}
	// Prompts surface on the stream so clients know a turn is wanted.
	opts.Prompts.Publish = func(p prompt.Prompt) {
		hub.PublishJSON(map[string]any{"type": "prompt", "prompt": p})
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = fmt.Fprintf(w, "# TYPE brock_battles_live gauge\n")
			_, _ = fmt.Fprintf(w, "brock_battles_live %d\n", opts.Battles.Len())
		})
	}

	mux.HandleFunc("/stream", hub.Handler())
	mux.HandleFunc("/ws", wsHandler(hub))

	mux.HandleFunc("/strategies", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"strategies": opts.Strategies.Names()})
	})

	mux.HandleFunc("/battles", app.handleBattles)
	mux.HandleFunc("/battles/", app.handleBattleByID)
	mux.HandleFunc("/prompts", app.handlePrompts)
	mux.HandleFunc("/prompts/", app.handlePromptResolve)
	mux.HandleFunc("/pokemon", app.handlePokemon)
	mux.HandleFunc("/pokemon/", app.handlePokemonByID)
	mux.HandleFunc("/profiles/", app.handleProfile)

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(defaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "brock")
	}
	app.Server = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Long enough for /stream keepalives; SSE writes reset the clock.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	if opts.Store != nil {
		app.Server.RegisterOnShutdown(func() {
			_ = opts.Store.Close()
		})
	}
	return app, nil
}

// participantSpec describes one side of a requested battle.
type participantSpec struct {
	// Type is "bot" or "human".
	Type string `json:"type"`
	// Strategy names the bot's strategy. Defaults to "simple".
	Strategy string `json:"strategy,omitempty"`
	// Handle identifies a human participant.
	Handle string `json:"handle,omitempty"`
	// PokemonID fields select stored pokemon for this side's party. Empty
	// means a party of generated pokemon.
	PokemonIDs []string `json:"pokemon_ids,omitempty"`
	// Generate is how many pokemon to generate when PokemonIDs is empty.
	// Defaults to 1.
	Generate int `json:"generate,omitempty"`
}

func (a *App) handleBattles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, a.Battles.List())
	case http.MethodPost:
		a.createBattle(w, r)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) createBattle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Participants []participantSpec `json:"participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(body.Participants) < 2 {
		writeJSONError(w, http.StatusBadRequest, "at least two participants required")
		return
	}

	battle, err := a.assembleBattle(r.Context(), body.Participants)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The battle outlives the request.
	if err := battle.Start(context.Background()); err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, battle.Status())
}

func (a *App) assembleBattle(ctx context.Context, specs []participantSpec) (*coordinator.Battle, error) {
	var teams []models.Team
	var agents []agent.Agent
	for i, spec := range specs {
		party, err := a.buildParty(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("participant %d: %w", i, err)
		}
		teams = append(teams, models.Team{Parties: []models.Party{party}})

		switch spec.Type {
		case "", "bot":
			name := spec.Strategy
			if name == "" {
				name = "simple"
			}
			bot, err := agent.NewBot(a.opts.Strategies, name, "")
			if err != nil {
				return nil, fmt.Errorf("participant %d: %w", i, err)
			}
			agents = append(agents, bot)
		case "human":
			if spec.Handle == "" {
				return nil, fmt.Errorf("participant %d: handle required for human", i)
			}
			agents = append(agents, &agent.Human{Handle: spec.Handle, Prompter: a.opts.Prompts})
		default:
			return nil, fmt.Errorf("participant %d: unknown type %q", i, spec.Type)
		}
	}

	battle, err := coordinator.New(coordinator.Config{
		Engine:   a.opts.Engine,
		Registry: a.Battles,
		Teams:    teams,
		Store:    a.opts.Store,
		Channel:  a.opts.Channel,
		BotDelay: a.opts.BotDelay,
		Publish: func(e coordinator.Event) {
			a.Hub.PublishJSON(e)
		},
	})
	if err != nil {
		return nil, err
	}
	for _, ag := range agents {
		if err := battle.AddAgent(ag); err != nil {
			return nil, err
		}
	}
	return battle, nil
}

func (a *App) buildParty(ctx context.Context, spec participantSpec) (models.Party, error) {
	var party models.Party
	if len(spec.PokemonIDs) > 0 {
		if a.Store == nil {
			return party, errors.New("no store configured, cannot use stored pokemon")
		}
		for _, id := range spec.PokemonIDs {
			p, err := a.Store.GetPokemon(ctx, id)
			if err != nil {
				return party, err
			}
			party.Pokemon = append(party.Pokemon, *p)
		}
		return party, nil
	}
	n := spec.Generate
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p, err := a.opts.Engine.GeneratePokemon(ctx, battleapi.GenerateOptions{})
		if err != nil {
			return party, fmt.Errorf("generate pokemon: %w", err)
		}
		party.Pokemon = append(party.Pokemon, *p)
	}
	return party, nil
}

func (a *App) handleBattleByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/battles/")
	bid, err := strconv.Atoi(rest)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid battle id")
		return
	}
	b, ok := a.Battles.Get(bid)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "battle not found")
		return
	}
	writeJSON(w, b.Status())
}

func (a *App) handlePrompts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, a.opts.Prompts.List())
}

func (a *App) handlePromptResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/prompts/")
	var body struct {
		Move int `json:"move"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := a.opts.Prompts.Resolve(id, body.Move); err != nil {
		if errors.Is(err, prompt.ErrUnknownPrompt) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (a *App) handlePokemon(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if a.Store == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "no store configured")
			return
		}
		list, err := a.Store.ListPokemon(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, pokemonSummaries(list))
	case http.MethodPost:
		a.generatePokemon(w, r)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) generatePokemon(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NatDex *int   `json:"natdex,omitempty"`
		Level  *int   `json:"level,omitempty"`
		Moves  []int  `json:"moves,omitempty"`
		Owner  string `json:"owner,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := a.opts.Engine.GeneratePokemon(r.Context(), battleapi.GenerateOptions{
		NatDex: body.NatDex,
		Level:  body.Level,
		Moves:  body.Moves,
	})
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	if body.Owner != "" {
		if a.Store == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "no store configured")
			return
		}
		if _, err := a.Store.EnsureProfile(r.Context(), body.Owner); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := a.Store.SavePokemon(r.Context(), p); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := a.Store.AddProfilePokemon(r.Context(), body.Owner, p.ID); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, map[string]any{
		"id":      p.ID,
		"pokemon": p,
	})
}

func (a *App) handlePokemonByID(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/pokemon/")
	switch r.Method {
	case http.MethodGet:
		p, err := a.Store.GetPokemon(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, p)
	case http.MethodDelete:
		if err := a.Store.DeletePokemon(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) handleProfile(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	handle := strings.TrimPrefix(r.URL.Path, "/profiles/")
	prof, err := a.Store.GetProfile(r.Context(), handle)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, prof)
}

// pokemonSummary is the list view of a stored pokemon.
type pokemonSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NatDex    int    `json:"natdex"`
	Level     int    `json:"level"`
	CurrentHP int    `json:"current_hp"`
}

func pokemonSummaries(list []models.Pokemon) []pokemonSummary {
	out := make([]pokemonSummary, 0, len(list))
	for _, p := range list {
		out = append(out, pokemonSummary{
			ID:        p.ID,
			Name:      p.Name,
			NatDex:    p.NatDex,
			Level:     p.Level,
			CurrentHP: p.CurrentHP,
		})
	}
	return out
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (frontend on a different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack forwards to the underlying writer so websocket upgrades work.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	return h.Hijack()
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
