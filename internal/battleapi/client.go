// Package battleapi is the typed HTTP binding to the battle engine. The engine
// owns all battle rules and state; this client only shuttles JSON. Calls are
// not retried: any failure is fatal to the battle that issued it.
package battleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

// DefaultBaseURL is where the engine lives when no configuration overrides it.
const DefaultBaseURL = "http://api:4000"

// RemoteError reports a battle engine call that failed, either at the network
// level or with a non-success status. Callers treat it as fatal to the
// current battle.
type RemoteError struct {
	Method string
	Path   string
	Status int   // 0 when the request never completed
	Err    error // underlying transport error, if any
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("battle api %s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("battle api %s %s: status %d", e.Method, e.Path, e.Status)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Client calls the battle engine HTTP API. It is safe for concurrent use;
// the coordinator fetches contexts for all participants of a battle at once.
type Client struct {
	BaseURL    string       // e.g. "http://api:4000"
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL. An empty baseURL falls back to
// DefaultBaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{BaseURL: baseURL}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return &RemoteError{Method: method, Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{Method: method, Path: path, Status: resp.StatusCode}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &RemoteError{Method: method, Path: path, Status: resp.StatusCode, Err: err}
		}
		return nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// CreateBattle posts the team roster and returns the new battle id along with
// the engine's initial active-pokemon hint. Team order defines the side
// indices used by every other call for this battle.
func (c *Client) CreateBattle(ctx context.Context, teams []models.Team) (bid int, activePokemon int, err error) {
	var out struct {
		BattleID      int `json:"BattleId"`
		ActivePokemon int `json:"ActivePokemon"`
	}
	err = c.doJSON(ctx, http.MethodPost, "/battle/new", map[string]any{"teams": teams}, &out)
	if err != nil {
		return 0, 0, err
	}
	return out.BattleID, out.ActivePokemon, nil
}

// BattleContext fetches the current decision context for one side. Safe to
// call concurrently for different participant indices on the same battle.
func (c *Client) BattleContext(ctx context.Context, bid, participant int) (*models.BattleContext, error) {
	var out models.BattleContext
	path := "/battle/" + strconv.Itoa(bid) + "/context/" + strconv.Itoa(participant)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitTurn posts one participant's turn for the current round. The response
// body is ignored on success.
func (c *Client) SubmitTurn(ctx context.Context, bid, participant int, turn models.Turn) error {
	b, err := models.EncodeTurn(turn)
	if err != nil {
		return err
	}
	path := "/battle/" + strconv.Itoa(bid) + "/turn/" + strconv.Itoa(participant)
	return c.doJSON(ctx, http.MethodPost, path, json.RawMessage(b), nil)
}

// SimulateRound advances the battle exactly one round. Must only be called
// once every participant's turn for the round has been submitted.
func (c *Client) SimulateRound(ctx context.Context, bid int) (*models.RoundResult, error) {
	var out models.RoundResult
	path := "/battle/" + strconv.Itoa(bid) + "/simulate"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Results fetches the final battle state. Only valid after SimulateRound has
// reported Ended.
func (c *Client) Results(ctx context.Context, bid int) (*models.BattleResults, error) {
	var out models.BattleResults
	path := "/battle/" + strconv.Itoa(bid) + "/results"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateOptions constrains pokemon generation. Nil fields mean fully
// random; the knobs are independent.
type GenerateOptions struct {
	NatDex *int  `json:"NatDex,omitempty"`
	Level  *int  `json:"Level,omitempty"`
	Moves  []int `json:"Moves,omitempty"`
}

// GeneratePokemon asks the engine for a random pokemon subject to opts.
// Used outside the battle loop to populate rosters.
func (c *Client) GeneratePokemon(ctx context.Context, opts GenerateOptions) (*models.Pokemon, error) {
	var out models.Pokemon
	if err := c.doJSON(ctx, http.MethodPost, "/pokemon/generate", opts, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
