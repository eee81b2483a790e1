// Package strategy holds the named turn-deciding functions used by bot agents.
// The registry is populated once at process start and read-only afterwards;
// battle assembly validates names against it before a battle ever starts.
package strategy

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

// ErrUnknown is returned when a strategy name is not registered. It is a
// battle-assembly error: lookups never happen mid-round.
var ErrUnknown = fmt.Errorf("unknown battle strategy")

// Func decides one turn from a battle context. Builtin strategies never block;
// network-backed ones (e.g. gemini) respect ctx.
type Func func(ctx context.Context, bc *models.BattleContext) (models.Turn, error)

// Registry maps strategy names to decision functions.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns a registry with the builtin strategies registered.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.Register("simple", Simple)
	r.Register("inflicter", Inflicter)
	return r
}

// Register adds a strategy. Only call during process startup, before any
// battle is created; the registry is not locked.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Lookup returns the strategy registered under name.
func (r *Registry) Lookup(name string) (Func, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return fn, nil
}

// Names returns all registered strategy names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	return names
}

// Simple targets the first opponent and picks a random move among those with
// PP remaining. When every move is out of PP it falls back to move index 0,
// letting the engine resolve the forced move (Struggle).
func Simple(_ context.Context, bc *models.BattleContext) (models.Turn, error) {
	if len(bc.Opponents) == 0 {
		return nil, fmt.Errorf("battle context has no opponents")
	}
	target := bc.Opponents[0]
	var available []int
	for i, move := range bc.Pokemon.Moves {
		if move.CurrentPP > 0 {
			available = append(available, i)
		}
	}
	if len(available) == 0 {
		return bc.Fight(target, 0), nil
	}
	return bc.Fight(target, available[rand.Intn(len(available))]), nil
}

// Inflicter prefers a status-inflicting move (ailment or flinch chance) while
// the first opponent has no status condition, then a damaging move, then
// anything.
func Inflicter(_ context.Context, bc *models.BattleContext) (models.Turn, error) {
	if len(bc.Opponents) == 0 {
		return nil, fmt.Errorf("battle context has no opponents")
	}
	if len(bc.Pokemon.Moves) == 0 {
		return nil, fmt.Errorf("pokemon %s has no moves", bc.Pokemon.Name)
	}

	var statusMoves, damageMoves []int
	for i, move := range bc.Pokemon.Moves {
		if move.Ailment > 0 || move.FlinchChance > 0 {
			statusMoves = append(statusMoves, i)
		}
		if move.Category != models.MoveCategoryStatus {
			damageMoves = append(damageMoves, i)
		}
	}

	target := bc.Opponents[0]
	opponentClean := target.Pokemon == nil || target.Pokemon.StatusEffects.None()

	var pool []int
	switch {
	case opponentClean && len(statusMoves) > 0:
		pool = statusMoves
	case len(damageMoves) > 0:
		pool = damageMoves
	default:
		pool = make([]int, len(bc.Pokemon.Moves))
		for i := range pool {
			pool[i] = i
		}
	}
	return bc.Fight(target, pool[rand.Intn(len(pool))]), nil
}
