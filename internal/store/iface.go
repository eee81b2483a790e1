// Package store persists pokemon and trainer profiles between battles.
// Pokemon are stored as JSON documents keyed by id, mirroring their wire
// representation; profiles map a chat handle to the pokemon it owns.
package store

import (
	"context"
	"errors"

	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

// ErrNotFound is returned for lookups of ids or handles that do not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface.
// Implementations: *sqlite.Store (SQLite) and *postgres.Store (PostgreSQL).
type Store interface {
	// Pokemon
	SavePokemon(ctx context.Context, p *models.Pokemon) error
	GetPokemon(ctx context.Context, id string) (*models.Pokemon, error)
	ListPokemon(ctx context.Context) ([]models.Pokemon, error)
	DeletePokemon(ctx context.Context, id string) error

	// Profiles
	EnsureProfile(ctx context.Context, handle string) (Profile, error)
	GetProfile(ctx context.Context, handle string) (Profile, error)
	AddProfilePokemon(ctx context.Context, handle, pokemonID string) error
	ListProfilePokemon(ctx context.Context, handle string) ([]models.Pokemon, error)

	Close() error
}
