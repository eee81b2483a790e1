package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dyc3/discord-pokemon-battles/internal/store"
	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

// SavePokemon inserts the pokemon, assigning it an id when it has none, or
// updates the existing document.
func (s *Store) SavePokemon(ctx context.Context, p *models.Pokemon) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	if p.ID == "" {
		p.ID = uuid.NewString()
		_, err = s.DB.ExecContext(ctx,
			`INSERT INTO pokemon(pokemon_id, doc, created_at, updated_at) VALUES(?, ?, ?, ?)`,
			p.ID, string(doc), now, now)
		return err
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE pokemon SET doc = ?, updated_at = ? WHERE pokemon_id = ?`,
		string(doc), now, p.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = s.DB.ExecContext(ctx,
			`INSERT INTO pokemon(pokemon_id, doc, created_at, updated_at) VALUES(?, ?, ?, ?)`,
			p.ID, string(doc), now, now)
	}
	return err
}

func (s *Store) GetPokemon(ctx context.Context, id string) (*models.Pokemon, error) {
	var doc string
	err := s.DB.QueryRowContext(ctx, `SELECT doc FROM pokemon WHERE pokemon_id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pokemon %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodePokemon(id, doc)
}

func (s *Store) ListPokemon(ctx context.Context) ([]models.Pokemon, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT pokemon_id, doc FROM pokemon ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanPokemon(rows)
}

func (s *Store) DeletePokemon(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM pokemon WHERE pokemon_id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("pokemon %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// EnsureProfile returns the profile for handle, creating it if needed.
func (s *Store) EnsureProfile(ctx context.Context, handle string) (store.Profile, error) {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO profiles(profile_id, handle, created_at) VALUES(?, ?, ?)
		 ON CONFLICT(handle) DO NOTHING`,
		uuid.NewString(), handle, time.Now().Unix())
	if err != nil {
		return store.Profile{}, err
	}
	return s.GetProfile(ctx, handle)
}

func (s *Store) GetProfile(ctx context.Context, handle string) (store.Profile, error) {
	var p store.Profile
	var createdAt int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT profile_id, handle, created_at FROM profiles WHERE handle = ?`, handle).
		Scan(&p.ID, &p.Handle, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Profile{}, fmt.Errorf("profile %s: %w", handle, store.ErrNotFound)
	}
	if err != nil {
		return store.Profile{}, err
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()

	rows, err := s.DB.QueryContext(ctx,
		`SELECT pokemon_id FROM profile_pokemon WHERE profile_id = ? ORDER BY added_at ASC`, p.ID)
	if err != nil {
		return store.Profile{}, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return store.Profile{}, err
		}
		p.Pokemon = append(p.Pokemon, id)
	}
	return p, rows.Err()
}

func (s *Store) AddProfilePokemon(ctx context.Context, handle, pokemonID string) error {
	p, err := s.GetProfile(ctx, handle)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO profile_pokemon(profile_id, pokemon_id, added_at) VALUES(?, ?, ?)
		 ON CONFLICT(profile_id, pokemon_id) DO NOTHING`,
		p.ID, pokemonID, time.Now().Unix())
	return err
}

func (s *Store) ListProfilePokemon(ctx context.Context, handle string) ([]models.Pokemon, error) {
	p, err := s.GetProfile(ctx, handle)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT pk.pokemon_id, pk.doc
		 FROM profile_pokemon pp JOIN pokemon pk ON pk.pokemon_id = pp.pokemon_id
		 WHERE pp.profile_id = ? ORDER BY pp.added_at ASC`, p.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanPokemon(rows)
}

func scanPokemon(rows *sql.Rows) ([]models.Pokemon, error) {
	var out []models.Pokemon
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		p, err := decodePokemon(id, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func decodePokemon(id, doc string) (*models.Pokemon, error) {
	var p models.Pokemon
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("decoding pokemon %s: %w", id, err)
	}
	p.ID = id
	return &p, nil
}
