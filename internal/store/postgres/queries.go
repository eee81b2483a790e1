package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dyc3/discord-pokemon-battles/internal/store"
	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

func (s *Store) SavePokemon(ctx context.Context, p *models.Pokemon) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO pokemon(pokemon_id, doc, created_at, updated_at) VALUES($1, $2, $3, $3)
		 ON CONFLICT (pokemon_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		p.ID, doc, now)
	return err
}

func (s *Store) GetPokemon(ctx context.Context, id string) (*models.Pokemon, error) {
	var doc []byte
	err := s.Pool.QueryRow(ctx, `SELECT doc FROM pokemon WHERE pokemon_id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pokemon %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodePokemon(id, doc)
}

func (s *Store) ListPokemon(ctx context.Context) ([]models.Pokemon, error) {
	rows, err := s.Pool.Query(ctx, `SELECT pokemon_id, doc FROM pokemon ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPokemon(rows)
}

func (s *Store) DeletePokemon(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM pokemon WHERE pokemon_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pokemon %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) EnsureProfile(ctx context.Context, handle string) (store.Profile, error) {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO profiles(profile_id, handle, created_at) VALUES($1, $2, $3)
		 ON CONFLICT (handle) DO NOTHING`,
		uuid.NewString(), handle, time.Now().Unix())
	if err != nil {
		return store.Profile{}, err
	}
	return s.GetProfile(ctx, handle)
}

func (s *Store) GetProfile(ctx context.Context, handle string) (store.Profile, error) {
	var p store.Profile
	var createdAt int64
	err := s.Pool.QueryRow(ctx,
		`SELECT profile_id, handle, created_at FROM profiles WHERE handle = $1`, handle).
		Scan(&p.ID, &p.Handle, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Profile{}, fmt.Errorf("profile %s: %w", handle, store.ErrNotFound)
	}
	if err != nil {
		return store.Profile{}, err
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()

	rows, err := s.Pool.Query(ctx,
		`SELECT pokemon_id FROM profile_pokemon WHERE profile_id = $1 ORDER BY added_at ASC`, p.ID)
	if err != nil {
		return store.Profile{}, err
	}
	defer rows.Close()
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
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO profile_pokemon(profile_id, pokemon_id, added_at) VALUES($1, $2, $3)
		 ON CONFLICT (profile_id, pokemon_id) DO NOTHING`,
		p.ID, pokemonID, time.Now().Unix())
	return err
}

func (s *Store) ListProfilePokemon(ctx context.Context, handle string) ([]models.Pokemon, error) {
	p, err := s.GetProfile(ctx, handle)
	if err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT pk.pokemon_id, pk.doc
		 FROM profile_pokemon pp JOIN pokemon pk ON pk.pokemon_id = pp.pokemon_id
		 WHERE pp.profile_id = $1 ORDER BY pp.added_at ASC`, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPokemon(rows)
}

func scanPokemon(rows pgx.Rows) ([]models.Pokemon, error) {
	var out []models.Pokemon
	for rows.Next() {
		var id string
		var doc []byte
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

func decodePokemon(id string, doc []byte) (*models.Pokemon, error) {
	var p models.Pokemon
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decoding pokemon %s: %w", id, err)
	}
	p.ID = id
	return &p, nil
}
