package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/dyc3/discord-pokemon-battles/pkg/models"
)

func TestOpen_skipIfNoDatabaseURL(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping postgres test")
	}
	st, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	p := &models.Pokemon{Name: "Geodude", NatDex: 74}
	if err := st.SavePokemon(ctx, p); err != nil {
		t.Fatalf("SavePokemon: %v", err)
	}
	defer func() { _ = st.DeletePokemon(ctx, p.ID) }()

	got, err := st.GetPokemon(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPokemon: %v", err)
	}
	if got.Name != "Geodude" {
		t.Errorf("GetPokemon: %+v", got)
	}
}
