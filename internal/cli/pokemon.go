package cli

import (
	"errors"
	"fmt"

	"github.com/dyc3/discord-pokemon-battles/internal/battleapi"
	"github.com/dyc3/discord-pokemon-battles/internal/config"
	"github.com/dyc3/discord-pokemon-battles/internal/store"
	"github.com/dyc3/discord-pokemon-battles/internal/store/postgres"
	"github.com/dyc3/discord-pokemon-battles/internal/store/sqlite"
	"github.com/dyc3/discord-pokemon-battles/pkg/models"
	"github.com/spf13/cobra"
)

func newPokemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pokemon",
		Short: "Manage stored pokemon",
	}
	cmd.AddCommand(newPokemonGenerateCmd())
	cmd.AddCommand(newPokemonListCmd())
	cmd.AddCommand(newPokemonDeleteCmd())
	return cmd
}

// openCLIStore opens the configured store for one-off CLI operations.
func openCLIStore(home string) (store.Store, error) {
	cfg, err := config.Load(home)
	if err != nil {
		return nil, err
	}
	switch cfg.DBDriver {
	case "", "sqlite":
		return sqlite.Open(home)
	case "postgres":
		if cfg.DBURL == "" {
			return nil, errors.New("db_driver is postgres but no db_url or DATABASE_URL is set")
		}
		return postgres.Open(cfg.DBURL)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}

func newPokemonGenerateCmd() *cobra.Command {
	var (
		natDex int
		level  int
		count  int
		owner  string
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate pokemon via the battle engine, optionally saving them",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}
			engine := battleapi.New(cfg.BattleAPIBaseURL)

			var st store.Store
			if save || owner != "" {
				st, err = openCLIStore(home)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close() }()
			}

			ctx := cmd.Context()
			for i := 0; i < count; i++ {
				opts := battleapi.GenerateOptions{}
				if natDex > 0 {
					opts.NatDex = &natDex
				}
				if level > 0 {
					opts.Level = &level
				}
				p, err := engine.GeneratePokemon(ctx, opts)
				if err != nil {
					return fmt.Errorf("generate pokemon: %w", err)
				}

				if st != nil {
					if err := st.SavePokemon(ctx, p); err != nil {
						return err
					}
					if owner != "" {
						if _, err := st.EnsureProfile(ctx, owner); err != nil {
							return err
						}
						if err := st.AddProfilePokemon(ctx, owner, p.ID); err != nil {
							return err
						}
					}
				}
				printPokemon(cmd, *p)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&natDex, "natdex", 0, "National dex number (0 means random)")
	cmd.Flags().IntVar(&level, "level", 0, "Level (0 means engine default)")
	cmd.Flags().IntVar(&count, "count", 1, "How many to generate")
	cmd.Flags().StringVar(&owner, "owner", "", "Save and attach to this trainer handle")
	cmd.Flags().BoolVar(&save, "save", false, "Save without an owner")

	return cmd
}

func newPokemonListCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored pokemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			st, err := openCLIStore(home)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			var list []models.Pokemon
			if owner != "" {
				list, err = st.ListProfilePokemon(cmd.Context(), owner)
			} else {
				list, err = st.ListPokemon(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(list) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No pokemon stored")
				return nil
			}
			for _, p := range list {
				printPokemon(cmd, p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "List only this trainer's pokemon")
	return cmd
}

func newPokemonDeleteCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a stored pokemon by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			home := config.MustHomeFrom(cmd.Context())
			st, err := openCLIStore(home)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.DeletePokemon(cmd.Context(), id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Pokemon id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func printPokemon(cmd *cobra.Command, p models.Pokemon) {
	id := p.ID
	if id == "" {
		id = "-"
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s (natdex %d, lv %d)\n", id, p.Name, p.NatDex, p.Level)
}
