package cli

import (
	"fmt"
	"time"

	"github.com/dyc3/discord-pokemon-battles/internal/agent"
	"github.com/dyc3/discord-pokemon-battles/internal/battleapi"
	"github.com/dyc3/discord-pokemon-battles/internal/config"
	"github.com/dyc3/discord-pokemon-battles/internal/coordinator"
	"github.com/dyc3/discord-pokemon-battles/internal/notify"
	"github.com/dyc3/discord-pokemon-battles/internal/strategy"
	"github.com/dyc3/discord-pokemon-battles/pkg/models"
	"github.com/spf13/cobra"
)

func newBattleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "battle",
		Short: "Run battles from the terminal",
	}
	cmd.AddCommand(newBattleSimCmd())
	return cmd
}

func newBattleSimCmd() *cobra.Command {
	var (
		stratNames []string
		level      int
		partySize  int
		delay      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run a bot-vs-bot battle and stream commentary to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}

			engine := battleapi.New(cfg.BattleAPIBaseURL)
			strategies := strategy.NewRegistry()
			if err := strategy.LoadLuaDir(strategies, cfg.StrategiesDir); err != nil {
				return err
			}

			if len(stratNames) == 0 {
				stratNames = []string{"simple", "simple"}
			}
			if len(stratNames) != 2 {
				return fmt.Errorf("sim needs exactly two strategies, got %d", len(stratNames))
			}

			ctx := cmd.Context()
			parties := make([]models.Party, 2)
			for side := range parties {
				for i := 0; i < partySize; i++ {
					lvl := level
					p, err := engine.GeneratePokemon(ctx, battleapi.GenerateOptions{Level: &lvl})
					if err != nil {
						return fmt.Errorf("generate pokemon: %w", err)
					}
					parties[side].Pokemon = append(parties[side].Pokemon, *p)
				}
			}

			battle, err := coordinator.New(coordinator.Config{
				Engine:   engine,
				Registry: coordinator.NewRegistry(),
				Teams:    models.BuildTeamsSingle(parties[0], parties[1]),
				Channel:  &notify.Writer{W: cmd.OutOrStdout()},
				BotDelay: delay,
			})
			if err != nil {
				return err
			}
			for i, name := range stratNames {
				bot, err := agent.NewBot(strategies, name, fmt.Sprintf("Bot %d (%s)", i+1, name))
				if err != nil {
					return err
				}
				if err := battle.AddAgent(bot); err != nil {
					return err
				}
			}

			if err := battle.Start(ctx); err != nil {
				return err
			}
			select {
			case <-battle.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
			return battle.Err()
		},
	}

	cmd.Flags().StringSliceVar(&stratNames, "strategy", nil, "Strategy per side, twice (e.g. --strategy simple --strategy inflicter)")
	cmd.Flags().IntVar(&level, "level", 50, "Level of generated pokemon")
	cmd.Flags().IntVar(&partySize, "party-size", 1, "Pokemon per side")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Pause between rounds (0 uses the default, negative disables)")

	return cmd
}
