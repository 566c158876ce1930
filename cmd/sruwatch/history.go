package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sruwatch/econlog"
)

func historyCmd() *cobra.Command {
	var game, nation string
	cmd := &cobra.Command{
		Use:   "history <field>",
		Short: "Print the logged series of one economy field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Log.DB == "" {
				return fmt.Errorf("log.db is not configured")
			}
			if game == "" {
				game = cfg.Log.Game
			}
			if nation == "" {
				nation = cfg.Log.Nation
			}
			store, err := econlog.OpenStore(ctx, cfg.Log.DB)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			points, err := store.Series(ctx, game, nation, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(points) == 0 {
				fmt.Fprintln(out, "No samples found.")
				return nil
			}
			for _, p := range points {
				fmt.Fprintf(out, "%s %14.2f\n", p.Date.Format("2006-01-02"), p.Value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&game, "game", "", "Game name (defaults to config)")
	cmd.Flags().StringVar(&nation, "nation", "", "Nation (defaults to config)")
	return cmd
}
