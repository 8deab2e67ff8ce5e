package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func leaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Manage the leaderboard cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Reload the Redis leaderboard from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer env.close()

			if env.stores.Leaderboard == nil {
				return fmt.Errorf("redis is disabled: set REDIS_ENABLED=true")
			}
			n, err := env.svc.Engine.RebuildLeaderboard(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "leaderboard rebuilt with %d user(s)\n", n)
			return nil
		},
	})
	return cmd
}
