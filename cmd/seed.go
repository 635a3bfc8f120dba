package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	storex "github.com/tanpawarit/ops-desk/agent/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the Postgres schema and load the demo records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openPostgres(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := storex.CreateSchema(ctx, db); err != nil {
			return err
		}
		data := storex.DemoFixtures()
		if err := storex.Seed(ctx, db, data); err != nil {
			return err
		}

		log.Info().
			Int("orders", len(data.Orders)).
			Int("policies", len(data.Policies)).
			Int("refund_requests", len(data.Requests)).
			Int("tickets", len(data.Tickets)).
			Msg("demo records seeded")
		fmt.Fprintln(cmd.OutOrStdout(), "seeded demo records")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
