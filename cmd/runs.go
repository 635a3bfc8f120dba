package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	statex "github.com/tanpawarit/ops-desk/agent/state"
	configx "github.com/tanpawarit/ops-desk/pkg/config"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect runs persisted to Upstash",
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the report of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRunStore()
		if err != nil {
			return err
		}
		st, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		writeReport(cmd.OutOrStdout(), st)
		return nil
	},
}

var runsListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a customer's most recent run ids",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRunStore()
		if err != nil {
			return err
		}
		ids, err := store.RecentRunIDs(cmd.Context(), args[0], runsLimit)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "maximum number of run ids")
	runsCmd.AddCommand(runsShowCmd, runsListCmd)
	rootCmd.AddCommand(runsCmd)
}

func openRunStore() (*statex.UpstashRedisStore, error) {
	cfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH")
	if err != nil {
		return nil, fmt.Errorf("load upstash config: %w", err)
	}
	if !cfg.Enabled() {
		return nil, errors.New("UPSTASH_URL is required")
	}
	return statex.NewUpstashRedisStore(*cfg)
}
