package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	togglex "github.com/tanpawarit/ops-desk/agent/toggle"
	configx "github.com/tanpawarit/ops-desk/pkg/config"
)

var togglesCmd = &cobra.Command{
	Use:   "toggles",
	Short: "Show or publish scenario toggles",
}

var togglesShowCmd = &cobra.Command{
	Use:   "show [name...]",
	Short: "Print the toggles a run would start with",
	RunE: func(cmd *cobra.Command, args []string) error {
		tCfg, err := configx.New[togglex.Config]("TOGGLE")
		if err != nil {
			return fmt.Errorf("load toggle config: %w", err)
		}
		store := togglex.NewStore(tCfg.Toggles())
		if err := store.ApplyNamed(args); err != nil {
			return err
		}
		writeToggles(cmd.OutOrStdout(), store.Snapshot(cmd.Context()))
		return nil
	},
}

var togglesPublishCmd = &cobra.Command{
	Use:   "publish [name...]",
	Short: "Replace the shared Redis toggle hash read by running pipelines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, tCfg, err := dialToggleRedis(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		store := togglex.NewStore(tCfg.Toggles())
		if err := store.ApplyNamed(args); err != nil {
			return err
		}
		source, err := togglex.NewRedisSource(client, tCfg.RedisKey, store)
		if err != nil {
			return err
		}
		toggles := store.Snapshot(ctx)
		if err := source.Publish(ctx, toggles); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "published to %s\n", tCfg.RedisKey)
		writeToggles(cmd.OutOrStdout(), toggles)
		return nil
	},
}

func init() {
	togglesCmd.AddCommand(togglesShowCmd, togglesPublishCmd)
	rootCmd.AddCommand(togglesCmd)
}

func writeToggles(w io.Writer, t togglex.Toggles) {
	fmt.Fprintf(w, "policy_force_old_version: %t\n", t.PolicyForceOldVersion)
	fmt.Fprintf(w, "refund_api_error_rate:    %g\n", t.RefundAPIErrorRate)
	for _, userID := range slices.Sorted(maps.Keys(t.FabricatedOrderStatus)) {
		fmt.Fprintf(w, "fabricated_order_status:  %s=%s\n", userID, t.FabricatedOrderStatus[userID])
	}
}
