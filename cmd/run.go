package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	orchestratorx "github.com/tanpawarit/ops-desk/agent/agents/orchestrator"
	metricsx "github.com/tanpawarit/ops-desk/agent/metrics"
	"github.com/tanpawarit/ops-desk/agent/scenario"
)

// ErrRunFailed makes the process exit non-zero when a run does not complete.
var ErrRunFailed = errors.New("run did not complete")

var (
	runIndex    int
	runScenario string
	runToggles  []string
	runOffline  bool
	runUser     string
	runQuery    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one demo scenario (or an ad-hoc request) through the pipeline",
	Example: `  opsdesk run --index 0
  opsdesk run --scenario refund_dryer --toggles drift,refund_errors
  opsdesk run --offline --user user_003 --query "where is my mouse?"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRunRequest(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, appOptions{offline: runOffline, toggles: runToggles})
		if err != nil {
			return err
		}
		defer a.Close()

		return executeRun(ctx, cmd, a, req)
	},
}

func init() {
	runCmd.Flags().IntVarP(&runIndex, "index", "i", 0, "demo scenario index (see `opsdesk scenarios`)")
	runCmd.Flags().StringVarP(&runScenario, "scenario", "s", "", "demo scenario name; overrides --index")
	runCmd.Flags().StringSliceVarP(&runToggles, "toggles", "t", nil, "scenario toggles: drift, refund_errors, no_fabrication")
	runCmd.Flags().BoolVar(&runOffline, "offline", false, "classify with keyword rules instead of the LLM")
	runCmd.Flags().StringVar(&runUser, "user", "", "customer id for an ad-hoc request")
	runCmd.Flags().StringVar(&runQuery, "query", "", "customer message for an ad-hoc request")
	rootCmd.AddCommand(runCmd)
}

func buildRunRequest(cmd *cobra.Command) (orchestratorx.Request, error) {
	if runUser != "" || runQuery != "" {
		if strings.TrimSpace(runUser) == "" || strings.TrimSpace(runQuery) == "" {
			return orchestratorx.Request{}, errors.New("--user and --query must be given together")
		}
		return orchestratorx.Request{UserID: runUser, UserQuery: runQuery, Scenario: "adhoc"}, nil
	}

	var (
		sc  scenario.Scenario
		err error
	)
	if cmd.Flags().Changed("scenario") {
		sc, err = scenario.ByName(runScenario)
	} else {
		sc, err = scenario.ByIndex(runIndex)
	}
	if err != nil {
		return orchestratorx.Request{}, err
	}
	return orchestratorx.Request{UserID: sc.UserID, UserQuery: sc.UserQuery, Scenario: sc.Name}, nil
}

func executeRun(ctx context.Context, cmd *cobra.Command, a *app, req orchestratorx.Request) error {
	log.Info().
		Str("scenario", req.Scenario).
		Str("user_id", req.UserID).
		Strs("toggles", runToggles).
		Msg("starting run")

	st, err := a.orchestrator.Run(ctx, req)
	if err != nil {
		return err
	}
	writeReport(cmd.OutOrStdout(), st)

	if a.cfg.MetricsAddr != "" {
		if err := serveMetrics(ctx, a); err != nil {
			return err
		}
	}

	if !st.Completed() {
		return fmt.Errorf("%w: run_id=%s status=%s", ErrRunFailed, st.RunID, st.Status)
	}
	return nil
}

// serveMetrics keeps /metrics up until the context is cancelled so the run can be scraped.
func serveMetrics(ctx context.Context, a *app) error {
	srv, err := metricsx.StartPrometheusServer(a.cfg.MetricsAddr, a.registry)
	if err != nil {
		return err
	}
	log.Info().Str("addr", srv.Addr).Msg("serving metrics until interrupted")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.CollaboratorTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
