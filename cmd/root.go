package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	configx "github.com/tanpawarit/ops-desk/pkg/config"
	logx "github.com/tanpawarit/ops-desk/pkg/logger"
	"github.com/tanpawarit/ops-desk/pkg/telemetry"
)

var (
	// otelShutdown is set by PersistentPreRunE and flushed by Execute.
	otelShutdown func(context.Context) error

	envFile  string
	verbose  bool
	otelFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "opsdesk",
	Short: "Customer-support operations pipeline",
	Long: `opsdesk answers a customer request by running four stages in order:

Records  fetches refund requests, tickets and orders for the customer
Policy   picks the refund policy for the order's region
Action   classifies the request and executes support tools
Audit    writes an explainable record of what happened`,
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configx.SetEnvFile(envFile)

		logCfg, err := configx.New[logx.Config]("LOG")
		if err != nil {
			return fmt.Errorf("load log config: %w", err)
		}
		if verbose {
			logCfg.Debug = true
		}
		logx.Init(*logCfg)

		otelCfg, err := configx.New[telemetry.Config]("OTEL")
		if err != nil {
			return fmt.Errorf("load otel config: %w", err)
		}
		if otelFlag {
			otelCfg.Enabled = true
		}
		shutdown, err := telemetry.Setup(cmd.Context(), *otelCfg)
		if err != nil {
			return fmt.Errorf("initializing OpenTelemetry: %w", err)
		}
		otelShutdown = shutdown
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "dotenv file exported before config is loaded (default: .env when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&otelFlag, "otel", false, "export trace spans to stderr")
}

// Execute runs the root command and flushes pending spans on exit.
func Execute() error {
	err := rootCmd.Execute()
	if otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := otelShutdown(ctx); serr != nil {
			log.Warn().Err(serr).Msg("otel shutdown failed")
		}
	}
	return err
}
