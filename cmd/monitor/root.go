package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/sentimentedge/internal/analytics"
	"github.com/aristath/sentimentedge/internal/clients/monitorapi"
	"github.com/aristath/sentimentedge/internal/config"
	"github.com/aristath/sentimentedge/internal/di"
	"github.com/aristath/sentimentedge/internal/ui"
	"github.com/aristath/sentimentedge/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd(ctx context.Context) *cobra.Command {
	var apiURL string

	root := &cobra.Command{
		Use:           "monitor",
		Short:         "Live monitor for the sentiment trading backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(ctx, apiURL)
		},
	}
	root.PersistentFlags().StringVar(&apiURL, "api-url", "", "REST API base URL (overrides MONITOR_API_URL)")

	root.AddCommand(&cobra.Command{
		Use:   "tui",
		Short: "Terminal dashboard plus status API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(ctx, apiURL)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Headless status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(ctx, apiURL)
		},
	})
	root.AddCommand(pnlCmd(ctx, &apiURL))

	return root
}

// loadConfig applies the --api-url override and re-derives the push URL from it
// unless MONITOR_WS_URL was given explicitly.
func loadConfig(apiURL string) (*config.Config, error) {
	if apiURL != "" {
		if err := os.Setenv("MONITOR_API_URL", apiURL); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

func runTUI(ctx context.Context, apiURL string) error {
	cfg, err := loadConfig(apiURL)
	if err != nil {
		return err
	}

	// the dashboard owns stdout
	logFile, err := logger.OpenFile(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: logFile})
	logger.SetGlobalLogger(log)
	log.Info().Msg("Starting monitor (tui)")

	container, err := di.Wire(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire dependencies: %w", err)
	}

	container.Start(ctx)
	defer container.Stop()

	go serveAPI(container, log)
	defer shutdownAPI(container, log)

	m := ui.NewModel(container.Core, container.Queries.Sentiment, cfg.APIURL)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

func runServe(ctx context.Context, apiURL string) error {
	cfg, err := loadConfig(apiURL)
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)
	log.Info().Msg("Starting monitor (serve)")

	container, err := di.Wire(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire dependencies: %w", err)
	}

	container.Start(ctx)
	defer container.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- container.Server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status API: %w", err)
		}
	}

	shutdownAPI(container, log)
	return nil
}

func serveAPI(container *di.Container, log zerolog.Logger) {
	if err := container.Server.Start(); err != nil {
		log.Error().Err(err).Msg("Status API stopped")
	}
}

func shutdownAPI(container *di.Container, log zerolog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := container.Server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Status API forced to shutdown")
	}
}

func pnlCmd(ctx context.Context, apiURL *string) *cobra.Command {
	var limit int
	var ticker string

	cmd := &cobra.Command{
		Use:   "pnl",
		Short: "Fetch trades once and print the cumulative P&L series",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*apiURL)
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: os.Stderr})

			client := monitorapi.NewClient(cfg.APIURL, monitorapi.Options{
				Timeout:   cfg.HTTPTimeout,
				RateLimit: cfg.HTTPRateLimit,
			}, log)

			fetchCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
			defer cancel()

			trades, err := client.Trades(fetchCtx, monitorapi.TradeQuery{Limit: limit, Ticker: ticker})
			if err != nil {
				return fmt.Errorf("failed to fetch trades: %w", err)
			}
			return printPnL(cmd.OutOrStdout(), analytics.CumulativePnL(trades))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 500, "number of recent trades to fetch")
	cmd.Flags().StringVar(&ticker, "ticker", "", "only trades for this ticker")
	return cmd
}

func printPnL(w io.Writer, points []analytics.PnLPoint) error {
	if len(points) == 0 {
		_, err := fmt.Fprintln(w, "No closed trades")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "TIME\tTICKER\tTRADE\tREALIZED\tCUMULATIVE\t")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t\n",
			p.Timestamp.Format(time.RFC3339), p.Ticker, p.TradeID, p.Realized, p.Total)
	}
	return tw.Flush()
}
