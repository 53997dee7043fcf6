package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"meterlink/internal/config"
	"meterlink/internal/exchange/application"
	"meterlink/internal/exchange/infrastructure/postgres"
	"meterlink/internal/exchange/interfaces"
	"meterlink/internal/observability/metrics"
	"meterlink/internal/transfer"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	root := &cobra.Command{
		Use:           "meterlink",
		Short:         "Exchange meter records with a partner system over FTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd(logger),
		newExportCmd(logger),
		newImportCmd(logger),
		newServeCmd(logger),
		newReportCmd(logger),
	)

	if err := root.Execute(); err != nil {
		logger.Printf("error: %v", err)
		os.Exit(1)
	}
}

// engine bundles the wired components for one process invocation.
type engine struct {
	cfg         config.Config
	db          *sql.DB
	metrics     *metrics.Metrics
	coordinator *application.Coordinator
	outbound    *postgres.OutboundRepository
	ledger      *postgres.LedgerRepository
}

func (e *engine) Close() {
	if e.db != nil {
		e.db.Close()
	}
}

func buildEngine(logger *log.Logger) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	m := metrics.New()
	policy := transfer.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, Wait: cfg.Retry.Wait()}
	client, err := transfer.NewFTPClient(
		cfg.FTP.Addr(), cfg.FTP.Username, cfg.FTP.Password, policy, logger,
		transfer.WithRetryObserver(func(string) { m.TransferRetries.Inc() }),
	)
	if err != nil {
		db.Close()
		return nil, err
	}

	outboundRepo := postgres.NewOutboundRepository(db)
	ledgerRepo := postgres.NewLedgerRepository(db)

	outbound, err := application.NewOutboundPipeline(outboundRepo, client, cfg, m, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	inbound, err := application.NewInboundPipeline(ledgerRepo, client, cfg, m, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	coordinator, err := application.NewCoordinator(outbound, inbound, systemClock{}, m, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &engine{
		cfg:         cfg,
		db:          db,
		metrics:     m,
		coordinator: coordinator,
		outbound:    outboundRepo,
		ledger:      ledgerRepo,
	}, nil
}

func newRunCmd(logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the outbound export and inbound import once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := buildEngine(logger)
			if err != nil {
				return err
			}
			defer eng.Close()
			return eng.coordinator.Run(cmd.Context())
		},
	}
}

func newExportCmd(logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Run the outbound export pipeline once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := buildEngine(logger)
			if err != nil {
				return err
			}
			defer eng.Close()
			return eng.coordinator.RunOutbound(cmd.Context())
		},
	}
}

func newImportCmd(logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Run the inbound import pipeline once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := buildEngine(logger)
			if err != nil {
				return err
			}
			defer eng.Close()
			return eng.coordinator.RunInbound(cmd.Context())
		},
	}
}

func newServeCmd(logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run on a daily schedule and serve metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := buildEngine(logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			scheduler := application.NewScheduler(eng.coordinator, eng.cfg.Schedule.DailyAt, logger)
			go scheduler.Start(cmd.Context())

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})

			logger.Printf("http listening on %s daily_at=%s", eng.cfg.HTTPAddr, eng.cfg.Schedule.DailyAt)
			server := &http.Server{Addr: eng.cfg.HTTPAddr, Handler: mux}
			return server.ListenAndServe()
		},
	}
}

func newReportCmd(logger *log.Logger) *cobra.Command {
	var month string
	var outDir string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the monthly exchange activity report (xlsx and pdf)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			monthStart, err := time.Parse("2006-01", month)
			if err != nil {
				return fmt.Errorf("report: invalid --month %q, want YYYY-MM", month)
			}
			eng, err := buildEngine(logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx := cmd.Context()
			monthEnd := monthStart.AddDate(0, 1, 0)
			batches, err := eng.outbound.ListSentBatches(ctx, monthStart, monthEnd)
			if err != nil {
				return fmt.Errorf("report: list sent batches: %w", err)
			}
			readings, err := eng.ledger.ListReadings(ctx, monthStart.Format("2006-01"))
			if err != nil {
				return fmt.Errorf("report: list readings: %w", err)
			}

			activity := interfaces.ExchangeActivity{
				Month:    monthStart,
				Batches:  batches,
				Readings: readings,
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			base := filepath.Join(outDir, "exchange_"+monthStart.Format("2006-01"))
			if err := writeReport(base+".xlsx", activity, interfaces.BuildActivityXLSX); err != nil {
				return err
			}
			if err := writeReport(base+".pdf", activity, interfaces.BuildActivityPDF); err != nil {
				return err
			}
			logger.Printf("event=report_written month=%s batches=%d readings=%d dir=%s",
				month, len(batches), len(readings), outDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", time.Now().UTC().Format("2006-01"), "report month (YYYY-MM)")
	cmd.Flags().StringVar(&outDir, "out", "var/reports", "output directory")
	return cmd
}

func writeReport(path string, activity interfaces.ExchangeActivity, build func(interfaces.ExchangeActivity) ([]byte, error)) error {
	data, err := build(activity)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
