package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "verdict/docs"
	"verdict/internal/config"
	"verdict/internal/httpapi"
	"verdict/internal/logger"
	"verdict/pkg/inbound"
	"verdict/pkg/logging"
)

var (
	configFile   string
	envelopeFile string
)

// @title           Verdict Decision API
// @version         1.0
// @description     Evaluates inbound message envelopes and renders ack, retry, dead-letter or noop decisions

// @host      localhost:8080
// @BasePath  /api/v1

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   "verdict",
		Short: "Message decision pipeline",
		Long:  "verdict validates inbound messages, routes them and renders a control decision (ack, retry, dead-letter, noop)",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd(), decideCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, *logger.SugaredLogger, error) {
	earlyLog := logging.NewEarlyLog(serviceName)

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the decision endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting verdict", "pipeline", cfg.Pipeline.Name)

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				_ = app.Shutdown(context.Background())
				return err
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

func decideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Evaluate one envelope and print the decision as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			raw, err := readEnvelope(cmd.InOrStdin())
			if err != nil {
				return err
			}
			env, err := inbound.DecodeEnvelope(raw)
			if err != nil {
				return fmt.Errorf("invalid envelope: %w", err)
			}

			ctx := cmd.Context()
			app := NewApp(cfg, log)
			defer app.Shutdown(context.Background())
			if err := app.Initialize(ctx); err != nil {
				return err
			}

			out := app.processor.Process(ctx, env)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if out.IsFailure() {
				_ = enc.Encode(httpapi.RejectionResponse{
					Error:      "message rejected",
					ErrorCode:  httpapi.ErrorCodeRejected,
					Violations: httpapi.Views(out.Err()),
				})
				return fmt.Errorf("message rejected: %s", out.Err().CollectMessages())
			}
			o := out.Value()
			return enc.Encode(httpapi.DecisionResponse{
				SourceID: env.SourceID(),
				Route:    o.Route,
				Decision: o.Record(),
				Failures: o.Failures,
				Warnings: httpapi.Views(o.Violations),
			})
		},
	}
	cmd.Flags().StringVar(&envelopeFile, "envelope", "-", "Envelope JSON file, - for stdin")
	return cmd
}

func readEnvelope(stdin io.Reader) ([]byte, error) {
	if envelopeFile == "" || envelopeFile == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(envelopeFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read envelope: %w", err)
	}
	return raw, nil
}
