// fleetmedic runs a three-stage device-telemetry pipeline: a log analysis
// agent streams CSV records into diagnostic reports, a diagnosis agent
// deep-dives anomalies, and a remediation agent acts on devices and
// confirms back.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fleetmedic/internal/config"
	"fleetmedic/internal/cost"
	"fleetmedic/internal/reason"
	"fleetmedic/internal/stage"
)

var (
	verbose    bool
	configPath string
	usageFile  string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fleetmedic",
	Short: "Multi-agent diagnose and remediate pipeline for device telemetry",
	Long: `fleetmedic streams IoT and camera telemetry through three cooperating
agents: analysis writes diagnostic reports from raw records, diagnosis
deep-dives anomalies rated MEDIUM or above, and remediation executes
device actions and confirms the outcome back to analysis.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Local .env is optional.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		if cfg.Logging.Format == "console" {
			zc = zap.NewDevelopmentConfig()
		}
		if level, perr := zapcore.ParseLevel(cfg.Logging.Level); perr == nil {
			zc.Level = zap.NewAtomicLevelAt(level)
		}
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve [analysis|diagnosis|remediation]",
	Short: "Serve one pipeline stage",
	Long: `Starts the HTTP server for a single stage. Each stage exposes its
agent card, health check and task endpoints; the analysis stage
additionally exposes the CSV streaming endpoint.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"analysis", "diagnosis", "remediation"},
	RunE:      runServe,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [csv-file...]",
	Short: "Stream CSV files through the analysis stage",
	Long: `Posts one or more CSV paths to the analysis stage's streaming endpoint
and writes the incremental result document to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var cardCmd = &cobra.Command{
	Use:       "card [analysis|diagnosis|remediation]",
	Short:     "Fetch and print a stage's agent card",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"analysis", "diagnosis", "remediation"},
	RunE:      runCard,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "fleetmedic.yaml", "Path to the YAML config file")

	serveCmd.Flags().StringVar(&usageFile, "usage-file", "", "Persist aggregated token usage to this JSON file (default data/<stage>_usage.json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(cardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func stageConfig(name string) (config.StageConfig, error) {
	switch name {
	case "analysis":
		return cfg.Stages.Analysis, nil
	case "diagnosis":
		return cfg.Stages.Diagnosis, nil
	case "remediation":
		return cfg.Stages.Remediation, nil
	}
	return config.StageConfig{}, fmt.Errorf("unknown stage %q", name)
}

func buildStage(name string) (*stage.Stage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := reason.NewGeminiClient(reason.Config{
		APIKey:  cfg.Gemini.APIKey,
		BaseURL: cfg.Gemini.BaseURL,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.GeminiTimeout(),
	}, logger)

	switch name {
	case "analysis":
		return stage.Analysis(client, cfg.Stages.Diagnosis.URL, cfg.Stages.Analysis.URL, logger), nil
	case "diagnosis":
		return stage.Diagnosis(client, cfg.Stages.Remediation.URL, cfg.Stages.Diagnosis.URL, logger), nil
	case "remediation":
		return stage.Remediation(client, cfg.Stages.Analysis.URL, cfg.Stages.Remediation.URL, logger), nil
	}
	return nil, fmt.Errorf("unknown stage %q", name)
}

func runServe(cmd *cobra.Command, args []string) error {
	name := args[0]
	sc, err := stageConfig(name)
	if err != nil {
		return err
	}

	st, err := buildStage(name)
	if err != nil {
		return err
	}
	defer st.Close()

	path := usageFile
	if path == "" {
		path = filepath.Join("data", name+"_usage.json")
	}
	tracker := cost.NewTracker(path, logger)
	st.Ledger.AttachTracker(tracker)
	defer func() {
		if err := tracker.Close(); err != nil {
			logger.Warn("usage flush failed", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              sc.Addr,
		Handler:           st.Server.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stage listening",
			zap.String("stage", st.Name),
			zap.String("addr", sc.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runIngest(cmd *cobra.Command, args []string) error {
	payload, err := json.Marshal(map[string]any{"csv_paths": args})
	if err != nil {
		return err
	}

	url := cfg.Stages.Analysis.URL + "/stream_csv"
	logger.Info("streaming records",
		zap.Strings("sources", args),
		zap.String("url", url))

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// No client timeout: the stream runs as long as the record set does.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	fmt.Println()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analysis stage returned status %d", resp.StatusCode)
	}
	return nil
}

func runCard(cmd *cobra.Command, args []string) error {
	sc, err := stageConfig(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.URL+"/.well-known/agent-card.json", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch agent card: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stage returned status %d", resp.StatusCode)
	}

	var card json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(card, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}
