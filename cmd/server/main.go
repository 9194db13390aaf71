package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Skufu/GoTriage/internal/config"
	"github.com/Skufu/GoTriage/internal/logger"
	"github.com/Skufu/GoTriage/internal/models"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "triage-server",
		Short:        "Community health triage assistant",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(diagnoseCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck
			return runServer(cmd.Context(), cfg, log)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the patient_records table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrate")
			}

			ctx := cmd.Context()
			pg, closeDB, err := openPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := pg.EnsureSchema(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "patient_records schema is up to date.")
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List Gemini models available for content generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			adapter, closeAI := newAdapter(cmd.Context(), cfg, log)
			defer closeAI()

			usable, err := adapter.Models(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range usable {
				fmt.Fprintln(out, m.Name)
			}
			fmt.Fprintf(out, "%d model(s) support generateContent\n", len(usable))
			return nil
		},
	}
}

func diagnoseCmd() *cobra.Command {
	var (
		symptoms string
		age      int
		gender   string
		imageURL string
	)
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Run a single AI triage and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			adapter, closeAI := newAdapter(cmd.Context(), cfg, log)
			defer closeAI()

			if age < 0 {
				age = 0
			}
			result := adapter.Diagnose(cmd.Context(), symptoms, imageURL, models.PatientInfo{Age: age, Gender: gender})
			return writeJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&symptoms, "symptoms", "", "Symptom description")
	cmd.Flags().IntVar(&age, "age", 0, "Patient age in years")
	cmd.Flags().StringVar(&gender, "gender", "", "Patient gender")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "Public URL of a symptom photo")
	return cmd
}

func writeJSON(cmd *cobra.Command, result models.DiagnosisResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runServer(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	gin.SetMode(cfg.GinMode)
	log.Info("starting triage server", zap.String("capabilities", cfg.Capabilities().String()))

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.Info("server listening", zap.String("addr", server.Addr), zap.String("public_url", cfg.PublicBaseURL))
	return waitForShutdown(server, errCh, log)
}

func waitForShutdown(server *http.Server, errCh <-chan error, log *zap.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
