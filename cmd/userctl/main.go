package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"userctl/internal/config"
	"userctl/internal/database"
	"userctl/internal/logging"
	"userctl/internal/menu"
	"userctl/internal/repository"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	envFile      string
	logFile      string
	queryTimeout time.Duration
	verbosity    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "userctl",
		Short: "Userctl - Interactive user management console",
		Long:  `Userctl is an interactive console for managing user records stored in PostgreSQL.`,
		RunE:  run,
	}

	rootCmd.Flags().StringVarP(&envFile, "env-file", "e", ".env", "Env file to load before reading the environment")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (overrides USERCTL_LOG_FILE)")
	rootCmd.Flags().DurationVar(&queryTimeout, "timeout", 0, "Per-operation query timeout, 0 to disable (overrides USERCTL_QUERY_TIMEOUT)")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("userctl %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// A missing env file is fine; the environment may already carry
	// everything.
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if cmd.Flags().Changed("timeout") {
		cfg.QueryTimeout = queryTimeout
	}

	level := cfg.LogLevel
	switch verbosity {
	case 0:
	case 1:
		level = "debug"
	default: // 2+
		level = "trace"
	}
	logging.Apply(level, cfg.LogFile)

	db := cfg.ResolveDatabase()
	log.Info().
		Str("version", version).
		Str("database", db.Redacted()).
		Msg("Starting userctl")

	provider := database.NewProvider(db)
	defer provider.Close()

	// Ctrl+C has to cut the blocking stdin read short, so shutdown
	// happens here instead of unwinding through the menu loop.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		if err := provider.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
		os.Exit(0)
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()
	if err := provider.Ping(pingCtx); err != nil {
		log.Fatal().Err(err).Str("database", db.Redacted()).Msg("Failed to connect to database")
	}
	log.Info().Msg("Database connection verified")

	users := repository.NewUsers(provider, cfg.QueryTimeout)
	menu.New(users, os.Stdin, os.Stdout).Run(context.Background())

	log.Info().Msg("Userctl stopped")
	return nil
}
