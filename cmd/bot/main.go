// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/hatobus/tunebox/internal/app/filter"
	"github.com/hatobus/tunebox/internal/app/library"
	"github.com/hatobus/tunebox/internal/app/notification"
	"github.com/hatobus/tunebox/internal/app/recommend"
	"github.com/hatobus/tunebox/internal/app/session"
	"github.com/hatobus/tunebox/internal/infra/config"
	"github.com/hatobus/tunebox/internal/infra/logger"
	"github.com/hatobus/tunebox/internal/infra/spotify"
)

var (
	app        = kingpin.New("tunebox", "tunebox playback-session manager")
	configPath = app.Flag("config", "Path to config file").Default("config/bot.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// check-config command
	checkConfigCmd = app.Command("check-config", "Validate the config file and exit")

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle list-filters command
	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
		File:   "",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == checkConfigCmd.FullCommand() {
		if err := validateFilterConfig(cfg); err != nil {
			zlog.Fatal().Msgf("Invalid filter config: %v", err)
		}
		fmt.Println("config OK")
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Bot error: %v", err)
		os.Exit(1)
	}
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, factory := range filter.GetRegistered() {
		f := factory()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// validateFilterConfig validates filter configurations.
func validateFilterConfig(cfg *config.Config) error {
	registry := filter.GetRegistered()

	for filterName, filterCfg := range cfg.Filters {
		if !filterCfg.Enabled {
			continue
		}

		factory, exists := registry[filterName]
		if !exists {
			// Some filters are created with dependencies, skip validation
			continue
		}

		f := factory()
		if err := f.ValidateConfig(filterCfg.Settings); err != nil {
			return fmt.Errorf("filter %s: %w", filterName, err)
		}
	}

	return nil
}

// run executes the main bot logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// Validate filter config
	if err := validateFilterConfig(cfg); err != nil {
		return fmt.Errorf("invalid filter config: %w", err)
	}

	// Create Spotify client
	spotifyClient, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		return fmt.Errorf("failed to create Spotify client: %w", err)
	}

	// Create fallback search chain
	searchChain, err := recommend.NewChainFromConfig(cfg, spotifyClient)
	if err != nil {
		return fmt.Errorf("failed to create search provider chain: %w", err)
	}

	// Create library store
	libraryStore, err := library.NewStore(cfg.Library.Dir)
	if err != nil {
		return fmt.Errorf("failed to create library store: %w", err)
	}

	// Create notification hub; the gateway subscribes its renderers here
	notifier := notification.NewManager()
	defer notifier.Close()

	// Create session manager. The chat gateway binds engine sessions and
	// forwards commands and playback signals to it.
	sessionMgr, err := session.NewManager(cfg, libraryStore, searchChain, notifier)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	zlog.Info().Msg("Bot started")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	zlog.Info().Msg("Received shutdown signal...")

	// Tear down all active tenant sessions before exiting
	sessionMgr.Close(ctx)

	zlog.Info().Msg("Bot stopped")
	return nil
}
