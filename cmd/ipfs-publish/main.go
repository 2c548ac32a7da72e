package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/basilehenry/ipfs-publish/internal/config"
	"github.com/basilehenry/ipfs-publish/internal/ipfs"
	"github.com/basilehenry/ipfs-publish/internal/publish"
	"github.com/basilehenry/ipfs-publish/internal/remote"
	"github.com/basilehenry/ipfs-publish/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	dryRun    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ipfs-publish",
	Short: "Track and deploy content-addressed publications of a directory",
	Long: `ipfs-publish tracks successive publications of a local directory to IPFS.

Each publish run adds the directory to the network through the local ipfs
binary and records the resulting hash with a timestamp, skipping the record
when the content is unchanged. Deploy pins the latest recorded hash on a
remote node over ssh and publishes it under the node's name record.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = cmd.Help()
		return fmt.Errorf("a subcommand is required: init, publish or deploy")
	},
}

var initCmd = &cobra.Command{
	Use:   "init <directory>",
	Short: "Create a publish record for a directory",
	Long: `Init creates the publish record file for the given directory with an
empty version list, overwriting any existing record. The directory must
already exist.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Add the directory to the network and record the new hash",
	Long: `Publish adds the recorded directory to the network via the local ipfs
binary and appends a new version entry when the resulting hash differs from
the latest recorded one. An unchanged hash exits non-zero with
"Nothing to update."`,
	RunE: runPublish,
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Pin and name-publish the latest hash on the remote node",
	Long: `Deploy connects to the configured remote node over ssh, pins the latest
recorded hash there and publishes it under the node's name record. With no
recorded versions deploy is a no-op.`,
	RunE: runDeploy,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded versions, oldest first",
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ipfs-publish %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/ipfs-publish/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Publish command flags
	publishCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the hash without recording it")

	// Add commands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st := store.New(cfg.Store.Path)
	rec, err := st.Init(args[0])
	if err != nil {
		if errors.Is(err, store.ErrNotADirectory) {
			return fmt.Errorf("%s is not a directory", args[0])
		}
		return fmt.Errorf("failed to initialize publish record: %w", err)
	}

	fmt.Printf("Initialized publish record for %s\n", rec.Directory)
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st := store.New(cfg.Store.Path)
	if !st.Exists() {
		return fmt.Errorf("no publish record found, run \"ipfs-publish init <directory>\" before you can publish")
	}

	engine := newEngine(cfg, st, logger)

	hash, err := engine.Publish(ctx)
	if errors.Is(err, publish.ErrNothingToUpdate) {
		// Reported as a failure exit code for compatibility, even though
		// the unchanged state was detected successfully.
		fmt.Println("Nothing to update.")
		return err
	}
	if err != nil {
		return err
	}

	fmt.Println(hash)
	return nil
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateRemote(); err != nil {
		return err
	}

	st := store.New(cfg.Store.Path)
	if !st.Exists() {
		return fmt.Errorf("no publish record found, run \"ipfs-publish init <directory>\" before you can deploy")
	}

	engine := newEngine(cfg, st, logger)

	out, err := engine.Deploy(ctx)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Print(out)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st := store.New(cfg.Store.Path)
	rec, err := st.Load()
	if err != nil {
		return err
	}

	if len(rec.Versions) == 0 {
		fmt.Printf("No versions recorded for %s\n", rec.Directory)
		return nil
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	fmt.Printf("Versions of %s:\n", rec.Directory)
	for _, v := range rec.Versions {
		fmt.Printf("  %s  %s\n", cyan(v.DateTime), green(v.Hash))
	}
	return nil
}

func newEngine(cfg *config.Config, st *store.Store, logger *slog.Logger) *publish.Engine {
	ipfsClient := ipfs.NewShellClient(cfg.IPFS.Binary)
	runner := remote.NewSSHRunner(cfg.Remote.SSHBinary, cfg.Target(), cfg.Remote.Command)
	return publish.NewEngine(st, ipfsClient, runner, logger, dryRun)
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	// Determine config file path
	configPath := cfgFile
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configPath = fmt.Sprintf("%s/.config/ipfs-publish/config.yaml", home)

		// The config file is optional when not named explicitly.
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			logger.Debug("no config file found, using defaults", "path", configPath)
			return config.Default(), nil
		}
	}

	logger.Debug("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"record", cfg.Store.Path,
		"ipfs_binary", cfg.IPFS.Binary,
		"remote", cfg.Target())

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
