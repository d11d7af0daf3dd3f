// Package main provides the entry point for the voxhost daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/voxhost/voxhost/internal/config"
	"github.com/voxhost/voxhost/internal/manager"
	"github.com/voxhost/voxhost/internal/probe"
	"github.com/voxhost/voxhost/internal/server"
	"github.com/voxhost/voxhost/internal/supervisor"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string

	rootCmd = &cobra.Command{
		Use:   "voxhost",
		Short: "Run local text-to-speech engines behind one API",
		Long: paragraph(
			fmt.Sprintf("\nRun local %s engines and expose them through a single loopback API.", keyword("text-to-speech")),
		),
		SilenceErrors: false,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          runServer,
	}
)

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(cfg.ResourcesDir, cfg.DataDir)
	hub := server.NewEventHub()
	mgr := manager.New(manager.WrapSupervisor(sup), probe.New(),
		manager.WithNotifier(hub),
		manager.WithStartupTimeout(cfg.StartupTimeout, cfg.PollInterval),
	)

	store, err := server.NewAudioStore(cfg.AudioMaxAge)
	if err != nil {
		return err
	}

	log.Info("Starting voxhost", "version", Version, "resources", cfg.ResourcesDir, "data", cfg.DataDir)
	err = server.New(cfg, mgr, store, hub).Run(ctx)

	// The transport is down; take any spawned engine down with it.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stopErr := mgr.Shutdown(shutdownCtx); stopErr != nil {
		log.Warn("Engine shutdown failed", "error", stopErr)
	}
	return err
}

// logSettings come straight from the environment so logging works before
// flags and the config file are parsed.
type logSettings struct {
	Debug   bool   `env:"VOXHOST_DEBUG"`
	LogFile string `env:"VOXHOST_LOGFILE"`
}

func setupLog() (func() error, error) {
	settings, err := env.ParseAs[logSettings]()
	if err != nil {
		return nil, fmt.Errorf("error parsing log settings: %w", err)
	}

	if settings.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.SetReportTimestamp(true)

	if settings.LogFile != "" {
		f, err := os.OpenFile(settings.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		log.SetOutput(f)
		return f.Close, nil
	}

	log.SetOutput(os.Stderr)
	return func() error { return nil }, nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().String("listen", "", "bind address for the API (default 127.0.0.1:4770)")
	rootCmd.Flags().String("resources", "", "engine resources directory (default \"resources\" beside the executable)")
	rootCmd.Flags().String("data-dir", "", "per-user data directory for engine model caches")
	rootCmd.Flags().Duration("startup-timeout", 0, "how long to wait for a spawned engine to become healthy (default 2m)")
	rootCmd.Flags().Duration("poll-interval", 0, "health poll interval while waiting for startup (default 3s)")
	rootCmd.Flags().Duration("audio-max-age", 0, "how long generated audio files are kept (default 1h)")
	rootCmd.Flags().Bool("debug", false, "enable debug logging")

	// Config bindings
	_ = viper.BindPFlag("listen", rootCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("resources", rootCmd.Flags().Lookup("resources"))
	_ = viper.BindPFlag("data-dir", rootCmd.Flags().Lookup("data-dir"))
	_ = viper.BindPFlag("startup-timeout", rootCmd.Flags().Lookup("startup-timeout"))
	_ = viper.BindPFlag("poll-interval", rootCmd.Flags().Lookup("poll-interval"))
	_ = viper.BindPFlag("audio-max-age", rootCmd.Flags().Lookup("audio-max-age"))
	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))

	rootCmd.AddCommand(enginesCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "voxhost")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find a configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "voxhost")}, dirs...)
	}

	if c := os.Getenv("VOXHOST_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("voxhost")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("voxhost")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "voxhost.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
