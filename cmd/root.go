package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/reviewdesk/internal/analysis"
	"github.com/joescharf/reviewdesk/internal/app"
	"github.com/joescharf/reviewdesk/internal/history"
	"github.com/joescharf/reviewdesk/internal/output"
	"github.com/joescharf/reviewdesk/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    *slog.Logger
	dataStore store.Store
	hist      *history.Adapter
	ctrl      *app.Controller

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "reviewdesk",
	Short: "Analyze customer reviews and draft replies",
	Long: `reviewdesk sends customer reviews to an AI text endpoint to classify
sentiment, pull out the key issues and draft a reply in a chosen tone.
Every analysis is kept in a history you can browse, edit and export.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	closeDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/reviewdesk/config.yaml)")
}

func initConfig() {
	// A .env in the working directory feeds REVIEWDESK_* and provider keys.
	_ = godotenv.Load()

	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("REVIEWDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers the default for every config key, rooted at stateDir.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "reviewdesk.db"))
	viper.SetDefault("store.backend", store.BackendSQLite)
	viper.SetDefault("local.path", filepath.Join(stateDir, "storage.json"))
	viper.SetDefault("remote.url", "")
	viper.SetDefault("remote.key", "")
	viper.SetDefault("remote.table", "reviews")
	viper.SetDefault("analysis.provider", "pollinations")
	viper.SetDefault("analysis.base_url", "")
	viper.SetDefault("analysis.model", "")
	viper.SetDefault("analysis.api_key", "")
	viper.SetDefault("analysis.timeout", analysis.DefaultTimeout)
	viper.SetDefault("history.limit", store.DefaultListLimit)
	viper.SetDefault("export.dir", ".")
	viper.SetDefault("port", 8080)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	logger = newLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	// The store and controller are built lazily so config/version commands
	// run without a database or network.
}

// newLogger returns the diagnostic logger: warnings only, debug with --verbose.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func storeOptions() store.Options {
	return store.Options{
		Backend:   viper.GetString("store.backend"),
		DBPath:    viper.GetString("db_path"),
		LocalPath: viper.GetString("local.path"),
		RemoteURL: viper.GetString("remote.url"),
		RemoteKey: viper.GetString("remote.key"),
		Table:     viper.GetString("remote.table"),
	}
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	s, err := store.Open(cmdContext(), storeOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", viper.GetString("store.backend"), err)
	}

	dataStore = s
	return dataStore, nil
}

// getHistory returns the shared history adapter over the configured store.
func getHistory() (*history.Adapter, error) {
	if hist != nil {
		return hist, nil
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	hist = history.New(s, viper.GetInt("history.limit"), diagLogger())
	return hist, nil
}

// getController wires the analysis client and history into a controller.
func getController() (*app.Controller, error) {
	if ctrl != nil {
		return ctrl, nil
	}
	h, err := getHistory()
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator(http.DefaultClient)
	if err != nil {
		return nil, err
	}
	client := analysis.NewClient(gen,
		analysis.WithTimeout(viper.GetDuration("analysis.timeout")),
		analysis.WithLogger(diagLogger()),
	)
	ctrl = app.New(client, h, app.WithLogger(diagLogger()))
	return ctrl, nil
}

func cmdContext() context.Context {
	if ctx := rootCmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func diagLogger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// closeDeps flushes pending reply writes and closes the store.
func closeDeps() {
	if ctrl != nil {
		ctrl.Wait()
	}
	if dataStore != nil {
		_ = dataStore.Close()
	}
	ctrl, hist, dataStore = nil, nil, nil
}
