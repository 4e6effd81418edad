package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CTAG07/Nepenthes/pkg/lang"
	"github.com/CTAG07/Nepenthes/pkg/templating"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// app is the state shared by every command, filled in before a command runs.
type app struct {
	configPath string
	logLevel   string

	config *Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "nepenthes",
		Short:        "Compile, cache and render Nepenthes templates",
		SilenceUsage: true,
		Version:      fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "./config.json", "path to the JSON config file")
	root.PersistentFlags().StringVarP(&a.logLevel, "log-level", "l", "", "log level (debug, info, warn, error); overrides the config file")

	root.AddCommand(
		newRenderCmd(a),
		newCompileCmd(a),
		newCacheCmd(a),
		newLangCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	config, err := LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.config = config

	level := config.App.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.logger = newLogger(cmd.ErrOrStderr(), ParseLevel(level))
	a.logger.Debug("Configuration loaded", "path", a.configPath)
	return nil
}

// initDB opens the SQLite database at dataSource and checks that it is
// reachable.
func initDB(dataSource string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dataSource)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// openDB opens the database holding the language strings and makes sure its
// schema exists.
func (a *app) openDB() (*sql.DB, error) {
	if dir := a.config.App.DataDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := initDB(a.config.App.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = lang.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup language schema: %w", err)
	}
	return db, nil
}

// openStore opens the language store. The returned function closes both the
// store and its database.
func (a *app) openStore() (*lang.Store, func(), error) {
	db, err := a.openDB()
	if err != nil {
		return nil, nil, err
	}
	store, err := lang.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create language store: %w", err)
	}
	store.SetLogger(a.logger)
	return store, func() {
		store.Close()
		if err := db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}, nil
}

// newRenderer builds a renderer from the loaded configuration. The language
// packs listed in the config are loaded into memory when translate is set.
func (a *app) newRenderer(ctx context.Context, translate bool, device string) (*templating.Renderer, error) {
	if device == "" {
		device = a.config.App.Device
	}
	opts := []templating.Option{templating.WithDeviceClassifier(templating.StaticDevice(device))}

	if translate && len(a.config.App.LangPacks) > 0 {
		store, closeStore, err := a.openStore()
		if err != nil {
			return nil, err
		}
		table, err := store.Table(ctx, a.config.App.LangPacks...)
		closeStore()
		if err != nil {
			return nil, fmt.Errorf("failed to load language packs: %w", err)
		}
		a.logger.Debug("Language packs loaded", "packs", a.config.App.LangPacks, "strings", len(table))
		opts = append(opts, templating.WithTranslator(table))
	}

	return templating.NewRenderer(a.logger, *a.config.Templates, opts...)
}

// sourceRoot is the directory template sources of the configured theme
// live in.
func (a *app) sourceRoot() string {
	return filepath.Join(a.config.Templates.TemplateDir, a.config.Templates.Theme)
}
