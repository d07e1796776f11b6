package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"blogarchive/pkg/config"
	"blogarchive/pkg/database"
	"blogarchive/pkg/imagecache"
	"blogarchive/pkg/logger"
	"blogarchive/pkg/models"
	"blogarchive/pkg/storage"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	storageRoot string
	dbPath      string
	siteFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "blogarchive",
	Short: "Archive idol group blog posts and images",
	Long: `blogarchive scrapes the group's official blog, stores posts in a local
SQLite database and downloads every post image exactly once.

Supported sites:
  site-A  the group's current blog platform (default)
  site-B  the legacy platform with the group's early posts`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.blogarchive.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&storageRoot, "storage-root", "", "root directory for downloaded images")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "path to the SQLite database file")
	rootCmd.PersistentFlags().StringVar(&siteFlag, "site", string(models.SiteCurrent), "blog site to target (site-A or site-B)")

	rootCmd.SetVersionTemplate(`blogarchive {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// app bundles everything a command needs.
type app struct {
	cfg   *config.Config
	db    *database.DB
	store storage.Adapter
	cache *imagecache.Index
}

func (a *app) close() {
	if err := a.cache.Flush(); err != nil {
		logger.GetLogger().WithError(err).Warn("Failed to flush image cache index")
	}
	if err := a.db.Close(); err != nil {
		logger.GetLogger().WithError(err).Warn("Failed to close database")
	}
}

// buildApp loads configuration, initializes logging and opens every
// shared resource.
func buildApp() (*app, error) {
	flags := make(map[string]interface{})
	if storageRoot != "" {
		flags["storage-root"] = storageRoot
	}
	if dbPath != "" {
		flags["db-path"] = dbPath
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	log := logger.GetLogger()

	db, err := database.Open(cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.Storage, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	cache, err := imagecache.Load(cfg.Download.CacheIndexPath, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{cfg: cfg, db: db, store: store, cache: cache}, nil
}

func selectedSite() (models.Site, error) {
	site := models.Site(siteFlag)
	if !site.Valid() {
		return "", fmt.Errorf("unknown site %q (expected %s or %s)", siteFlag, models.SiteCurrent, models.SiteLegacy)
	}
	return site, nil
}
