package main

import (
	"os"
	"os/signal"
	"syscall"

	"songbook/internal/archive"
	"songbook/internal/audioprobe"
	"songbook/internal/config"
	"songbook/internal/kvstore"
	"songbook/internal/lyrics"
	"songbook/internal/prefs"
	"songbook/internal/repository"
	"songbook/internal/watcher"
	"songbook/pkg/models"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Optional .env for local overrides
	godotenv.Load()

	configPath := os.Getenv("SONGBOOK_CONFIG")
	if configPath == "" {
		configPath = "./config.toml"
	}

	// Initialize basic logger for startup
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}

	applyLogging(logger, cfg)

	if err := os.MkdirAll(cfg.Storage.DocumentsRoot, 0755); err != nil {
		logger.WithError(err).WithField("documents_root", cfg.Storage.DocumentsRoot).Fatal("Cannot create documents root")
	}

	// Open the blob store
	store, err := kvstore.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("Error initializing blob store")
	}
	defer store.Close()

	prefStore := prefs.NewStore(store)
	repo := repository.New(store, prefStore)
	lyricsMgr := lyrics.NewManager(cfg.Storage.DocumentsRoot)
	archiveMgr := archive.NewManager(cfg.Storage.DocumentsRoot, lyricsMgr, audioprobe.NewProber())

	// Load the library and rebuild each project's archive from disk
	projects := repo.Load()
	for _, p := range projects {
		lyricsMgr.EnsureLyricsFile(p)
		p.Archive = archiveMgr.LoadEntries(p.ID)
	}
	logger.WithField("projects", len(projects)).Info("Library loaded")

	if cfg.Archive.CleanupOnStartup {
		for _, p := range projects {
			removed := archiveMgr.RemoveEntriesOlderThan(p, cfg.Archive.RetentionDays, cfg.Archive.DeleteFilesOnPrune)
			pruned := archiveMgr.PruneMissing(p)
			orphans := archiveMgr.CleanupOrphanedFiles(p)
			if removed+pruned+orphans > 0 {
				logger.WithFields(logrus.Fields{
					"project": p.ID,
					"expired": removed,
					"missing": pruned,
					"orphans": orphans,
				}).Info("Archive cleanup finished")
			}
		}
	}

	// Watch for lyrics files deleted outside the app. Vanished paths come
	// back over a channel so the repair (which mutates project state) runs
	// here on the foreground goroutine, never on the watcher's.
	var fileWatcher *watcher.Watcher
	var missing <-chan string
	if cfg.Watcher.Enabled {
		fileWatcher, err = watcher.New(cfg.Storage.DocumentsRoot)
		if err != nil {
			logger.WithError(err).Warn("Could not create file watcher")
		} else if err := fileWatcher.Start(); err != nil {
			logger.WithError(err).Warn("Could not start file watcher")
			fileWatcher.Close()
			fileWatcher = nil
		} else {
			missing = fileWatcher.Missing()
		}
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	for running := true; running; {
		select {
		case path := <-missing:
			repairLyrics(projects, path, lyricsMgr)
		case <-c:
			running = false
		}
	}

	logger.Info("Received shutdown signal")
	if fileWatcher != nil {
		fileWatcher.Close()
	}

	// Repair anything still queued before the final save.
	for done := false; !done; {
		select {
		case path := <-missing:
			repairLyrics(projects, path, lyricsMgr)
		default:
			done = true
		}
	}

	if err := repo.Save(projects); err != nil {
		logger.WithError(err).Error("Failed to save library on shutdown")
	}
}

// repairLyrics re-runs the idempotent lyrics repair for the project that
// references the vanished path.
func repairLyrics(projects []*models.Project, path string, lyricsMgr *lyrics.Manager) {
	for _, p := range projects {
		for _, f := range p.Files {
			if f == path {
				lyricsMgr.EnsureLyricsFile(p)
				return
			}
		}
	}
}

// applyLogging configures the startup logger from the config file.
func applyLogging(logger *logrus.Logger, cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}
