package main

import (
	"context"
	"net/http"

	"github.com/daniacca/ecogrid/internal/storage"
)

// openStore opens the SQLite recording store, falling back to an
// in-memory store when the database cannot be opened. The server stays
// usable either way; only persistence across restarts is lost.
func openStore(cfg ServerConfig, logger *Logger) storage.Store {
	sqlStore := storage.NewSQLiteStore(cfg.RecordingsDB)
	if err := sqlStore.Init(context.Background()); err != nil {
		logger.Warnf("cannot open recordings database %s: %v", cfg.RecordingsDB, err)
		logger.Warnf("recordings will be kept in memory only")
		return storage.NewMemoryStore()
	}
	logger.Infof("recordings database: %s", cfg.RecordingsDB)
	return sqlStore
}

func main() {
	cfg := loadServerConfig()
	logger := NewLogger(cfg.LogLevel)

	store := openStore(cfg, logger)
	srv := NewServer(logger, store)
	defer srv.Close()

	if cfg.WebhookURL != "" {
		hook := NewWebhookNotifier("generation-webhook", cfg.WebhookURL)
		if err := srv.notifierMgr.RegisterNotifier(hook); err != nil {
			logger.Fatalf("cannot register webhook notifier: %v", err)
		}
		logger.Infof("generation webhook: %s", cfg.WebhookURL)
	}

	if cfg.ParamsFile != "" {
		params, err := loadParamsFromFile(cfg.ParamsFile)
		if err != nil {
			logger.Fatalf("cannot load parameter file %s: %v", cfg.ParamsFile, err)
		}
		srv.SetDefaultParams(params)
		logger.Infof("default parameters loaded from %s", cfg.ParamsFile)
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	logger.Infof("ecogrid-server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		logger.Fatalf("server stopped: %v", err)
	}
}
