package main

import (
	"fmt"

	"github.com/vrflight/routes/internal/config"
	"github.com/vrflight/routes/internal/database"
	"github.com/vrflight/routes/internal/storage"
	filestorage "github.com/vrflight/routes/internal/storage/file"
	gormstorage "github.com/vrflight/routes/internal/storage/gorm"
	"github.com/vrflight/routes/internal/storage/memory"
	"gorm.io/gorm"
)

func createStore(cfg config.StorageConfig) (storage.Store, error) {
	t, err := storage.ParseType(cfg.Type)
	if err != nil {
		return nil, err
	}

	switch t {
	case storage.TypeMemory:
		Logger.Info("Memory route store initialized")
		return memory.New(), nil

	case storage.TypeFile:
		backend, err := filestorage.New(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to create file store: %w", err)
		}
		Logger.Info("File route store initialized", "path", cfg.File.Path)
		return backend, nil

	case storage.TypeSQLite, storage.TypePostgres:
		var db *gorm.DB
		if t == storage.TypeSQLite {
			db, err = database.OpenSQLite(Logger, cfg.SQLite.Path)
		} else {
			db, err = database.OpenPostgres(Logger)
		}
		if err != nil {
			return nil, err
		}
		backend := gormstorage.New(gormstorage.Dependencies{DB: db, Logger: Logger})
		if err := backend.Init(); err != nil {
			_ = backend.Close()
			return nil, err
		}
		Logger.Info("Database route store initialized", "type", t)
		return backend, nil
	}

	return nil, fmt.Errorf("%w: %q", storage.ErrUnknownBackend, cfg.Type)
}
