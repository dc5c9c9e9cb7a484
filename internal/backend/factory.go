package backend

import (
	"context"
	"fmt"

	"fluxo/internal/config"
	"fluxo/internal/log"
	"fluxo/internal/sources"
	"fluxo/internal/sources/memory"
	"fluxo/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		SeedFile:     appConfig.SeedFile,
	}, nil
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if config.SQLiteDBPath == "" {
		return nil, fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if config.SeedFile != "" {
		if err := f.seedSQLite(ctx, repo, config.SeedFile); err != nil {
			_ = repo.Close()
			return nil, err
		}
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Backend: repo, Cleanup: repo.Close}, nil
}

// seedSQLite imports the seed file only into a database that has no data yet,
// so restarts never duplicate or overwrite edits.
func (f *DefaultFactory) seedSQLite(ctx context.Context, repo *storage.SQLiteRepository, path string) error {
	empty, err := repo.IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect SQLite database: %w", err)
	}
	if !empty {
		f.logger.Debug("SQLite database already populated, skipping seed", "seed_file", path)
		return nil
	}
	ds, err := sources.LoadSeed(path)
	if err != nil {
		return fmt.Errorf("failed to load seed file: %w", err)
	}
	if err := repo.Import(ctx, ds); err != nil {
		return fmt.Errorf("failed to import seed file: %w", err)
	}
	f.logger.Info("Seeded SQLite database", "seed_file", path,
		"accounts", len(ds.Accounts), "cards", len(ds.Cards), "transactions", len(ds.Transactions))
	return nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}
	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	return &BackendResult{Backend: store}, nil
}
