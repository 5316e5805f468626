package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/tasky/internal/config"
	"github.com/hitoshi/tasky/internal/database"
	"github.com/hitoshi/tasky/internal/repository"
	"github.com/hitoshi/tasky/internal/worker/cleanup"
)

// accountStore はアカウントリポジトリと期限切れOTP削除を兼ねる。
type accountStore interface {
	repository.AccountRepository
	cleanup.OTPPurger
}

// store は選択されたストアドライバで構築したリポジトリ群を保持する。
type store struct {
	accounts accountStore
	tasks    repository.TaskRepository
	health   repository.HealthChecker
	close    func()
}

// openStore はSTORE_DRIVERに応じてPostgreSQLまたはMongoDBに接続する。
func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		return openMongoStore(ctx, cfg)
	default:
		return openPostgresStore(ctx, cfg)
	}
}

func openPostgresStore(ctx context.Context, cfg *config.Config) (*store, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established", slog.String("driver", config.StoreDriverPostgres))

	return &store{
		accounts: repository.NewPostgresAccountRepo(db),
		tasks:    repository.NewPostgresTaskRepo(db),
		health:   db,
		close:    func() { db.Close() },
	}, nil
}

func openMongoStore(ctx context.Context, cfg *config.Config) (*store, error) {
	client, db, err := database.OpenMongo(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}

	accounts := repository.NewMongoAccountRepo(db)
	tasks := repository.NewMongoTaskRepo(db)
	if err := accounts.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := tasks.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	slog.Info("database connection established",
		slog.String("driver", config.StoreDriverMongo),
		slog.String("database", cfg.MongoDatabase),
	)

	return &store{
		accounts: accounts,
		tasks:    tasks,
		health:   database.MongoHealthChecker{Client: client},
		close:    func() { _ = client.Disconnect(context.Background()) },
	}, nil
}
