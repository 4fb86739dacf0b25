package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/lab-cases/internal/config"
	"github.com/jwalitptl/lab-cases/internal/repository"
	"github.com/jwalitptl/lab-cases/internal/repository/memory"
	"github.com/jwalitptl/lab-cases/internal/repository/postgres"
	"github.com/jwalitptl/lab-cases/pkg/logger"
	"github.com/jwalitptl/lab-cases/pkg/storage"
)

// backendRepo is a persistence provider that can report readiness.
type backendRepo interface {
	repository.CaseRepository
	repository.Pinger
}

type backend struct {
	Repo    backendRepo
	Objects storage.ObjectStore
	db      *sqlx.DB
}

func (b *backend) Close() {
	if b.db != nil {
		b.db.Close()
	}
}

func openBackend(cfg *config.Config, l *logger.Logger) (*backend, error) {
	switch mode := cfg.ResolveBackend(); mode {
	case config.BackendMock:
		objects := storage.NewMemoryStore(cfg.Storage.Bucket)
		opts := []memory.Option{memory.WithLogger(l.With("component", "memory-store"))}
		if cfg.Backend.Seed {
			opts = append(opts, memory.WithSeed())
		}
		return &backend{Repo: memory.NewStore(objects, opts...), Objects: objects}, nil

	case config.BackendRemote:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := postgres.EnsureSchema(ctx, db)
			cancel()
			if err != nil {
				db.Close()
				return nil, err
			}
		}

		objects, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:      cfg.Storage.Endpoint,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			Bucket:        cfg.Storage.Bucket,
			UseSSL:        cfg.Storage.UseSSL,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		repo := postgres.NewCaseRepository(db, objects, postgres.WithLogger(l.With("component", "postgres")))
		return &backend{Repo: repo, Objects: objects, db: db}, nil

	default:
		return nil, fmt.Errorf("unsupported backend mode %q", mode)
	}
}
