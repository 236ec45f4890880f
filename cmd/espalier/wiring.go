package main

import (
	"encoding/base64"
	"fmt"
	"path/filepath"

	"github.com/aretw0/loam"
	"github.com/spf13/cobra"

	"github.com/aretw0/espalier/internal/config"
	"github.com/aretw0/espalier/internal/logging"
	loamAdapter "github.com/aretw0/espalier/pkg/adapters/loam"
	"github.com/aretw0/espalier/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/espalier/pkg/adapters/redis"
	"github.com/aretw0/espalier/pkg/persistence/middleware"
	"github.com/aretw0/espalier/pkg/ports"
	"github.com/aretw0/espalier/pkg/session"
	backend "github.com/redis/go-redis/v9"
)

// loadConfig resolves the config path from flags and parses the file.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	dir, _ := cmd.Flags().GetString("dir")
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = filepath.Join(dir, config.DefaultFile)
	}
	cfg, err := loadAndValidate(path)
	return cfg, dir, err
}

func loadAndValidate(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if cfg.Security.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.Security.EncryptionKey)
		if err != nil {
			return cfg, fmt.Errorf("invalid encryption_key: %w", err)
		}
		if len(key) != 32 {
			return cfg, fmt.Errorf("encryption_key must decode to 32 bytes, got %d", len(key))
		}
	}
	return cfg, nil
}

// buildStore assembles the configured state store with its middleware chain.
func buildStore(cfg config.Config) (ports.StateStore, *backend.Client, error) {
	var store ports.StateStore
	var client *backend.Client

	switch cfg.Store.Backend {
	case "redis":
		client = backend.NewClient(&backend.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		store = redisAdapter.NewFromClient(client,
			redisAdapter.WithTTL(cfg.Store.Redis.TTL.Std()),
			redisAdapter.WithPrefix(cfg.Store.Redis.Prefix),
		)
	default:
		store = memory.NewStore()
	}

	// Middleware order matters: PII masking runs first so the encrypted
	// blob never contains unmasked values it then hides anyway. Encryption
	// wraps last so it sees the masked state.
	if len(cfg.Security.PIIPatterns) > 0 {
		store = middleware.NewPIIMiddleware(cfg.Security.PIIPatterns)(store)
	}
	if cfg.Security.EncryptionKey != "" {
		key, _ := base64.StdEncoding.DecodeString(cfg.Security.EncryptionKey)
		store = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(store)
	}

	return store, client, nil
}

// buildManager assembles the session manager over the configured store.
func buildManager(cfg config.Config) (*session.Manager, error) {
	store, client, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	opts := []session.Option{
		session.WithLogger(logging.New(logging.ParseLevel(cfg.LogLevel))),
	}
	if cfg.Lock.TTL.Std() > 0 {
		opts = append(opts, session.WithLockTTL(cfg.Lock.TTL.Std()))
	}
	if cfg.Lock.Distributed {
		if client == nil {
			return nil, fmt.Errorf("distributed locking requires the redis backend")
		}
		opts = append(opts, session.WithLocker(redisAdapter.NewLocker(client, cfg.Store.Redis.Prefix)))
	}

	return session.NewManager(store, opts...), nil
}

// buildViews opens the template repository under dir.
func buildViews(cfg config.Config, dir string) (*loamAdapter.Resolver, error) {
	viewsPath := cfg.ViewsDir
	if !filepath.IsAbs(viewsPath) {
		viewsPath = filepath.Join(dir, viewsPath)
	}
	absPath, err := filepath.Abs(viewsPath)
	if err != nil {
		return nil, fmt.Errorf("invalid views path: %w", err)
	}

	// Strict mode keeps numeric types consistent across adapters; the
	// engine only reads templates, so the repo is opened read-only.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}

	return loamAdapter.New(loam.NewTypedRepository[loamAdapter.ViewMetadata](repo)), nil
}
