package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/merklekit/merklekit/pkg/config"
	"github.com/merklekit/merklekit/pkg/logger"
	"github.com/merklekit/merklekit/pkg/persistence"
	badgerstore "github.com/merklekit/merklekit/pkg/persistence/badger"
	"github.com/merklekit/merklekit/pkg/persistence/memory"
	redisstore "github.com/merklekit/merklekit/pkg/persistence/redis"
	"github.com/merklekit/merklekit/pkg/service"
)

func main() {
	app := &cli.App{
		Name:  "merkle-server",
		Usage: "Merkle inclusion proof server",
		Description: `An HTTP server for building merkle trees and serving inclusion proofs.

This server implements:
- Tree construction from ordered data blocks with pluggable hash algorithms
- Inclusion proof generation with proof caching
- Stateless proof verification against a trusted root
- Pluggable persistence (memory, badger, redis)`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvMerklePort},
			},
			&cli.StringFlag{
				Name:    "algorithm",
				Aliases: []string{"a"},
				Value:   "sha256",
				Usage:   fmt.Sprintf("Default hash algorithm: %s", config.GetSupportedAlgorithmsString()),
				EnvVars: []string{config.EnvMerkleAlgorithm},
			},
			&cli.StringFlag{
				Name:    "store-backend",
				Aliases: []string{"s"},
				Value:   "memory",
				Usage:   fmt.Sprintf("Persistence backend: %s", config.SupportedStoreBackendsString()),
				EnvVars: []string{config.EnvMerkleStoreBackend},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Data directory for the badger backend",
				EnvVars: []string{config.EnvMerkleDataDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address for the redis backend",
				EnvVars: []string{config.EnvMerkleRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password for the redis backend",
				EnvVars: []string{config.EnvMerkleRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Value:   0,
				Usage:   "Redis database number for the redis backend",
				EnvVars: []string{config.EnvMerkleRedisDB},
			},
			&cli.Float64Flag{
				Name:  "requests-per-second",
				Value: 0,
				Usage: "Rate limit for tree creation (0 disables limiting)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvMerkleVerbose},
			},
		},
		Action: runMerkleServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runMerkleServer(c *cli.Context) error {
	loggerConfig := &logger.LoggerConfig{
		Debug: c.Bool("verbose"),
	}
	l, err := logger.NewLogger(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	serverConfig := parseServerConfig(c)

	if err := serverConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := buildStore(serverConfig, l)
	if err != nil {
		return fmt.Errorf("failed to initialize %s store: %w", serverConfig.StoreBackend, err)
	}
	defer func() { _ = store.Close() }()

	svc := service.NewService(service.Config{
		Port:              serverConfig.Port,
		DefaultAlgorithm:  serverConfig.Algorithm,
		RequestsPerSecond: serverConfig.RequestsPerSecond,
	}, store, l)

	if serverConfig.Verbose {
		l.Sugar().Infow("Merkle Server Configuration",
			"port", serverConfig.Port,
			"algorithm", serverConfig.Algorithm,
			"store_backend", serverConfig.StoreBackend,
			"requests_per_second", serverConfig.RequestsPerSecond)
	}

	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	l.Sugar().Infow("Merkle server running", "port", serverConfig.Port)
	l.Sugar().Infow("Available endpoints",
		"trees", "POST /trees, GET /trees",
		"tree", "GET /trees/{id}, DELETE /trees/{id}",
		"proof", "GET /trees/{id}/proof?index=N",
		"verify", "POST /verify",
		"health", "GET /healthz")
	l.Sugar().Info("Press Ctrl+C to stop")

	// Keep the server running
	select {}
}

func parseServerConfig(c *cli.Context) *config.ServerConfig {
	return &config.ServerConfig{
		Port:              c.Int("port"),
		Algorithm:         c.String("algorithm"),
		StoreBackend:      config.StoreBackend(c.String("store-backend")),
		DataDir:           c.String("data-dir"),
		RedisAddress:      c.String("redis-address"),
		RedisPassword:     c.String("redis-password"),
		RedisDB:           c.Int("redis-db"),
		RequestsPerSecond: c.Float64("requests-per-second"),
		Verbose:           c.Bool("verbose"),
	}
}

func buildStore(cfg *config.ServerConfig, l *zap.Logger) (persistence.ITreeStore, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		l.Sugar().Warn("Using in-memory store, data will not survive restarts")
		return memory.NewMemoryStore(), nil
	case config.StoreBackendBadger:
		return badgerstore.NewBadgerStore(cfg.DataDir, l)
	case config.StoreBackendRedis:
		return redisstore.NewRedisStore(&redisstore.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}
}
