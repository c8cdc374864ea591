package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	httpadapter "github.com/psouza/walletcore/internal/app/core/adapter/in/http"
	memoryadapter "github.com/psouza/walletcore/internal/app/core/adapter/out/memory"
	mysqladapter "github.com/psouza/walletcore/internal/app/core/adapter/out/mysql"
	"github.com/psouza/walletcore/internal/app/core/usecase"
	"github.com/psouza/walletcore/pkg/mysql"
	"github.com/psouza/walletcore/pkg/wal"
)

// Backend selects which store implementation serves the ledger.
const (
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

type Config struct {
	Backend string       `yaml:"backend"`
	Port    string       `yaml:"port"`
	WALPath string       `yaml:"wal_path"`
	MySQL   mysql.Config `yaml:"mysql"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := loadConfig(logger)

	var store usecase.Store
	var closers []func()

	switch cfg.Backend {
	case BackendMySQL:
		dbClient, err := mysql.NewClient(cfg.MySQL)
		if err != nil {
			logger.Error("mysql connection failed", "error", err)
			os.Exit(1)
		}
		closers = append(closers, func() { _ = dbClient.Close() })

		sqlStore := mysqladapter.NewStore(dbClient)
		if err := sqlStore.Migrate(); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		store = sqlStore
		logger.Info("connected to mysql", "host", cfg.MySQL.Host, "db", cfg.MySQL.DBName)

	case BackendMemory:
		journal, err := wal.Open(cfg.WALPath)
		if err != nil {
			logger.Error("wal open failed", "error", err, "path", cfg.WALPath)
			os.Exit(1)
		}
		closers = append(closers, func() { _ = journal.Close() })

		memStore, err := memoryadapter.NewStore(journal)
		if err != nil {
			logger.Error("wal replay failed", "error", err)
			os.Exit(1)
		}
		store = memStore
		logger.Info("memory backend ready", "wal", cfg.WALPath)

	default:
		logger.Error("invalid backend", "backend", cfg.Backend)
		os.Exit(1)
	}

	engine := usecase.NewLedgerEngine(store, logger)
	handler := httpadapter.NewHandler(engine, logger)
	app := httpadapter.NewApp(handler)

	go func() {
		logger.Info("server starting", "port", cfg.Port, "backend", cfg.Backend)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := app.Shutdown(); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	for _, closeFn := range closers {
		closeFn()
	}
	logger.Info("server exited")
}

func loadConfig(logger *slog.Logger) Config {
	path := os.Getenv("WALLETCORE_CONFIG")
	if path == "" {
		path = "config/config.yaml"
	}

	cfgData, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read config file", "error", err, "path", path)
		os.Exit(1)
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		logger.Error("failed to parse config", "error", err)
		os.Exit(1)
	}

	// Fill defaults the file may omit.
	if cfg.Backend == "" {
		cfg.Backend = BackendMySQL
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.WALPath == "" {
		cfg.WALPath = "wallet.wal"
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = 30 * time.Minute
	}
	return cfg
}
