package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ecochat/internal/answer"
	"ecochat/internal/chat"
	"ecochat/internal/config"
	"ecochat/internal/storage"
	"ecochat/internal/store"
	"ecochat/internal/web"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfgPath := os.Getenv("ECOCHAT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	backend, cleanup, err := buildBackend(cfg, logger)
	if err != nil {
		logger.Fatal("init session backend", zap.Error(err))
	}
	if cleanup != nil {
		defer cleanup()
	}

	sessions := store.NewClient(backend, logger)
	answers := answer.NewClient(
		cfg.AnswerAPI.BaseURL,
		time.Duration(cfg.AnswerAPI.TimeoutSeconds)*time.Second,
		logger,
	)
	manager := chat.NewManager(sessions, answers, logger)

	router := gin.Default()
	web.NewHandler(manager, sessions, logger).RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	logger.Info("listening",
		zap.String("addr", addr),
		zap.String("store", cfg.BasicConfig.StorageBackend),
		zap.String("answer_api", cfg.AnswerAPI.BaseURL),
	)
	if err := router.Run(addr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// buildBackend picks the session persistence layer from config. Whatever
// it returns, the store client still keeps an in-process fallback for
// the moments the backend is unreachable.
func buildBackend(cfg *config.Config, logger *zap.Logger) (store.Backend, func(), error) {
	switch cfg.BasicConfig.StorageBackend {
	case "api", "":
		timeout := time.Duration(cfg.SessionAPI.TimeoutSeconds) * time.Second
		return store.NewRemote(cfg.SessionAPI.BaseURL, timeout), nil, nil
	case "sqlite3", "mysql":
		db, err := storage.Open(cfg.BasicConfig.StorageBackend, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.Migrate(db, cfg.BasicConfig.StorageBackend); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store.NewLocal(db), func() { db.Close() }, nil
	case "memory":
		logger.Warn("running without persistent session storage")
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.BasicConfig.StorageBackend)
	}
}
