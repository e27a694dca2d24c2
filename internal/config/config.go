package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	AnswerAPI   APIConfig                 `json:"answer_api"`
	SessionAPI  APIConfig                 `json:"session_api"`
	Databases   map[string]DatabaseConfig `json:"databases"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// StorageBackend selects session persistence: "api" (remote session
	// service), "sqlite3"/"mysql" (local database) or "memory".
	StorageBackend string `json:"storage_backend"`
}

type APIConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error: the service runs against localhost
// defaults so a fresh checkout works without any setup.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = "config.json"
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	switch {
	case os.IsNotExist(err):
		// fall through to env overrides
	case err != nil:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	default:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	// Environment wins over the file for backend addressing.
	if v := os.Getenv("ECOCHAT_ANSWER_URL"); v != "" {
		cfg.AnswerAPI.BaseURL = v
	}
	if v := os.Getenv("ECOCHAT_SESSION_API_URL"); v != "" {
		cfg.SessionAPI.BaseURL = v
	}
	if v := os.Getenv("ECOCHAT_STORE"); v != "" {
		cfg.BasicConfig.StorageBackend = v
	}

	if cfg.AnswerAPI.TimeoutSeconds <= 0 {
		cfg.AnswerAPI.TimeoutSeconds = 120
	}
	if cfg.SessionAPI.TimeoutSeconds <= 0 {
		cfg.SessionAPI.TimeoutSeconds = 10
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress:  ":8090",
			StorageBackend: "api",
		},
		AnswerAPI:  APIConfig{BaseURL: "http://localhost:8000", TimeoutSeconds: 120},
		SessionAPI: APIConfig{BaseURL: "http://localhost:8010", TimeoutSeconds: 10},
		Databases: map[string]DatabaseConfig{
			"sqlite3": {DSN: "./data/ecochat.db"},
		},
	}
}
