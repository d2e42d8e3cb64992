package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Slurm     SlurmConfig     `json:"slurm"`
	Poller    PollerConfig    `json:"poller"`
	Slack     SlackConfig     `json:"slack"`
	Templates TemplatesConfig `json:"templates"`
	Jobs      types.JobConfig `json:"jobs"`
}

type ServerConfig struct {
	Port         string `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

type SlurmConfig struct {
	Timeout string `json:"timeout"`
}

type PollerConfig struct {
	Interval string `json:"interval"`
}

type SlackConfig struct {
	WebhookURL string `json:"webhook_url"`
}

type TemplatesConfig struct {
	Path string `json:"path"`
}

// Load reads the JSON config file. When the file is absent the service
// falls back to environment variables (optionally from .env).
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if err := godotenv.Load(); err != nil {
			if err := godotenv.Load(".env.local"); err != nil {
				fmt.Printf("No .env or .env.local file found. Using environment variables.\n")
			}
		}

		return &Config{
			Server: ServerConfig{
				Port: getEnv("PORT", "8080"),
			},
			Slurm: SlurmConfig{
				Timeout: getEnv("SLURM_TIMEOUT", "30s"),
			},
			Poller: PollerConfig{
				Interval: getEnv("POLLER_INTERVAL", "30s"),
			},
			Templates: TemplatesConfig{
				Path: getEnv("JOB_TEMPLATES_PATH", ""),
			},
			Jobs: types.JobConfig{
				MaxConcurrent: 2,
			},
		}, nil
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Slurm: SlurmConfig{
			Timeout: "30s",
		},
		Poller: PollerConfig{
			Interval: "30s",
		},
		Jobs: types.JobConfig{
			MaxConcurrent: 2,
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
