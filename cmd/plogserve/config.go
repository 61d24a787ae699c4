package main

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	// ServiceConfig starts from the defaults of the running environment.
	// Any variable set in the process environment overrides them.
	ServiceConfig struct {
		Environment string
		Port        string `env:"PORT"`
		LogLevel    string `env:"LOG_LEVEL"`

		SentryDSN string `env:"SENTRY_DSN"`

		// Storage selects the object store: blob, gcs or badger.
		Storage   string `env:"PLOG_STORAGE"`
		BucketURL string `env:"PLOG_BUCKET_URL"`
		GCSBucket string `env:"PLOG_GCS_BUCKET"`
		BadgerDir string `env:"PLOG_BADGER_DIR"`

		SummaryKafkaBrokers []string `env:"PLOG_KAFKA_BROKERS" env-separator:","`
		SummaryKafkaTopic   string   `env:"PLOG_KAFKA_TOPIC"`

		CacheSize int `env:"PLOG_CACHE_SIZE"`
		Workers   int `env:"PLOG_WORKERS"`
		TopNodes  int `env:"PLOG_TOP_NODES"`
	}
)

var (
	serviceConfigs = map[string]ServiceConfig{
		"production": {
			Port:                "8080",
			LogLevel:            "info",
			Storage:             "gcs",
			GCSBucket:           "perf-analyzer-plogs",
			SummaryKafkaBrokers: []string{"kafka.service.consul:9092"},
			SummaryKafkaTopic:   "plog-summaries",
			CacheSize:           32,
			TopNodes:            50,
		},
		"development": {
			Port:      "8080",
			LogLevel:  "debug",
			Storage:   "blob",
			BucketURL: "file:///var/lib/perf-analyzer/plogs?create_dir=true",
			CacheSize: 8,
			TopNodes:  50,
		},
	}
)

func loadConfig() (ServiceConfig, error) {
	envName := os.Getenv("SENTRY_ENVIRONMENT")
	if envName == "" {
		envName = "development"
	}
	config, exists := serviceConfigs[envName]
	if !exists {
		return ServiceConfig{}, fmt.Errorf("service config for environment %v does not exist", envName)
	}
	config.Environment = envName
	if err := cleanenv.ReadEnv(&config); err != nil {
		return ServiceConfig{}, err
	}
	return config, nil
}
