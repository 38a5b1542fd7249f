package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	Dataset       DatasetConfig
	Encoding      EncodingConfig
	Tokenizer     TokenizerConfig
	Engine        EngineConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type DatasetConfig struct {
	// Source is "local" for filesystem paths or "s3" for object keys.
	Source          string
	TrainPath       string
	TrainTablesPath string
	ValPath         string
	ValTablesPath   string
	TestPath        string
	TestTablesPath  string
	UseSmall        bool
	SmallLimit      int
}

type EncodingConfig struct {
	MaxLength int
	BatchSize int
	Seed      int64
}

type TokenizerConfig struct {
	// Kind is "char" or "wordpiece".
	Kind          string
	VocabPath     string
	TokenizerFile string
}

type EngineConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	// Workers is the number of examples executed concurrently when scoring.
	Workers int
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel        slog.Level
	LogJSON         bool
	MetricsTextfile string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("NL2SQL_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid NL2SQL_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "NL2SQL_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "NL2SQL_DATASET_SOURCE", &cfg.Dataset.Source) },
		func() error { return applyString(lookup, "NL2SQL_DATASET_TRAIN", &cfg.Dataset.TrainPath) },
		func() error { return applyString(lookup, "NL2SQL_DATASET_TRAIN_TABLES", &cfg.Dataset.TrainTablesPath) },
		func() error { return applyString(lookup, "NL2SQL_DATASET_VAL", &cfg.Dataset.ValPath) },
		func() error { return applyString(lookup, "NL2SQL_DATASET_VAL_TABLES", &cfg.Dataset.ValTablesPath) },
		func() error { return applyString(lookup, "NL2SQL_DATASET_TEST", &cfg.Dataset.TestPath) },
		func() error { return applyString(lookup, "NL2SQL_DATASET_TEST_TABLES", &cfg.Dataset.TestTablesPath) },
		func() error { return applyBool(lookup, "NL2SQL_DATASET_USE_SMALL", &cfg.Dataset.UseSmall) },
		func() error { return applyInt(lookup, "NL2SQL_DATASET_SMALL_LIMIT", &cfg.Dataset.SmallLimit) },
		func() error { return applyInt(lookup, "NL2SQL_ENCODING_MAX_LENGTH", &cfg.Encoding.MaxLength) },
		func() error { return applyInt(lookup, "NL2SQL_ENCODING_BATCH_SIZE", &cfg.Encoding.BatchSize) },
		func() error { return applyInt64(lookup, "NL2SQL_ENCODING_SEED", &cfg.Encoding.Seed) },
		func() error { return applyString(lookup, "NL2SQL_TOKENIZER_KIND", &cfg.Tokenizer.Kind) },
		func() error { return applyString(lookup, "NL2SQL_TOKENIZER_VOCAB", &cfg.Tokenizer.VocabPath) },
		func() error { return applyString(lookup, "NL2SQL_TOKENIZER_FILE", &cfg.Tokenizer.TokenizerFile) },
		func() error { return applyString(lookup, "NL2SQL_ENGINE_DRIVER", &cfg.Engine.Driver) },
		func() error { return applyString(lookup, "NL2SQL_ENGINE_DSN", &cfg.Engine.DSN) },
		func() error { return applyInt(lookup, "NL2SQL_ENGINE_MAX_OPEN_CONNS", &cfg.Engine.MaxOpenConns) },
		func() error { return applyInt(lookup, "NL2SQL_ENGINE_WORKERS", &cfg.Engine.Workers) },
		func() error { return applyString(lookup, "NL2SQL_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "NL2SQL_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "NL2SQL_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "NL2SQL_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error { return applyString(lookup, "NL2SQL_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey) },
		func() error { return applyBool(lookup, "NL2SQL_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "NL2SQL_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error { return applyBool(lookup, "NL2SQL_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket) },
		func() error { return applyBool(lookup, "NL2SQL_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "NL2SQL_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyString(lookup, "NL2SQL_METRICS_TEXTFILE", &cfg.Observability.MetricsTextfile) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	switch cfg.Dataset.Source {
	case "local", "s3":
	default:
		return Config{}, fmt.Errorf("invalid NL2SQL_DATASET_SOURCE: %q", cfg.Dataset.Source)
	}
	switch cfg.Tokenizer.Kind {
	case "char", "wordpiece":
	default:
		return Config{}, fmt.Errorf("invalid NL2SQL_TOKENIZER_KIND: %q", cfg.Tokenizer.Kind)
	}
	if cfg.Encoding.MaxLength <= 0 {
		return Config{}, fmt.Errorf("NL2SQL_ENCODING_MAX_LENGTH must be positive")
	}
	if cfg.Encoding.BatchSize <= 0 {
		return Config{}, fmt.Errorf("NL2SQL_ENCODING_BATCH_SIZE must be positive")
	}
	if cfg.Engine.Workers <= 0 {
		return Config{}, fmt.Errorf("NL2SQL_ENGINE_WORKERS must be positive")
	}
	return cfg, nil
}

// RecordLimit is the per-file line cap applied when loading records.
func (c DatasetConfig) RecordLimit() int {
	if c.UseSmall {
		return c.SmallLimit
	}
	return 0
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "nl2sqlctl"},
		Dataset: DatasetConfig{
			Source:          "local",
			TrainPath:       "data/train/train.json",
			TrainTablesPath: "data/train/train.tables.json",
			ValPath:         "data/val/val.json",
			ValTablesPath:   "data/val/val.tables.json",
			TestPath:        "data/test/test.json",
			TestTablesPath:  "data/test/test.tables.json",
			UseSmall:        false,
			SmallLimit:      1000,
		},
		Encoding: EncodingConfig{
			MaxLength: 200,
			BatchSize: 16,
			Seed:      42,
		},
		Tokenizer: TokenizerConfig{
			Kind:      "char",
			VocabPath: "model/vocab.txt",
		},
		Engine: EngineConfig{
			Driver:       "duckdb",
			DSN:          "data/val/val.duckdb",
			MaxOpenConns: 4,
			Workers:      1,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "nl2sql",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  false,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.Dataset.UseSmall = true
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogJSON = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
