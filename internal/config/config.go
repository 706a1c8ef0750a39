// Package config loads the fieldsd process configuration from an optional
// YAML file overlaid with TASKFIELDS_* environment variables.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/taskfields/sqlstore"
	"github.com/jacentio/taskfields/store"
)

// Backends.
const (
	BackendSQLite   = sqlstore.SQLite
	BackendPostgres = sqlstore.Postgres
	BackendMySQL    = sqlstore.MySQL
	BackendDynamoDB = "dynamodb"
)

type Config struct {
	Addr    string `yaml:"addr"`
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`

	// KeepPropertiesOnOmit leaves a value's properties alone when an update
	// omits the properties key.
	KeepPropertiesOnOmit bool `yaml:"keep_properties_on_omit"`

	Log      LogConfig      `yaml:"log"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DynamoDBConfig struct {
	Profile  string `yaml:"profile"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	FieldsTable          string `yaml:"fields_table"`
	ValuesTable          string `yaml:"values_table"`
	PropertiesTable      string `yaml:"properties_table"`
	TaskValuesTable      string `yaml:"task_values_table"`
	TaskValuesFieldIndex string `yaml:"task_values_field_index"`
}

// Default returns the configuration used when nothing is set: SQLite in the
// working directory, listening on :8080.
func Default() Config {
	d := store.DefaultConfig()
	return Config{
		Addr:    ":8080",
		Backend: BackendSQLite,
		DSN:     "file:taskfields.db?_foreign_keys=on&_busy_timeout=5000",
		Log:     LogConfig{Level: "info", Format: "text"},
		DynamoDB: DynamoDBConfig{
			FieldsTable:          d.FieldsTable,
			ValuesTable:          d.ValuesTable,
			PropertiesTable:      d.PropertiesTable,
			TaskValuesTable:      d.TaskValuesTable,
			TaskValuesFieldIndex: d.TaskValuesFieldIndex,
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads path, if not empty, over the defaults and applies environment
// overrides. Unknown YAML keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Addr = getEnv("TASKFIELDS_ADDR", cfg.Addr)
	cfg.Backend = strings.ToLower(getEnv("TASKFIELDS_BACKEND", cfg.Backend))
	cfg.DSN = getEnv("TASKFIELDS_DSN", cfg.DSN)
	if v := os.Getenv("TASKFIELDS_KEEP_PROPERTIES_ON_OMIT"); v != "" {
		cfg.KeepPropertiesOnOmit = strings.EqualFold(v, "true") || v == "1"
	}
	cfg.Log.Level = getEnv("TASKFIELDS_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("TASKFIELDS_LOG_FORMAT", cfg.Log.Format)

	ddb := &cfg.DynamoDB
	ddb.Profile = getEnv("AWS_PROFILE", ddb.Profile)
	ddb.Region = getEnv("AWS_REGION", ddb.Region)
	ddb.Endpoint = getEnv("TASKFIELDS_DYNAMODB_ENDPOINT", ddb.Endpoint)
	ddb.FieldsTable = getEnv("TASKFIELDS_FIELDS_TABLE", ddb.FieldsTable)
	ddb.ValuesTable = getEnv("TASKFIELDS_VALUES_TABLE", ddb.ValuesTable)
	ddb.PropertiesTable = getEnv("TASKFIELDS_PROPERTIES_TABLE", ddb.PropertiesTable)
	ddb.TaskValuesTable = getEnv("TASKFIELDS_TASK_VALUES_TABLE", ddb.TaskValuesTable)
	ddb.TaskValuesFieldIndex = getEnv("TASKFIELDS_TASK_VALUES_FIELD_INDEX", ddb.TaskValuesFieldIndex)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the backend and logging settings.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendPostgres, BackendMySQL:
		if c.DSN == "" {
			return fmt.Errorf("config: dsn is required for backend %q", c.Backend)
		}
	case BackendDynamoDB:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level (debug, info, warn, error).
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// StoreConfig returns the DynamoDB store configuration.
func (c DynamoDBConfig) StoreConfig() store.Config {
	cfg := store.DefaultConfig()
	cfg.FieldsTable = c.FieldsTable
	cfg.ValuesTable = c.ValuesTable
	cfg.PropertiesTable = c.PropertiesTable
	cfg.TaskValuesTable = c.TaskValuesTable
	cfg.TaskValuesFieldIndex = c.TaskValuesFieldIndex
	return cfg
}

// NewClient builds a DynamoDB client from the shared AWS configuration,
// narrowed by Profile, Region and Endpoint when set.
func (c DynamoDBConfig) NewClient(ctx context.Context) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.Profile))
	}
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	}), nil
}
