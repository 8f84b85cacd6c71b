// Package config loads farmgraph settings from an optional YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "farmgraph.yaml"

// Config holds all configuration for farmgraph. Environment variables always
// override YAML values. Secrets only come from the environment.
type Config struct {
	Storage Storage `yaml:"storage"`
	Blob    Blob    `yaml:"blob"`
	Neo4j   Neo4j   `yaml:"neo4j"`
	Log     Log     `yaml:"log"`
}

// Storage selects the entity store backend.
type Storage struct {
	// Driver is one of memory, sqlite or postgres.
	Driver      string `yaml:"driver" env:"FARMGRAPH_STORAGE_DRIVER" env-default:"sqlite"`
	SQLitePath  string `yaml:"sqlite_path" env:"FARMGRAPH_SQLITE_PATH" env-default:"farmgraph.db"`
	PostgresDSN string `yaml:"postgres_dsn" env:"FARMGRAPH_POSTGRES_DSN" env-default:"postgres://localhost/farmgraph?sslmode=disable"`
}

// Blob selects where fact exports are written.
type Blob struct {
	// Driver is one of fs, memory or s3.
	Driver string `yaml:"driver" env:"FARMGRAPH_BLOB_DRIVER" env-default:"fs"`
	FSRoot string `yaml:"fs_root" env:"FARMGRAPH_BLOB_FS_ROOT" env-default:"./blobdata"`
	S3     S3     `yaml:"s3"`
}

// S3 configures an S3-compatible bucket (AWS S3 or MinIO).
type S3 struct {
	Bucket          string `yaml:"bucket" env:"FARMGRAPH_BLOB_S3_BUCKET"`
	Region          string `yaml:"region" env:"FARMGRAPH_BLOB_S3_REGION" env-default:"us-east-1"`
	Endpoint        string `yaml:"endpoint" env:"FARMGRAPH_BLOB_S3_ENDPOINT"`
	PathStyle       bool   `yaml:"path_style" env:"FARMGRAPH_BLOB_S3_PATH_STYLE" env-default:"false"`
	AccessKeyID     string `yaml:"-" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `yaml:"-" env:"AWS_SESSION_TOKEN"`
}

// Neo4j configures the fact graph projection. An empty URI disables it.
type Neo4j struct {
	URI      string `yaml:"uri" env:"FARMGRAPH_NEO4J_URI"`
	Username string `yaml:"username" env:"FARMGRAPH_NEO4J_USERNAME" env-default:"neo4j"`
	Password string `yaml:"-" env:"FARMGRAPH_NEO4J_PASSWORD"`
	Database string `yaml:"database" env:"FARMGRAPH_NEO4J_DATABASE" env-default:"neo4j"`
}

// Enabled reports whether a projection target is configured.
func (n Neo4j) Enabled() bool { return n.URI != "" }

// Log configures the zap logger.
type Log struct {
	// Mode is prod or dev.
	Mode string `yaml:"mode" env:"FARMGRAPH_LOG_MODE" env-default:"dev"`
}

// Load reads path when it exists and applies environment overrides. A missing
// file is not an error: defaults and environment values are used instead.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks driver names and the settings each driver requires.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	switch c.Log.Mode {
	case "dev", "development", "prod", "production":
	default:
		errs = append(errs, fmt.Errorf("unknown log mode %q", c.Log.Mode))
	}
	return errors.Join(errs...)
}
