package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Kartekeya-Sharma/Contract-Guard/model"
	"gopkg.in/yaml.v3"
)

// DefaultMaxFileSize is the upload ceiling applied when none is configured (16MB).
const DefaultMaxFileSize int64 = 16 * 1024 * 1024

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Query    QueryConfig    `yaml:"query"`
	Minio    MinioConfig    `yaml:"minio"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Users    []User         `yaml:"users"`
}

type ServerConfig struct {
	Port           int    `yaml:"port"`
	CORSOrigin     string `yaml:"cors_origin"`
	RateLimit      int    `yaml:"rate_limit"`       // requests per minute per client IP
	QueryRateLimit int    `yaml:"query_rate_limit"` // questions per minute per tenant
}

// AnalysisConfig describes the document-analysis service and the rules a
// document must satisfy before it is sent there.
type AnalysisConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	APIToken       string   `yaml:"api_token"`
	MaxFileSize    int64    `yaml:"max_file_size"`
	AcceptedTypes  []string `yaml:"accepted_types"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Timeout returns the submission ceiling.
func (c AnalysisConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type QueryConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (c QueryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MinioConfig is optional; documents are archived only when Endpoint is set.
type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"` // lifetime of presigned download links
}

func (c MinioConfig) Enabled() bool {
	return c.Endpoint != ""
}

// RedisConfig is optional; analysis results are persisted only when URL is set.
type RedisConfig struct {
	URL      string `yaml:"url"`
	TTLHours int    `yaml:"ttl_hours"`
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	MaxSessions int `yaml:"max_sessions"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Tenant   string `yaml:"tenant"`
}

// Load reads the YAML file at path and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes YAML configuration and fills in defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults sets every unset field to its default value.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.CORSOrigin == "" {
		c.Server.CORSOrigin = "*"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 100
	}
	if c.Server.QueryRateLimit == 0 {
		c.Server.QueryRateLimit = 20
	}
	if c.Analysis.MaxFileSize == 0 {
		c.Analysis.MaxFileSize = DefaultMaxFileSize
	}
	if len(c.Analysis.AcceptedTypes) == 0 {
		c.Analysis.AcceptedTypes = []string{model.MediaTypePDF, model.MediaTypeDOCX, model.MediaTypeText}
	}
	if c.Analysis.TimeoutSeconds == 0 {
		c.Analysis.TimeoutSeconds = 120
	}
	if c.Query.TimeoutSeconds == 0 {
		c.Query.TimeoutSeconds = 60
	}
	if c.Minio.Bucket == "" {
		c.Minio.Bucket = "contracts"
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Redis.TTLHours == 0 {
		c.Redis.TTLHours = 24
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.MaxSessions == 0 {
		c.Store.MaxSessions = 100
	}
}

// Validate reports configuration that would make the orchestrator unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.Endpoint == "" {
		errs = append(errs, errors.New("analysis.endpoint is required"))
	}
	if c.Query.Endpoint == "" {
		errs = append(errs, errors.New("query.endpoint is required"))
	}
	if c.Analysis.MaxFileSize < 0 {
		errs = append(errs, errors.New("analysis.max_file_size must not be negative"))
	}
	if c.Analysis.TimeoutSeconds < 0 || c.Query.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	return errors.Join(errs...)
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
