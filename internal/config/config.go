// Package config handles application configuration loading from YAML and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable pointing at the YAML config file
const ConfigFileEnv = "QUIZ_AUDIT_CONFIG_FILE"

// defaultConfigFile is read when ConfigFileEnv is unset. It may be absent.
const defaultConfigFile = "config.yaml"

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Ledger database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Document store holding courses, lessons and questions
	Mongo MongoConfig `json:"mongo" yaml:"mongo"`

	// Duplicate audit and ledger settings
	Audit AuditConfig `json:"audit" yaml:"audit"`

	// Question selection settings
	Selection SelectionConfig `json:"selection" yaml:"selection"`

	// Scheduled audit worker
	Worker WorkerConfig `json:"worker" yaml:"worker"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port        string   `json:"port" yaml:"port"`
	Debug       bool     `json:"debug" yaml:"debug"`
	LogLevel    string   `json:"log_level" yaml:"log_level"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
}

// DatabaseConfig represents the ledger database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"` // Maximum amount of time a connection may be reused
	MigrationsPath  string        `json:"migrations_path" yaml:"migrations_path"`
}

// MongoConfig represents the document store configuration
type MongoConfig struct {
	URI                 string        `json:"uri" yaml:"uri"`
	Database            string        `json:"database" yaml:"database"`
	CoursesCollection   string        `json:"courses_collection" yaml:"courses_collection"`
	LessonsCollection   string        `json:"lessons_collection" yaml:"lessons_collection"`
	QuestionsCollection string        `json:"questions_collection" yaml:"questions_collection"`
	ConnectTimeout      time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
}

// AuditConfig holds duplicate-audit parameters and the ledger location
type AuditConfig struct {
	Threshold    float64 `json:"threshold" yaml:"threshold"`
	MinWindow    int     `json:"min_window" yaml:"min_window"`
	MinPrev      int     `json:"min_prev" yaml:"min_prev"`
	Clustering   string  `json:"clustering" yaml:"clustering"` // "greedy" or "union_find"
	Workers      int     `json:"workers" yaml:"workers"`
	LedgerPath   string  `json:"ledger_path" yaml:"ledger_path"`
	LedgerSource string  `json:"ledger_source" yaml:"ledger_source"` // "markdown" or "database"
	Auditor      string  `json:"auditor" yaml:"auditor"`
}

// SelectionConfig bounds the number of questions a selection request may return
type SelectionConfig struct {
	DefaultPoolSize int `json:"default_pool_size" yaml:"default_pool_size"`
	MaxPoolSize     int `json:"max_pool_size" yaml:"max_pool_size"`
}

// WorkerConfig controls the scheduled audit worker
type WorkerConfig struct {
	Port        string        `json:"port" yaml:"port"`
	Interval    time.Duration `json:"interval" yaml:"interval"`
	MaxHistory  int           `json:"max_history" yaml:"max_history"`
	StartPaused bool          `json:"start_paused" yaml:"start_paused"`
	RunOnStart  bool          `json:"run_on_start" yaml:"run_on_start"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "quiz-audit"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`   // Use the auto SDK tracer provider instead of the OTLP SDK
}

// DefaultConfig returns a configuration populated with the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     "8080",
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: DatabaseConnMaxLifetime,
			MigrationsPath:  "migrations",
		},
		Mongo: MongoConfig{
			URI:                 "mongodb://localhost:27017",
			Database:            DefaultMongoDatabase,
			CoursesCollection:   DefaultCoursesCollection,
			LessonsCollection:   DefaultLessonsCollection,
			QuestionsCollection: DefaultQuestionsCollection,
			ConnectTimeout:      DefaultMongoConnect,
		},
		Audit: AuditConfig{
			Threshold:    DefaultSimilarityThreshold,
			MinWindow:    DefaultMinWindow,
			MinPrev:      DefaultMinPrev,
			Clustering:   "greedy",
			Workers:      DefaultAuditWorkers,
			LedgerPath:   "docs/QUIZ_QUALITY_AUDIT_LEDGER.md",
			LedgerSource: LedgerSourceMarkdown,
			Auditor:      "quiz-audit",
		},
		Selection: SelectionConfig{
			DefaultPoolSize: DefaultSelectionPoolSize,
			MaxPoolSize:     MaxSelectionPoolSize,
		},
		Worker: WorkerConfig{
			Port:       "8081",
			Interval:   DefaultWorkerInterval,
			MaxHistory: DefaultWorkerMaxHistory,
			RunOnStart: true,
		},
		OpenTelemetry: OpenTelemetryConfig{
			Endpoint:     "localhost:4317",
			Protocol:     "grpc",
			Insecure:     true,
			ServiceName:  "quiz-audit",
			SamplingRate: 1.0,
		},
	}
}

// Validate fails fast on settings the audit and selection components cannot run with
func (c *Config) Validate() error {
	var problems []string

	if !(c.Audit.Threshold >= 0 && c.Audit.Threshold <= 1) {
		problems = append(problems, fmt.Sprintf("audit.threshold must be within [0,1], got %v", c.Audit.Threshold))
	}
	if c.Audit.MinWindow < 1 {
		problems = append(problems, fmt.Sprintf("audit.min_window must be at least 1, got %d", c.Audit.MinWindow))
	}
	if c.Audit.MinPrev < 1 {
		problems = append(problems, fmt.Sprintf("audit.min_prev must be at least 1, got %d", c.Audit.MinPrev))
	}
	if c.Audit.Workers < 1 {
		problems = append(problems, fmt.Sprintf("audit.workers must be at least 1, got %d", c.Audit.Workers))
	}
	switch c.Audit.Clustering {
	case "greedy", "union_find":
	default:
		problems = append(problems, fmt.Sprintf("audit.clustering must be greedy or union_find, got %q", c.Audit.Clustering))
	}
	switch c.Audit.LedgerSource {
	case LedgerSourceMarkdown:
	case LedgerSourceDatabase:
		if c.Database.URL == "" {
			problems = append(problems, "audit.ledger_source is database but database.url is empty")
		}
	default:
		problems = append(problems, fmt.Sprintf("audit.ledger_source must be markdown or database, got %q", c.Audit.LedgerSource))
	}
	if c.Selection.MaxPoolSize < 1 {
		problems = append(problems, fmt.Sprintf("selection.max_pool_size must be at least 1, got %d", c.Selection.MaxPoolSize))
	}
	if c.Selection.DefaultPoolSize < 1 || c.Selection.DefaultPoolSize > c.Selection.MaxPoolSize {
		problems = append(problems, fmt.Sprintf("selection.default_pool_size must be within [1,%d], got %d", c.Selection.MaxPoolSize, c.Selection.DefaultPoolSize))
	}
	if c.Worker.Interval < MinWorkerInterval {
		problems = append(problems, fmt.Sprintf("worker.interval must be at least %s, got %s", MinWorkerInterval, c.Worker.Interval))
	}
	if c.Worker.MaxHistory < 1 {
		problems = append(problems, fmt.Sprintf("worker.max_history must be at least 1, got %d", c.Worker.MaxHistory))
	}

	if len(problems) > 0 {
		return contextutils.NewAppError(
			contextutils.ErrorCodeInvalidConfiguration,
			contextutils.SeverityFatal,
			contextutils.ErrInvalidConfiguration.Message,
			strings.Join(problems, "; "),
		)
	}
	return nil
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	// Load config from YAML file
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	// Override with environment variables
	config.overrideFromEnv()

	return config, nil
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv recursively overrides struct fields with environment variables
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables.
// AUDIT_THRESHOLD maps to Audit.Threshold, SERVER_CORS_ORIGINS to Server.CORSOrigins, and so on.
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		// Skip unexported fields
		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			envVal := os.Getenv(envKey)
			if envVal == "" {
				continue
			}
			if field.Type() == reflect.TypeOf(time.Duration(0)) {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
				continue
			}
			if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
				field.SetInt(intVal)
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				// Handle string slices (like CORS_ORIGINS)
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			// Recursively process nested structs with the field name as prefix
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				overrideStructFromEnvWithPrefix(field.Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file on top of the defaults
func loadConfigWithOverrides() (result0 *Config, err error) {
	// Try to load from environment variable first
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	// If no environment variable is set, try default config.yaml
	config, err := loadConfigFromFile(defaultConfigFile)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return config, err
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, err
	}

	return config, nil
}
