package config

import (
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pulse/activitypipe/internal/domain/activity"
	"github.com/pulse/activitypipe/internal/domain/shared"
)

// Config holds all pipeline configuration
type Config struct {
	App        AppConfig
	Log        LogConfig
	Generation GenerationConfig
	Paths      PathsConfig
	Pipeline   PipelineConfig
	Database   DatabaseConfig
	Transform  TransformConfig
	Storage    StorageConfig
	Telemetry  TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"required"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error"`
	Format string `validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// GenerationConfig controls the candidate source
type GenerationConfig struct {
	NumRows           int       `validate:"gt=0"`
	Start             time.Time `validate:"required"`
	End               time.Time `validate:"required"`
	Seed              int64
	ValidStatuses     []string `validate:"min=1,dive,required"`
	ActiveProbability float64  `validate:"gte=0,lte=1"`
	RefundPriceFactor float64  `validate:"gte=0"`
	// InputFile switches the source from synthesis to a raw CSV extract
	InputFile string
}

// PathsConfig holds artifact locations
type PathsConfig struct {
	DataDir    string `validate:"required"`
	MetricsDir string `validate:"required"`
}

// PipelineConfig holds execution settings
type PipelineConfig struct {
	Workers         int `validate:"gte=1"`
	MaxLoggedErrors int `validate:"gte=1"`
}

// DatabaseConfig holds the analytical table connection settings
type DatabaseConfig struct {
	Enabled      bool
	Driver       string `validate:"oneof=sqlite postgres"`
	Path         string // sqlite file
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	BatchSize    int `validate:"gte=1"`
	MaxOpenConns int `validate:"gte=1"`
	LogLevel     string
}

// TransformConfig controls the SQL model step that runs after the table load
type TransformConfig struct {
	Enabled bool
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64 `validate:"gte=0,lte=1"`
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	LogsEnabled       bool
}

// Load reads configuration from a TOML file and PIPELINE_ environment variables.
// Priority (highest to lowest):
// 1. Environment variables with PIPELINE_ prefix (e.g., PIPELINE_GENERATION_NUM_ROWS)
// 2. configFile, or config.toml found in ., ./config or /app
// 3. Built-in defaults
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.enabled", true)
	v.SetDefault("transform.enabled", true)
	v.SetDefault("storage.use_path_style", true)
	v.SetDefault("generation.active_probability", 0.8)
	v.SetDefault("generation.refund_price_factor", 0.25)

	start, err := parseTime(v.GetString("generation.start"))
	if err != nil {
		return nil, shared.Wrap(shared.CodeInvalidConfig, "generation.start", err)
	}
	end, err := parseTime(v.GetString("generation.end"))
	if err != nil {
		return nil, shared.Wrap(shared.CodeInvalidConfig, "generation.end", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Generation: GenerationConfig{
			NumRows:           v.GetInt("generation.num_rows"),
			Start:             start,
			End:               end,
			Seed:              v.GetInt64("generation.seed"),
			ValidStatuses:     v.GetStringSlice("generation.valid_statuses"),
			ActiveProbability: v.GetFloat64("generation.active_probability"),
			RefundPriceFactor: v.GetFloat64("generation.refund_price_factor"),
			InputFile:         v.GetString("generation.input_file"),
		},
		Paths: PathsConfig{
			DataDir:    v.GetString("paths.data_dir"),
			MetricsDir: v.GetString("paths.metrics_dir"),
		},
		Pipeline: PipelineConfig{
			Workers:         v.GetInt("pipeline.workers"),
			MaxLoggedErrors: v.GetInt("pipeline.max_logged_errors"),
		},
		Database: DatabaseConfig{
			Enabled:      v.GetBool("database.enabled"),
			Driver:       v.GetString("database.driver"),
			Path:         v.GetString("database.path"),
			Host:         v.GetString("database.host"),
			Port:         v.GetInt("database.port"),
			User:         v.GetString("database.user"),
			Password:     v.GetString("database.password"),
			DBName:       v.GetString("database.dbname"),
			SSLMode:      v.GetString("database.sslmode"),
			BatchSize:    v.GetInt("database.batch_size"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
			LogLevel:     v.GetString("database.log_level"),
		},
		Transform: TransformConfig{
			Enabled: v.GetBool("transform.enabled"),
		},
		Storage: StorageConfig{
			Enabled:         v.GetBool("storage.enabled"),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			Prefix:          v.GetString("storage.prefix"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime accepts the window formats used in config files; empty means unset
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "activity-pipeline"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Generation.NumRows == 0 {
		cfg.Generation.NumRows = 10000
	}
	if cfg.Generation.Start.IsZero() {
		cfg.Generation.Start = time.Date(2021, 1, 1, 10, 30, 0, 0, time.UTC)
	}
	if cfg.Generation.End.IsZero() {
		cfg.Generation.End = time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)
	}
	if cfg.Generation.Seed == 0 {
		cfg.Generation.Seed = 42
	}
	if len(cfg.Generation.ValidStatuses) == 0 {
		cfg.Generation.ValidStatuses = append([]string(nil), activity.DefaultValidStatuses...)
	}

	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = "data"
	}
	if cfg.Paths.MetricsDir == "" {
		cfg.Paths.MetricsDir = "metrics"
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = runtime.NumCPU()
	}
	if cfg.Pipeline.MaxLoggedErrors == 0 {
		cfg.Pipeline.MaxLoggedErrors = 100
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/activity.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "activity"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.BatchSize == 0 {
		cfg.Database.BatchSize = 500
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 4
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "sim-api-data"
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
}

var validate = validator.New()

// Validate checks struct constraints and cross-field rules. It is exported so
// callers can re-check after applying command-line overrides.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return shared.Wrap(shared.CodeInvalidConfig, "invalid configuration", errors.New(strings.Join(msgs, "; ")))
		}
		return shared.Wrap(shared.CodeInvalidConfig, "invalid configuration", err)
	}

	if !c.Generation.End.After(c.Generation.Start) {
		return shared.Wrap(shared.CodeInvalidConfig, "invalid configuration",
			fmt.Errorf("generation.end (%s) must be after generation.start (%s)",
				c.Generation.End.Format(time.RFC3339), c.Generation.Start.Format(time.RFC3339)))
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return shared.Wrap(shared.CodeInvalidConfig, "invalid configuration",
			errors.New("storage.bucket is required when storage is enabled"))
	}
	if c.Database.Enabled && c.Database.Driver == "sqlite" && c.Database.Path == "" {
		return shared.Wrap(shared.CodeInvalidConfig, "invalid configuration",
			errors.New("database.path is required for sqlite"))
	}
	if c.Transform.Enabled && !c.Database.Enabled {
		return shared.Wrap(shared.CodeInvalidConfig, "invalid configuration",
			errors.New("transform requires the database to be enabled"))
	}
	return nil
}

// DSN returns the postgres connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
