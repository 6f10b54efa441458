package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Content       ContentConfig       `yaml:"content"`
	Build         BuildConfig         `yaml:"build"`
	ErrorHandling ErrorHandlingConfig `yaml:"error_handling"`
	Logging       LoggingConfig       `yaml:"logging"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Maintenance   MaintenanceConfig   `yaml:"maintenance"`
	Environment   EnvironmentConfig   `yaml:"environment"`
}

type ContentConfig struct {
	IngestionSchedule string `yaml:"ingestion_schedule"`
	IngestCommand     string `yaml:"ingest_command"`
	MaxArticlesPerRun int    `yaml:"max_articles_per_run"`
}

type BuildConfig struct {
	AutoBuild      bool          `yaml:"auto_build"`
	AutoDeploy     bool          `yaml:"auto_deploy"`
	BuildCommand   string        `yaml:"build_command"`
	DeploySchedule []string      `yaml:"deploy_schedule"`
	DeployMethods  DeployMethods `yaml:"deploy_methods"`
	PublishDir     string        `yaml:"publish_dir"`
	StageTimeout   int           `yaml:"stage_timeout"`
}

type DeployMethods struct {
	Command     string `yaml:"command"`
	LocalBackup bool   `yaml:"local_backup"`
}

type ErrorHandlingConfig struct {
	MaxRetries    int                `yaml:"max_retries"`
	RetryDelay    int                `yaml:"retry_delay"`
	MaxDelay      int                `yaml:"max_delay"`
	Notifications NotificationConfig `yaml:"notifications"`
}

type NotificationConfig struct {
	Console    bool   `yaml:"console"`
	Webhook    bool   `yaml:"webhook"`
	WebhookURL string `yaml:"webhook_url"`
}

type LoggingConfig struct {
	LogFile    string `yaml:"log_file"`
	MaxLogSize int64  `yaml:"max_log_size"`
}

type MonitoringConfig struct {
	StatusFile          string `yaml:"status_file"`
	PerformanceLog      string `yaml:"performance_log"`
	HealthCheckInterval int    `yaml:"health_check_interval"`
	TickInterval        int    `yaml:"tick_interval"`
	DBPath              string `yaml:"db_path"`
	PostgresURL         string `yaml:"postgres_url"`
	SiteURL             string `yaml:"site_url"`
}

type MaintenanceConfig struct {
	BackupLocation      string `yaml:"backup_location"`
	BackupRetentionDays int    `yaml:"backup_retention_days"`
}

type EnvironmentConfig struct {
	WorkingDirectory string `yaml:"working_directory"`
}

// Default returns the configuration used when no file is present. init-config
// writes exactly this.
func Default() *Config {
	return &Config{
		Content: ContentConfig{
			IngestionSchedule: "0 */6 * * *",
			MaxArticlesPerRun: 50,
		},
		Build: BuildConfig{
			AutoBuild:    true,
			AutoDeploy:   true,
			BuildCommand: "hugo --gc --minify",
			PublishDir:   "public",
			StageTimeout: 600,
		},
		ErrorHandling: ErrorHandlingConfig{
			MaxRetries: 3,
			RetryDelay: 300,
			Notifications: NotificationConfig{
				Console: true,
			},
		},
		Logging: LoggingConfig{
			LogFile:    "automation_logs/automation.log",
			MaxLogSize: 10 * 1024 * 1024,
		},
		Monitoring: MonitoringConfig{
			StatusFile:          "automation_logs/status.json",
			PerformanceLog:      "automation_logs/performance.log",
			HealthCheckInterval: 3600,
			TickInterval:        60,
			DBPath:              "automation.db",
		},
		Maintenance: MaintenanceConfig{
			BackupLocation:      "backups",
			BackupRetentionDays: 7,
		},
		Environment: EnvironmentConfig{
			WorkingDirectory: ".",
		},
	}
}

// DefaultPath returns the config file path to use when none is given on the
// command line, honoring the AUTOMATION_CONFIG override.
func DefaultPath() string {
	if p := os.Getenv("AUTOMATION_CONFIG"); p != "" {
		return p
	}
	return "automation.yaml"
}

// Load reads the config file on top of defaults, then applies env overrides.
// A missing or unparseable file is never fatal: defaults are used and the
// warning is left to the caller to log.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	var warn error
	data, err := os.ReadFile(path)
	if err == nil {
		if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
			cfg = Default()
			warn = fmt.Errorf("config file %s is malformed, using defaults: %w", path, uerr)
		}
	} else if !os.IsNotExist(err) {
		warn = fmt.Errorf("could not read config file %s, using defaults: %w", path, err)
	}

	if dbURL := os.Getenv("AUTOMATION_DB_URL"); dbURL != "" {
		cfg.Monitoring.PostgresURL = dbURL
	}
	if wd := os.Getenv("AUTOMATION_WORKDIR"); wd != "" {
		cfg.Environment.WorkingDirectory = wd
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, warn
}

// Validate rejects values that would make the scheduler or retry executor
// misbehave. Runs once at startup before any component is constructed.
func (c *Config) Validate() error {
	if c.ErrorHandling.MaxRetries < 0 {
		return fmt.Errorf("error_handling.max_retries must be >= 0, got %d", c.ErrorHandling.MaxRetries)
	}
	if c.ErrorHandling.RetryDelay < 0 {
		return fmt.Errorf("error_handling.retry_delay must be >= 0, got %d", c.ErrorHandling.RetryDelay)
	}
	if c.ErrorHandling.MaxDelay < 0 {
		return fmt.Errorf("error_handling.max_delay must be >= 0, got %d", c.ErrorHandling.MaxDelay)
	}
	if c.Monitoring.TickInterval <= 0 {
		return fmt.Errorf("monitoring.tick_interval must be > 0, got %d", c.Monitoring.TickInterval)
	}
	if c.Monitoring.HealthCheckInterval <= 0 {
		return fmt.Errorf("monitoring.health_check_interval must be > 0, got %d", c.Monitoring.HealthCheckInterval)
	}
	if c.Build.StageTimeout <= 0 {
		return fmt.Errorf("build.stage_timeout must be > 0, got %d", c.Build.StageTimeout)
	}

	if c.Content.IngestionSchedule != "" {
		if _, err := cron.ParseStandard(c.Content.IngestionSchedule); err != nil {
			return fmt.Errorf("invalid content.ingestion_schedule %q: %w", c.Content.IngestionSchedule, err)
		}
	}
	for _, at := range c.Build.DeploySchedule {
		if _, err := time.Parse("15:04", at); err != nil {
			return fmt.Errorf("invalid build.deploy_schedule entry %q: %w", at, err)
		}
	}

	return nil
}

// WriteDefault writes the default config as YAML. Refuses to overwrite an
// existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file %s already exists", path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.ErrorHandling.RetryDelay) * time.Second
}

func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.ErrorHandling.MaxDelay) * time.Second
}

func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Build.StageTimeout) * time.Second
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Monitoring.TickInterval) * time.Second
}

func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.Monitoring.HealthCheckInterval) * time.Second
}
