package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Transport TransportConfig `mapstructure:"transport"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

// StoreConfig describes the backing store (a Postgres-compatible REST API).
type StoreConfig struct {
	URL            string        `mapstructure:"url"`
	ServiceKey     string        `mapstructure:"service_key"`
	QueueName      string        `mapstructure:"queue_name"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type TransportConfig struct {
	ResolveTimeout     time.Duration `mapstructure:"resolve_timeout"`
	InsecureIPFallback bool          `mapstructure:"insecure_ip_fallback"`
}

type WorkerConfig struct {
	IdleInterval    time.Duration `mapstructure:"idle_interval"`
	ErrorInterval   time.Duration `mapstructure:"error_interval"`
	RestartCooldown time.Duration `mapstructure:"restart_cooldown"`
}

type PipelineConfig struct {
	DefaultOrigin string        `mapstructure:"default_origin"`
	StageTimeout  time.Duration `mapstructure:"stage_timeout"`
	BuildTimeout  time.Duration `mapstructure:"build_timeout"`
}

// JournalConfig describes the local job/event journal database.
type JournalConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the PostgreSQL connection string for the journal.
func (c *JournalConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// ArchiveConfig describes the S3-compatible bucket completed job results
// are archived to. Disabled unless an endpoint and bucket are configured.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // r2, s3, s3compatible; auto-detected when empty
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("store.queue_name", "site_jobs")
	v.SetDefault("store.request_timeout", "30s")
	v.SetDefault("transport.resolve_timeout", "10s")
	v.SetDefault("transport.insecure_ip_fallback", false)
	v.SetDefault("worker.idle_interval", "5s")
	v.SetDefault("worker.error_interval", "10s")
	v.SetDefault("worker.restart_cooldown", "10s")
	v.SetDefault("pipeline.default_origin", "https://domaintobiz.vercel.app")
	v.SetDefault("pipeline.stage_timeout", "120s")
	v.SetDefault("pipeline.build_timeout", "300s")
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.driver", "sqlite")
	v.SetDefault("journal.path", "./data/journal.db")
	v.SetDefault("journal.port", 5432)
	v.SetDefault("journal.ssl_mode", "disable")
	v.SetDefault("journal.max_idle_conns", 2)
	v.SetDefault("journal.max_open_conns", 5)
	v.SetDefault("journal.conn_max_lifetime", "1h")
	v.SetDefault("journal.auto_migrate", true)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.use_ssl", true)
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.port", 8090)
	v.SetDefault("admin.mode", "release")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("store.url", "SUPABASE_URL")
	v.BindEnv("store.service_key", "SUPABASE_SERVICE_ROLE_KEY")
	v.BindEnv("transport.insecure_ip_fallback", "TRANSPORT_INSECURE_IP_FALLBACK")
	v.BindEnv("pipeline.default_origin", "PIPELINE_DEFAULT_ORIGIN")
	v.BindEnv("journal.password", "JOURNAL_DB_PASSWORD")
	v.BindEnv("archive.endpoint", "ARCHIVE_ENDPOINT")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")
	v.BindEnv("archive.bucket", "ARCHIVE_BUCKET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required (set SUPABASE_URL)")
	}
	if c.Store.ServiceKey == "" {
		return fmt.Errorf("store.service_key is required (set SUPABASE_SERVICE_ROLE_KEY)")
	}
	return nil
}
