package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Cron    CronConfig    `mapstructure:"cron"`
	Secrets SecretsConfig `mapstructure:"secrets"`
	Source  SourceConfig  `mapstructure:"source"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Blob    BlobConfig    `mapstructure:"blob"`
	Health  HealthConfig  `mapstructure:"health"`
	Alert   AlertConfig   `mapstructure:"alert"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	SyncScan    string `mapstructure:"sync_scan"`
	HealthCheck string `mapstructure:"health_check"`
}

type SecretsConfig struct {
	// Key is a base64-encoded 32-byte AES key used to seal stored
	// tenant SSH/database credentials.
	Key string `mapstructure:"key"`
}

// SourceConfig bounds how the agent talks to a tenant's on-prem 3CX database.
type SourceConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	SSHTimeout     time.Duration `mapstructure:"ssh_timeout"`
}

type SyncConfig struct {
	DefaultInterval time.Duration `mapstructure:"default_interval"`
	BatchSize       int           `mapstructure:"batch_size"`
	CycleTimeout    time.Duration `mapstructure:"cycle_timeout"`
	// DivergenceScanEvery runs the unfiltered live/history divergence scan
	// once every N cycles instead of every cycle.
	DivergenceScanEvery int `mapstructure:"divergence_scan_every"`
	RetryMaxAttempts    int `mapstructure:"retry_max_attempts"`
}

type BlobConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// AlertWindow is the minimum gap between two alerts for the same
	// (tenant, sync type).
	AlertWindow time.Duration `mapstructure:"alert_window"`
}

type AlertConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.sync_scan", "@every 1m")
	v.SetDefault("cron.health_check", "@every 5m")
	v.SetDefault("source.connect_timeout", "30s")
	v.SetDefault("source.query_timeout", "60s")
	v.SetDefault("source.ssh_timeout", "20s")
	v.SetDefault("sync.default_interval", "5m")
	v.SetDefault("sync.batch_size", 200)
	v.SetDefault("sync.cycle_timeout", "10m")
	v.SetDefault("sync.divergence_scan_every", 12)
	v.SetDefault("sync.retry_max_attempts", 3)
	v.SetDefault("blob.bucket", "backupwiz-media")
	v.SetDefault("blob.use_ssl", true)
	v.SetDefault("health.enabled", true)
	v.SetDefault("health.alert_window", "1h")
	v.SetDefault("alert.timeout", "5s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
