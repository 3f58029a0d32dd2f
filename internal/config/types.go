package config

import "time"

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int
	Env            string // "development" | "production" | "test"
	DSN            string
	RedisURL       string
	Database       DatabaseRuntimeConfig
	Redis          RedisRuntimeConfig
	Paths          RuntimePathsConfig
	AllowedOrigins []string
	JWTSecret      string
	Timezone       string
	// DefaultSiteID serves requests whose Host matches no site.
	DefaultSiteID int64
	// E2ETestSecret enables the /-/v0/test endpoints when non-empty.
	E2ETestSecret string
	Mail          MailRuntimeConfig
	API           APIRuntimeConfig
	Fanout        FanoutRuntimeConfig
	Backup        BackupRuntimeConfig
}

type DatabaseRuntimeConfig struct {
	DSN       string
	Host      string
	Port      int
	User      string
	Password  string
	Name      string
	Charset   string
	ParseTime bool
	Loc       string
	Params    map[string]string
}

type RedisRuntimeConfig struct {
	Enable   bool
	URL      string
	Host     string
	Port     int
	Username string
	Password string
	DB       int
	TLS      bool
	Scheme   string
}

type RuntimePathsConfig struct {
	Logs    string
	Backups string
}

type MailRuntimeConfig struct {
	Enable    bool
	Host      string
	Port      int
	User      string
	Pass      string
	From      string
	ReplyTo   string
	ResendKey string
}

type APIRuntimeConfig struct {
	RatePerSecond   float64
	Burst           int
	MaxPagesPerCall int
}

type FanoutRuntimeConfig struct {
	Workers          int
	QueueSize        int
	MaxEmailAttempts int
	KeepSentDays     int
}

type BackupRuntimeConfig struct {
	Enable          bool
	Interval        time.Duration
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
	Prefix          string
}

type rawAppConfig struct {
	Port           int               `yaml:"port"`
	Env            string            `yaml:"env"`
	NodeEnv        string            `yaml:"node_env"`
	DSN            string            `yaml:"dsn"`
	DatabaseURL    string            `yaml:"database_url"`
	RedisURL       string            `yaml:"redis_url"`
	Database       rawDatabaseConfig `yaml:"database"`
	Redis          rawRedisConfig    `yaml:"redis"`
	Paths          rawPathsConfig    `yaml:"paths"`
	LogDir         string            `yaml:"log_dir"`
	AllowedOrigins []string          `yaml:"allowed_origins"`
	JWTSecret      string            `yaml:"jwt_secret"`
	Timezone       string            `yaml:"timezone"`
	TZ             string            `yaml:"tz"`
	DefaultSiteID  int64             `yaml:"default_site_id"`
	E2ETestSecret  string            `yaml:"e2e_test_secret"`
	Mail           rawMailConfig     `yaml:"mail"`
	API            rawAPIConfig      `yaml:"api"`
	Fanout         rawFanoutConfig   `yaml:"fanout"`
	Backup         rawBackupConfig   `yaml:"backup"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	Enable   *bool  `yaml:"enable"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
	Scheme   string `yaml:"scheme"`
}

type rawPathsConfig struct {
	Logs    string `yaml:"logs"`
	Backups string `yaml:"backups"`
}

type rawMailConfig struct {
	Enable    *bool  `yaml:"enable"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
	ResendKey string `yaml:"resend_key"`
}

type rawAPIConfig struct {
	RatePerSecond   *float64 `yaml:"rate_per_second"`
	Burst           int      `yaml:"burst"`
	MaxPagesPerCall int      `yaml:"max_pages_per_call"`
}

type rawFanoutConfig struct {
	Workers          int `yaml:"workers"`
	QueueSize        int `yaml:"queue_size"`
	MaxEmailAttempts int `yaml:"max_email_attempts"`
	KeepSentDays     int `yaml:"keep_sent_days"`
}

type rawBackupConfig struct {
	Enable   *bool  `yaml:"enable"`
	Interval string `yaml:"interval"`
	S3       struct {
		Endpoint        string `yaml:"endpoint"`
		Region          string `yaml:"region"`
		Bucket          string `yaml:"bucket"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
		PathStyle       *bool  `yaml:"path_style"`
		Prefix          string `yaml:"prefix"`
	} `yaml:"s3"`
}
