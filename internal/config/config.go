package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads and validates the YAML config at configPath.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content. Unknown keys are rejected.
func Parse(content []byte) (*AppConfig, error) {
	cfg := defaultAppConfig()
	raw := rawAppConfig{}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}

	if err := applyRawAppConfig(&cfg, raw); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	if c.DefaultSiteID < 1 {
		return fmt.Errorf("invalid default_site_id %d, expected >= 1", c.DefaultSiteID)
	}
	if c.API.RatePerSecond < 0 {
		return fmt.Errorf("invalid api.rate_per_second %v, expected >= 0", c.API.RatePerSecond)
	}
	if c.Backup.Enable && c.Backup.Bucket == "" {
		return fmt.Errorf("backup.s3.bucket is required when backup is enabled")
	}
	if c.Timezone != "" {
		if _, err := ParseTimezone(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port:          defaultPort,
		Env:           defaultEnv,
		DefaultSiteID: defaultSiteID,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		API: APIRuntimeConfig{
			RatePerSecond:   defaultAPIRatePerSec,
			Burst:           defaultAPIBurst,
			MaxPagesPerCall: defaultMaxPagesPerCall,
		},
		Fanout: FanoutRuntimeConfig{
			Workers:          defaultFanoutWorkers,
			QueueSize:        defaultQueueSize,
			MaxEmailAttempts: defaultEmailAttempts,
			KeepSentDays:     defaultEmailKeepDays,
		},
		Backup: BackupRuntimeConfig{
			Interval: defaultBackupInterval,
			Prefix:   defaultBackupPrefix,
		},
	}
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) error {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.NodeEnv); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.Paths.Backups); v != "" {
		cfg.Paths.Backups = v
	}
	if raw.AllowedOrigins != nil {
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	}
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}
	if raw.DefaultSiteID != 0 {
		cfg.DefaultSiteID = raw.DefaultSiteID
	}
	cfg.E2ETestSecret = strings.TrimSpace(raw.E2ETestSecret)

	cfg.Mail = applyRawMailConfig(cfg.Mail, raw.Mail)
	cfg.API = applyRawAPIConfig(cfg.API, raw.API)
	cfg.Fanout = applyRawFanoutConfig(cfg.Fanout, raw.Fanout)
	backup, err := applyRawBackupConfig(cfg.Backup, raw.Backup)
	if err != nil {
		return err
	}
	cfg.Backup = backup

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Env = normalizeEnv(cfg.Env)
	return nil
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Database.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.URL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DatabaseURL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.Host); v != "" {
		cfg.Host = v
	}
	if raw.Database.Port != 0 {
		cfg.Port = raw.Database.Port
	}
	if v := strings.TrimSpace(raw.Database.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Username); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.Database.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.Charset); v != "" {
		cfg.Charset = v
	}
	if raw.Database.ParseTime != nil {
		cfg.ParseTime = *raw.Database.ParseTime
	}
	if v := strings.TrimSpace(raw.Database.Loc); v != "" {
		cfg.Loc = v
	}
	if raw.Database.Params != nil {
		cfg.Params = raw.Database.Params
	}

	return normalizeDatabaseConfig(cfg)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current

	if raw.Redis.Enable != nil {
		cfg.Enable = *raw.Redis.Enable
	}
	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
		// A top-level redis_url implies the operator wants Redis.
		if raw.Redis.Enable == nil {
			cfg.Enable = true
		}
	}
	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		cfg.Host = v
	}
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if v := strings.TrimSpace(raw.Redis.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		cfg.Password = v
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	if raw.Redis.TLS != nil {
		cfg.TLS = *raw.Redis.TLS
	}
	if v := strings.TrimSpace(raw.Redis.Scheme); v != "" {
		cfg.Scheme = v
	}

	return normalizeRedisConfig(cfg)
}

func applyRawMailConfig(cfg MailRuntimeConfig, raw rawMailConfig) MailRuntimeConfig {
	if raw.Enable != nil {
		cfg.Enable = *raw.Enable
	}
	if v := strings.TrimSpace(raw.Host); v != "" {
		cfg.Host = v
	}
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.User); v != "" {
		cfg.User = v
	}
	if raw.Pass != "" {
		cfg.Pass = raw.Pass
	}
	if v := strings.TrimSpace(raw.From); v != "" {
		cfg.From = v
	}
	if v := strings.TrimSpace(raw.ReplyTo); v != "" {
		cfg.ReplyTo = v
	}
	if v := strings.TrimSpace(raw.ResendKey); v != "" {
		cfg.ResendKey = v
	}
	return cfg
}

func applyRawAPIConfig(cfg APIRuntimeConfig, raw rawAPIConfig) APIRuntimeConfig {
	if raw.RatePerSecond != nil {
		cfg.RatePerSecond = *raw.RatePerSecond
	}
	if raw.Burst > 0 {
		cfg.Burst = raw.Burst
	}
	if raw.MaxPagesPerCall > 0 {
		cfg.MaxPagesPerCall = raw.MaxPagesPerCall
	}
	return cfg
}

func applyRawFanoutConfig(cfg FanoutRuntimeConfig, raw rawFanoutConfig) FanoutRuntimeConfig {
	if raw.Workers > 0 {
		cfg.Workers = raw.Workers
	}
	if raw.QueueSize > 0 {
		cfg.QueueSize = raw.QueueSize
	}
	if raw.MaxEmailAttempts > 0 {
		cfg.MaxEmailAttempts = raw.MaxEmailAttempts
	}
	if raw.KeepSentDays > 0 {
		cfg.KeepSentDays = raw.KeepSentDays
	}
	return cfg
}

func applyRawBackupConfig(cfg BackupRuntimeConfig, raw rawBackupConfig) (BackupRuntimeConfig, error) {
	if raw.Enable != nil {
		cfg.Enable = *raw.Enable
	}
	if v := strings.TrimSpace(raw.Interval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid backup.interval %q", v)
		}
		cfg.Interval = d
	}
	s3 := raw.S3
	if v := strings.TrimSpace(s3.Endpoint); v != "" {
		cfg.Endpoint = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(s3.Region); v != "" {
		cfg.Region = v
	}
	if v := strings.TrimSpace(s3.Bucket); v != "" {
		cfg.Bucket = v
	}
	if v := strings.TrimSpace(s3.AccessKeyID); v != "" {
		cfg.AccessKeyID = v
	}
	if v := strings.TrimSpace(s3.SecretAccessKey); v != "" {
		cfg.SecretAccessKey = v
	}
	if s3.PathStyle != nil {
		cfg.PathStyle = *s3.PathStyle
	}
	if v := strings.Trim(strings.TrimSpace(s3.Prefix), "/"); v != "" {
		cfg.Prefix = v
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	return cfg, nil
}

func (c *AppConfig) IsDev() bool {
	return c.Env == "development"
}

// TestEndpointsEnabled reports whether the e2e test-support routes are mounted.
func (c *AppConfig) TestEndpointsEnabled() bool {
	return c.E2ETestSecret != ""
}

func (c *AppConfig) LogDir() string {
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

func (c *AppConfig) BackupDir() string {
	return ResolveRuntimePath(c.Paths.Backups, "backups")
}
