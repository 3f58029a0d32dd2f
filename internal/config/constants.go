package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "forum"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultSiteID          = 1
	defaultAPIRatePerSec   = 10.0
	defaultAPIBurst        = 20
	defaultMaxPagesPerCall = 100
	defaultFanoutWorkers   = 2
	defaultQueueSize       = 1024
	defaultEmailAttempts   = 5
	defaultEmailKeepDays   = 30
	defaultBackupInterval  = 24 * time.Hour
	defaultBackupPrefix    = "forum-backups"
)
