package config

import (
	"log"
	"time"

	"golang-task-scheduler-core/pkg/postgres"
	"golang-task-scheduler-core/pkg/redis"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database postgres.Config `mapstructure:"database"`
	Redis    redis.Config    `mapstructure:"redis"`
	Delivery DeliveryConfig  `mapstructure:"delivery"`
	Jobs     JobsConfig      `mapstructure:"jobs"`
	Log      LogConfig       `mapstructure:"log"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string
	Env  string
}

// DeliveryConfig configures the result notifier. Rate limits of zero mean unlimited.
type DeliveryConfig struct {
	BaseURL                   string
	Timeout                   time.Duration
	MaxGlobalRequestPerSecond int
	MaxUserRequestPerSecond   int
	RateLimitCleanupDuration  time.Duration
	RatelimitExpireDuration   time.Duration
}

// JobsConfig configures startup recovery of executions left running by a previous process.
// A zero StaleExecutionAfter disables recovery.
type JobsConfig struct {
	StaleExecutionAfter time.Duration
	StaleExecutionNote  string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_NAMESPACE", postgres.DefaultNamespace)
	v.SetDefault("DATABASE_CONNECT_TIMEOUT", "5s")
	v.SetDefault("DATABASE_LOG_LEVEL", "Warn")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_JOURNAL_MAX_LEN", 10000)
	v.SetDefault("DELIVERY_BASE_URL", "http://localhost:3080")
	v.SetDefault("DELIVERY_TIMEOUT", "10s")
	v.SetDefault("DELIVERY_RATE_LIMIT_CLEANUP_DURATION", "10m")
	v.SetDefault("DELIVERY_RATE_LIMIT_EXPIRE_DURATION", "30m")
	v.SetDefault("JOBS_STALE_EXECUTION_AFTER", "1h")
	v.SetDefault("JOBS_STALE_EXECUTION_NOTE", "execution interrupted by scheduler restart")
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Println("Failed to read config file .env config try read from environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Database: postgres.Config{
			URL:             v.GetString("DATABASE_URL"),
			Namespace:       v.GetString("DATABASE_NAMESPACE"),
			ConnectTimeout:  v.GetDuration("DATABASE_CONNECT_TIMEOUT"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			ConnMaxLifetime: v.GetString("DATABASE_CONN_MAX_LIFETIME"),
			LogLevel:        v.GetString("DATABASE_LOG_LEVEL"),
		},
		Redis: redis.Config{
			Host:          v.GetString("REDIS_HOST"),
			Port:          v.GetInt("REDIS_PORT"),
			Password:      v.GetString("REDIS_PASSWORD"),
			DB:            v.GetInt("REDIS_DB"),
			PoolSize:      v.GetInt("REDIS_POOL_SIZE"),
			JournalMaxLen: v.GetInt64("REDIS_JOURNAL_MAX_LEN"),
		},
		Delivery: DeliveryConfig{
			BaseURL:                   v.GetString("DELIVERY_BASE_URL"),
			Timeout:                   v.GetDuration("DELIVERY_TIMEOUT"),
			MaxGlobalRequestPerSecond: v.GetInt("DELIVERY_MAX_GLOBAL_REQUEST_PER_SECOND"),
			MaxUserRequestPerSecond:   v.GetInt("DELIVERY_MAX_USER_REQUEST_PER_SECOND"),
			RateLimitCleanupDuration:  v.GetDuration("DELIVERY_RATE_LIMIT_CLEANUP_DURATION"),
			RatelimitExpireDuration:   v.GetDuration("DELIVERY_RATE_LIMIT_EXPIRE_DURATION"),
		},
		Jobs: JobsConfig{
			StaleExecutionAfter: v.GetDuration("JOBS_STALE_EXECUTION_AFTER"),
			StaleExecutionNote:  v.GetString("JOBS_STALE_EXECUTION_NOTE"),
		},
	}

	return config, nil
}
