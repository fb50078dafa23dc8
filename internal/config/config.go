package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/petlogue/consultation-service/pkg/config"
	"github.com/petlogue/consultation-service/pkg/database"
	"github.com/petlogue/consultation-service/pkg/log"
	"github.com/petlogue/consultation-service/pkg/pubsub"
)

type Config struct {
	Server       ServerConfig
	Database     database.Config
	Redis        RedisConfig
	WebSocket    WebSocketConfig
	Auth         AuthConfig
	Consultation ConsultationConfig
	Log          log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type AuthConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type RedisConfig struct {
	pubsub.RedisConfig `mapstructure:",squash"`
	Enabled            bool `mapstructure:"enabled"`
}

type ConsultationConfig struct {
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	ResponseWindow    time.Duration `mapstructure:"response_window"`
	SkewTolerance     time.Duration `mapstructure:"skew_tolerance"`
	NotifyMaxAttempts int           `mapstructure:"notify_max_attempts"`
	NotifyRetryDelay  time.Duration `mapstructure:"notify_retry_delay"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "petlogue")
	v.SetDefault("database.db_name", "consultation")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("auth.issuer", "petlogue")
	v.SetDefault("consultation.sweep_interval", "5s")
	v.SetDefault("consultation.response_window", "30s")
	v.SetDefault("consultation.skew_tolerance", "20s")
	v.SetDefault("consultation.notify_max_attempts", 3)
	v.SetDefault("consultation.notify_retry_delay", "500ms")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "consultation-service")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.db_name", "DB_NAME")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("auth.secret", "AUTH_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Consultation.SweepInterval = parseDuration(v, "consultation.sweep_interval", 5*time.Second)
	cfg.Consultation.ResponseWindow = parseDuration(v, "consultation.response_window", 30*time.Second)
	cfg.Consultation.SkewTolerance = parseDuration(v, "consultation.skew_tolerance", 20*time.Second)
	cfg.Consultation.NotifyRetryDelay = parseDuration(v, "consultation.notify_retry_delay", 500*time.Millisecond)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
