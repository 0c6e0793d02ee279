package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const defaultJWTSecret = "quicktask-dev-secret"

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Worker    WorkerConfig    `json:"worker"`
	Auth      AuthConfig      `json:"auth"`
	CORS      CORSConfig      `json:"cors"`
	Analytics AnalyticsConfig `json:"analytics"`
	Log       LogConfig       `json:"log"`
}

type ServerConfig struct {
	Host            string        `json:"host" env:"HOST" envDefault:"0.0.0.0"`
	Port            string        `json:"port" env:"PORT" envDefault:"5000"`
	ReadTimeout     time.Duration `json:"read_timeout" env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `json:"idle_timeout" env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	Environment     string        `json:"environment" env:"ENVIRONMENT" envDefault:"development"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver" env:"DB_DRIVER" envDefault:"postgres"`
	URL             string        `json:"-" env:"DATABASE_URL"`
	Host            string        `json:"host" env:"DB_HOST" envDefault:"localhost"`
	Port            string        `json:"port" env:"DB_PORT" envDefault:"5432"`
	User            string        `json:"user" env:"DB_USER" envDefault:"postgres"`
	Password        string        `json:"-" env:"DB_PASSWORD"`
	Name            string        `json:"name" env:"DB_NAME" envDefault:"quicktask"`
	SSLMode         string        `json:"ssl_mode" env:"DB_SSL_MODE" envDefault:"disable"`
	SQLitePath      string        `json:"sqlite_path" env:"DB_SQLITE_PATH" envDefault:"quicktask.db"`
	MaxOpenConns    int           `json:"max_open_conns" env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME" envDefault:"30m"`
	LogLevel        string        `json:"log_level" env:"DB_LOG_LEVEL" envDefault:"warn"`
}

type RedisConfig struct {
	Enabled      bool          `json:"enabled" env:"REDIS_ENABLED" envDefault:"true"`
	Host         string        `json:"host" env:"REDIS_HOST" envDefault:"localhost"`
	Port         string        `json:"port" env:"REDIS_PORT" envDefault:"6379"`
	Password     string        `json:"-" env:"REDIS_PASSWORD"`
	DB           int           `json:"db" env:"REDIS_DB" envDefault:"0"`
	PoolSize     int           `json:"pool_size" env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `json:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS" envDefault:"5"`
	MaxRetries   int           `json:"max_retries" env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `json:"write_timeout" env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

type WorkerConfig struct {
	Concurrency  int           `json:"concurrency" env:"WORKER_CONCURRENCY" envDefault:"2"`
	PollInterval time.Duration `json:"poll_interval" env:"WORKER_POLL_INTERVAL" envDefault:"5s"`
	Queues       []string      `json:"queues" env:"WORKER_QUEUES" envSeparator:"," envDefault:"dashboard"`
	MaxTries     int           `json:"max_tries" env:"WORKER_MAX_TRIES" envDefault:"3"`
	RetryDelay   time.Duration `json:"retry_delay" env:"WORKER_RETRY_DELAY" envDefault:"5s"`
}

type AuthConfig struct {
	JWTSecret      string        `json:"-" env:"JWT_SECRET" envDefault:"quicktask-dev-secret"`
	TokenTTL       time.Duration `json:"token_ttl" env:"TOKEN_TTL" envDefault:"168h"`
	PasswordScheme string        `json:"password_scheme" env:"PASSWORD_SCHEME" envDefault:"bcrypt"`
	BCryptCost     int           `json:"bcrypt_cost" env:"BCRYPT_COST" envDefault:"10"`
	CookieName     string        `json:"cookie_name" env:"SESSION_COOKIE_NAME" envDefault:"token"`
}

type CORSConfig struct {
	AllowedOrigins []string      `json:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
	MaxAge         time.Duration `json:"max_age" env:"CORS_MAX_AGE" envDefault:"12h"`
}

type AnalyticsConfig struct {
	BaseURL          string        `json:"base_url" env:"ANALYTICS_URL"`
	Timeout          time.Duration `json:"timeout" env:"ANALYTICS_TIMEOUT" envDefault:"3s"`
	ProductivityDays int           `json:"productivity_days" env:"ANALYTICS_PRODUCTIVITY_DAYS" envDefault:"14"`
	CacheTTL         time.Duration `json:"cache_ttl" env:"ANALYTICS_CACHE_TTL" envDefault:"1m"`
	MaxFailures      int           `json:"max_failures" env:"ANALYTICS_MAX_FAILURES" envDefault:"5"`
	ResetTimeout     time.Duration `json:"reset_timeout" env:"ANALYTICS_RESET_TIMEOUT" envDefault:"30s"`
}

type LogConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL" envDefault:"info"`
	Format string `json:"format" env:"LOG_FORMAT"`
}

func LoadConfig() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret must not be empty")
	}

	if config.Auth.TokenTTL <= 0 {
		return nil, fmt.Errorf("token TTL must be positive")
	}

	if config.IsProduction() {
		if config.Database.Driver == "postgres" && config.Database.URL == "" && config.Database.Password == "" {
			return nil, fmt.Errorf("database password is required in production")
		}
		if config.Auth.JWTSecret == defaultJWTSecret {
			return nil, fmt.Errorf("JWT secret must be set in production")
		}
	}

	return config, nil
}

func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
