package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	Port       string `env:"PORT" envDefault:"3000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`
	Domain     string `env:"DOMAIN" envDefault:"http://localhost:3000"`
	JWTSecret  string `env:"JWT_SECRET,required"`

	Live     LiveConfig
	Postgres PostgresConfig
}

// LiveConfig - настройки комнат живого взаимодействия (вопросы и розыгрыши)
type LiveConfig struct {
	GracePeriod       time.Duration `env:"LIVE_GRACE_PERIOD" envDefault:"45s"`
	HeartbeatInterval time.Duration `env:"LIVE_HEARTBEAT_INTERVAL" envDefault:"20s"`
	PongTimeout       time.Duration `env:"LIVE_PONG_TIMEOUT" envDefault:"60s"`
	CommandTimeout    time.Duration `env:"LIVE_COMMAND_TIMEOUT" envDefault:"5s"`

	CommandQueue int `env:"LIVE_COMMAND_QUEUE" envDefault:"64"`
	OutboxSize   int `env:"LIVE_OUTBOX_SIZE" envDefault:"128"`

	ModerationFirst   bool `env:"LIVE_MODERATION_FIRST" envDefault:"false"`
	MaxQuestionLength int  `env:"LIVE_MAX_QUESTION_LENGTH" envDefault:"500"`

	EnrollmentCacheTTL  time.Duration `env:"LIVE_ENROLLMENT_CACHE_TTL" envDefault:"30s"`
	EnrollmentCacheSize int           `env:"LIVE_ENROLLMENT_CACHE_SIZE" envDefault:"4096"`
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"stagelive"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

func New() (*Config, error) {
	// .env опционален, переменные окружения имеют приоритет
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err = c.Live.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (l LiveConfig) validate() error {
	if l.GracePeriod <= 0 {
		return fmt.Errorf("LIVE_GRACE_PERIOD must be positive")
	}

	if l.HeartbeatInterval >= l.PongTimeout {
		return fmt.Errorf("LIVE_HEARTBEAT_INTERVAL must be shorter than LIVE_PONG_TIMEOUT")
	}

	if l.CommandQueue < 1 || l.OutboxSize < 1 {
		return fmt.Errorf("LIVE_COMMAND_QUEUE and LIVE_OUTBOX_SIZE must be at least 1")
	}

	return nil
}
