// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища отозванных токенов.
const (
	RevocationDriverRedis  = "redis"
	RevocationDriverMemory = "memory"
)

// ErrInvalidConfig — конфигурация прочитана, но нарушает инварианты (см. Config.Validate).
var ErrInvalidConfig = errors.New("invalid config")

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	HTTP       HTTPConfig       `yaml:"http"`
	Ops        OpsConfig        `yaml:"ops"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Auth       AuthConfig       `yaml:"auth"`
	Cookie     CookieConfig     `yaml:"cookie"`
	Revocation RevocationConfig `yaml:"revocation"`
	Redis      RedisConfig      `yaml:"redis"`
	DB         DBConfig         `yaml:"db"`
	OAuth      OAuthConfig      `yaml:"oauth"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
// Store ограничивает один сетевой вызов к хранилищу отозванных токенов.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
	Store   time.Duration `yaml:"store" env:"STORE_TIMEOUT" env-default:"500ms"`
}

// HTTPConfig — публичный REST-сервер.
type HTTPConfig struct {
	Host     string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	BasePath string `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:""`
}

// OpsConfig — служебный HTTP: /livez, /healthz, /metrics.
type OpsConfig struct {
	Host string `yaml:"host" env:"OPS_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"OPS_PORT" env-default:"8081"`
}

// GRPCConfig описывает сетевые настройки gRPC-сервера (health-check).
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50051"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// Addr возвращает адрес в формате host:port.
func (o OpsConfig) Addr() string { return net.JoinHostPort(o.Host, o.Port) }

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string { return net.JoinHostPort(g.Host, g.Port) }

// AuthConfig содержит параметры выпуска, ротации и валидации токенов.
//
// Секрет и все три длительности обязательны: значения по умолчанию
// для них намеренно отсутствуют, их отсутствие — ошибка старта.
type AuthConfig struct {
	JWTSecret        string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL   time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-required:"true"`
	RefreshTokenTTL  time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-required:"true"`
	ReissueThreshold time.Duration `yaml:"reissue_threshold" env:"REISSUE_THRESHOLD" env-required:"true"`
	// RotationMode: "atomic" — отзыв устаревшего refresh через SET NX,
	// из двух конкурентных ротаций одного токена успешна только одна;
	// "plain" — безусловная запись, обе ротации получают новую пару.
	RotationMode string `yaml:"rotation_mode" env:"ROTATION_MODE" env-default:"atomic"`
}

// Режимы ротации refresh-токена.
const (
	RotationAtomic = "atomic"
	RotationPlain  = "plain"
)

// AtomicRotation сообщает, включена ли атомарная ротация.
func (a AuthConfig) AtomicRotation() bool { return a.RotationMode != RotationPlain }

// CookieConfig — параметры cookie, в которой клиенту отдаётся refresh-токен.
type CookieConfig struct {
	Name     string `yaml:"name" env:"COOKIE_NAME" env-default:"refresh_token"`
	Path     string `yaml:"path" env:"COOKIE_PATH" env-default:"/auth"`
	Domain   string `yaml:"domain" env:"COOKIE_DOMAIN" env-default:""`
	// Insecure снимает флаг Secure (только для локальной разработки по http).
	Insecure bool   `yaml:"insecure" env:"COOKIE_INSECURE" env-default:"false"`
	SameSite string `yaml:"same_site" env:"COOKIE_SAME_SITE" env-default:"lax"`
}

// RevocationConfig — хранилище отозванных токенов.
//
// Булевы поля по умолчанию false: cleanenv подставляет env-default
// поверх нулевого значения из YAML, поэтому "true"-дефолт у bool не отключить из файла.
type RevocationConfig struct {
	Driver string `yaml:"driver" env:"REVOCATION_DRIVER" env-default:"redis"`
	Prefix string `yaml:"prefix" env:"REVOCATION_PREFIX" env-default:"blacklist"`
	// FailOpen — при недоступности хранилища считать токен неотозванным.
	// По умолчанию запрос отклоняется (fail-closed).
	FailOpen        bool          `yaml:"fail_open" env:"REVOCATION_FAIL_OPEN" env-default:"false"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"REVOCATION_CLEANUP_INTERVAL" env-default:"1m"`
	ProbeInterval   time.Duration `yaml:"probe_interval" env:"REVOCATION_PROBE_INTERVAL" env-default:"15s"`
}

// RedisConfig — подключение к Redis (обязательно для driver=redis).
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

// DBConfig — настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
	// SkipMigrations отключает применение встроенных миграций на старте.
	SkipMigrations bool `yaml:"skip_migrations" env:"DB_SKIP_MIGRATIONS" env-default:"false"`
}

// OAuthConfig — параметры внешнего провайдера идентификации (authorization code flow).
type OAuthConfig struct {
	ClientID      string   `yaml:"client_id" env:"OAUTH_CLIENT_ID"`
	ClientSecret  string   `yaml:"client_secret" env:"OAUTH_CLIENT_SECRET"`
	RedirectURL   string   `yaml:"redirect_url" env:"OAUTH_REDIRECT_URL"`
	AuthURL       string   `yaml:"auth_url" env:"OAUTH_AUTH_URL"`
	TokenURL      string   `yaml:"token_url" env:"OAUTH_TOKEN_URL"`
	UserInfoURL   string   `yaml:"userinfo_url" env:"OAUTH_USERINFO_URL"`
	Scopes        []string `yaml:"scopes" env:"OAUTH_SCOPES" env-separator:","`
	SubjectPrefix string   `yaml:"subject_prefix" env:"OAUTH_SUBJECT_PREFIX" env-default:""`
}

// Validate проверяет инварианты, которые cleanenv выразить не может.
func (c *Config) Validate() error {
	a := c.Auth

	if a.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is empty", ErrInvalidConfig)
	}

	if a.AccessTokenTTL <= 0 || a.RefreshTokenTTL <= 0 || a.ReissueThreshold <= 0 {
		return fmt.Errorf("%w: auth durations must be positive", ErrInvalidConfig)
	}

	if a.RotationMode != RotationAtomic && a.RotationMode != RotationPlain {
		return fmt.Errorf("%w: unknown auth.rotation_mode %q", ErrInvalidConfig, a.RotationMode)
	}

	if a.ReissueThreshold >= a.RefreshTokenTTL {
		return fmt.Errorf("%w: auth.reissue_threshold must be less than auth.refresh_token_ttl", ErrInvalidConfig)
	}

	switch c.Revocation.Driver {
	case RevocationDriverRedis:
		if c.Redis.RedisURL == "" {
			return fmt.Errorf("%w: redis.redis_url is required for revocation driver %q", ErrInvalidConfig, RevocationDriverRedis)
		}
	case RevocationDriverMemory:
	default:
		return fmt.Errorf("%w: unknown revocation driver %q", ErrInvalidConfig, c.Revocation.Driver)
	}

	if c.Revocation.Prefix == "" {
		return fmt.Errorf("%w: revocation.prefix is empty", ErrInvalidConfig)
	}

	return nil
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла поверх значений из YAML накладываются ENV-переменные.
func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return validated(&cfg)
	}

	// 1) Явный путь.
	if path != "" {
		return readFile(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return readFile("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return validated(&cfg)
}

func validated(cfg *Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
