package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	HTTP      HTTPConfig
	Ledger    LedgerConfig
	Scheduler SchedulerConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	Store    string // postgres | memory
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// RedisConfig almacén compartido de tokens de override.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LedgerConfig tolerancia de consistencia, reintentos del TxRunner y TTL de overrides.
type LedgerConfig struct {
	Tolerance      decimal.Decimal
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	AcquireTimeout time.Duration
	OverrideTTL    time.Duration
}

// SchedulerConfig disparadores periódicos de chequeo y reconciliación.
type SchedulerConfig struct {
	Enabled       bool
	DailyHour     int
	WeeklyDay     time.Weekday
	CheckInterval time.Duration
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	tolerance, err := getDecimal(v, "LEDGER_TOLERANCE_LITERS", "0.01")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "fuel-ledger"),
			Store:    getString(v, "APP_STORE", "postgres"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "fuel_ledger"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
			MaxConns:    getInt(v, "DB_MAX_CONNS", 25),
		},
		Redis: RedisConfig{
			Addr:     getString(v, "REDIS_ADDR", "localhost:6379"),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "fuel-ledger"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Ledger: LedgerConfig{
			Tolerance:      tolerance,
			MaxRetries:     getInt(v, "LEDGER_TX_MAX_RETRIES", 3),
			BaseDelay:      time.Duration(getInt(v, "LEDGER_TX_BASE_DELAY_MS", 50)) * time.Millisecond,
			MaxDelay:       time.Duration(getInt(v, "LEDGER_TX_MAX_DELAY_MS", 2000)) * time.Millisecond,
			AttemptTimeout: time.Duration(getInt(v, "LEDGER_TX_ATTEMPT_TIMEOUT_SECONDS", 30)) * time.Second,
			AcquireTimeout: time.Duration(getInt(v, "LEDGER_TX_ACQUIRE_TIMEOUT_SECONDS", 10)) * time.Second,
			OverrideTTL:    time.Duration(getInt(v, "LEDGER_OVERRIDE_TTL_SECONDS", 300)) * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBool(v, "SCHEDULER_ENABLED", true),
			DailyHour:     getInt(v, "SCHEDULER_DAILY_HOUR", 2),
			WeeklyDay:     time.Weekday(getInt(v, "SCHEDULER_WEEKLY_DAY", 0)),
			CheckInterval: time.Duration(getInt(v, "SCHEDULER_CHECK_INTERVAL_SECONDS", 60)) * time.Second,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.App.Store != "postgres" && c.App.Store != "memory" {
		return fmt.Errorf("APP_STORE inválido: %q (postgres|memory)", c.App.Store)
	}
	if c.Ledger.Tolerance.IsNegative() {
		return fmt.Errorf("LEDGER_TOLERANCE_LITERS no puede ser negativa")
	}
	if !c.Ledger.Tolerance.Equal(c.Ledger.Tolerance.Truncate(3)) {
		return fmt.Errorf("LEDGER_TOLERANCE_LITERS admite como máximo 3 decimales")
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("LEDGER_TX_MAX_RETRIES no puede ser negativo")
	}
	if c.Scheduler.DailyHour < 0 || c.Scheduler.DailyHour > 23 {
		return fmt.Errorf("SCHEDULER_DAILY_HOUR fuera de rango: %d", c.Scheduler.DailyHour)
	}
	if c.Scheduler.WeeklyDay < time.Sunday || c.Scheduler.WeeklyDay > time.Saturday {
		return fmt.Errorf("SCHEDULER_WEEKLY_DAY fuera de rango: %d", c.Scheduler.WeeklyDay)
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		b, err := strconv.ParseBool(v.GetString(key))
		if err != nil {
			return def
		}
		return b
	}
	return def
}

func getDecimal(v *viper.Viper, key, def string) (decimal.Decimal, error) {
	raw := getString(v, key, def)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s inválido: %w", key, err)
	}
	return d, nil
}
