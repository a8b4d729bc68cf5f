package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"village-banking/internal/domain/policy"
)

const (
	LockLocal = "local"
	LockRedis = "redis"
)

type Config struct {
	AppPort string

	DBDriver   string
	DBLogLevel string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	PostgresDSN string
	SQLitePath  string

	// RedisAddr empty runs without redis: local locks, log publisher and
	// no idempotency or snapshot cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	IdempTTLSecs int

	LockBackend string
	LockTTL     time.Duration
	LockWait    time.Duration

	TxMaxRetries uint
	// SnapshotCacheTTL also bounds staleness when an invalidation is lost.
	SnapshotCacheTTL time.Duration

	EventChannel string
	EventBuffer  int

	Rules policy.Rules
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("config: ignoring non-integer %s=%q", k, v)
	}
	return d
}

func getms(k string, d int) time.Duration { return time.Duration(getint(k, d)) * time.Millisecond }

// Load reads the environment, after an optional .env file in the working dir.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env: %v", err)
	}

	rules := policy.Default()
	rules.MinContributionPeriods = getint("LOAN_MIN_CONTRIBUTION_PERIODS", rules.MinContributionPeriods)
	rules.MinPeriodMonths = getint("LOAN_MIN_PERIOD_MONTHS", rules.MinPeriodMonths)
	rules.MaxPeriodMonths = getint("LOAN_MAX_PERIOD_MONTHS", rules.MaxPeriodMonths)
	if v := os.Getenv("REPAYMENT_EPSILON"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			rules.RepaymentEpsilon = d
		} else {
			log.Printf("config: ignoring non-decimal REPAYMENT_EPSILON=%q", v)
		}
	}

	c := &Config{
		AppPort:    getenv("APP_PORT", "8080"),
		DBDriver:   getenv("DB_DRIVER", "mysql"),
		DBLogLevel: getenv("DB_LOG_LEVEL", "warn"),

		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "village"),
		MySQLUser: getenv("MYSQL_USER", "village"),
		MySQLPass: getenv("MYSQL_PASS", "village"),

		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		SQLitePath:  getenv("SQLITE_PATH", "village.db"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getint("REDIS_DB", 0),
		IdempTTLSecs:  getint("IDEMPOTENCY_TTL_SECONDS", 86400),

		LockBackend: getenv("LOCK_BACKEND", LockLocal),
		LockTTL:     getms("LOCK_TTL_MS", 10000),
		LockWait:    getms("LOCK_WAIT_MS", 5000),

		TxMaxRetries:     uint(max(getint("TX_MAX_RETRIES", 3), 0)),
		SnapshotCacheTTL: getms("SNAPSHOT_CACHE_TTL_MS", 500),

		EventChannel: getenv("EVENT_CHANNEL", "vb:ledger:events"),
		EventBuffer:  getint("EVENT_BUFFER", 1024),

		Rules: rules,
	}
	return c
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.DBDriver {
	case "mysql":
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("missing POSTGRES_DSN")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (mysql|postgres|sqlite)", c.DBDriver)
	}
	switch c.LockBackend {
	case LockLocal:
	case LockRedis:
		if c.RedisAddr == "" {
			return errors.New("LOCK_BACKEND=redis needs REDIS_ADDR")
		}
		if c.LockTTL <= 0 {
			return errors.New("LOCK_TTL_MS must be > 0")
		}
	default:
		return fmt.Errorf("unsupported LOCK_BACKEND %q (local|redis)", c.LockBackend)
	}
	if c.LockWait <= 0 {
		return errors.New("LOCK_WAIT_MS must be > 0")
	}
	if c.IdempTTLSecs <= 0 {
		return errors.New("IDEMPOTENCY_TTL_SECONDS must be > 0")
	}
	if c.EventBuffer <= 0 {
		return errors.New("EVENT_BUFFER must be > 0")
	}
	if err := c.Rules.Validate(); err != nil {
		return err
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	switch c.DBDriver {
	case "postgres":
		return c.PostgresDSN
	case "sqlite":
		return c.SQLitePath
	default:
		return c.MySQLDSN()
	}
}
