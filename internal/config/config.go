package config

import (
	"os"
	"strconv"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverPgx      = "pgx"
	StoreDriverMySQL    = "mysql"
	StoreDriverMemory   = "memory"

	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

type Config struct {
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	StoreDriver      string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	MySQLDSN         string

	CacheDriver         string
	RedisHost           string
	RedisPort           string
	RedisPassword       string
	RedisDB             int
	RedisMaxMemory      string
	CacheTTL            time.Duration
	CacheKeyPrefix      string
	CacheCoalesceMisses bool

	MetricsEnabled bool
	LogFile        string
}

func Load() *Config {
	return &Config{
		Port:            getenv("APP_PORT", "8080"),
		RequestTimeout:  durenv("REQUEST_TIMEOUT", 5*time.Second),
		ShutdownTimeout: durenv("SHUTDOWN_TIMEOUT", 10*time.Second),

		StoreDriver:      getenv("STORE_DRIVER", StoreDriverPostgres),
		DatabaseHost:     getenv("POSTGRES_HOST", "localhost"),
		DatabasePort:     getenv("POSTGRES_PORT", "5432"),
		DatabaseUser:     os.Getenv("POSTGRES_USER"),
		DatabasePassword: os.Getenv("POSTGRES_PASSWORD"),
		DatabaseName:     os.Getenv("POSTGRES_DB"),
		MySQLDSN:         os.Getenv("MYSQL_DSN"),

		CacheDriver:         getenv("CACHE_DRIVER", CacheDriverRedis),
		RedisHost:           getenv("REDIS_HOST", "localhost"),
		RedisPort:           getenv("REDIS_PORT", "6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             atoienv("REDIS_DB", 0),
		RedisMaxMemory:      getenv("REDIS_MAXMEMORY", "10mb"),
		CacheTTL:            durenv("CACHE_TTL", 0),
		CacheKeyPrefix:      os.Getenv("CACHE_KEY_PREFIX"),
		CacheCoalesceMisses: boolenv("CACHE_COALESCE_MISSES", false),

		MetricsEnabled: boolenv("METRICS_ENABLED", true),
		LogFile:        os.Getenv("LOG_FILE"),
	}
}

// PostgresURL builds the connection string for both postgres drivers.
func (c *Config) PostgresURL() string {
	return "postgres://" + c.DatabaseUser + ":" + c.DatabasePassword + "@" +
		c.DatabaseHost + ":" + c.DatabasePort + "/" + c.DatabaseName + "?sslmode=disable"
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// durenv accepts Go duration strings ("750ms", "1m").
func durenv(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func boolenv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
