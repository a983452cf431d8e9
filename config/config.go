package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	GinMode   string
	API       APIConfig
	DB        DBConfig
	Dashboard DashboardConfig
}

type APIConfig struct {
	Port           string
	AllowedOrigins []string
}

type DBConfig struct {
	Driver string // "postgres" or "sqlite"
	DSN    string
}

type DashboardConfig struct {
	Port       string
	APIBaseURL string
	APITimeout time.Duration
}

const defaultOrigin = "http://localhost:3000"

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	driver := strings.ToLower(getEnv("DB_DRIVER", "postgres"))
	dsn := getEnv("DATABASE_DSN", "")
	if dsn == "" {
		dsn = defaultDSN(driver)
	}

	return &Config{
		Env:     getEnv("ENV", "development"),
		GinMode: getEnv("GIN_MODE", ""),
		API: APIConfig{
			Port:           getEnv("API_PORT", "8083"),
			AllowedOrigins: origins(getEnv("ALLOWED_ORIGINS", "")),
		},
		DB: DBConfig{
			Driver: driver,
			DSN:    dsn,
		},
		Dashboard: DashboardConfig{
			Port:       getEnv("DASHBOARD_PORT", "3000"),
			APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8083"), "/"),
			APITimeout: getDuration("API_TIMEOUT", 10*time.Second),
		},
	}, nil
}

func (c *Config) Production() bool {
	return c.Env == "production"
}

func defaultDSN(driver string) string {
	if driver == "sqlite" {
		return "menudash.db"
	}
	return "host=localhost user=postgres dbname=menudash port=5432 sslmode=disable"
}

func origins(extra string) []string {
	list := []string{defaultOrigin}
	for _, o := range strings.Split(extra, ",") {
		o = strings.TrimSpace(o)
		if o != "" && o != defaultOrigin {
			list = append(list, o)
		}
	}
	return list
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
