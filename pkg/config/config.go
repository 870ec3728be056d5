package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server    ServerConfig           `yaml:"server"`
	Database  DatabaseConfig         `yaml:"database"`
	Auth      AuthConfig             `yaml:"auth"`
	Log       LogConfig              `yaml:"log"`
	Weather   WeatherConfig          `yaml:"weather"`
	Optimizer OptimizerConfig        `yaml:"optimizer"`
	Shifts    []models.ShiftTemplate `yaml:"shifts"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	GinMode         string  `yaml:"gin_mode"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

// DatabaseConfig holds the database connection configuration.
// An empty DSN selects the local sqlite file at SQLitePath.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	SQLitePath             string `yaml:"sqlite_path"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// AuthConfig holds secrets for operator tokens and API keys.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	MasterSecret  string `yaml:"master_secret"`
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
	BcryptCost    int    `yaml:"bcrypt_cost"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	ServiceName string `yaml:"service_name"`
}

// WeatherConfig configures the forecast provider client.
type WeatherConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Location        string        `yaml:"location"`
	TimeoutSeconds  int           `yaml:"timeout_seconds"`
	CacheTTLMinutes int           `yaml:"cache_ttl_minutes"`
	Timeout         time.Duration `yaml:"-"`
	CacheTTL        time.Duration `yaml:"-"`
}

// OptimizerConfig configures the external schedule optimizer client.
type OptimizerConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// DefaultShifts is the template used when the config file has none.
// Lunch runs 4 hours and Dinner 5.
func DefaultShifts() []models.ShiftTemplate {
	stations := func(prefix string) []models.StationTemplate {
		return []models.StationTemplate{
			{ID: prefix + "-kitchen", Name: "Kitchen", Required: 2},
			{ID: prefix + "-front", Name: "Front of House", Required: 2},
			{ID: prefix + "-bar", Name: "Bar", Required: 1},
		}
	}
	return []models.ShiftTemplate{
		{Name: "Lunch", DurationHours: 4, Stations: stations("lunch")},
		{Name: "Dinner", DurationHours: 5, Stations: stations("dinner")},
	}
}

// LoadEnv loads .env from the working directory or its parents, if any.
func LoadEnv() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load reads the configuration from the given path. A missing file yields
// the defaults; environment variables override file values.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		cfg.Server.GinMode = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATA_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("API_MASTER_SECRET"); v != "" {
		cfg.Auth.MasterSecret = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		cfg.Auth.AdminUsername = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Auth.AdminPassword = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("WEATHER_API_KEY"); v != "" {
		cfg.Weather.APIKey = v
	}
	if v := os.Getenv("OPTIMIZER_API_KEY"); v != "" {
		cfg.Optimizer.APIKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.GinMode == "" {
		cfg.Server.GinMode = "release"
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}

	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "rota.db"
	}

	if cfg.Auth.AdminUsername == "" {
		cfg.Auth.AdminUsername = "admin"
	}
	if cfg.Auth.AdminPassword == "" {
		cfg.Auth.AdminPassword = "admin123"
	}
	if cfg.Auth.BcryptCost <= 0 {
		cfg.Auth.BcryptCost = 14
	}
	if cfg.Auth.TokenTTLHours <= 0 {
		cfg.Auth.TokenTTLHours = 24
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.ServiceName == "" {
		cfg.Log.ServiceName = "rota-api"
	}

	if cfg.Weather.TimeoutSeconds <= 0 {
		cfg.Weather.TimeoutSeconds = 10
	}
	cfg.Weather.Timeout = time.Duration(cfg.Weather.TimeoutSeconds) * time.Second
	if cfg.Weather.CacheTTLMinutes <= 0 {
		cfg.Weather.CacheTTLMinutes = 60
	}
	cfg.Weather.CacheTTL = time.Duration(cfg.Weather.CacheTTLMinutes) * time.Minute

	if cfg.Optimizer.TimeoutSeconds <= 0 {
		cfg.Optimizer.TimeoutSeconds = 60
	}
	cfg.Optimizer.Timeout = time.Duration(cfg.Optimizer.TimeoutSeconds) * time.Second

	if len(cfg.Shifts) == 0 {
		cfg.Shifts = DefaultShifts()
	}
	for i := range cfg.Shifts {
		for j := range cfg.Shifts[i].Stations {
			st := &cfg.Shifts[i].Stations[j]
			if strings.TrimSpace(st.ID) == "" {
				st.ID = uuid.NewString()
			}
			if st.Required <= 0 {
				st.Required = 1
			}
		}
	}
}
