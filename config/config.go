package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	BackendSupabase = "supabase"
	BackendLibSQL   = "libsql"
)

type Config struct {
	Backend struct {
		Type string // "supabase" or "libsql"
	}
	Supabase struct {
		URL     string
		AnonKey string
	}
	LibSQL struct {
		URL   string
		Token string
	}
	HTTP struct {
		TimeoutSecs   int
		ClientProfile string
	}
}

// Load reads config.yaml from the working directory or ./config.
func Load() (*Config, error) {
	return LoadFrom(".", "./config")
}

// LoadFrom reads config.yaml from the first of dirs that has one. Environment
// variables (SUPABASE_URL, SUPABASE_ANON_KEY, ...) override file values.
func LoadFrom(dirs ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional, env vars alone are enough.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}

	cfg.Backend.Type = strings.ToLower(v.GetString("backend.type"))

	cfg.Supabase.URL = v.GetString("supabase.url")
	cfg.Supabase.AnonKey = v.GetString("supabase.anon_key")

	cfg.LibSQL.URL = v.GetString("libsql.url")
	cfg.LibSQL.Token = v.GetString("libsql.token")

	cfg.HTTP.TimeoutSecs = v.GetInt("http.timeout_secs")
	cfg.HTTP.ClientProfile = v.GetString("http.client_profile")

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.type", BackendSupabase)

	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.client_profile", "chrome_120")

	// Registered so AutomaticEnv picks them up through Get.
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.anon_key", "")
	v.SetDefault("libsql.url", "")
	v.SetDefault("libsql.token", "")
}

func validate(cfg *Config) error {
	switch cfg.Backend.Type {
	case BackendSupabase:
		if cfg.Supabase.URL == "" {
			return fmt.Errorf("supabase.url is required")
		}
		if cfg.Supabase.AnonKey == "" {
			return fmt.Errorf("supabase.anon_key is required")
		}
	case BackendLibSQL:
		if cfg.LibSQL.URL == "" {
			return fmt.Errorf("libsql.url is required")
		}
	default:
		return fmt.Errorf("backend.type must be %q or %q, got %q", BackendSupabase, BackendLibSQL, cfg.Backend.Type)
	}
	if cfg.HTTP.TimeoutSecs <= 0 {
		return fmt.Errorf("http.timeout_secs must be positive")
	}
	return nil
}
