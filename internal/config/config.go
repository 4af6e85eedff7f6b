// Package config loads the zoho CLI profile from ~/.zoho/config.yml, the
// environment (ZOHO_ prefix) and an optional .env file, and maps it onto
// the library configurations.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/zoho-client/pkg/auth"
	"github.com/Sternrassler/zoho-client/pkg/cache"
	"github.com/Sternrassler/zoho-client/pkg/logging"
	"github.com/Sternrassler/zoho-client/pkg/pagination"
	"github.com/Sternrassler/zoho-client/pkg/zoho"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable: ZOHO_CLIENT_ID,
// ZOHO_REDIS_ADDR, ZOHO_PAGINATION_PAGE_SIZE, ...
const EnvPrefix = "ZOHO"

// Profile is the CLI configuration.
type Profile struct {
	DataCenter   string `mapstructure:"data_center"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`

	Books struct {
		OrganizationID string `mapstructure:"organization_id"`
	} `mapstructure:"books"`

	Desk struct {
		OrgID string `mapstructure:"org_id"`
	} `mapstructure:"desk"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Pagination struct {
		PageSize       int           `mapstructure:"page_size"`
		MaxRecords     int           `mapstructure:"max_records"`
		RateLimitDelay time.Duration `mapstructure:"rate_limit_delay"`
		MaxRetries     int           `mapstructure:"max_retries"`
		PageTokens     bool          `mapstructure:"page_tokens"`
	} `mapstructure:"pagination"`

	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	Log struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"log"`

	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
}

// LoadOptions selects the sources of Load.
type LoadOptions struct {
	// ConfigFile replaces the search for ~/.zoho/config.yml.
	ConfigFile string

	// EnvFile is loaded into the environment first; missing files are ignored.
	EnvFile string

	// Overrides take precedence over every other source (command line flags).
	Overrides map[string]any
}

// Load reads the profile. Precedence: overrides, environment, config file, defaults.
func Load(opts LoadOptions) (*Profile, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".zoho"))
		}
		v.SetConfigType("yml")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var p Profile
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &p, nil
}

// setDefaults registers every key so AutomaticEnv also applies to Unmarshal.
func setDefaults(v *viper.Viper) {
	pcfg := pagination.DefaultConfig()

	v.SetDefault("data_center", zoho.DefaultDataCenter)
	v.SetDefault("client_id", "")
	v.SetDefault("client_secret", "")
	v.SetDefault("refresh_token", "")
	v.SetDefault("books.organization_id", "")
	v.SetDefault("desk.org_id", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("pagination.page_size", pcfg.DefaultPageSize)
	v.SetDefault("pagination.max_records", pcfg.MaxRecordsPerBatch)
	v.SetDefault("pagination.rate_limit_delay", pcfg.RateLimitDelay)
	v.SetDefault("pagination.max_retries", pcfg.MaxRetries)
	v.SetDefault("pagination.page_tokens", pcfg.UsePageTokens)
	v.SetDefault("cache_ttl", cache.DefaultTTL)
	v.SetDefault("log.level", string(logging.LevelInfo))
	v.SetDefault("log.pretty", false)
	v.SetDefault("server.addr", ":8080")
}

// Validate checks the profile for values the client cannot start with.
func (p *Profile) Validate() error {
	if !zoho.ValidDataCenter(p.DataCenter) {
		return fmt.Errorf("unknown data center %q", p.DataCenter)
	}
	if p.ClientID == "" {
		return fmt.Errorf("client_id is required (set ZOHO_CLIENT_ID)")
	}
	if p.ClientSecret == "" {
		return fmt.Errorf("client_secret is required (set ZOHO_CLIENT_SECRET)")
	}
	if p.RefreshToken == "" {
		return fmt.Errorf("refresh_token is required (set ZOHO_REFRESH_TOKEN)")
	}
	if _, err := logging.ParseLevel(p.Log.Level); err != nil {
		return err
	}
	return p.PaginationConfig().Validate()
}

// Credential returns the OAuth credential of the profile.
func (p *Profile) Credential() auth.Credential {
	return auth.Credential{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RefreshToken: p.RefreshToken,
	}
}

// PaginationConfig returns the pagination settings of the profile.
func (p *Profile) PaginationConfig() pagination.Config {
	cfg := pagination.DefaultConfig()
	cfg.DefaultPageSize = p.Pagination.PageSize
	cfg.MaxRecordsPerBatch = p.Pagination.MaxRecords
	cfg.RateLimitDelay = p.Pagination.RateLimitDelay
	cfg.MaxRetries = p.Pagination.MaxRetries
	cfg.UsePageTokens = p.Pagination.PageTokens
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	return cfg
}

// LoggingConfig returns the logger settings of the profile.
func (p *Profile) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(p.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Pretty = p.Log.Pretty
	return cfg
}

// RedisClient returns a client for the configured Redis, or nil when none is set.
func (p *Profile) RedisClient() *redis.Client {
	if p.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     p.Redis.Addr,
		Password: p.Redis.Password,
		DB:       p.Redis.DB,
	})
}

// SuiteConfig maps the profile onto a zoho.Config using rdb (may be nil).
func (p *Profile) SuiteConfig(rdb *redis.Client) zoho.Config {
	cfg := zoho.DefaultConfig()
	cfg.DataCenter = p.DataCenter
	cfg.Credential = p.Credential()
	cfg.Redis = rdb
	cfg.Pagination = p.PaginationConfig()
	cfg.BooksOrganizationID = p.Books.OrganizationID
	cfg.DeskOrgID = p.Desk.OrgID
	if p.CacheTTL > 0 {
		cfg.CacheTTL = p.CacheTTL
	}
	return cfg
}
