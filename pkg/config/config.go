// Package config loads tracker configuration from an optional YAML file,
// a .env file and TRACKER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
	// Mode is the gin mode: debug, release or test.
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	// Output is a zap sink: stdout, stderr or a file path.
	Output string `mapstructure:"output"`
}

// DBConfig configures the Postgres wallet store. An empty DSN selects the
// in-memory store.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig enables shared metadata caches when Addr is set.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DiscordConfig struct {
	Token string `mapstructure:"token"`
}

type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type UpstreamConfig struct {
	DataURL    string  `mapstructure:"data_url"`
	CLOBURL    string  `mapstructure:"clob_url"`
	GammaURL   string  `mapstructure:"gamma_url"`
	ProfileURL string  `mapstructure:"profile_url"`
	RateLimit  float64 `mapstructure:"rate_limit"`
	Burst      int     `mapstructure:"burst"`
}

type TrackerConfig struct {
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	WalletPause    time.Duration `mapstructure:"wallet_pause"`
	DeliveryPause  time.Duration `mapstructure:"delivery_pause"`
	RecordPause    time.Duration `mapstructure:"record_pause"`
	EnrichPause    time.Duration `mapstructure:"enrich_pause"`
	MetadataTTL    time.Duration `mapstructure:"metadata_ttl"`
	PortfolioTTL   time.Duration `mapstructure:"portfolio_ttl"`
	UsernameTTL    time.Duration `mapstructure:"username_ttl"`
	DedupTTL       time.Duration `mapstructure:"dedup_ttl"`
	QuoteTimeout   time.Duration `mapstructure:"quote_timeout"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	ProfileTimeout time.Duration `mapstructure:"profile_timeout"`
}

// Load reads configuration. With envOnly set the YAML file is skipped and
// only defaults, .env and the environment apply.
func Load(path string, envOnly bool) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly && path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", true)
	v.SetDefault("log.output", "stdout")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.connect_timeout", "1m")
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "tracker:")
	v.SetDefault("discord.token", "")
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", "5s")
	v.SetDefault("upstream.data_url", "https://data-api.polymarket.com")
	v.SetDefault("upstream.clob_url", "https://clob.polymarket.com")
	v.SetDefault("upstream.gamma_url", "https://gamma-api.polymarket.com")
	v.SetDefault("upstream.profile_url", "https://polymarket.com")
	v.SetDefault("upstream.rate_limit", 10)
	v.SetDefault("upstream.burst", 5)
	v.SetDefault("tracker.sweep_interval", "15s")
	v.SetDefault("tracker.wallet_pause", "1s")
	v.SetDefault("tracker.delivery_pause", "500ms")
	v.SetDefault("tracker.record_pause", "100ms")
	v.SetDefault("tracker.enrich_pause", "100ms")
	v.SetDefault("tracker.metadata_ttl", "24h")
	v.SetDefault("tracker.portfolio_ttl", "30s")
	v.SetDefault("tracker.username_ttl", "1h")
	v.SetDefault("tracker.dedup_ttl", "2m")
	v.SetDefault("tracker.quote_timeout", "2s")
	v.SetDefault("tracker.fetch_timeout", "10s")
	v.SetDefault("tracker.profile_timeout", "8s")
}

// Validate reports settings that would prevent the daemon from running.
func (c Config) Validate() error {
	var problems []error
	for name, u := range map[string]string{
		"upstream.data_url":    c.Upstream.DataURL,
		"upstream.clob_url":    c.Upstream.CLOBURL,
		"upstream.gamma_url":   c.Upstream.GammaURL,
		"upstream.profile_url": c.Upstream.ProfileURL,
	} {
		if strings.TrimSpace(u) == "" {
			problems = append(problems, fmt.Errorf("%s is empty", name))
		}
	}
	if c.Tracker.SweepInterval <= 0 {
		problems = append(problems, errors.New("tracker.sweep_interval must be positive"))
	}
	if c.Tracker.DedupTTL <= 0 {
		problems = append(problems, errors.New("tracker.dedup_ttl must be positive"))
	}
	if c.Tracker.WalletPause < 0 || c.Tracker.DeliveryPause < 0 || c.Tracker.RecordPause < 0 || c.Tracker.EnrichPause < 0 {
		problems = append(problems, errors.New("tracker pauses must not be negative"))
	}
	return errors.Join(problems...)
}
