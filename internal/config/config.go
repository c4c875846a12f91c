package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
		// debug | info | warn | error
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// Addr separado para /metrics; vacío => mismo listener.
		MetricsAddr     string `yaml:"metrics_addr"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres | redis
		Driver   string `yaml:"driver"`
		Postgres struct {
			DSN             string `yaml:"dsn"`
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MinIdleConns    int    `yaml:"min_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"storage"`

	OAuth struct {
		HashRounds int    `yaml:"hash_rounds"`
		HashKeyLen int    `yaml:"hash_key_len"`
		HashDigest string `yaml:"hash_digest"` // sha1 | sha256 | sha512

		TokenTTL    Duration `yaml:"token_ttl"`    // password grant
		ExchangeTTL Duration `yaml:"exchange_ttl"` // code exchange
		CodeTTL     Duration `yaml:"code_ttl"`     // authorization code

		ClientCacheTTL  Duration `yaml:"client_cache_ttl"`
		ClientCacheSize int      `yaml:"client_cache_size"`
	} `yaml:"oauth"`
}

// Duration acepta strings estilo "2h45m" en YAML (yaml.v3 no decodifica
// time.Duration por sí solo).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q", n.Value)
	}
	*d = Duration(v)
	return nil
}

// Std devuelve la duración como time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default devuelve una configuración utilizable sin archivo YAML.
func Default() *Config {
	c := &Config{}
	c.App.Env = "dev"
	c.App.LogLevel = "info"
	c.Server.Addr = ":8080"
	c.Server.ShutdownTimeout = "10s"
	c.Storage.Driver = "memory"
	c.applyEnvOverrides()
	return c
}

func getEnvStr(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}

func getEnvInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func getEnvDur(key string) (time.Duration, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	return d, err == nil
}

// applyEnvOverrides pisa valores del YAML con ENV (útil en contenedores).
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("GRANTD_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("GRANTD_LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := getEnvStr("GRANTD_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("GRANTD_METRICS_ADDR"); ok {
		c.Server.MetricsAddr = v
	}
	if v, ok := getEnvStr("GRANTD_STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("GRANTD_POSTGRES_DSN"); ok {
		c.Storage.Postgres.DSN = v
	}
	if v, ok := getEnvStr("GRANTD_REDIS_ADDR"); ok {
		c.Storage.Redis.Addr = v
	}
	if v, ok := getEnvStr("GRANTD_REDIS_PASSWORD"); ok {
		c.Storage.Redis.Password = v
	}
	if v, ok := getEnvInt("GRANTD_HASH_ROUNDS"); ok {
		c.OAuth.HashRounds = v
	}
	if v, ok := getEnvDur("GRANTD_TOKEN_TTL"); ok {
		c.OAuth.TokenTTL = Duration(v)
	}
	if v, ok := getEnvDur("GRANTD_CODE_TTL"); ok {
		c.OAuth.CodeTTL = Duration(v)
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "redis":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("config: storage.postgres.dsn is required for driver postgres")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.OAuth.HashDigest {
	case "", "sha1", "sha256", "sha512":
	default:
		return fmt.Errorf("config: unknown hash digest %q", c.OAuth.HashDigest)
	}
	return nil
}
