package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/greenmesh/greenmesh/api"
	"github.com/greenmesh/greenmesh/pkg/dispatcher"
)

// EnvPrefix prefixes every environment override, e.g. GREENMESH_API_PORT.
const EnvPrefix = "GREENMESH"

// Config is the node configuration read from <home>/config/app.toml.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	API        APIConfig        `mapstructure:"api"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Events logs every committed event.
	Events bool `mapstructure:"events"`
}

type APIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	RateLimitRPS int           `mapstructure:"rate_limit_rps"`
	TLSCertFile  string        `mapstructure:"tls_cert_file"`
	TLSKeyFile   string        `mapstructure:"tls_key_file"`
}

type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

type DispatcherConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Operator         string        `mapstructure:"operator"`
	Interval         time.Duration `mapstructure:"interval"`
	AuditProbability float64       `mapstructure:"audit_probability"`
	Seed             uint64        `mapstructure:"seed"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LedgerConfig struct {
	CheckInvariants bool `mapstructure:"check_invariants"`
}

// setDefaults registers every key so environment overrides apply even when
// app.toml omits it.
func setDefaults(v *viper.Viper) {
	apiDefaults := api.DefaultConfig()
	dispatchDefaults := dispatcher.DefaultConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.events", false)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.host", apiDefaults.Host)
	v.SetDefault("api.port", apiDefaults.Port)
	v.SetDefault("api.jwt_secret", "")
	v.SetDefault("api.token_ttl", apiDefaults.TokenTTL.String())
	v.SetDefault("api.cors_origins", apiDefaults.CORSOrigins)
	v.SetDefault("api.rate_limit_rps", apiDefaults.RateLimitRPS)
	v.SetDefault("api.tls_cert_file", "")
	v.SetDefault("api.tls_key_file", "")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.metrics_port", 36660)

	v.SetDefault("dispatcher.enabled", false)
	v.SetDefault("dispatcher.operator", "")
	v.SetDefault("dispatcher.interval", dispatchDefaults.Interval.String())
	v.SetDefault("dispatcher.audit_probability", dispatchDefaults.AuditProbability)
	v.SetDefault("dispatcher.seed", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "")

	v.SetDefault("ledger.check_invariants", true)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func configPath(home string) string {
	return filepath.Join(home, "config", "app.toml")
}

func genesisPath(home string) string {
	return filepath.Join(home, "config", "genesis.json")
}

// LoadConfig reads app.toml under home, applying GREENMESH_* overrides. A
// missing file yields the defaults.
func LoadConfig(home string) (Config, error) {
	v := newViper()
	path := configPath(home)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values viper cannot.
func (c Config) Validate() error {
	switch c.Log.Format {
	case "json", "plain":
	default:
		return fmt.Errorf("log.format must be json or plain, got %q", c.Log.Format)
	}
	if c.Dispatcher.Enabled {
		if c.Dispatcher.Operator == "" {
			return fmt.Errorf("dispatcher.operator is required when the dispatcher is enabled")
		}
		if err := c.dispatcherConfig().Validate(); err != nil {
			return fmt.Errorf("dispatcher: %w", err)
		}
	}
	if (c.API.TLSCertFile == "") != (c.API.TLSKeyFile == "") {
		return fmt.Errorf("api.tls_cert_file and api.tls_key_file must be set together")
	}
	return nil
}

func (c Config) dispatcherConfig() dispatcher.Config {
	return dispatcher.Config{
		Interval:         c.Dispatcher.Interval,
		AuditProbability: c.Dispatcher.AuditProbability,
		Seed:             c.Dispatcher.Seed,
	}
}

func (c Config) apiConfig() *api.Config {
	cfg := api.DefaultConfig()
	cfg.Host = c.API.Host
	cfg.Port = c.API.Port
	cfg.JWTSecret = []byte(c.API.JWTSecret)
	cfg.TokenTTL = c.API.TokenTTL
	cfg.CORSOrigins = c.API.CORSOrigins
	cfg.RateLimitRPS = c.API.RateLimitRPS
	cfg.TLSEnabled = c.API.TLSCertFile != ""
	cfg.TLSCertFile = c.API.TLSCertFile
	cfg.TLSKeyFile = c.API.TLSKeyFile
	return cfg
}

// WriteDefaultConfig writes app.toml with the defaults plus overrides.
func WriteDefaultConfig(home string, overrides map[string]any) error {
	path := configPath(home)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	v := viper.New()
	setDefaults(v)
	for key, value := range overrides {
		v.Set(key, value)
	}
	v.SetConfigType("toml")
	return v.WriteConfigAs(path)
}
