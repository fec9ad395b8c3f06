package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/catalog"
)

// Keys double as flag names. The matching environment variable is the key
// upper-cased with dashes replaced by underscores (websocket-port ->
// WEBSOCKET_PORT).
const (
	KeyHost                 = "websocket-host"
	KeyPort                 = "websocket-port"
	KeyPingInterval         = "ping-interval"
	KeyPingTimeout          = "ping-timeout"
	KeyPollInterval         = "poll-interval"
	KeyStatsInterval        = "stats-interval"
	KeyRequestTimeout       = "request-timeout"
	KeyDatabaseURL          = "database-url"
	KeyMigrationsPath       = "migrations-path"
	KeyProductTable         = "product-table"
	KeyProductIDColumn      = "product-id-column"
	KeyFieldAliases         = "field-aliases"
	KeyKafkaBrokers         = "kafka-brokers"
	KeyKafkaConsumerGroup   = "kafka-consumer-group"
	KeyAllowedOrigins       = "allowed-origins"
	KeyRateLimitRPS         = "rate-limit-rps"
	KeyRateLimitBurst       = "rate-limit-burst"
	KeyClientMessagesPerSec = "client-messages-per-second"
)

type Config struct {
	Host string
	Port int

	PingInterval   time.Duration
	PingTimeout    time.Duration
	PollInterval   time.Duration
	StatsInterval  time.Duration
	RequestTimeout time.Duration

	// Storage. An empty DatabaseURL selects the in-memory store.
	DatabaseURL     string
	MigrationsPath  string
	ProductTable    string
	ProductIDColumn string
	FieldAliases    map[string]string

	// Kafka relay. No brokers selects the in-process broker.
	KafkaBrokers       []string
	KafkaConsumerGroup string

	AllowedOrigins          []string
	RateLimitRPS            float64
	RateLimitBurst          int
	ClientMessagesPerSecond float64
}

var defaults = map[string]any{
	KeyHost:                 "localhost",
	KeyPort:                 8000,
	KeyPingInterval:         "10",
	KeyPingTimeout:          "5",
	KeyPollInterval:         "5",
	KeyStatsInterval:        "2",
	KeyRequestTimeout:       "10",
	KeyDatabaseURL:          "",
	KeyMigrationsPath:       "migrations",
	KeyProductTable:         catalog.DefaultTable.Name,
	KeyProductIDColumn:      catalog.DefaultTable.IDColumn,
	KeyFieldAliases:         "",
	KeyKafkaBrokers:         "",
	KeyKafkaConsumerGroup:   "",
	KeyAllowedOrigins:       "",
	KeyRateLimitRPS:         20.0,
	KeyRateLimitBurst:       40,
	KeyClientMessagesPerSec: 50.0,
}

// AddFlags registers one flag per configuration key on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(KeyHost, "localhost", "Interface the server listens on")
	fs.Int(KeyPort, 8000, "Port the server listens on")
	fs.String(KeyPingInterval, "10", "Seconds (or a duration) between heartbeat sweeps")
	fs.String(KeyPingTimeout, "5", "Seconds (or a duration) a client has to answer a ping")
	fs.String(KeyPollInterval, "5", "Seconds (or a duration) between change poller sweeps")
	fs.String(KeyStatsInterval, "2", "Seconds (or a duration) between stats broadcasts")
	fs.String(KeyRequestTimeout, "10", "Seconds (or a duration) allowed per client request")
	fs.String(KeyDatabaseURL, "", "PostgreSQL URL; empty keeps the catalog in memory")
	fs.String(KeyMigrationsPath, "migrations", "Directory holding the SQL migrations")
	fs.String(KeyProductTable, catalog.DefaultTable.Name, "Table holding the catalog records")
	fs.String(KeyProductIDColumn, catalog.DefaultTable.IDColumn, "Identity column of the catalog table")
	fs.String(KeyFieldAliases, "", "Extra field aliases as alias=column pairs, comma-separated")
	fs.String(KeyKafkaBrokers, "", "Comma-separated Kafka brokers for the cross-instance relay")
	fs.String(KeyKafkaConsumerGroup, "", "Kafka consumer group; empty uses one group per instance")
	fs.String(KeyAllowedOrigins, "", "Comma-separated WebSocket origins; empty allows all")
	fs.Float64(KeyRateLimitRPS, 20, "HTTP requests per second allowed per client IP")
	fs.Int(KeyRateLimitBurst, 40, "HTTP request burst allowed per client IP")
	fs.Float64(KeyClientMessagesPerSec, 50, "WebSocket frames per second allowed per connection; 0 disables")
}

// Load reads the configuration from .env files, the environment and, when fs
// is not nil, command line flags. Flags set explicitly win over the
// environment.
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	cfg := &Config{
		Host:                    v.GetString(KeyHost),
		Port:                    v.GetInt(KeyPort),
		DatabaseURL:             v.GetString(KeyDatabaseURL),
		MigrationsPath:          v.GetString(KeyMigrationsPath),
		ProductTable:            v.GetString(KeyProductTable),
		ProductIDColumn:         v.GetString(KeyProductIDColumn),
		KafkaBrokers:            splitList(v.GetString(KeyKafkaBrokers)),
		KafkaConsumerGroup:      v.GetString(KeyKafkaConsumerGroup),
		AllowedOrigins:          splitList(v.GetString(KeyAllowedOrigins)),
		RateLimitRPS:            v.GetFloat64(KeyRateLimitRPS),
		RateLimitBurst:          v.GetInt(KeyRateLimitBurst),
		ClientMessagesPerSecond: v.GetFloat64(KeyClientMessagesPerSec),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{KeyPingInterval, &cfg.PingInterval},
		{KeyPingTimeout, &cfg.PingTimeout},
		{KeyPollInterval, &cfg.PollInterval},
		{KeyStatsInterval, &cfg.StatsInterval},
		{KeyRequestTimeout, &cfg.RequestTimeout},
	}
	for _, d := range durations {
		val, err := parseSeconds(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", d.key, err)
		}
		*d.dst = val
	}

	aliases, err := catalog.ParseAliases(v.GetString(KeyFieldAliases))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", KeyFieldAliases, err)
	}
	cfg.FieldAliases = aliases

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: %s out of range: %d", KeyPort, c.Port)
	}
	for key, d := range map[string]time.Duration{
		KeyPingInterval:   c.PingInterval,
		KeyPingTimeout:    c.PingTimeout,
		KeyPollInterval:   c.PollInterval,
		KeyStatsInterval:  c.StatsInterval,
		KeyRequestTimeout: c.RequestTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", key, d)
		}
	}
	if c.ProductTable == "" || c.ProductIDColumn == "" {
		return fmt.Errorf("config: %s and %s must not be empty", KeyProductTable, KeyProductIDColumn)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Table is the catalog table the stores operate on.
func (c *Config) Table() catalog.TableConfig {
	return catalog.TableConfig{Name: c.ProductTable, IDColumn: c.ProductIDColumn}
}

// parseSeconds accepts a plain number of seconds ("5", "0.5") or a Go
// duration ("1m30s").
func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
