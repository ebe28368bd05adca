package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// RabbitMQ configuration
	AMQPURL      string
	AMQPExchange string

	// Chain configuration
	RPCURL              string
	ContractAddress     string
	AdminAddress        string // signs mint and withdraw; empty means the node's first account
	GasLimit            uint64
	GasPriceWei         string
	ChainTimeout        time.Duration
	ReceiptPollInterval time.Duration

	// Store configuration
	StoreDriver string
	PostgresDSN string

	// Rate limiting
	RateLimitPerMinute int

	// Monitoring
	EnableMetrics      bool
	MetricsPort        string
	GapMetricsInterval time.Duration
}

// fileConfig is the optional TOML overlay named by TICKET_CONFIG. Values set
// there become defaults; environment variables still win.
type fileConfig struct {
	Server struct {
		Port        string `toml:"port"`
		Environment string `toml:"environment"`
	} `toml:"server"`
	Redis struct {
		URL string `toml:"url"`
	} `toml:"redis"`
	AMQP struct {
		URL      string `toml:"url"`
		Exchange string `toml:"exchange"`
	} `toml:"amqp"`
	Chain struct {
		RPCURL              string `toml:"rpc_url"`
		ContractAddress     string `toml:"contract_address"`
		AdminAddress        string `toml:"admin_address"`
		GasLimit            int    `toml:"gas_limit"`
		GasPriceWei         string `toml:"gas_price_wei"`
		Timeout             string `toml:"timeout"`
		ReceiptPollInterval string `toml:"receipt_poll_interval"`
	} `toml:"chain"`
	Store struct {
		Driver      string `toml:"driver"`
		PostgresDSN string `toml:"postgres_dsn"`
	} `toml:"store"`
	RateLimit struct {
		PerMinute int `toml:"per_minute"`
	} `toml:"rate_limit"`
	Metrics struct {
		Port string `toml:"port"`
	} `toml:"metrics"`
}

func LoadConfig() (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	var file fileConfig
	if path := os.Getenv("TICKET_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		// Server
		Port:        getEnv("PORT", or(file.Server.Port, "8090")),
		Environment: getEnv("ENVIRONMENT", or(file.Server.Environment, "development")),

		// Redis
		RedisURL: getEnv("REDIS_URL", or(file.Redis.URL, "localhost:6379")),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "ticket-bridge"),

		// RabbitMQ
		AMQPURL:      getEnv("AMQP_URL", file.AMQP.URL),
		AMQPExchange: getEnv("AMQP_EXCHANGE", or(file.AMQP.Exchange, "ticket.events")),

		// Chain
		RPCURL:              getEnv("RPC_URL", or(file.Chain.RPCURL, "http://127.0.0.1:8545")),
		ContractAddress:     getEnv("CONTRACT_ADDRESS", file.Chain.ContractAddress),
		AdminAddress:        getEnv("ADMIN_ADDRESS", file.Chain.AdminAddress),
		GasLimit:            uint64(getEnvAsInt("GAS_LIMIT", orInt(file.Chain.GasLimit, 5000000))),
		GasPriceWei:         getEnv("GAS_PRICE_WEI", or(file.Chain.GasPriceWei, "20000000000")),
		ChainTimeout:        getEnvAsDuration("CHAIN_TIMEOUT", or(file.Chain.Timeout, "2m")),
		ReceiptPollInterval: getEnvAsDuration("RECEIPT_POLL_INTERVAL", or(file.Chain.ReceiptPollInterval, "1s")),

		// Store
		StoreDriver: getEnv("STORE_DRIVER", or(file.Store.Driver, "pocketbase")),
		PostgresDSN: getEnv("POSTGRES_DSN", file.Store.PostgresDSN),

		// Rate limiting
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", orInt(file.RateLimit.PerMinute, 30)),

		// Monitoring
		EnableMetrics:      getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:        getEnv("METRICS_PORT", or(file.Metrics.Port, "9090")),
		GapMetricsInterval: getEnvAsDuration("GAP_METRICS_INTERVAL", "30s"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ContractAddress == "" {
		return fmt.Errorf("CONTRACT_ADDRESS is required")
	}
	if c.AdminAddress != "" && !common.IsHexAddress(c.AdminAddress) {
		return fmt.Errorf("ADMIN_ADDRESS %q is not an address", c.AdminAddress)
	}
	if _, err := strconv.ParseUint(c.GasPriceWei, 10, 64); err != nil {
		return fmt.Errorf("GAS_PRICE_WEI must be an integer: %w", err)
	}
	switch c.StoreDriver {
	case "pocketbase":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
