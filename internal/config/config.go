package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Dynamo   DynamoConfig
	Log      LogConfig
	Store    StoreConfig
	Order    OrderConfig
	Pricing  PricingConfig
}

type ServerConfig struct {
	Port               int
	CORSAllowedOrigins []string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

type DynamoConfig struct {
	Region        string
	Endpoint      string
	ProductsTable string
	OrdersTable   string
}

type LogConfig struct {
	Level string
}

const (
	DriverMySQL    = "mysql"
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

type StoreConfig struct {
	Driver string
	// SeedFile lists catalog products loaded into the memory driver at startup.
	SeedFile string
}

type OrderConfig struct {
	TxTimeout           time.Duration
	MaxRetryAttempts    int
	RetryBaseDelay      time.Duration
	CheckoutConcurrency int
}

type PricingConfig struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
	Currency              string
}

// Load reads configuration from the environment. A .env file in the working
// directory and a file named by CONFIG_FILE are optional; real environment
// variables win over both.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", DriverMySQL)
	v.SetDefault("MEMORY_SEED_FILE", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 3306)
	v.SetDefault("DB_USER", "storefront")
	v.SetDefault("DB_PASSWORD", "secret")
	v.SetDefault("DB_NAME", "storefront")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("DB_MIGRATE", true)

	v.SetDefault("DYNAMO_REGION", "us-east-1")
	v.SetDefault("DYNAMO_ENDPOINT", "")
	v.SetDefault("DYNAMO_PRODUCTS_TABLE", "storefront-products")
	v.SetDefault("DYNAMO_ORDERS_TABLE", "storefront-orders")

	v.SetDefault("ORDER_TX_TIMEOUT", "5s")
	v.SetDefault("ORDER_MAX_RETRY_ATTEMPTS", 5)
	v.SetDefault("ORDER_RETRY_BASE_DELAY", "50ms")
	v.SetDefault("CHECKOUT_CONCURRENCY", 4)

	v.SetDefault("PRICING_FREE_SHIPPING_THRESHOLD", "100")
	v.SetDefault("PRICING_FLAT_SHIPPING_FEE", "15")
	v.SetDefault("PRICING_TAX_RATE", "0.18")
	v.SetDefault("PRICING_CURRENCY", "TRY")
}

func fromViper(v *viper.Viper) (*Config, error) {
	connMaxLifetime, err := time.ParseDuration(v.GetString("DB_CONN_MAX_LIFETIME"))
	if err != nil {
		return nil, fmt.Errorf("DB_CONN_MAX_LIFETIME: %w", err)
	}
	txTimeout, err := time.ParseDuration(v.GetString("ORDER_TX_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("ORDER_TX_TIMEOUT: %w", err)
	}
	retryBaseDelay, err := time.ParseDuration(v.GetString("ORDER_RETRY_BASE_DELAY"))
	if err != nil {
		return nil, fmt.Errorf("ORDER_RETRY_BASE_DELAY: %w", err)
	}

	threshold, err := decimal.NewFromString(v.GetString("PRICING_FREE_SHIPPING_THRESHOLD"))
	if err != nil {
		return nil, fmt.Errorf("PRICING_FREE_SHIPPING_THRESHOLD: %w", err)
	}
	fee, err := decimal.NewFromString(v.GetString("PRICING_FLAT_SHIPPING_FEE"))
	if err != nil {
		return nil, fmt.Errorf("PRICING_FLAT_SHIPPING_FEE: %w", err)
	}
	taxRate, err := decimal.NewFromString(v.GetString("PRICING_TAX_RATE"))
	if err != nil {
		return nil, fmt.Errorf("PRICING_TAX_RATE: %w", err)
	}

	driver := strings.ToLower(v.GetString("STORE_DRIVER"))
	switch driver {
	case DriverMySQL, DriverDynamoDB, DriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER: unknown driver %q", driver)
	}

	attempts := v.GetInt("ORDER_MAX_RETRY_ATTEMPTS")
	if attempts < 1 {
		return nil, fmt.Errorf("ORDER_MAX_RETRY_ATTEMPTS must be at least 1, got %d", attempts)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               v.GetInt("SERVER_PORT"),
			CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: connMaxLifetime,
			Migrate:         v.GetBool("DB_MIGRATE"),
		},
		Dynamo: DynamoConfig{
			Region:        v.GetString("DYNAMO_REGION"),
			Endpoint:      v.GetString("DYNAMO_ENDPOINT"),
			ProductsTable: v.GetString("DYNAMO_PRODUCTS_TABLE"),
			OrdersTable:   v.GetString("DYNAMO_ORDERS_TABLE"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Store: StoreConfig{
			Driver:   driver,
			SeedFile: v.GetString("MEMORY_SEED_FILE"),
		},
		Order: OrderConfig{
			TxTimeout:           txTimeout,
			MaxRetryAttempts:    attempts,
			RetryBaseDelay:      retryBaseDelay,
			CheckoutConcurrency: v.GetInt("CHECKOUT_CONCURRENCY"),
		},
		Pricing: PricingConfig{
			FreeShippingThreshold: threshold,
			FlatShippingFee:       fee,
			TaxRate:               taxRate,
			Currency:              v.GetString("PRICING_CURRENCY"),
		},
	}

	return cfg, nil
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
