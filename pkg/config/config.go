package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "SHOPFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv            = "SHOPFRONT_APP_ENV"
	EnvPort              = "SHOPFRONT_APP_PORT"
	EnvLogLevel          = "SHOPFRONT_LOG_LEVEL"
	EnvShopAPIBaseURL    = "SHOPFRONT_SHOPAPI_BASE_URL"
	EnvShopAPITimeout    = "SHOPFRONT_SHOPAPI_TIMEOUT"
	EnvCartRemoteSync    = "SHOPFRONT_CART_REMOTE_SYNC"
	EnvExpressFee        = "SHOPFRONT_CHECKOUT_EXPRESS_FEE"
	EnvFreeShippingOver  = "SHOPFRONT_CHECKOUT_FREE_SHIPPING_OVER"
	EnvProcessingDelay   = "SHOPFRONT_CHECKOUT_PROCESSING_DELAY"
	EnvStorageDriver     = "SHOPFRONT_STORAGE_DRIVER"
	EnvStorageSQLitePath = "SHOPFRONT_STORAGE_SQLITE_PATH"
	EnvDBDSN             = "SHOPFRONT_DB_DSN"
	EnvRedisURL          = "SHOPFRONT_REDIS_URL"
	EnvPubSubProjectID   = "SHOPFRONT_PUBSUB_PROJECT_ID"
	EnvPubSubOrdersTopic = "SHOPFRONT_PUBSUB_ORDERS_TOPIC"
)

const (
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
	StorageDriverRedis    = "redis"
	StorageDriverMemory   = "memory"
)

type Config struct {
	App      AppConfig
	ShopAPI  ShopAPIConfig
	Catalog  CatalogConfig
	Cart     CartConfig
	Checkout CheckoutConfig
	Storage  StorageConfig
	DB       DBConfig
	Redis    RedisConfig
	PubSub   PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageDriverSQLite, StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.DB.DSN) == "" {
			return fmt.Errorf("%s is required when storage driver is %s", EnvDBDSN, StorageDriverPostgres)
		}
	case StorageDriverRedis:
		if strings.TrimSpace(c.Redis.URL) == "" && strings.TrimSpace(c.Redis.Address) == "" {
			return fmt.Errorf("%s is required when storage driver is %s", EnvRedisURL, StorageDriverRedis)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Checkout.ExpressFee.IsNegative() {
		return fmt.Errorf("%s must be non-negative", EnvExpressFee)
	}
	if c.Checkout.FreeShippingOver.IsNegative() {
		return fmt.Errorf("%s must be non-negative", EnvFreeShippingOver)
	}
	if c.PubSub.Enabled() && strings.TrimSpace(c.PubSub.OrdersTopic) == "" {
		return fmt.Errorf("%s is required when %s is set", EnvPubSubOrdersTopic, EnvPubSubProjectID)
	}
	return nil
}

type AppConfig struct {
	Env          string   `envconfig:"SHOPFRONT_APP_ENV" required:"true"`
	Port         string   `envconfig:"SHOPFRONT_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"SHOPFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"SHOPFRONT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"SHOPFRONT_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// ShopAPIConfig points at the remote product catalog and cart service.
type ShopAPIConfig struct {
	BaseURL string        `envconfig:"SHOPFRONT_SHOPAPI_BASE_URL" default:"https://dummyjson.com"`
	Timeout time.Duration `envconfig:"SHOPFRONT_SHOPAPI_TIMEOUT" default:"10s"`
}

type CatalogConfig struct {
	FeaturedCategories []string `envconfig:"SHOPFRONT_CATALOG_FEATURED_CATEGORIES" default:"smartphones,laptops,fragrances,skincare,groceries,home-decoration"`
	AllProductsLimit   int      `envconfig:"SHOPFRONT_CATALOG_ALL_LIMIT" default:"9"`
	CategoryLimit      int      `envconfig:"SHOPFRONT_CATALOG_CATEGORY_LIMIT" default:"3"`
	SearchLimit        int      `envconfig:"SHOPFRONT_CATALOG_SEARCH_LIMIT" default:"9"`
}

type CartConfig struct {
	UserID     int  `envconfig:"SHOPFRONT_CART_USER_ID" default:"1"`
	RemoteSync bool `envconfig:"SHOPFRONT_CART_REMOTE_SYNC" default:"true"`
}

type CheckoutConfig struct {
	ExpressFee       decimal.Decimal `envconfig:"SHOPFRONT_CHECKOUT_EXPRESS_FEE" default:"9.99"`
	FreeShippingOver decimal.Decimal `envconfig:"SHOPFRONT_CHECKOUT_FREE_SHIPPING_OVER" default:"50"`
	ProcessingDelay  time.Duration   `envconfig:"SHOPFRONT_CHECKOUT_PROCESSING_DELAY" default:"2s"`
}

type StorageConfig struct {
	Driver      string `envconfig:"SHOPFRONT_STORAGE_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SHOPFRONT_STORAGE_SQLITE_PATH" default:"storefront.db"`
	AutoMigrate bool   `envconfig:"SHOPFRONT_STORAGE_AUTO_MIGRATE" default:"true"`
}

// UsesSQL reports whether durable state lives in a gorm-managed database.
func (s StorageConfig) UsesSQL() bool {
	return s.Driver == StorageDriverSQLite || s.Driver == StorageDriverPostgres
}

type DBConfig struct {
	DSN             string        `envconfig:"SHOPFRONT_DB_DSN"`
	MaxOpenConns    int           `envconfig:"SHOPFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"SHOPFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPFRONT_REDIS_URL"`
	Address      string        `envconfig:"SHOPFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PubSubConfig enables forwarding of order events. Empty project id disables it.
type PubSubConfig struct {
	ProjectID   string `envconfig:"SHOPFRONT_PUBSUB_PROJECT_ID"`
	OrdersTopic string `envconfig:"SHOPFRONT_PUBSUB_ORDERS_TOPIC"`
}

func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.ProjectID) != ""
}
