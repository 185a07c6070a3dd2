package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/linkwave/portal/internal/catalog"
)

// Account store backends.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// StoreConfig selects and locates the account store.
type StoreConfig struct {
	AccountStore  string `envconfig:"ACCOUNT_STORE" default:"mongo"`
	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://127.0.0.1:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"portal"`
	// PGDSN backs the postgres account store and the audit log. Empty
	// disables the audit log unless the account store is postgres.
	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"10"`
}

// Config holds runtime configuration for the portal.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppBaseURL        string        `envconfig:"APP_BASE_URL" default:"http://localhost:8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	StoreConfig

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h"`
	CSRFSecret    string        `envconfig:"CSRF_SECRET" required:"true"`

	IDPTokenSecret string `envconfig:"IDP_TOKEN_SECRET" required:"true"`
	IDPIssuer      string `envconfig:"IDP_ISSUER"`
	IDPLoginURL    string `envconfig:"IDP_LOGIN_URL"`

	AuthzUnknownResource   string `envconfig:"AUTHZ_UNKNOWN_RESOURCE" default:"allow"`
	AuthzForbiddenRedirect string `envconfig:"AUTHZ_FORBIDDEN_REDIRECT"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"127.0.0.1"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"no-reply@portal.local"`

	SMSGatewayURL   string `envconfig:"SMS_GATEWAY_URL"`
	SMSGatewayToken string `envconfig:"SMS_GATEWAY_TOKEN"`

	PendingDigestCron string `envconfig:"PENDING_DIGEST_CRON" default:"0 8 * * *"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if err := cfg.StoreConfig.validate(); err != nil {
		return nil, err
	}
	switch cfg.AuthzUnknownResource {
	case "allow", "deny":
	default:
		return nil, fmt.Errorf("AUTHZ_UNKNOWN_RESOURCE must be allow or deny, got %q", cfg.AuthzUnknownResource)
	}
	if cfg.AuthzForbiddenRedirect != "" {
		if err := validateForbiddenRedirect(cfg.AuthzForbiddenRedirect); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// reservedPrefixes are mounted by the router; a forbidden page there would
// collide with an existing route.
var reservedPrefixes = []string{"/auth", "/api", "/jobs", "/healthz", "/metrics"}

// validateForbiddenRedirect rejects targets that are not a standalone page:
// the landing route, any catalog section (a gated page redirecting to
// itself) or a path under a mounted prefix.
func validateForbiddenRedirect(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("AUTHZ_FORBIDDEN_REDIRECT must be an absolute path, got %q", path)
	}
	if path == "/" {
		return errors.New("AUTHZ_FORBIDDEN_REDIRECT cannot be the landing route /")
	}
	if res, ok := catalog.Default().Match(path); ok {
		return fmt.Errorf("AUTHZ_FORBIDDEN_REDIRECT %q is the gated section %s", path, res.ID)
	}
	for _, prefix := range reservedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return fmt.Errorf("AUTHZ_FORBIDDEN_REDIRECT %q overlaps the %s routes", path, prefix)
		}
	}
	return nil
}

// LoadStoreConfig reads only the store settings. Used by maintenance
// scripts that do not serve HTTP.
func LoadStoreConfig() (*StoreConfig, error) {
	var cfg StoreConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c StoreConfig) validate() error {
	switch c.AccountStore {
	case StoreMongo, StoreMemory:
		return nil
	case StorePostgres:
		if c.PGDSN == "" {
			return errors.New("PG_DSN is required when ACCOUNT_STORE=postgres")
		}
		return nil
	}
	return fmt.Errorf("ACCOUNT_STORE must be mongo, postgres or memory, got %q", c.AccountStore)
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
