package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDynamo = "dynamo"
	StoreMongo  = "mongo"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string   `env:"APP_PORT" envDefault:"3000"`
	AppEnv         string   `env:"APP_ENV" envDefault:"development"`
	LogLevel       int      `env:"LOG_LEVEL" envDefault:"0"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"dynamo"`

	AWSRegion      string       `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string       `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string       `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string       `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables `envPrefix:"DYNAMO_TABLE_"`

	Mongo Mongo `envPrefix:"MONGO_"`
	SMTP  SMTP  `envPrefix:"SMTP_"`

	// JWTSecret defaults to the key the service has always signed with.
	JWTSecret  string        `env:"JWT_SECRET" envDefault:"passwordkey"`
	JWTExpiry  time.Duration `env:"JWT_EXPIRY" envDefault:"1h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`
	// OTPTTL of zero means codes never expire.
	OTPTTL time.Duration `env:"OTP_TTL" envDefault:"0s"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users string `env:"USERS" envDefault:"users"`
	OTPs  string `env:"OTPS" envDefault:"otps"`
}

// Mongo holds MongoDB connection parameters.
type Mongo struct {
	URI             string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database        string `env:"DATABASE" envDefault:"auth"`
	UsersCollection string `env:"COLLECTION_USERS" envDefault:"users"`
	OTPsCollection  string `env:"COLLECTION_OTPS" envDefault:"otps"`
}

// SMTP holds mail relay parameters.
type SMTP struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"1025"`
	From     string `env:"FROM" envDefault:"noreply@example.com"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDynamo, StoreMongo:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	// bcrypt.MinCost and bcrypt.MaxCost
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive, got %s", c.JWTExpiry)
	}
	if c.OTPTTL < 0 {
		return fmt.Errorf("OTP_TTL must not be negative, got %s", c.OTPTTL)
	}
	return nil
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
