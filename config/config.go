package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Notification delivery drivers.
const (
	NotifyDriverSMTP   = "smtp"
	NotifyDriverBucket = "bucket"
	NotifyDriverBroker = "broker"
	NotifyDriverLog    = "log"
)

// Broker drivers. The memory broker lives inside the API process, which
// then runs the relay itself.
const (
	MQDriverRabbitMQ = "rabbitmq"
	MQDriverPubSub   = "pubsub"
	MQDriverMemory   = "memory"
)

// Object storage drivers. Memory storage is lost on exit.
const (
	StorageDriverMinio  = "minio"
	StorageDriverGCS    = "gcs"
	StorageDriverMemory = "memory"
)

// Config is the process-wide configuration. It is built once by LoadConfig
// and passed by value into constructors; nothing reads the environment later.
type Config struct {
	Env        string
	ServerPort int
	LogLevel   string
	LogFormat  string

	Store    StoreConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Auth     AuthConfig
	Argon2   Argon2Config
	Notify   NotifyConfig
	SMTP     SMTPConfig
	MQ       MQConfig
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
	Storage  StorageConfig
	Minio    MinioConfig
	GCS      GCSConfig
}

type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	// URL takes precedence over the discrete fields when set.
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type MongoConfig struct {
	URI      string
	Database string
}

// AuthConfig holds the token signing and code expiry settings.
type AuthConfig struct {
	JWTSecret      string
	JWTAlgorithm   string
	AccessTokenTTL time.Duration
	OTPTTL         time.Duration
}

// Argon2Config controls the cost of the credential hasher.
type Argon2Config struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type NotifyConfig struct {
	Driver string
	// RelayDriver is the sender the worker command delivers broker
	// messages with. It cannot be the broker itself.
	RelayDriver string
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	From        string
	SiteName    string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

type MQConfig struct {
	Driver  string
	Channel string
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
	// MaxOutstanding bounds unacknowledged messages held by one subscriber.
	MaxOutstanding int
}

type StorageConfig struct {
	Driver string
	Prefix string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	ProjectID       string
	Bucket          string
	CredentialsFile string
}

// LoadConfig reads the configuration from the environment. In dev mode a
// local .env file is loaded first. It fails when a required setting is absent.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	argon2Memory := getEnvInt("ARGON2_MEMORY_KIB", 64*1024)
	argon2Iterations := getEnvInt("ARGON2_ITERATIONS", 3)
	argon2Parallelism := getEnvInt("ARGON2_PARALLELISM", 2)
	if err := checkArgon2(argon2Memory, argon2Iterations, argon2Parallelism); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Env:        getEnv("ENV", "prod"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "json"),
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMongo)),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "netsync"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "netsync"),
			UseSSL:   getEnvBool("DB_USE_SSL", false),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", ""),
			Database: getEnv("DB_NAME", "netsync"),
		},
		Auth: AuthConfig{
			JWTSecret:      strings.TrimSpace(getEnv("JWT_SECRET", "")),
			JWTAlgorithm:   strings.ToUpper(getEnv("JWT_ALGORITHM", "HS256")),
			AccessTokenTTL: time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60)) * time.Minute,
			OTPTTL:         time.Duration(getEnvInt("EMAIL_OTP_TTL_MINUTES", 10)) * time.Minute,
		},
		Argon2: Argon2Config{
			MemoryKiB:   uint32(argon2Memory),
			Iterations:  uint32(argon2Iterations),
			Parallelism: uint8(argon2Parallelism),
			SaltLength:  16,
			KeyLength:   32,
		},
		Notify: NotifyConfig{
			Driver:      strings.ToLower(getEnv("NOTIFY_DRIVER", NotifyDriverSMTP)),
			RelayDriver: strings.ToLower(getEnv("NOTIFY_RELAY_DRIVER", NotifyDriverSMTP)),
			Workers:     getEnvInt("NOTIFY_WORKERS", 4),
			QueueSize:   getEnvInt("NOTIFY_QUEUE_SIZE", 256),
			SendTimeout: time.Duration(getEnvInt("NOTIFY_SEND_TIMEOUT_SECONDS", 20)) * time.Second,
			From:        getEnv("SMTP_FROM", "NetSync <noreply@netsync.local>"),
			SiteName:    getEnv("SITE_NAME", "NetSync"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
		},
		MQ: MQConfig{
			Driver:  strings.ToLower(getEnv("MQ_DRIVER", MQDriverRabbitMQ)),
			Channel: getEnv("MQ_CHANNEL", "verification-emails"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 8),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			MaxOutstanding:     getEnvInt("PUBSUB_MAX_OUTSTANDING", 8),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverMinio)),
			Prefix: getEnv("MAILBOX_PREFIX", "mailbox/"),
		},
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "netsync-mailbox"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			Bucket:          getEnv("GCS_BUCKET", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first missing or inconsistent required setting.
func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Auth.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("JWT_ALGORITHM %q is not supported", c.Auth.JWTAlgorithm)
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.Auth.OTPTTL <= 0 {
		return errors.New("EMAIL_OTP_TTL_MINUTES must be positive")
	}
	if err := checkArgon2(int(c.Argon2.MemoryKiB), int(c.Argon2.Iterations), int(c.Argon2.Parallelism)); err != nil {
		return err
	}

	switch c.Store.Driver {
	case StoreDriverMongo:
		if strings.TrimSpace(c.Mongo.URI) == "" {
			return errors.New("MONGO_URI is required")
		}
	case StoreDriverPostgres:
		if strings.TrimSpace(c.Database.URL) == "" && strings.TrimSpace(c.Database.Host) == "" {
			return errors.New("DATABASE_URL or DB_HOST is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.Store.Driver)
	}

	switch c.Notify.Driver {
	case NotifyDriverSMTP, NotifyDriverBucket, NotifyDriverBroker, NotifyDriverLog:
	default:
		return fmt.Errorf("NOTIFY_DRIVER %q is not supported", c.Notify.Driver)
	}
	switch c.Notify.RelayDriver {
	case NotifyDriverSMTP, NotifyDriverBucket, NotifyDriverLog:
	default:
		return fmt.Errorf("NOTIFY_RELAY_DRIVER %q is not supported", c.Notify.RelayDriver)
	}
	if c.Notify.Driver == NotifyDriverBroker {
		switch c.MQ.Driver {
		case MQDriverRabbitMQ, MQDriverPubSub, MQDriverMemory:
		default:
			return fmt.Errorf("MQ_DRIVER %q is not supported", c.MQ.Driver)
		}
	}
	if c.Notify.Workers < 1 || c.Notify.QueueSize < 1 {
		return errors.New("NOTIFY_WORKERS and NOTIFY_QUEUE_SIZE must be positive")
	}
	return nil
}

// Argon2 cost limits. Memory is capped at 4 GiB.
const (
	maxArgon2MemoryKiB  = 4 * 1024 * 1024
	maxArgon2Iterations = 1 << 16
)

// checkArgon2 validates the raw integers before they are narrowed to the
// hasher's unsigned types.
func checkArgon2(memoryKiB, iterations, parallelism int) error {
	if memoryKiB < 1 || memoryKiB > maxArgon2MemoryKiB {
		return fmt.Errorf("ARGON2_MEMORY_KIB must be between 1 and %d", maxArgon2MemoryKiB)
	}
	if iterations < 1 || iterations > maxArgon2Iterations {
		return fmt.Errorf("ARGON2_ITERATIONS must be between 1 and %d", maxArgon2Iterations)
	}
	if parallelism < 1 || parallelism > 255 {
		return errors.New("ARGON2_PARALLELISM must be between 1 and 255")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}
