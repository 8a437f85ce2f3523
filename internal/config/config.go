package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Registry source kinds accepted by REGISTRY_SOURCE.
const (
	SourceNone     = ""
	SourceHTTP     = "http"
	SourceMongo    = "mongo"
	SourcePostgres = "postgres"
	SourceFile     = "file"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Provider
	ProviderType         string        `envconfig:"PROVIDER_TYPE" default:"deepface"`
	DeepFaceURL          string        `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceModel        string        `envconfig:"DEEPFACE_MODEL" default:"VGG-Face"`
	DeepFaceDetector     string        `envconfig:"DEEPFACE_DETECTOR" default:"opencv"`
	ProviderTimeout      time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
	ProviderRetryCount   int           `envconfig:"PROVIDER_RETRY_COUNT" default:"1"`
	ProviderRetryBackoff time.Duration `envconfig:"PROVIDER_RETRY_BACKOFF" default:"500ms"`
	ProviderStartupCheck bool          `envconfig:"PROVIDER_STARTUP_CHECK" default:"true"`
	MinFaceConfidence    float64       `envconfig:"MIN_FACE_CONFIDENCE" default:"0.01"`
	DlibModelsDir        string        `envconfig:"DLIB_MODELS_DIR" default:"models"`

	// Matching
	MatchThreshold         float64 `envconfig:"MATCH_THRESHOLD" default:"0.3"`
	EmbeddingDimension     int     `envconfig:"EMBEDDING_DIMENSION" default:"0"`
	MatchIndex             string  `envconfig:"MATCH_INDEX" default:"linear"`
	MatchIndexMinTemplates int     `envconfig:"MATCH_INDEX_MIN_TEMPLATES" default:"2000"`

	// Registry source
	RegistrySource       string        `envconfig:"REGISTRY_SOURCE" default:""`
	RegistryURL          string        `envconfig:"REGISTRY_URL"`
	RegistryFile         string        `envconfig:"REGISTRY_FILE"`
	DatabaseURL          string        `envconfig:"DATABASE_URL"`
	MongoURI             string        `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase        string        `envconfig:"MONGODB_DATABASE" default:"face-recognition"`
	MongoCollection      string        `envconfig:"MONGODB_COLLECTION" default:"faceregistrations"`
	PersistRegistrations bool          `envconfig:"PERSIST_REGISTRATIONS" default:"false"`
	SyncInterval         time.Duration `envconfig:"SYNC_INTERVAL" default:"0s"`
	SyncTimeout          time.Duration `envconfig:"SYNC_TIMEOUT" default:"10s"`

	// Change notification
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisChannel  string `envconfig:"REDIS_CHANNEL" default:"facestream:registry"`

	// Transport limits
	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"120"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	WSQueueSize     int           `envconfig:"WS_QUEUE_SIZE" default:"16"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations that cannot produce a working service.
func (c *Config) Validate() error {
	if c.MatchThreshold <= 0 || c.MatchThreshold > 2 {
		return fmt.Errorf("invalid config: MATCH_THRESHOLD must be in (0, 2], got %v", c.MatchThreshold)
	}
	if c.EmbeddingDimension < 0 {
		return fmt.Errorf("invalid config: EMBEDDING_DIMENSION must not be negative")
	}
	if c.MatchIndex != "linear" && c.MatchIndex != "hnsw" {
		return fmt.Errorf("invalid config: MATCH_INDEX must be linear or hnsw, got %q", c.MatchIndex)
	}
	if c.WSQueueSize <= 0 {
		return fmt.Errorf("invalid config: WS_QUEUE_SIZE must be positive")
	}

	switch c.RegistrySource {
	case SourceNone:
		if c.PersistRegistrations {
			return fmt.Errorf("invalid config: PERSIST_REGISTRATIONS requires a mongo or postgres REGISTRY_SOURCE")
		}
	case SourceHTTP:
		if c.RegistryURL == "" {
			return fmt.Errorf("invalid config: REGISTRY_SOURCE=http requires REGISTRY_URL")
		}
	case SourceFile:
		if c.RegistryFile == "" {
			return fmt.Errorf("invalid config: REGISTRY_SOURCE=file requires REGISTRY_FILE")
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("invalid config: REGISTRY_SOURCE=postgres requires DATABASE_URL")
		}
	case SourceMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("invalid config: REGISTRY_SOURCE=mongo requires MONGODB_URI")
		}
	default:
		return fmt.Errorf("invalid config: unknown REGISTRY_SOURCE %q", c.RegistrySource)
	}

	if c.PersistRegistrations && c.RegistrySource != SourceMongo && c.RegistrySource != SourcePostgres {
		return fmt.Errorf("invalid config: PERSIST_REGISTRATIONS requires a mongo or postgres REGISTRY_SOURCE")
	}
	return nil
}

// HasRegistrySource reports whether a remote source of identities is configured.
func (c *Config) HasRegistrySource() bool {
	return c.RegistrySource != SourceNone
}
