package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Archive backends.
const (
	ArchiveNone       = "none"
	ArchiveClickHouse = "clickhouse"
	ArchiveKafka      = "kafka"
)

// Snapshot backends.
const (
	SnapshotMemory = "memory"
	SnapshotRedis  = "redis"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Engine struct {
		HistoryLimit  int `yaml:"history_limit" validate:"gte=0"`
		MaxStrategies int `yaml:"max_strategies" validate:"gte=0"`
	} `yaml:"engine"`
	Snapshot struct {
		Backend     string        `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		Key         string        `yaml:"key" default:"tracker:snapshot"`
		TTL         time.Duration `yaml:"ttl"`
		SaveTimeout time.Duration `yaml:"save_timeout" default:"2s"`
	} `yaml:"snapshot"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		PoolSize int           `yaml:"pool_size" default:"10"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
		Prefix   string        `yaml:"prefix" default:"spintrack:"`
	} `yaml:"redis"`
	Archive struct {
		Backend    string `yaml:"backend" default:"none" validate:"oneof=none clickhouse kafka"`
		BufferSize int    `yaml:"buffer_size" default:"1000" validate:"gt=0"`
	} `yaml:"archive"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"spintrack"`
		Table            string        `yaml:"table" default:"spins"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		IngestTopic  string   `yaml:"ingest_topic" default:"spins.ingest"`
		SpinsTopic   string   `yaml:"spins_topic" default:"spins.recorded"`
		AlertsTopic  string   `yaml:"alerts_topic" default:"strategy.alerts"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"20ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Ingest     bool          `yaml:"ingest"`
			GroupID    string        `yaml:"group_id" default:"spintrack"`
			Workers    int           `yaml:"workers" default:"1" validate:"gt=0"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Feed struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url" validate:"omitempty,url"`
		Source         string        `yaml:"source" default:"feed"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		MaxRPS         float64       `yaml:"max_rps" default:"5" validate:"gte=0"`
		Burst          int           `yaml:"burst" default:"10" validate:"gte=0"`
	} `yaml:"feed"`
	Notify struct {
		WebhookURL string        `yaml:"webhook_url" validate:"omitempty,url"`
		Timeout    time.Duration `yaml:"timeout" default:"5s"`
		Retries    int           `yaml:"retries" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
		Workers    int           `yaml:"workers" default:"2" validate:"gt=0"`
		Queue      string        `yaml:"queue" default:"webhooks"`
	} `yaml:"notify"`
}

var validate = validator.New()

// Load reads a YAML file, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the given lookup, normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SPINTRACK_ENV"); ok && v != "" {
		c.Environment = v
	}
	if v, ok := lookup("HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		host, port, err := splitHostPort(v, c.Redis.Port)
		if err != nil {
			return fmt.Errorf("REDIS_ADDR: %w", err)
		}
		c.Redis.Enabled = true
		c.Redis.Host, c.Redis.Port = host, port
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v, ok := lookup("CLICKHOUSE_HOST"); ok && v != "" {
		c.ClickHouse.Enabled = true
		c.ClickHouse.Host = v
	}
	if v, ok := lookup("FEED_URL"); ok && v != "" {
		c.Feed.Enabled = true
		c.Feed.URL = v
	}
	if v, ok := lookup("WEBHOOK_URL"); ok && v != "" {
		c.Notify.WebhookURL = v
	}
	return nil
}

// Validate checks struct tags and cross-section requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Snapshot.Backend == SnapshotRedis && !c.Redis.Enabled {
		return fmt.Errorf("snapshot.backend=redis requires redis.enabled")
	}
	switch c.Archive.Backend {
	case ArchiveKafka:
		if !c.Kafka.Enabled {
			return fmt.Errorf("archive.backend=kafka requires kafka.enabled")
		}
	case ArchiveClickHouse:
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("archive.backend=clickhouse requires clickhouse.enabled")
		}
	}
	if c.Feed.Enabled && c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required when the feed is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

func splitHostPort(addr string, defPort int) (string, int, error) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found {
		return host, defPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
