// Package config loads service settings from the environment, an optional
// .env file and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Environment keys
const (
	EnvHost         = "APP_HOST"
	EnvPort         = "APP_PORT"
	EnvLogLevel     = "LOG_LEVEL"
	EnvFFmpegPath   = "FFMPEG_PATH"
	EnvFFprobePath  = "FFPROBE_PATH"
	EnvWorkDir      = "WORK_DIR"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTTTL       = "JWT_TTL"
	EnvAuthRequired = "AUTH_REQUIRED"
	EnvAPIKeys      = "API_KEYS"
	EnvS3Endpoint   = "S3_ENDPOINT"
	EnvS3Region     = "S3_REGION"
	EnvS3PathStyle  = "S3_PATH_STYLE"
	EnvPubSubName   = "PUBSUB_NAME"
	EnvPubSubTopic  = "PUBSUB_TOPIC"
	EnvDaprGRPCPort = "DAPR_GRPC_PORT"
	EnvDaprBinding  = "DAPR_STORAGE_BINDING"
	EnvLocalFiles   = "ALLOW_LOCAL_FILES"
)

// Defaults
const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8080
	DefaultLogLevel    = "info"
	DefaultJWTTTL      = 24 * time.Hour
	DefaultPubSubTopic = "ffmpeg-chain-progress"
	DefaultDaprPort    = "50001"
)

// Config holds all service settings
type Config struct {
	Host     string
	Port     int
	LogLevel string

	// Binaries; empty means discover on PATH
	FFmpegPath  string
	FFprobePath string

	// WorkDir holds staged inputs and outputs; empty means the system temp dir
	WorkDir string

	// Authentication. Auth is disabled when neither a JWT secret nor API keys
	// are configured.
	JWTSecret    string
	JWTTTL       time.Duration
	AuthRequired bool
	// APIKeys are pre-shared keys as "user:key" pairs
	APIKeys []string

	// AllowLocalFiles lets jobs read and write plain paths on this host
	AllowLocalFiles bool

	// S3 is enabled when a region or endpoint is set
	S3Endpoint  string
	S3Region    string
	S3PathStyle bool

	// Dapr sidecar. Events are published only when PubSubName is set and
	// dapr:// storage is registered only when DaprBinding is set.
	PubSubName   string
	PubSubTopic  string
	DaprGRPCPort string
	DaprBinding  bool
}

// Default returns a Config with every default applied
func Default() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		LogLevel:     DefaultLogLevel,
		JWTTTL:       DefaultJWTTTL,
		PubSubTopic:  DefaultPubSubTopic,
		DaprGRPCPort: DefaultDaprPort,
	}
}

// Load reads an optional .env file, then the environment, then args.
// A missing .env file is not an error.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Could not read .env file")
	}

	cfg := Default()
	if err := cfg.FromEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.ParseFlags(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv overrides fields with the variables that lookup finds
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str(EnvHost, &c.Host)
	str(EnvLogLevel, &c.LogLevel)
	str(EnvFFmpegPath, &c.FFmpegPath)
	str(EnvFFprobePath, &c.FFprobePath)
	str(EnvWorkDir, &c.WorkDir)
	str(EnvJWTSecret, &c.JWTSecret)
	str(EnvS3Endpoint, &c.S3Endpoint)
	str(EnvS3Region, &c.S3Region)
	str(EnvPubSubName, &c.PubSubName)
	str(EnvPubSubTopic, &c.PubSubTopic)
	str(EnvDaprGRPCPort, &c.DaprGRPCPort)

	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Port = port
	}
	if v, ok := lookup(EnvJWTTTL); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvJWTTTL, err)
		}
		c.JWTTTL = ttl
	}
	if v, ok := lookup(EnvAPIKeys); ok && v != "" {
		c.APIKeys = splitList(v)
	}

	for key, dst := range map[string]*bool{
		EnvAuthRequired: &c.AuthRequired,
		EnvS3PathStyle:  &c.S3PathStyle,
		EnvDaprBinding:  &c.DaprBinding,
		EnvLocalFiles:   &c.AllowLocalFiles,
	} {
		if err := boolean(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// ParseFlags overrides fields with command-line flags
func (c *Config) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("ffmpeg-chain", flag.ContinueOnError)
	fs.StringVar(&c.Host, "host", c.Host, "Server host")
	fs.IntVar(&c.Port, "port", c.Port, "Server port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.FFmpegPath, "ffmpeg", c.FFmpegPath, "Path to the ffmpeg binary")
	fs.StringVar(&c.FFprobePath, "ffprobe", c.FFprobePath, "Path to the ffprobe binary")
	fs.StringVar(&c.WorkDir, "work-dir", c.WorkDir, "Directory for staged media")
	fs.BoolVar(&c.AuthRequired, "auth-required", c.AuthRequired, "Reject unauthenticated requests")
	fs.BoolVar(&c.AllowLocalFiles, "allow-local-files", c.AllowLocalFiles, "Allow jobs to use local paths")
	return fs.Parse(args)
}

// Validate checks the loaded settings
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("invalid JWT TTL %s", c.JWTTTL)
	}
	if c.AuthRequired && !c.AuthEnabled() {
		return errors.New("auth required but neither JWT_SECRET nor API_KEYS is set")
	}
	for _, pair := range c.APIKeys {
		if _, _, ok := SplitAPIKey(pair); !ok {
			return fmt.Errorf("invalid API key entry %q, want user:key", pair)
		}
	}
	return nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthEnabled reports whether any credential source is configured
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != "" || len(c.APIKeys) > 0
}

// S3Enabled reports whether an S3 backend should be registered
func (c *Config) S3Enabled() bool {
	return c.S3Region != "" || c.S3Endpoint != ""
}

// SplitAPIKey splits a "user:key" entry
func SplitAPIKey(pair string) (user, key string, ok bool) {
	user, key, ok = strings.Cut(pair, ":")
	if !ok || user == "" || key == "" {
		return "", "", false
	}
	return user, key, true
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
