// Package config loads client settings.
//
// Sources, later ones winning:
//   - built-in defaults
//   - a TOML file (optional)
//   - LINECHAT_* environment variables, including ones read from .env
//   - command-line flags, applied by the caller
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/omochice/linechat/internal/frame"
	"github.com/omochice/linechat/internal/transport/tcp"
	"github.com/omochice/linechat/pkg/protocol"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LINECHAT"

// Config is the complete client configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	User      UserConfig      `toml:"user"`
	Transport TransportConfig `toml:"transport"`
	Wire      WireConfig      `toml:"wire"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig is the relay endpoint.
type ServerConfig struct {
	Host string `toml:"host" validate:"required"`
	Port int    `toml:"port" validate:"min=1,max=65535"`
}

// UserConfig is the local identity.
type UserConfig struct {
	Name string `toml:"name" validate:"max=64"`
}

// TransportConfig tunes the connection.
type TransportConfig struct {
	ReadBufferSize int           `toml:"read_buffer_size" split_words:"true" validate:"min=1"`
	MaxFrameSize   int           `toml:"max_frame_size" split_words:"true" validate:"min=0"`
	DialTimeout    time.Duration `toml:"dial_timeout" split_words:"true"`
	WriteTimeout   time.Duration `toml:"write_timeout" split_words:"true"`
}

// WireConfig selects codec behaviour.
type WireConfig struct {
	// EscapeFields percent-encodes '@', '%' and line breaks inside fields.
	// Peers must agree on it.
	EscapeFields bool `toml:"escape_fields" split_words:"true"`
}

// LogConfig controls the client log file.
type LogConfig struct {
	Level string `toml:"level" validate:"oneof=trace debug info warn error disabled"`
	File  string `toml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Transport: TransportConfig{
			ReadBufferSize: tcp.DefaultReadSize,
			MaxFrameSize:   frame.DefaultMaxFrameSize,
			DialTimeout:    5 * time.Second,
			WriteTimeout:   10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(os.TempDir(), "linechat.log"),
		},
	}
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// empty) and the environment. It does not validate; call Validate once flags
// have been applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv exports variables from the given files (".env" when none are
// given) without overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.Codec().ValidAuthor(c.User.Name) {
		return fmt.Errorf("invalid config: user name %q needs wire.escape_fields", c.User.Name)
	}
	return nil
}

// Codec returns the wire codec the settings select.
func (c *Config) Codec() protocol.Codec {
	return protocol.Codec{EscapeFields: c.Wire.EscapeFields}
}

// Address returns host:port of the relay.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
