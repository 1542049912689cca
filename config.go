package boost

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

// Config for a Client. All timeouts and intervals are in seconds, all speed
// limits are in KiB/s with zero meaning unlimited.
type Config struct {
	Port               int           `yaml:"port" validate:"min=0,max=65535"`
	Tracker            TrackerConfig `yaml:"tracker"`
	Peer               PeerConfig    `yaml:"peer"`
	SpeedLimitDownload int           `yaml:"speed_limit_download" validate:"min=0"`
	SpeedLimitUpload   int           `yaml:"speed_limit_upload" validate:"min=0"`
}

// TrackerConfig has the announce settings of a Client.
type TrackerConfig struct {
	Timeout     int `yaml:"timeout" validate:"required,min=1"`
	StopTimeout int `yaml:"stop_timeout" validate:"required,min=1"`
	MinInterval int `yaml:"min_interval" validate:"required,min=1"`
	NumWant     int `yaml:"num_want" validate:"required,min=1"`
}

// PeerConfig has the connection settings of a Client.
type PeerConfig struct {
	MaxConnections   int `yaml:"max_connections" validate:"required,min=1,max=200"`
	DialTimeout      int `yaml:"dial_timeout" validate:"required,min=1"`
	HandshakeTimeout int `yaml:"handshake_timeout" validate:"required,min=1"`
}

// DefaultConfig is used as the base when loading a config file. Use it
// directly to run a Client with sensible defaults.
var DefaultConfig = Config{
	Port: 6881,
	Tracker: TrackerConfig{
		Timeout:     30,
		StopTimeout: 5,
		MinInterval: 60,
		NumWant:     50,
	},
	Peer: PeerConfig{
		MaxConnections:   50,
		DialTimeout:      5,
		HandshakeTimeout: 10,
	},
}

// LoadConfig reads a YAML config from the file at the path. Keys that are
// absent from the file keep their DefaultConfig value. A missing file is not
// an error; the defaults are returned.
func LoadConfig(filename string) (*Config, error) {
	c := DefaultConfig
	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the config values against their constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func (c *TrackerConfig) timeout() time.Duration     { return time.Duration(c.Timeout) * time.Second }
func (c *TrackerConfig) stopTimeout() time.Duration { return time.Duration(c.StopTimeout) * time.Second }
func (c *TrackerConfig) minInterval() time.Duration { return time.Duration(c.MinInterval) * time.Second }

func (c *PeerConfig) dialTimeout() time.Duration { return time.Duration(c.DialTimeout) * time.Second }
func (c *PeerConfig) handshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeout) * time.Second
}
