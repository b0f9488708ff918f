// Package config loads go-mimic configuration from defaults, an optional
// YAML file and MIMIC_ environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/teslashibe/go-mimic/pkg/pipeline"
	"github.com/teslashibe/go-mimic/pkg/record"
	"github.com/teslashibe/go-mimic/pkg/remote"
	"github.com/teslashibe/go-mimic/pkg/retarget"
	"github.com/teslashibe/go-mimic/pkg/servo"
)

// EnvPrefix prefixes every environment override, e.g. MIMIC_SERVER_PORT.
const EnvPrefix = "MIMIC"

// Config holds application configuration.
type Config struct {
	Log      LogConfig       `mapstructure:"log" json:"log"`
	Server   ServerConfig    `mapstructure:"server" json:"server"`
	Robot    RobotConfig     `mapstructure:"robot" json:"robot"`
	Pipeline pipeline.Config `mapstructure:"pipeline" json:"pipeline"`
	Retarget retarget.Config `mapstructure:"retarget" json:"retarget"`
	Record   record.Config   `mapstructure:"record" json:"record"`
	Remote   remote.Config   `mapstructure:"remote" json:"remote"`
	Servo    servo.Config    `mapstructure:"servo" json:"servo"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"` // "text" or "json"
}

// ServerConfig configures the HTTP and WebSocket server.
type ServerConfig struct {
	Port    string `mapstructure:"port" json:"port"`
	Preview bool   `mapstructure:"preview" json:"preview"` // Broadcast rendered overlay JPEGs to renderers
}

// RobotConfig locates the robot description.
type RobotConfig struct {
	Description string `mapstructure:"description" json:"description"` // URDF path or http(s) URL
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Server:   ServerConfig{Port: "8080"},
		Pipeline: pipeline.DefaultConfig(),
		Retarget: retarget.DefaultConfig(),
		Record:   record.DefaultConfig(),
		Remote:   remote.DefaultConfig(),
		Servo:    servo.DefaultConfig(),
	}
}

// Load reads configuration. path wins over MIMIC_CONFIG; without either,
// ./mimic.yaml is used when present. Env vars override file values.
func Load(path string) (Config, error) {
	v := viper.New()

	if err := setDefaults(v, Default()); err != nil {
		return Config{}, err
	}

	v.SetConfigType("yaml")
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("mimic")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	c := Default()
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// setDefaults registers every leaf of def so env overrides reach nested keys.
func setDefaults(v *viper.Viper, def Config) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("decode defaults: %w", err)
	}
	flatten(v, "", tree)
	return nil
}

func flatten(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := val.(type) {
		case nil:
		case map[string]any:
			if len(val) == 0 {
				v.SetDefault(key, val)
				continue
			}
			flatten(v, key, val)
		default:
			v.SetDefault(key, val)
		}
	}
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Pipeline.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.frame_interval must be positive, got %v", c.Pipeline.FrameInterval))
	}
	if a := c.Retarget.Alpha; a <= 0 || a > 1 {
		errs = append(errs, fmt.Errorf("retarget.alpha must be in (0, 1], got %v", a))
	}
	for _, s := range c.Retarget.Leg.Sides {
		if _, ok := retarget.ParseSide(s); !ok {
			errs = append(errs, fmt.Errorf("retarget.leg.sides: unknown side %q", s))
		}
	}
	for name, r := range c.Retarget.Limits {
		if r.Min > r.Max {
			errs = append(errs, fmt.Errorf("retarget.limits.%s: min %v > max %v", name, r.Min, r.Max))
		}
	}
	return errors.Join(errs...)
}
