// Package config loads tpm2tool settings from a YAML file, the environment
// and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TPM2TOOL"

// Transport kinds.
const (
	TransportDevice    = "device"
	TransportUDS       = "uds"
	TransportTCP       = "tcp"
	TransportSimulator = "simulator"
)

// ErrInvalid is wrapped by all validation errors.
var ErrInvalid = errors.New("invalid configuration")

// Config selects and tunes the TPM transport.
type Config struct {
	Transport       string `mapstructure:"transport"`
	Device          string `mapstructure:"device"`
	CommandAddress  string `mapstructure:"command-address"`
	PlatformAddress string `mapstructure:"platform-address"`
	Locality        uint8  `mapstructure:"locality"`
	LogLevel        string `mapstructure:"log-level"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("transport", TransportDevice)
	v.SetDefault("device", "/dev/tpmrm0")
	v.SetDefault("command-address", "localhost:2321")
	v.SetDefault("platform-address", "localhost:2322")
	v.SetDefault("locality", 0)
	v.SetDefault("log-level", "info")
}

// AddFlags registers the configuration flags on fs and binds them to v.
func AddFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML configuration file")
	fs.String("transport", TransportDevice, "TPM transport: device, uds, tcp or simulator")
	fs.String("device", "/dev/tpmrm0", "TPM device file or unix socket")
	fs.String("command-address", "localhost:2321", "Simulator command port")
	fs.String("platform-address", "localhost:2322", "Simulator platform port")
	fs.Uint8("locality", 0, "Locality for simulator commands")
	fs.String("log-level", "info", "Log level")
	for _, name := range []string{"transport", "device", "command-address", "platform-address", "locality", "log-level"} {
		_ = v.BindPFlag(name, fs.Lookup(name))
	}
}

// Load reads the configuration. Values come from, in increasing priority,
// the defaults, the YAML file at path if path is not empty, the environment
// and any flags bound with AddFlags.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the transport kind, locality and log level.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportDevice, TransportUDS:
		if c.Device == "" {
			return fmt.Errorf("%w: transport %q needs a device path", ErrInvalid, c.Transport)
		}
	case TransportTCP:
		if c.CommandAddress == "" || c.PlatformAddress == "" {
			return fmt.Errorf("%w: transport %q needs command and platform addresses", ErrInvalid, c.Transport)
		}
	case TransportSimulator:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Transport)
	}
	if c.Locality > 4 {
		return fmt.Errorf("%w: locality %d", ErrInvalid, c.Locality)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Logger returns a logger writing to stderr at the configured level.
func (c *Config) Logger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	return l
}
