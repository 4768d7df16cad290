package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
	"github.com/carlosrabelo/stbmon/core/platform"
)

// DefaultPollInterval is used when neither the global section nor the device sets one
const DefaultPollInterval = 60 * time.Second

// DefaultPlatform is the device family assumed when none is configured
const DefaultPlatform = "amino"

// DefaultListen is the HTTP API address used when none is configured
const DefaultListen = ":8080"

// HTTPConfig configures the statistics and control API
type HTTPConfig struct {
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

// MQTTConfig configures snapshot publishing. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker" validate:"omitempty,url"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Enabled reports whether a broker is configured
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// SNMPConfig configures the trap listener. An empty listen address disables it.
type SNMPConfig struct {
	Listen    string `yaml:"listen" validate:"omitempty,hostname_port"`
	Community string `yaml:"community"`
}

// Enabled reports whether the trap listener should run
func (s SNMPConfig) Enabled() bool {
	return s.Listen != ""
}

// Config defines the global configuration
type Config struct {
	Transport    string                  `yaml:"transport" validate:"omitempty,oneof=telnet ssh"`
	Platform     string                  `yaml:"platform"`
	Port         int                     `yaml:"port" validate:"gte=0,lte=65535"`
	Username     string                  `yaml:"username"`
	Password     string                  `yaml:"password"`
	PollInterval time.Duration           `yaml:"poll_interval" validate:"gte=0"`
	HTTP         HTTPConfig              `yaml:"http"`
	MQTT         MQTTConfig              `yaml:"mqtt"`
	SNMP         SNMPConfig              `yaml:"snmp"`
	Devices      []entities.DeviceConfig `yaml:"devices" validate:"dive"`
}

var validate = validator.New()

// Device returns the device whose name or target matches key
func (c *Config) Device(key string) (entities.DeviceConfig, bool) {
	for _, dev := range c.Devices {
		if dev.Name == key || dev.Target == key {
			return dev, true
		}
	}
	return entities.DeviceConfig{}, false
}

// Load loads and validates configuration from a YAML file. Devices inherit
// unset transport, port, credentials and poll interval from the global
// section. When target is set only the matching device keeps verbosityLevel.
func Load(yamlFile, target string, verbosityLevel int) (*Config, error) {
	data, err := os.ReadFile(yamlFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file %s: %w", yamlFile, err)
	}
	return Parse(data, target, verbosityLevel)
}

// Parse is Load without the file read
func Parse(data []byte, target string, verbosityLevel int) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if cfg.Transport == "" {
		cfg.Transport = "telnet"
	}
	cfg.Platform = strings.ToLower(strings.TrimSpace(cfg.Platform))
	if cfg.Platform == "" {
		cfg.Platform = DefaultPlatform
	}
	if _, err := platform.Get(cfg.Platform); err != nil {
		return nil, err
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = DefaultListen
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "stbmon"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "stbmon"
	}
	if cfg.SNMP.Community == "" {
		cfg.SNMP.Community = "public"
	}

	if err := validateStruct(&cfg); err != nil {
		return nil, err
	}

	debug := verbosityLevel == 1 || verbosityLevel == 3
	if debug {
		slog.Debug("global values", "platform", cfg.Platform, "transport", cfg.Transport, "port", cfg.Port, "poll_interval", cfg.PollInterval, "devices", len(cfg.Devices))
	}

	if len(cfg.Devices) == 0 {
		return nil, fmt.Errorf("no devices defined in the YAML configuration")
	}

	seen := make(map[string]struct{}, len(cfg.Devices))
	targets := make(map[string]string, len(cfg.Devices))
	for i, dev := range cfg.Devices {
		deviceVerbosity := verbosityLevel
		if target != "" && dev.Target != target && dev.Name != target {
			deviceVerbosity = 0
		}

		if _, dup := seen[dev.Name]; dup {
			return nil, fmt.Errorf("device name %s is defined more than once", dev.Name)
		}
		seen[dev.Name] = struct{}{}

		// One session per box: a target shared by two entries would be
		// driven concurrently and trap routing would be ambiguous.
		host := strings.ToLower(strings.TrimSpace(dev.Target))
		if other, dup := targets[host]; dup {
			return nil, fmt.Errorf("device target %s is defined more than once (%s and %s)", dev.Target, other, dev.Name)
		}
		targets[host] = dev.Name

		dev.Transport = strings.ToLower(strings.TrimSpace(dev.Transport))
		if dev.Transport == "" {
			dev.Transport = cfg.Transport
		}
		dev.Platform = strings.ToLower(strings.TrimSpace(dev.Platform))
		if dev.Platform == "" {
			dev.Platform = cfg.Platform
		}
		if _, err := platform.Get(dev.Platform); err != nil {
			return nil, fmt.Errorf("invalid platform for device %s: %w", dev.Name, err)
		}
		if dev.Port == 0 && dev.Transport == cfg.Transport {
			dev.Port = cfg.Port
		}
		if dev.Username == "" {
			dev.Username = cfg.Username
		}
		if dev.Password == "" {
			dev.Password = cfg.Password
		}
		if dev.PollInterval == 0 {
			dev.PollInterval = cfg.PollInterval
		}
		if dev.Username == "" {
			return nil, fmt.Errorf("username is required for device %s", dev.Name)
		}
		if dev.Password == "" {
			return nil, fmt.Errorf("password is required for device %s", dev.Name)
		}
		dev.VerbosityLevel = deviceVerbosity

		if dev.IsDebugEnabled() {
			slog.Debug("final device configuration", "device", dev.Name, "target", dev.Target, "address", dev.Address(), "transport", dev.Transport, "poll_interval", dev.PollInterval)
		}
		cfg.Devices[i] = dev
	}

	return &cfg, nil
}

func validateStruct(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	messages := make([]string, len(verrs))
	for i, e := range verrs {
		messages[i] = formatValidationMessage(e)
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}

func formatValidationMessage(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname|ip":
		return fmt.Sprintf("%s must be a hostname or IP address", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a host:port pair", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}
