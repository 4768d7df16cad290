package entities

import (
	"net"
	"strconv"
	"time"
)

// DeviceConfig defines the configuration for a single set-top box
type DeviceConfig struct {
	Name           string        `yaml:"name" validate:"required"`
	Target         string        `yaml:"target" validate:"required,hostname|ip"`
	Port           int           `yaml:"port" validate:"gte=0,lte=65535"`
	Transport      string        `yaml:"transport" validate:"omitempty,oneof=telnet ssh"`
	Platform       string        `yaml:"platform"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	VerbosityLevel int           `yaml:"-"`
}

// Address returns the host:port pair used to dial the device
func (dc DeviceConfig) Address() string {
	port := dc.Port
	if port == 0 {
		port = dc.DefaultPort()
	}
	return net.JoinHostPort(dc.Target, strconv.Itoa(port))
}

// DefaultPort returns the well-known port for the configured transport
func (dc DeviceConfig) DefaultPort() int {
	if dc.Transport == "ssh" {
		return 22
	}
	return 23
}

// IsDebugEnabled returns true if debug logs are enabled
func (dc DeviceConfig) IsDebugEnabled() bool {
	return dc.VerbosityLevel == 1 || dc.VerbosityLevel == 3
}

// IsRawOutputEnabled returns true if raw device output is enabled
func (dc DeviceConfig) IsRawOutputEnabled() bool {
	return dc.VerbosityLevel == 2 || dc.VerbosityLevel == 3
}
