package platform

import (
	"fmt"
	"strings"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
	"github.com/carlosrabelo/stbmon/core/domain/ports"
	"github.com/carlosrabelo/stbmon/core/infrastructure/transport"
	"github.com/carlosrabelo/stbmon/core/platform/amino"
)

// DeviceDriver defines the behaviour required to support a device family.
// Query methods return an error only when the command itself failed; a
// response that could not be parsed is reported through the ok flag.
type DeviceDriver interface {
	Name() string

	// Dialect returns the login and command framing literals for this platform
	Dialect() transport.Dialect

	CPUUsage(repo ports.ShellRepository) (float64, bool, error)
	ProcessCount(repo ports.ShellRepository) (int, bool, error)
	KernelVersion(repo ports.ShellRepository) (string, error)
	Memory(repo ports.ShellRepository) (entities.MemoryReading, bool, error)
	Network(repo ports.ShellRepository) (entities.NetworkReading, error)

	RebootCommand() string
}

var registry = []DeviceDriver{
	amino.New(),
}

// Get returns a driver by normalized platform name.
func Get(name string) (DeviceDriver, error) {
	normalized := normalizeName(name)
	for _, driver := range registry {
		if driver.Name() == normalized {
			return driver, nil
		}
	}
	return nil, fmt.Errorf("unknown device platform: %s", name)
}

// Available returns all registered drivers.
func Available() []DeviceDriver {
	out := make([]DeviceDriver, len(registry))
	copy(out, registry)
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
