package amino

import (
	"github.com/carlosrabelo/stbmon/core/domain/entities"
	"github.com/carlosrabelo/stbmon/core/domain/ports"
	"github.com/carlosrabelo/stbmon/core/infrastructure/transport"
)

const driverName = "amino"

// Shell literals of the AmiNET firmware
const (
	LoginPrompt    = "AMINET login: "
	PasswordPrompt = "Password: "
	ReadyMarker    = "[root@AMINET]# \n"
	LoginFailure   = "Login incorrect"
	NotFound       = "not found"

	// PromptMarker is the part of ReadyMarker that signals completion. The
	// device does not always flush the trailing space and newline before idling.
	PromptMarker = "[root@AMINET]"
)

// Diagnostic commands issued verbatim
const (
	CmdKernelRelease = "uname -r"
	CmdCPUUsage      = "top -bn1"
	CmdNetwork       = "ifconfig eth0"
	CmdMemory        = "cat /proc/meminfo"
	CmdNumProcesses  = "ps | wc -l"
	CmdReboot        = "reboot"
)

// networkRetries bounds how often ifconfig is re-issued when the first
// response carries no RX counter.
const networkRetries = 1

// Driver implements the DeviceDriver behaviour for Amino set-top boxes.
type Driver struct{}

// New creates a new Amino driver instance.
func New() *Driver {
	return &Driver{}
}

// Name returns the canonical platform identifier.
func (d *Driver) Name() string {
	return driverName
}

// Dialect returns the login and framing literals of the AmiNET shell.
func (d *Driver) Dialect() transport.Dialect {
	return transport.Dialect{
		LoginPrompt:    LoginPrompt,
		PasswordPrompt: PasswordPrompt,
		ReadyMarker:    PromptMarker,
		LoginFailure:   LoginFailure,
		NotFound:       NotFound,
	}
}

func (d *Driver) run(repo ports.ShellRepository, cmd string) (string, error) {
	output, err := repo.ExecuteCommand(cmd)
	if err != nil {
		return "", err
	}
	return StripANSI(output), nil
}

// CPUUsage returns the busy CPU percentage.
func (d *Driver) CPUUsage(repo ports.ShellRepository) (float64, bool, error) {
	output, err := d.run(repo, CmdCPUUsage)
	if err != nil {
		return 0, false, err
	}
	used, ok := ParseCPUUsage(output)
	return used, ok, nil
}

// ProcessCount returns the number of lines printed by ps.
func (d *Driver) ProcessCount(repo ports.ShellRepository) (int, bool, error) {
	output, err := d.run(repo, CmdNumProcesses)
	if err != nil {
		return 0, false, err
	}
	count, ok := ParseProcessCount(output)
	return count, ok, nil
}

// KernelVersion returns the running kernel release or UnknownKernel.
func (d *Driver) KernelVersion(repo ports.ShellRepository) (string, error) {
	output, err := d.run(repo, CmdKernelRelease)
	if err != nil {
		return "", err
	}
	return ParseKernelVersion(output), nil
}

// Memory returns total and used memory.
func (d *Driver) Memory(repo ports.ShellRepository) (entities.MemoryReading, bool, error) {
	output, err := d.run(repo, CmdMemory)
	if err != nil {
		return entities.MemoryReading{}, false, err
	}
	total, used, ok := ParseMemory(output)
	return entities.MemoryReading{Total: total, Used: used}, ok, nil
}

// Network returns the eth0 hardware address and byte counters. The device
// sometimes answers the first ifconfig with a truncated response, so the
// query is repeated up to networkRetries times when the RX counter is missing
// altogether. A counter that is present but unparsable is not retried.
func (d *Driver) Network(repo ports.ShellRepository) (entities.NetworkReading, error) {
	output, err := d.run(repo, CmdNetwork)
	if err != nil {
		return entities.NetworkReading{}, err
	}
	for attempt := 0; attempt < networkRetries; attempt++ {
		if _, found := regexFind(output, rxBytesRegex); found {
			break
		}
		output, err = d.run(repo, CmdNetwork)
		if err != nil {
			return entities.NetworkReading{}, err
		}
	}

	var reading entities.NetworkReading
	reading.MacAddress, reading.HasMAC = ParseMACAddress(output)
	rx, rxOK := ParseRXBytes(output)
	tx, txOK := ParseTXBytes(output)
	if rxOK && txOK {
		reading.RXBytes = rx
		reading.TXBytes = tx
		reading.HasCounters = true
	}
	return reading, nil
}

// RebootCommand returns the command that restarts the device.
func (d *Driver) RebootCommand() string {
	return CmdReboot
}
