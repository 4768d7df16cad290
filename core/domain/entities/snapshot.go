package entities

import "time"

// RebootIdle is the value reported for the reboot button while no reboot is in progress.
const RebootIdle = "0"

// Snapshot is the set of metrics produced by one poll. Pointer fields are
// nil when the corresponding response could not be parsed.
type Snapshot struct {
	Device        string    `json:"device"`
	CollectedAt   time.Time `json:"collectedAt"`
	KernelVersion string    `json:"kernelVersion"`
	MacAddress    string    `json:"macAddress"`
	Reboot        string    `json:"reboot"`

	CPUPercentage     *float64 `json:"cpuPercentage,omitempty"`
	NumberOfProcesses *int     `json:"numberOfProcesses,omitempty"`
	MemoryTotal       *float64 `json:"memoryTotal,omitempty"` // GiB
	MemoryInUse       *float64 `json:"memoryInUse,omitempty"` // GiB
	NetworkIn         *float64 `json:"networkIn,omitempty"`   // MiB/s
	NetworkOut        *float64 `json:"networkOut,omitempty"`  // MiB/s

	Controls []ControlDescriptor `json:"controls"`
}

// Statistics returns the string-valued statistics in the layout consumed by
// monitoring front-ends.
func (s Snapshot) Statistics() map[string]string {
	return map[string]string{
		"kernelVersion": s.KernelVersion,
		"macAddress":    s.MacAddress,
		"reboot":        s.Reboot,
	}
}
