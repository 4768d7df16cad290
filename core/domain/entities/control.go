package entities

import "time"

// RebootProperty is the only control name understood by the device.
const RebootProperty = "reboot"

// ControlRequest names a control to invoke on the device
type ControlRequest struct {
	Property string `json:"property"`
	Value    string `json:"value,omitempty"`
}

// ControlDescriptor describes a button-style control exposed with each snapshot
type ControlDescriptor struct {
	Name         string        `json:"name"`
	Label        string        `json:"label"`
	LabelPressed string        `json:"labelPressed"`
	GracePeriod  time.Duration `json:"gracePeriod"`
	Value        string        `json:"value"`
	Timestamp    time.Time     `json:"timestamp"`
}

// RebootButton returns the descriptor for the reboot control as of now.
func RebootButton(now time.Time) ControlDescriptor {
	return ControlDescriptor{
		Name:         RebootProperty,
		Label:        "Reboot",
		LabelPressed: "Rebooting...",
		GracePeriod:  10 * time.Second,
		Value:        RebootIdle,
		Timestamp:    now,
	}
}
