package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appservices "github.com/carlosrabelo/stbmon/core/application/services"
	"github.com/carlosrabelo/stbmon/core/domain/entities"
)

// DeviceSummary is one entry of the device list
type DeviceSummary struct {
	Name                string     `json:"name"`
	Target              string     `json:"target"`
	Transport           string     `json:"transport"`
	PollInterval        string     `json:"pollInterval"`
	LastPoll            *time.Time `json:"lastPoll,omitempty"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
}

// StatisticsResponse carries the last snapshot of a device
type StatisticsResponse struct {
	Poll       appservices.PollRecord `json:"poll"`
	Statistics map[string]string      `json:"statistics"`
}

// DeviceHandler serves device statistics and controls
type DeviceHandler struct {
	registry *appservices.Registry
}

// NewDeviceHandler creates a device handler
func NewDeviceHandler(registry *appservices.Registry) *DeviceHandler {
	return &DeviceHandler{registry: registry}
}

func (h *DeviceHandler) monitor(w http.ResponseWriter, r *http.Request) (*appservices.MonitorService, bool) {
	name := chi.URLParam(r, "name")
	m, ok := h.registry.Get(name)
	if !ok {
		SendError(w, r, http.StatusNotFound, "NOT_FOUND", "Device "+name+" not found", nil)
	}
	return m, ok
}

// List handles GET /devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	monitors := h.registry.All()
	devices := make([]DeviceSummary, 0, len(monitors))
	for _, m := range monitors {
		cfg := m.Config()
		summary := DeviceSummary{
			Name:                cfg.Name,
			Target:              cfg.Target,
			Transport:           cfg.Transport,
			PollInterval:        cfg.PollInterval.String(),
			ConsecutiveFailures: m.ConsecutiveFailures(),
		}
		if last, ok := m.Last(); ok {
			started := last.Started
			summary.LastPoll = &started
		}
		devices = append(devices, summary)
	}
	SendJSON(w, http.StatusOK, map[string]interface{}{
		"data":  devices,
		"total": len(devices),
	})
}

// Statistics handles GET /devices/{name}/statistics
func (h *DeviceHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	m, ok := h.monitor(w, r)
	if !ok {
		return
	}
	last, ok := m.Last()
	if !ok {
		SendError(w, r, http.StatusNotFound, "NO_DATA", "Device has not been polled yet", nil)
		return
	}
	SendJSON(w, http.StatusOK, StatisticsResponse{Poll: last, Statistics: last.Snapshot.Statistics()})
}

// Poll handles POST /devices/{name}/poll
func (h *DeviceHandler) Poll(w http.ResponseWriter, r *http.Request) {
	m, ok := h.monitor(w, r)
	if !ok {
		return
	}
	record, err := m.Poll(appservices.TriggerAPI)
	if HandleDeviceError(w, r, err) {
		return
	}
	SendJSON(w, http.StatusOK, StatisticsResponse{Poll: record, Statistics: record.Snapshot.Statistics()})
}

// Controls handles GET /devices/{name}/controls
func (h *DeviceHandler) Controls(w http.ResponseWriter, r *http.Request) {
	m, ok := h.monitor(w, r)
	if !ok {
		return
	}
	SendJSON(w, http.StatusOK, m.Controls())
}

// Control handles POST /devices/{name}/controls
func (h *DeviceHandler) Control(w http.ResponseWriter, r *http.Request) {
	m, ok := h.monitor(w, r)
	if !ok {
		return
	}
	reqs, ok := DecodeJSON[[]entities.ControlRequest](w, r)
	if !ok {
		return
	}
	if len(reqs) == 0 {
		SendError(w, r, http.StatusBadRequest, "INVALID_BODY", "At least one control is required", nil)
		return
	}
	if HandleDeviceError(w, r, m.Control(reqs)) {
		return
	}
	SendJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": len(reqs)})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	SendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
