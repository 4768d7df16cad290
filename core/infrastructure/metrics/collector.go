package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
)

const namespace = "stbmon"

// Collector exposes the latest snapshot of every device as Prometheus gauges
type Collector struct {
	registry *prometheus.Registry

	cpu        *prometheus.GaugeVec
	processes  *prometheus.GaugeVec
	memTotal   *prometheus.GaugeVec
	memInUse   *prometheus.GaugeVec
	networkIn  *prometheus.GaugeVec
	networkOut *prometheus.GaugeVec
	info       *prometheus.GaugeVec

	pollDuration *prometheus.HistogramVec
	pollFailures *prometheus.CounterVec
	lastSuccess  *prometheus.GaugeVec
}

func gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	c := &Collector{
		registry:   prometheus.NewRegistry(),
		cpu:        gauge("cpu_used_percent", "CPU busy percentage.", "device"),
		processes:  gauge("processes", "Number of lines printed by ps.", "device"),
		memTotal:   gauge("memory_total_gibibytes", "Total memory.", "device"),
		memInUse:   gauge("memory_in_use_gibibytes", "Memory in use.", "device"),
		networkIn:  gauge("network_in_mebibytes_per_second", "eth0 receive rate.", "device"),
		networkOut: gauge("network_out_mebibytes_per_second", "eth0 transmit rate.", "device"),
		info:       gauge("device_info", "Kernel release and MAC address of the device.", "device", "kernel", "mac"),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time taken by a full poll.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"device"}),
		pollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_failures_total",
			Help:      "Polls aborted by a session error.",
		}, []string{"device"}),
		lastSuccess: gauge("last_success_timestamp_seconds", "Unix time of the last successful poll.", "device"),
	}
	c.registry.MustRegister(
		c.cpu, c.processes, c.memTotal, c.memInUse, c.networkIn, c.networkOut, c.info,
		c.pollDuration, c.pollFailures, c.lastSuccess,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func setOrDelete(vec *prometheus.GaugeVec, device string, value *float64) {
	if value == nil {
		vec.DeleteLabelValues(device)
		return
	}
	vec.WithLabelValues(device).Set(*value)
}

// Publish records a snapshot. Metrics that failed to parse are removed so a
// stale value is never reported.
func (c *Collector) Publish(snap entities.Snapshot) error {
	setOrDelete(c.cpu, snap.Device, snap.CPUPercentage)
	setOrDelete(c.memTotal, snap.Device, snap.MemoryTotal)
	setOrDelete(c.memInUse, snap.Device, snap.MemoryInUse)
	setOrDelete(c.networkIn, snap.Device, snap.NetworkIn)
	setOrDelete(c.networkOut, snap.Device, snap.NetworkOut)
	if snap.NumberOfProcesses != nil {
		c.processes.WithLabelValues(snap.Device).Set(float64(*snap.NumberOfProcesses))
	} else {
		c.processes.DeleteLabelValues(snap.Device)
	}

	c.info.DeletePartialMatch(prometheus.Labels{"device": snap.Device})
	c.info.WithLabelValues(snap.Device, snap.KernelVersion, snap.MacAddress).Set(1)
	c.lastSuccess.WithLabelValues(snap.Device).Set(float64(snap.CollectedAt.Unix()))
	return nil
}

// ObservePoll records the outcome of a poll attempt
func (c *Collector) ObservePoll(device string, elapsed time.Duration, err error) {
	c.pollDuration.WithLabelValues(device).Observe(elapsed.Seconds())
	if err != nil {
		c.pollFailures.WithLabelValues(device).Inc()
	}
}
