package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
	"github.com/carlosrabelo/stbmon/core/domain/ports"
	"github.com/carlosrabelo/stbmon/core/domain/services"
	"github.com/carlosrabelo/stbmon/core/infrastructure/transport"
	"github.com/carlosrabelo/stbmon/core/platform"
)

// Poll triggers
const (
	TriggerSchedule = "schedule"
	TriggerTrap     = "trap"
	TriggerAPI      = "api"
	TriggerCLI      = "cli"
)

// SnapshotSink receives every snapshot produced by a successful poll
type SnapshotSink interface {
	Publish(snap entities.Snapshot) error
}

// PollObserver is implemented by sinks that also want to see failed polls
type PollObserver interface {
	ObservePoll(device string, elapsed time.Duration, err error)
}

// PollRecord describes one completed poll
type PollRecord struct {
	ID       uuid.UUID         `json:"id"`
	Trigger  string            `json:"trigger"`
	Started  time.Time         `json:"started"`
	Elapsed  time.Duration     `json:"elapsed"`
	Snapshot entities.Snapshot `json:"snapshot"`
	Error    string            `json:"error,omitempty"`
}

// MonitorService orchestrates polling and control of one device. The
// scheduler, the HTTP API and the trap listener share it, so every call that
// touches the session is serialized.
type MonitorService struct {
	mu     sync.Mutex
	config entities.DeviceConfig
	repo   ports.ShellRepository
	stats  ports.StatisticsService
	sinks  []SnapshotSink
	logger *slog.Logger
	now    func() time.Time

	last     *PollRecord
	failures int
}

// NewMonitorService creates a new instance of the monitor service
func NewMonitorService(cfg entities.DeviceConfig, client transport.Client, driver platform.DeviceDriver, logger *slog.Logger, sinks ...SnapshotSink) *MonitorService {
	if logger == nil {
		logger = slog.Default()
	}
	shellAdapter := transport.NewShellAdapter(client)
	stbService := services.NewSTBService(shellAdapter, cfg, driver, logger)
	return newMonitorService(cfg, shellAdapter, stbService, logger, sinks...)
}

func newMonitorService(cfg entities.DeviceConfig, repo ports.ShellRepository, stats ports.StatisticsService, logger *slog.Logger, sinks ...SnapshotSink) *MonitorService {
	return &MonitorService{
		config: cfg,
		repo:   repo,
		stats:  stats,
		sinks:  sinks,
		logger: logger.With("device", cfg.Name),
		now:    time.Now,
	}
}

// Name returns the configured device name
func (m *MonitorService) Name() string {
	return m.config.Name
}

// Config returns the device configuration
func (m *MonitorService) Config() entities.DeviceConfig {
	return m.config
}

// Poll collects one snapshot. A failed poll drops the session so the next
// poll starts with a fresh login.
func (m *MonitorService) Poll(trigger string) (PollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := PollRecord{
		ID:      uuid.New(),
		Trigger: trigger,
		Started: m.now(),
	}
	snap, err := m.stats.Poll()
	record.Elapsed = m.now().Sub(record.Started)
	m.observe(record.Elapsed, err)

	if err != nil {
		m.failures++
		m.repo.Disconnect()
		record.Error = err.Error()
		m.logger.Error("poll failed", "poll_id", record.ID, "trigger", trigger, "error", err)
		return record, fmt.Errorf("poll %s failed: %w", m.config.Name, err)
	}

	m.failures = 0
	record.Snapshot = snap
	m.last = &record
	if m.config.IsDebugEnabled() {
		m.logger.Debug("poll succeeded", "poll_id", record.ID, "trigger", trigger, "elapsed", record.Elapsed)
	}

	for _, sink := range m.sinks {
		if err := sink.Publish(snap); err != nil {
			m.logger.Warn("failed to publish snapshot", "poll_id", record.ID, "error", err)
		}
	}
	return record, nil
}

func (m *MonitorService) observe(elapsed time.Duration, err error) {
	for _, sink := range m.sinks {
		if observer, ok := sink.(PollObserver); ok {
			observer.ObservePoll(m.config.Name, elapsed, err)
		}
	}
}

// Control invokes the requested controls in order
func (m *MonitorService) Control(reqs []entities.ControlRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.stats.ControlProperties(reqs); err != nil {
		m.repo.Disconnect()
		return fmt.Errorf("control %s failed: %w", m.config.Name, err)
	}
	return nil
}

// Controls describes the controls exposed by the device
func (m *MonitorService) Controls() []entities.ControlDescriptor {
	return m.stats.Controls()
}

// Last returns the most recent successful poll
func (m *MonitorService) Last() (PollRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return PollRecord{}, false
	}
	return *m.last, true
}

// ConsecutiveFailures returns the number of failed polls since the last success
func (m *MonitorService) ConsecutiveFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// Run polls immediately and then every interval until ctx is cancelled.
// Poll errors are logged and do not stop the loop.
func (m *MonitorService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer m.Close()

	_, _ = m.Poll(TriggerSchedule)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, _ = m.Poll(TriggerSchedule)
		}
	}
}

// Close drops the device session
func (m *MonitorService) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repo.Disconnect()
}
