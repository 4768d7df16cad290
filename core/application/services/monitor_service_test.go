package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
	"github.com/carlosrabelo/stbmon/core/domain/ports"
)

// MockStatisticsService implements the StatisticsService port for testing
type MockStatisticsService struct {
	mu         sync.Mutex
	polls      int
	pollErr    error
	controls   [][]entities.ControlRequest
	controlErr error
}

func (m *MockStatisticsService) Poll() (entities.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	if m.pollErr != nil {
		return entities.Snapshot{}, m.pollErr
	}
	return entities.Snapshot{Device: "lobby", KernelVersion: "2.6.23", Reboot: entities.RebootIdle}, nil
}

func (m *MockStatisticsService) ControlProperty(req entities.ControlRequest) error {
	return m.ControlProperties([]entities.ControlRequest{req})
}

func (m *MockStatisticsService) ControlProperties(reqs []entities.ControlRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controls = append(m.controls, reqs)
	return m.controlErr
}

func (m *MockStatisticsService) Controls() []entities.ControlDescriptor {
	return []entities.ControlDescriptor{entities.RebootButton(time.Time{})}
}

func (m *MockStatisticsService) pollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

// MockShellRepository implements the ShellRepository port for testing
type MockShellRepository struct {
	mu          sync.Mutex
	connected   bool
	disconnects int
}

func (m *MockShellRepository) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockShellRepository) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.disconnects++
}

func (m *MockShellRepository) ExecuteCommand(cmd string) (string, error) {
	return "", nil
}

func (m *MockShellRepository) SendCommand(cmd string) error {
	return nil
}

func (m *MockShellRepository) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

var _ ports.StatisticsService = (*MockStatisticsService)(nil)
var _ ports.ShellRepository = (*MockShellRepository)(nil)

type recordingSink struct {
	published []entities.Snapshot
	observed  []error
	err       error
}

func (s *recordingSink) Publish(snap entities.Snapshot) error {
	s.published = append(s.published, snap)
	return s.err
}

func (s *recordingSink) ObservePoll(device string, elapsed time.Duration, err error) {
	s.observed = append(s.observed, err)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMonitor(stats *MockStatisticsService, repo *MockShellRepository, sinks ...SnapshotSink) *MonitorService {
	cfg := entities.DeviceConfig{Name: "lobby", Target: "10.0.0.1", PollInterval: time.Minute}
	return newMonitorService(cfg, repo, stats, discardLogger(), sinks...)
}

func TestMonitorService_Poll(t *testing.T) {
	stats := &MockStatisticsService{}
	repo := &MockShellRepository{}
	sink := &recordingSink{}
	monitor := newTestMonitor(stats, repo, sink)

	_, ok := monitor.Last()
	assert.False(t, ok)

	record, err := monitor.Poll(TriggerAPI)
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID.String())
	assert.Equal(t, TriggerAPI, record.Trigger)
	assert.Equal(t, "2.6.23", record.Snapshot.KernelVersion)
	assert.Empty(t, record.Error)

	last, ok := monitor.Last()
	require.True(t, ok)
	assert.Equal(t, record.ID, last.ID)

	require.Len(t, sink.published, 1)
	assert.Equal(t, []error{nil}, sink.observed)
	assert.Zero(t, repo.disconnects)
}

func TestMonitorService_PollIDsAreUnique(t *testing.T) {
	monitor := newTestMonitor(&MockStatisticsService{}, &MockShellRepository{})

	first, err := monitor.Poll(TriggerSchedule)
	require.NoError(t, err)
	second, err := monitor.Poll(TriggerSchedule)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestMonitorService_PollFailureDropsSession(t *testing.T) {
	boom := errors.New("timeout waiting for prompt")
	stats := &MockStatisticsService{}
	repo := &MockShellRepository{connected: true}
	sink := &recordingSink{}
	monitor := newTestMonitor(stats, repo, sink)

	_, err := monitor.Poll(TriggerSchedule)
	require.NoError(t, err)

	stats.pollErr = boom
	record, err := monitor.Poll(TriggerSchedule)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, boom.Error(), record.Error)

	assert.False(t, repo.IsConnected())
	assert.Equal(t, 1, repo.disconnects)
	assert.Equal(t, 1, monitor.ConsecutiveFailures())
	assert.Len(t, sink.published, 1, "failed polls are not published")
	assert.Equal(t, []error{nil, boom}, sink.observed)

	last, ok := monitor.Last()
	require.True(t, ok, "last successful poll is kept")
	assert.Empty(t, last.Error)

	stats.pollErr = nil
	_, err = monitor.Poll(TriggerSchedule)
	require.NoError(t, err)
	assert.Zero(t, monitor.ConsecutiveFailures())
}

func TestMonitorService_SinkErrorDoesNotFailPoll(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker unavailable")}
	monitor := newTestMonitor(&MockStatisticsService{}, &MockShellRepository{}, sink)

	_, err := monitor.Poll(TriggerSchedule)
	assert.NoError(t, err)
	assert.Len(t, sink.published, 1)
}

func TestMonitorService_Control(t *testing.T) {
	stats := &MockStatisticsService{}
	repo := &MockShellRepository{}
	monitor := newTestMonitor(stats, repo)

	reqs := []entities.ControlRequest{{Property: "reboot"}}
	require.NoError(t, monitor.Control(reqs))
	assert.Equal(t, [][]entities.ControlRequest{reqs}, stats.controls)

	stats.controlErr = errors.New("broken pipe")
	err := monitor.Control(reqs)
	assert.ErrorContains(t, err, "broken pipe")
	assert.Equal(t, 1, repo.disconnects)
}

func TestMonitorService_Run(t *testing.T) {
	stats := &MockStatisticsService{}
	repo := &MockShellRepository{connected: true}
	monitor := newTestMonitor(stats, repo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- monitor.Run(ctx, 10*time.Millisecond)
	}()

	require.Eventually(t, func() bool { return stats.pollCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, repo.IsConnected())
}

func TestMonitorService_RunRejectsZeroInterval(t *testing.T) {
	monitor := newTestMonitor(&MockStatisticsService{}, &MockShellRepository{})
	err := monitor.Run(context.Background(), 0)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	lobby := newMonitorService(entities.DeviceConfig{Name: "lobby", Target: "10.0.0.1", PollInterval: 10 * time.Millisecond},
		&MockShellRepository{}, &MockStatisticsService{}, discardLogger())
	spa := newMonitorService(entities.DeviceConfig{Name: "spa", Target: "10.0.0.2", PollInterval: 10 * time.Millisecond},
		&MockShellRepository{}, &MockStatisticsService{}, discardLogger())
	registry := NewRegistry(spa, lobby)

	m, ok := registry.Get("spa")
	require.True(t, ok)
	assert.Same(t, spa, m)

	m, ok = registry.ByTarget("10.0.0.1")
	require.True(t, ok)
	assert.Same(t, lobby, m)

	_, ok = registry.Get("bar")
	assert.False(t, ok)

	all := registry.All()
	require.Len(t, all, 2)
	assert.Equal(t, "lobby", all[0].Name())
	assert.Equal(t, "spa", all[1].Name())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, registry.Run(ctx))
}
