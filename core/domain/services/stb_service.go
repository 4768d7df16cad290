package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
	"github.com/carlosrabelo/stbmon/core/domain/ports"
	"github.com/carlosrabelo/stbmon/core/platform"
)

// STBService polls one set-top box and drives its controls. It owns the
// sample state used for throughput, so one instance must be used per device
// session. It is not safe for concurrent use.
type STBService struct {
	shellRepo ports.ShellRepository
	config    entities.DeviceConfig
	driver    platform.DeviceDriver
	logger    *slog.Logger
	samples   entities.SampleState
	now       func() time.Time
}

// NewSTBService creates a new instance of the statistics service
func NewSTBService(shellRepo ports.ShellRepository, config entities.DeviceConfig, driver platform.DeviceDriver, logger *slog.Logger) *STBService {
	if logger == nil {
		logger = slog.Default()
	}
	return &STBService{
		shellRepo: shellRepo,
		config:    config,
		driver:    driver,
		logger:    logger.With("device", config.Name),
		now:       time.Now,
	}
}

func (s *STBService) ensureConnected() error {
	if s.shellRepo.IsConnected() {
		return nil
	}
	if err := s.shellRepo.Connect(); err != nil {
		return err
	}
	// counters from a previous session are not comparable
	s.samples.Reset()
	if s.config.IsDebugEnabled() {
		s.logger.Debug("session established", "target", s.config.Target)
	}
	return nil
}

// Poll runs every diagnostic query and returns a snapshot. Fields whose
// response cannot be parsed are left nil; only a failing command aborts the poll.
func (s *STBService) Poll() (entities.Snapshot, error) {
	if err := s.ensureConnected(); err != nil {
		return entities.Snapshot{}, err
	}

	started := s.now()
	snap := entities.Snapshot{
		Device:      s.config.Name,
		CollectedAt: started,
		Reboot:      entities.RebootIdle,
	}

	cpu, ok, err := s.driver.CPUUsage(s.shellRepo)
	if err != nil {
		return entities.Snapshot{}, fmt.Errorf("cpu query failed: %w", err)
	}
	if ok {
		snap.CPUPercentage = &cpu
	} else {
		s.logger.Warn("unable to parse number in CPU response")
	}

	procs, ok, err := s.driver.ProcessCount(s.shellRepo)
	if err != nil {
		return entities.Snapshot{}, fmt.Errorf("process count query failed: %w", err)
	}
	if ok {
		snap.NumberOfProcesses = &procs
	} else {
		s.logger.Warn("unable to parse integer in processes response")
	}

	kernel, err := s.driver.KernelVersion(s.shellRepo)
	if err != nil {
		return entities.Snapshot{}, fmt.Errorf("kernel query failed: %w", err)
	}
	snap.KernelVersion = kernel

	mem, ok, err := s.driver.Memory(s.shellRepo)
	if err != nil {
		return entities.Snapshot{}, fmt.Errorf("memory query failed: %w", err)
	}
	if ok {
		snap.MemoryTotal = &mem.Total
		snap.MemoryInUse = &mem.Used
	} else {
		s.logger.Warn("unable to parse number in memory response")
	}

	network, err := s.driver.Network(s.shellRepo)
	if err != nil {
		return entities.Snapshot{}, fmt.Errorf("network query failed: %w", err)
	}
	s.applyNetwork(&snap, network)

	snap.Controls = s.Controls()
	if s.config.IsDebugEnabled() {
		s.logger.Debug("poll complete", "elapsed", s.now().Sub(started))
	}
	return snap, nil
}

func (s *STBService) applyNetwork(snap *entities.Snapshot, network entities.NetworkReading) {
	if network.HasMAC {
		snap.MacAddress = network.MacAddress
	} else {
		s.logger.Warn("unable to find MAC address in network response")
	}
	if !network.HasCounters {
		s.logger.Warn("unable to parse number in network response")
		return
	}
	in, out, ok := s.samples.Advance(network.RXBytes, network.TXBytes, s.now())
	if !ok {
		if s.config.IsDebugEnabled() {
			s.logger.Debug("network sample recorded, no previous sample to rate against")
		}
		return
	}
	snap.NetworkIn = &in
	snap.NetworkOut = &out
}

// Controls describes the controls exposed by the device
func (s *STBService) Controls() []entities.ControlDescriptor {
	return []entities.ControlDescriptor{entities.RebootButton(s.now())}
}

// ControlProperty invokes a single control. Unknown names are logged and ignored.
func (s *STBService) ControlProperty(req entities.ControlRequest) error {
	if req.Property != entities.RebootProperty {
		s.logger.Warn("control property is invalid", "property", req.Property)
		return nil
	}
	if err := s.ensureConnected(); err != nil {
		return err
	}
	if err := s.shellRepo.SendCommand(s.driver.RebootCommand()); err != nil {
		return fmt.Errorf("reboot failed: %w", err)
	}
	s.logger.Info("reboot requested", "target", s.config.Target)
	// the device drops the session while restarting
	s.shellRepo.Disconnect()
	s.samples.Reset()
	return nil
}

// ControlProperties invokes controls in order, stopping at the first error
func (s *STBService) ControlProperties(reqs []entities.ControlRequest) error {
	for _, req := range reqs {
		if err := s.ControlProperty(req); err != nil {
			return err
		}
	}
	return nil
}
