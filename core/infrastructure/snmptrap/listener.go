package snmptrap

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
	"github.com/carlosrabelo/stbmon/core/infrastructure/config"
)

const (
	DebounceTime = 10 * time.Second // Minimum time between trap-triggered polls of one device

	snmpTrapOID = ".1.3.6.1.6.3.1.1.4.1.0"
)

// PollFunc is invoked with the device name when a trap asks for a poll
type PollFunc func(device string)

// ResolveFunc maps a trap source address to the device configured at it
type ResolveFunc func(source string) (entities.DeviceConfig, bool)

// trapState holds the time of the last accepted trap for debouncing
type trapState struct {
	lastTrapTime time.Time
	mutex        sync.Mutex
}

// Listener receives SNMP traps from the configured devices and turns each
// accepted trap into an immediate poll of the sender.
type Listener struct {
	cfg      config.SNMPConfig
	resolve  ResolveFunc
	poll     PollFunc
	logger   *slog.Logger
	debounce time.Duration
	now      func() time.Time

	statesMu sync.Mutex
	states   map[string]*trapState
}

// NewListener creates a trap listener. Traps whose source resolve does not
// recognise are dropped.
func NewListener(cfg config.SNMPConfig, resolve ResolveFunc, poll PollFunc, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		cfg:      cfg,
		resolve:  resolve,
		poll:     poll,
		logger:   logger.With("component", "snmptrap"),
		debounce: DebounceTime,
		now:      time.Now,
		states:   make(map[string]*trapState),
	}
}

// ListenAndServe blocks receiving traps until ctx is cancelled
func (l *Listener) ListenAndServe(ctx context.Context) error {
	host, portStr, err := net.SplitHostPort(l.cfg.Listen)
	if err != nil {
		return fmt.Errorf("invalid trap listen address %s: %w", l.cfg.Listen, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid trap port %s: %w", portStr, err)
	}

	listener := gosnmp.NewTrapListener()
	listener.Params = &gosnmp.GoSNMP{
		Port:      uint16(port),
		Community: l.cfg.Community,
		Version:   gosnmp.Version2c,
		Timeout:   5 * time.Second,
		Transport: "udp",
	}
	listener.OnNewTrap = l.handleTrap

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	l.logger.Info("listening for traps", "address", net.JoinHostPort(host, portStr))
	if err := listener.Listen(l.cfg.Listen); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("trap listener failed: %w", err)
	}
	return nil
}

func (l *Listener) handleTrap(packet *gosnmp.SnmpPacket, addr *net.UDPAddr) {
	source := addr.IP.String()
	dev, exists := l.resolve(source)
	if !exists {
		l.logger.Warn("trap from unregistered device", "source", source)
		return
	}
	if l.cfg.Community != "" && packet.Community != l.cfg.Community {
		l.logger.Warn("trap community mismatch", "device", dev.Name, "source", source)
		return
	}

	if dev.IsRawOutputEnabled() {
		for _, variable := range packet.Variables {
			l.logger.Debug("trap variable", "device", dev.Name, "oid", variable.Name, "value", fmt.Sprintf("%v", variable.Value))
		}
	}
	if dev.IsDebugEnabled() {
		l.logger.Debug("trap received", "device", dev.Name, "trap", trapName(packet))
	}

	state := l.stateFor(dev.Name)
	state.mutex.Lock()
	now := l.now()
	if !state.lastTrapTime.IsZero() && now.Sub(state.lastTrapTime) < l.debounce {
		state.mutex.Unlock()
		if dev.IsDebugEnabled() {
			l.logger.Debug("ignoring trap due to debounce", "device", dev.Name, "since_last", now.Sub(state.lastTrapTime))
		}
		return
	}
	state.lastTrapTime = now
	state.mutex.Unlock()

	l.poll(dev.Name)
}

func (l *Listener) stateFor(device string) *trapState {
	l.statesMu.Lock()
	defer l.statesMu.Unlock()
	state, exists := l.states[device]
	if !exists {
		state = &trapState{}
		l.states[device] = state
	}
	return state
}

// trapName returns the snmpTrapOID value of a v2c trap, if present
func trapName(packet *gosnmp.SnmpPacket) string {
	for _, variable := range packet.Variables {
		if variable.Name == snmpTrapOID {
			return fmt.Sprintf("%v", variable.Value)
		}
	}
	return ""
}
