package snmptrap

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
	"github.com/carlosrabelo/stbmon/core/infrastructure/config"
)

func newTestListener(polled *[]string) (*Listener, *time.Time) {
	devices := map[string]entities.DeviceConfig{
		"10.0.0.1": {Name: "lobby", Target: "10.0.0.1"},
		"10.0.0.2": {Name: "spa", Target: "10.0.0.2"},
	}
	resolve := func(source string) (entities.DeviceConfig, bool) {
		dev, ok := devices[source]
		return dev, ok
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewListener(config.SNMPConfig{Listen: ":9162", Community: "public"}, resolve, func(device string) {
		*polled = append(*polled, device)
	}, logger)
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func trapFrom(community string) *gosnmp.SnmpPacket {
	return &gosnmp.SnmpPacket{
		Community: community,
		Version:   gosnmp.Version2c,
		Variables: []gosnmp.SnmpPDU{
			{Name: ".1.3.6.1.2.1.1.3.0", Type: gosnmp.TimeTicks, Value: uint32(1234)},
			{Name: snmpTrapOID, Type: gosnmp.ObjectIdentifier, Value: ".1.3.6.1.6.3.1.1.5.3"},
		},
	}
}

func addr(ip string) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(ip), Port: 40000}
}

func TestHandleTrapTriggersPoll(t *testing.T) {
	var polled []string
	l, _ := newTestListener(&polled)

	l.handleTrap(trapFrom("public"), addr("10.0.0.2"))
	assert.Equal(t, []string{"spa"}, polled)
}

func TestHandleTrapIgnoresUnknownSources(t *testing.T) {
	var polled []string
	l, _ := newTestListener(&polled)

	l.handleTrap(trapFrom("public"), addr("192.168.1.50"))
	assert.Empty(t, polled)
}

func TestHandleTrapChecksCommunity(t *testing.T) {
	var polled []string
	l, _ := newTestListener(&polled)

	l.handleTrap(trapFrom("private"), addr("10.0.0.1"))
	assert.Empty(t, polled)
}

func TestHandleTrapDebounce(t *testing.T) {
	var polled []string
	l, clock := newTestListener(&polled)

	l.handleTrap(trapFrom("public"), addr("10.0.0.1"))
	*clock = clock.Add(3 * time.Second)
	l.handleTrap(trapFrom("public"), addr("10.0.0.1"))
	l.handleTrap(trapFrom("public"), addr("10.0.0.2"))
	assert.Equal(t, []string{"lobby", "spa"}, polled, "debounce is per device")

	*clock = clock.Add(DebounceTime)
	l.handleTrap(trapFrom("public"), addr("10.0.0.1"))
	assert.Equal(t, []string{"lobby", "spa", "lobby"}, polled)
}

func TestTrapName(t *testing.T) {
	assert.Equal(t, ".1.3.6.1.6.3.1.1.5.3", trapName(trapFrom("public")))
	assert.Empty(t, trapName(&gosnmp.SnmpPacket{}))
}
