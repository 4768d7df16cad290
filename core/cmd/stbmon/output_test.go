package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
)

func TestWriteSnapshot(t *testing.T) {
	cpu, total, used, in, out := 62.5, 2.0, 1.0, 1.5, 0.25
	procs := 1042
	snap := entities.Snapshot{
		Device:            "lobby",
		CollectedAt:       time.Now(),
		KernelVersion:     "2.6.23-rc3",
		MacAddress:        "00:02:02:2A:4B:7C",
		Reboot:            "0",
		CPUPercentage:     &cpu,
		NumberOfProcesses: &procs,
		MemoryTotal:       &total,
		MemoryInUse:       &used,
		NetworkIn:         &in,
		NetworkOut:        &out,
		Controls:          []entities.ControlDescriptor{entities.RebootButton(time.Now())},
	}

	var buf bytes.Buffer
	require.NoError(t, writeSnapshot(&buf, snap))
	output := buf.String()

	for _, expected := range []string{
		"Device:",
		"lobby",
		"2.6.23-rc3",
		"00:02:02:2A:4B:7C",
		"62.5%",
		"1,042",
		"2.0 GiB",
		"1.0 GiB",
		"1.5 MiB/s",
		"256 KiB/s",
		"Reboot",
	} {
		assert.Contains(t, output, expected)
	}
}

func TestWriteSnapshotMissingFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSnapshot(&buf, entities.Snapshot{Device: "lobby", KernelVersion: "Unknown", Reboot: "0"}))
	output := buf.String()

	assert.Contains(t, output, "Unknown")
	assert.Contains(t, output, "n/a")
	assert.NotContains(t, output, "Controls:")
}

func TestFormatRate(t *testing.T) {
	negative := -3.0
	zero := 0.0
	assert.Equal(t, "n/a", formatRate(nil))
	assert.Equal(t, "n/a (counter reset)", formatRate(&negative))
	assert.Equal(t, "0 B/s", formatRate(&zero))
}
