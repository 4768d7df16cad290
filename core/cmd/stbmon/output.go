package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
)

const bytesPerGiB = 1 << 30

const notAvailable = "n/a"

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(15)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func formatPercent(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return humanize.FtoaWithDigits(*v, 1) + "%"
}

func formatGiB(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return humanize.IBytes(uint64(*v * bytesPerGiB))
}

func formatRate(v *float64) string {
	if v == nil {
		return notAvailable
	}
	if *v < 0 {
		return "n/a (counter reset)"
	}
	return humanize.IBytes(uint64(*v*(1<<20))) + "/s"
}

func formatCount(v *int) string {
	if v == nil {
		return notAvailable
	}
	return humanize.Comma(int64(*v))
}

// writeSnapshot prints a snapshot as an aligned two-column table
func writeSnapshot(w io.Writer, snap entities.Snapshot) error {
	mac := snap.MacAddress
	if mac == "" {
		mac = notAvailable
	}
	rows := [][2]string{
		{"Device", snap.Device},
		{"Collected", humanize.Time(snap.CollectedAt)},
		{"Kernel", snap.KernelVersion},
		{"MAC address", mac},
		{"CPU used", formatPercent(snap.CPUPercentage)},
		{"Processes", formatCount(snap.NumberOfProcesses)},
		{"Memory total", formatGiB(snap.MemoryTotal)},
		{"Memory in use", formatGiB(snap.MemoryInUse)},
		{"Network in", formatRate(snap.NetworkIn)},
		{"Network out", formatRate(snap.NetworkOut)},
		{"Reboot", snap.Reboot},
	}
	if len(snap.Controls) > 0 {
		names := make([]string, 0, len(snap.Controls))
		for _, c := range snap.Controls {
			names = append(names, c.Label)
		}
		rows = append(rows, [2]string{"Controls", strings.Join(names, ", ")})
	}

	var b strings.Builder
	for _, row := range rows {
		value := row[1]
		if strings.HasPrefix(value, notAvailable) {
			value = mutedStyle.Render(value)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(row[0]+":"), value))
		b.WriteString("\n")
	}
	_, err := fmt.Fprint(w, b.String())
	return err
}
