package amino

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// UnknownKernel is reported when uname output has no version line
	UnknownKernel = "Unknown"
	lineEnding    = "\r\n"
	kibPerGiB     = 1048576.0
)

var (
	cpuIdleRegex      = regexp.MustCompile(`(\d+\.\d+)%(?:\s+)?idle`)
	rxBytesRegex      = regexp.MustCompile(`RX bytes:\s?(\d+)`)
	txBytesRegex      = regexp.MustCompile(`TX bytes:\s?(\d+)`)
	macAddressRegex   = regexp.MustCompile(`HWaddr ([\dA-F:]+)`)
	memTotalRegex     = regexp.MustCompile(`MemTotal:\s+(\d+)`)
	memFreeRegex      = regexp.MustCompile(`MemFree:\s+(\d+)`)
	processCountRegex = regexp.MustCompile(`(\d+)`)
	ansiRegex         = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)
)

// StripANSI removes terminal escape sequences the busybox shell may emit.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// regexFind returns the first capture group of the first match.
func regexFind(output string, re *regexp.Regexp) (string, bool) {
	match := re.FindStringSubmatch(output)
	if len(match) < 2 {
		return "", false
	}
	return match[1], true
}

// ParseKernelVersion returns the second line of the uname response, the first
// being the command echo. It never fails: short responses yield UnknownKernel.
func ParseKernelVersion(output string) string {
	lines := strings.Split(output, lineEnding)
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) >= 2 {
		return lines[1]
	}
	return UnknownKernel
}

// ParseCPUUsage returns the busy percentage derived from top's idle figure.
func ParseCPUUsage(output string) (float64, bool) {
	raw, ok := regexFind(output, cpuIdleRegex)
	if !ok {
		return 0, false
	}
	idle, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return 100.0 - idle, true
}

// ParseProcessCount returns the first integer in the ps | wc -l response.
func ParseProcessCount(output string) (int, bool) {
	raw, ok := regexFind(output, processCountRegex)
	if !ok {
		return 0, false
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return count, true
}

// ParseMemory returns total and used memory in GiB from /proc/meminfo.
func ParseMemory(output string) (total, used float64, ok bool) {
	rawTotal, found := regexFind(output, memTotalRegex)
	if !found {
		return 0, 0, false
	}
	rawFree, found := regexFind(output, memFreeRegex)
	if !found {
		return 0, 0, false
	}
	totalKiB, err := strconv.ParseFloat(rawTotal, 64)
	if err != nil {
		return 0, 0, false
	}
	freeKiB, err := strconv.ParseFloat(rawFree, 64)
	if err != nil {
		return 0, 0, false
	}
	return totalKiB / kibPerGiB, (totalKiB - freeKiB) / kibPerGiB, true
}

// ParseMACAddress returns the hardware address reported by ifconfig.
func ParseMACAddress(output string) (string, bool) {
	return regexFind(output, macAddressRegex)
}

// ParseRXBytes returns the received byte counter reported by ifconfig.
func ParseRXBytes(output string) (int64, bool) {
	return parseCounter(output, rxBytesRegex)
}

// ParseTXBytes returns the transmitted byte counter reported by ifconfig.
func ParseTXBytes(output string) (int64, bool) {
	return parseCounter(output, txBytesRegex)
}

func parseCounter(output string, re *regexp.Regexp) (int64, bool) {
	raw, ok := regexFind(output, re)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
