package entities

// MemoryReading is the parsed /proc/meminfo figure, in GiB
type MemoryReading struct {
	Total float64
	Used  float64
}

// NetworkReading is the parsed interface status. Fields are independently
// optional: a response may carry the MAC address but no counters.
type NetworkReading struct {
	MacAddress  string
	HasMAC      bool
	RXBytes     int64
	TXBytes     int64
	HasCounters bool
}
