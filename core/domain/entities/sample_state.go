package entities

import "time"

const bytesPerMiB = 1048576.0

// SampleState remembers the interface counters from the previous poll so the
// next poll can report throughput.
type SampleState struct {
	rx   int64
	tx   int64
	when time.Time
}

// HasSample reports whether a previous sample has been recorded.
func (s *SampleState) HasSample() bool {
	return !s.when.IsZero()
}

// Advance records the current counters and returns the rates in MiB/s since
// the previous sample. ok is false on the first sample and when less than a
// millisecond has passed since the previous one. Counter resets are not
// corrected and yield meaningless rates.
func (s *SampleState) Advance(rx, tx int64, now time.Time) (in, out float64, ok bool) {
	if s.HasSample() {
		if ms := now.Sub(s.when).Milliseconds(); ms > 0 {
			elapsed := float64(ms) / 1000
			in = float64(rx-s.rx) / (bytesPerMiB * elapsed)
			out = float64(tx-s.tx) / (bytesPerMiB * elapsed)
			ok = true
		}
	}
	s.rx = rx
	s.tx = tx
	s.when = now
	return in, out, ok
}

// Reset forgets the previous sample.
func (s *SampleState) Reset() {
	*s = SampleState{}
}
