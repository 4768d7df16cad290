package transport

import "strings"

// Outcome is the result of inspecting the text accumulated so far
type Outcome int

const (
	// Continue means more data is needed
	Continue Outcome = iota
	// Success means the exchange is complete
	Success
	// Fail means the device reported an error
	Fail
)

// Verdict pairs an Outcome with the marker that produced it
type Verdict struct {
	Outcome Outcome
	Reason  string
}

// Classifier inspects accumulated device output after every read chunk.
// It must be a pure function of its input.
type Classifier func(accumulated string) Verdict

// WaitFor completes as soon as the literal prompt shows up.
func WaitFor(prompt string) Classifier {
	return func(accumulated string) Verdict {
		if strings.Contains(accumulated, prompt) {
			return Verdict{Outcome: Success, Reason: prompt}
		}
		return Verdict{Outcome: Continue}
	}
}

// SuccessOrFail checks the failure markers first, in order, and only then
// the success marker. A failure marker wins even when the success marker is
// also present.
func SuccessOrFail(success string, failures ...string) Classifier {
	return func(accumulated string) Verdict {
		for _, failure := range failures {
			if failure != "" && strings.Contains(accumulated, failure) {
				return Verdict{Outcome: Fail, Reason: failure}
			}
		}
		if strings.Contains(accumulated, success) {
			return Verdict{Outcome: Success, Reason: success}
		}
		return Verdict{Outcome: Continue}
	}
}
