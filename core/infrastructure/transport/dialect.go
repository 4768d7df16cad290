package transport

import (
	"regexp"
	"strings"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
)

// Dialect holds the literals a device family uses for login and command framing
type Dialect struct {
	LoginPrompt    string
	PasswordPrompt string
	ReadyMarker    string
	LoginFailure   string
	NotFound       string
}

// AuthSequence returns the prompt/response pairs for a username/password login
func (d Dialect) AuthSequence(username, password string) []entities.AuthPrompt {
	return []entities.AuthPrompt{
		{WaitFor: d.LoginPrompt, SendCmd: username + "\n"},
		{WaitFor: d.PasswordPrompt, SendCmd: password + "\n", Secret: true},
	}
}

// LoginClassifier classifies the banner that follows the password
func (d Dialect) LoginClassifier() Classifier {
	return SuccessOrFail(d.ReadyMarker, d.LoginFailure)
}

// CommandClassifier classifies the output of a command
func (d Dialect) CommandClassifier() Classifier {
	return SuccessOrFail(d.ReadyMarker, d.NotFound)
}

// expectPattern matches whichever marker arrives first, for expect-driven sessions
func (d Dialect) expectPattern() *regexp.Regexp {
	var alternatives []string
	for _, marker := range []string{d.LoginFailure, d.NotFound, d.ReadyMarker} {
		if marker != "" {
			alternatives = append(alternatives, regexp.QuoteMeta(marker))
		}
	}
	return regexp.MustCompile(strings.Join(alternatives, "|"))
}
