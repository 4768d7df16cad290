package entities

// ConnectionState tracks where a shell session is in its lifecycle
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateAuthenticating
	StateReady
)

func (s ConnectionState) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	default:
		return "disconnected"
	}
}
