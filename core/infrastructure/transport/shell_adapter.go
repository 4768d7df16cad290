package transport

import (
	"github.com/carlosrabelo/stbmon/core/domain/entities"
)

// ShellAdapter implements the ShellRepository port on top of a transport Client
type ShellAdapter struct {
	client Client
}

// NewShellAdapter creates a new shell adapter
func NewShellAdapter(client Client) *ShellAdapter {
	return &ShellAdapter{
		client: client,
	}
}

// Connect connects to the device and logs in
func (s *ShellAdapter) Connect() error {
	return s.client.Connect()
}

// Disconnect disconnects from the device
func (s *ShellAdapter) Disconnect() {
	s.client.Disconnect()
}

// ExecuteCommand executes a command and waits for the prompt
func (s *ShellAdapter) ExecuteCommand(cmd string) (string, error) {
	return s.client.ExecuteCommand(cmd)
}

// SendCommand writes a command without waiting for output
func (s *ShellAdapter) SendCommand(cmd string) error {
	return s.client.SendCommand(cmd)
}

// IsConnected checks if the session is ready
func (s *ShellAdapter) IsConnected() bool {
	return s.client.IsConnected()
}

// State reports the session state
func (s *ShellAdapter) State() entities.ConnectionState {
	return s.client.State()
}

// Client is the behaviour shared by the Telnet and SSH sessions
type Client interface {
	Connect() error
	Disconnect()
	ExecuteCommand(cmd string) (string, error)
	SendCommand(cmd string) error
	IsConnected() bool
	State() entities.ConnectionState
}
