package ports

// ShellRepository defines the port for interacting with a device shell
type ShellRepository interface {
	Connect() error
	Disconnect()
	// ExecuteCommand waits for the device prompt and returns the raw response
	ExecuteCommand(cmd string) (string, error)
	// SendCommand writes the command and returns without reading a response
	SendCommand(cmd string) error
	IsConnected() bool
}
