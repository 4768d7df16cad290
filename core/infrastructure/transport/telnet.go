package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/ziutek/telnet"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
)

const (
	// IdleTimeout bounds every read from the device
	IdleTimeout = 10 * time.Second
	BufferSize  = 4096
)

// Conn is the byte stream a TelnetClient drives
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

// DialFunc opens a Conn to addr
type DialFunc func(addr string) (Conn, error)

func dialTelnet(addr string) (Conn, error) {
	conn, err := telnet.DialTimeout("tcp", addr, IdleTimeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// TelnetClient manages a Telnet shell session with a device
type TelnetClient struct {
	conn    Conn
	config  entities.DeviceConfig
	dialect Dialect
	dial    DialFunc
	timeout time.Duration
	state   entities.ConnectionState
	logger  *slog.Logger
}

// NewTelnetClient creates a new Telnet client with the given configuration
func NewTelnetClient(cfg entities.DeviceConfig, dialect Dialect, logger *slog.Logger) *TelnetClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelnetClient{
		config:  cfg,
		dialect: dialect,
		dial:    dialTelnet,
		timeout: IdleTimeout,
		logger:  logger.With("device", cfg.Name, "target", cfg.Target),
	}
}

// Connect dials the device and runs the login handshake
func (tc *TelnetClient) Connect() error {
	if tc.conn != nil {
		return nil
	}
	conn, err := tc.dial(tc.config.Address())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", tc.config.Address(), err)
	}
	tc.conn = conn
	tc.state = entities.StateAuthenticating
	if tc.config.IsDebugEnabled() {
		tc.logger.Debug("connected", "address", tc.config.Address())
	}

	if err := tc.login(); err != nil {
		tc.Disconnect()
		return err
	}
	tc.state = entities.StateReady
	return nil
}

func (tc *TelnetClient) login() error {
	for _, p := range tc.dialect.AuthSequence(tc.config.Username, tc.config.Password) {
		if _, err := tc.readUntil(WaitFor(p.WaitFor), p.WaitFor); err != nil {
			return err
		}
		if err := tc.write(p.SendCmd); err != nil {
			return err
		}
		if tc.config.IsDebugEnabled() {
			sent := strings.TrimSpace(p.SendCmd)
			if p.Secret {
				sent = "********"
			}
			tc.logger.Debug("sent login response", "prompt", p.WaitFor, "sent", sent)
		}
	}

	output, err := tc.readUntil(tc.dialect.LoginClassifier(), tc.dialect.ReadyMarker)
	var fail *failedError
	if errors.As(err, &fail) {
		return &AuthenticationError{Host: tc.config.Target, Output: output}
	}
	return err
}

// failedError is returned by readUntil when the classifier reports Fail
type failedError struct {
	reason string
}

func (e *failedError) Error() string {
	return "device reported " + e.reason
}

// readUntil accumulates device output until the classifier settles. The idle
// timeout restarts with every chunk received.
func (tc *TelnetClient) readUntil(classify Classifier, waiting string) (string, error) {
	buffer := make([]byte, BufferSize)
	var output strings.Builder
	output.Grow(BufferSize)
	for {
		if err := tc.conn.SetReadDeadline(time.Now().Add(tc.timeout)); err != nil {
			return output.String(), fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, err := tc.conn.Read(buffer)
		if n > 0 {
			output.Write(buffer[:n])
			if tc.config.IsRawOutputEnabled() {
				tc.logger.Debug("device output", "chunk", string(buffer[:n]))
			}
			switch verdict := classify(output.String()); verdict.Outcome {
			case Success:
				return output.String(), nil
			case Fail:
				return output.String(), &failedError{reason: verdict.Reason}
			}
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return output.String(), &TimeoutError{
					Host:    tc.config.Target,
					Waiting: waiting,
					Timeout: tc.timeout,
					Output:  output.String(),
					Cause:   err,
				}
			}
			tc.Disconnect()
			return output.String(), fmt.Errorf("read error from %s: %w", tc.config.Target, err)
		}
	}
}

func (tc *TelnetClient) write(line string) error {
	if _, err := tc.conn.Write([]byte(line)); err != nil {
		tc.Disconnect()
		return fmt.Errorf("write error to %s: %w", tc.config.Target, err)
	}
	return nil
}

// Disconnect closes the Telnet connection
func (tc *TelnetClient) Disconnect() {
	if tc.conn != nil {
		tc.conn.Close()
		if tc.config.IsDebugEnabled() {
			tc.logger.Debug("disconnected")
		}
		tc.conn = nil
	}
	tc.state = entities.StateDisconnected
}

// IsConnected reports whether the session completed its handshake
func (tc *TelnetClient) IsConnected() bool {
	return tc.conn != nil && tc.state == entities.StateReady
}

// State returns the current session state
func (tc *TelnetClient) State() entities.ConnectionState {
	return tc.state
}

// ExecuteCommand sends a command and returns the raw response, command echo
// and trailing prompt included.
func (tc *TelnetClient) ExecuteCommand(cmd string) (string, error) {
	if !tc.IsConnected() {
		return "", ErrNotConnected
	}
	if tc.config.IsDebugEnabled() {
		tc.logger.Debug("executing", "command", cmd)
	}
	if err := tc.write(cmd + "\n"); err != nil {
		return "", err
	}
	output, err := tc.readUntil(tc.dialect.CommandClassifier(), tc.dialect.ReadyMarker)
	var fail *failedError
	if errors.As(err, &fail) {
		return "", &CommandError{Host: tc.config.Target, Command: cmd, Response: output}
	}
	if err != nil {
		return "", fmt.Errorf("error executing %s: %w", cmd, err)
	}
	return output, nil
}

// SendCommand writes a command without waiting for its output
func (tc *TelnetClient) SendCommand(cmd string) error {
	if !tc.IsConnected() {
		return ErrNotConnected
	}
	if tc.config.IsDebugEnabled() {
		tc.logger.Debug("sending", "command", cmd)
	}
	return tc.write(cmd + "\n")
}
