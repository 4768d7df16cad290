package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"time"

	expect "github.com/google/goexpect"
	"golang.org/x/crypto/ssh"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
)

// SSHClient manages an SSH shell session with a device. Credentials are
// exchanged by the SSH layer, so only the ready banner is classified.
type SSHClient struct {
	config   entities.DeviceConfig
	dialect  Dialect
	client   *ssh.Client
	expecter *expect.GExpect
	pattern  *regexp.Regexp
	timeout  time.Duration
	state    entities.ConnectionState
	logger   *slog.Logger
	open     func() (*expect.GExpect, error)
}

// NewSSHClient creates a new SSH client with the given configuration
func NewSSHClient(cfg entities.DeviceConfig, dialect Dialect, logger *slog.Logger) *SSHClient {
	if logger == nil {
		logger = slog.Default()
	}
	sc := &SSHClient{
		config:  cfg,
		dialect: dialect,
		pattern: dialect.expectPattern(),
		timeout: IdleTimeout,
		logger:  logger.With("device", cfg.Name, "target", cfg.Target),
	}
	sc.open = sc.openShell
	return sc
}

// Connect opens the SSH connection, starts a shell and waits for the banner
func (sc *SSHClient) Connect() error {
	if sc.IsConnected() {
		return nil
	}
	sc.state = entities.StateAuthenticating
	exp, err := sc.open()
	if err != nil {
		sc.Disconnect()
		return err
	}
	sc.expecter = exp

	output, verdict, err := sc.expect(sc.dialect.LoginClassifier())
	if err != nil {
		sc.Disconnect()
		return err
	}
	if verdict.Outcome != Success {
		sc.Disconnect()
		return &AuthenticationError{Host: sc.config.Target, Output: output}
	}
	sc.state = entities.StateReady
	return nil
}

// openShell dials the device, runs the SSH handshake and spawns an interactive shell
func (sc *SSHClient) openShell() (*expect.GExpect, error) {
	addr := sc.config.Address()
	sshConfig := &ssh.ClientConfig{
		User:            sc.config.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(sc.config.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         sc.timeout,
	}

	dialer := &net.Dialer{Timeout: sc.timeout}
	rawConn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s via SSH: %w", sc.config.Target, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(rawConn, addr, sshConfig)
	if err != nil {
		rawConn.Close()
		if isAuthRejection(err) {
			return nil, &AuthenticationError{Host: sc.config.Target, Output: err.Error()}
		}
		return nil, fmt.Errorf("failed to connect to %s via SSH: %w", sc.config.Target, err)
	}
	sc.client = ssh.NewClient(clientConn, chans, reqs)

	exp, _, err := expect.SpawnSSH(sc.client, sc.timeout, expect.Verbose(sc.config.IsRawOutputEnabled()))
	if err != nil {
		return nil, fmt.Errorf("failed to spawn shell on %s: %w", sc.config.Target, err)
	}
	if sc.config.IsDebugEnabled() {
		sc.logger.Debug("connected via SSH", "address", addr)
	}
	return exp, nil
}

// isAuthRejection reports whether the handshake failed because the server
// refused every offered credential, as opposed to a broken connection.
func isAuthRejection(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

// isExpectTimeout reports whether an expect error is an idle timeout
func isExpectTimeout(err error) bool {
	var te expect.TimeoutError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

func (sc *SSHClient) expect(classify Classifier) (string, Verdict, error) {
	output, _, err := sc.expecter.Expect(sc.pattern, sc.timeout)
	if err != nil && !isExpectTimeout(err) {
		return output, Verdict{}, fmt.Errorf("session with %s lost: %w", sc.config.Target, err)
	}
	if err != nil {
		return output, Verdict{}, &TimeoutError{
			Host:    sc.config.Target,
			Waiting: sc.dialect.ReadyMarker,
			Timeout: sc.timeout,
			Output:  output,
			Cause:   err,
		}
	}
	if sc.config.IsRawOutputEnabled() {
		sc.logger.Debug("device output", "chunk", output)
	}
	return output, classify(output), nil
}

// Disconnect closes the shell and the SSH connection
func (sc *SSHClient) Disconnect() {
	if sc.expecter != nil {
		sc.expecter.Close()
		sc.expecter = nil
	}
	if sc.client != nil {
		sc.client.Close()
		sc.client = nil
		if sc.config.IsDebugEnabled() {
			sc.logger.Debug("disconnected")
		}
	}
	sc.state = entities.StateDisconnected
}

// IsConnected reports whether the shell is ready for commands
func (sc *SSHClient) IsConnected() bool {
	return sc.expecter != nil && sc.state == entities.StateReady
}

// State returns the current session state
func (sc *SSHClient) State() entities.ConnectionState {
	return sc.state
}

// ExecuteCommand sends a command and returns the raw response
func (sc *SSHClient) ExecuteCommand(cmd string) (string, error) {
	if !sc.IsConnected() {
		return "", ErrNotConnected
	}
	if sc.config.IsDebugEnabled() {
		sc.logger.Debug("executing", "command", cmd)
	}
	if err := sc.expecter.Send(cmd + "\n"); err != nil {
		sc.Disconnect()
		return "", fmt.Errorf("failed to send %s: %w", cmd, err)
	}
	output, verdict, err := sc.expect(sc.dialect.CommandClassifier())
	if err != nil {
		if !errors.Is(err, ErrTimeout) {
			sc.Disconnect()
		}
		return "", fmt.Errorf("error executing %s: %w", cmd, err)
	}
	if verdict.Outcome == Fail {
		return "", &CommandError{Host: sc.config.Target, Command: cmd, Response: output}
	}
	return output, nil
}

// SendCommand writes a command without waiting for its output
func (sc *SSHClient) SendCommand(cmd string) error {
	if !sc.IsConnected() {
		return ErrNotConnected
	}
	if err := sc.expecter.Send(cmd + "\n"); err != nil {
		sc.Disconnect()
		return fmt.Errorf("failed to send %s: %w", cmd, err)
	}
	return nil
}
