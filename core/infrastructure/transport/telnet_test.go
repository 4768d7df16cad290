package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
)

type step struct {
	send   string
	recv   bool
	hangup bool
}

func send(s string) step { return step{send: s} }
func recv() step         { return step{recv: true} }
func hangup() step       { return step{hangup: true} }

// runDevice plays a scripted device on the server side of a pipe and reports
// every line the client wrote.
func runDevice(server net.Conn, steps []step) <-chan string {
	received := make(chan string, 16)
	go func() {
		defer close(received)
		defer server.Close()
		reader := bufio.NewReader(server)
		for _, s := range steps {
			if s.hangup {
				return
			}
			if s.recv {
				line, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				received <- line
				continue
			}
			if _, err := server.Write([]byte(s.send)); err != nil {
				return
			}
		}
		_, _ = io.Copy(io.Discard, reader)
	}()
	return received
}

func collect(received <-chan string) []string {
	var lines []string
	for line := range received {
		lines = append(lines, line)
	}
	return lines
}

func newPipeClient(timeout time.Duration) (*TelnetClient, net.Conn) {
	client, server := net.Pipe()
	cfg := entities.DeviceConfig{Name: "lobby", Target: "10.0.0.5", Username: "root", Password: "root2root"}
	tc := NewTelnetClient(cfg, testDialect, nil)
	tc.dial = func(addr string) (Conn, error) { return client, nil }
	tc.timeout = timeout
	return tc, server
}

func loginSteps() []step {
	return []step{
		send("\r\nBusyBox\r\nlogin: "),
		recv(),
		send("Password: "),
		recv(),
		send("\r\n\r\nBusyBox v1.01 built-in shell\r\n[root@"),
		send("box]# "),
	}
}

func TestTelnetClient_LoginAndExecute(t *testing.T) {
	tc, server := newPipeClient(time.Second)
	steps := append(loginSteps(),
		recv(),
		send("uname -r\r\n2.6.23-rc3\r\n"),
		send("[root@box]# "),
	)
	received := runDevice(server, steps)

	require.NoError(t, tc.Connect())
	assert.True(t, tc.IsConnected())
	assert.Equal(t, entities.StateReady, tc.State())

	output, err := tc.ExecuteCommand("uname -r")
	require.NoError(t, err)
	assert.Equal(t, "uname -r\r\n2.6.23-rc3\r\n[root@box]# ", output)

	tc.Disconnect()
	assert.Equal(t, []string{"root\n", "root2root\n", "uname -r\n"}, collect(received))
	assert.Equal(t, entities.StateDisconnected, tc.State())
}

func TestTelnetClient_ConnectIsIdempotent(t *testing.T) {
	tc, server := newPipeClient(time.Second)
	received := runDevice(server, loginSteps())

	require.NoError(t, tc.Connect())
	require.NoError(t, tc.Connect())

	tc.Disconnect()
	assert.Len(t, collect(received), 2)
}

func TestTelnetClient_LoginIncorrect(t *testing.T) {
	tc, server := newPipeClient(time.Second)
	received := runDevice(server, []step{
		send("login: "),
		recv(),
		send("Password: "),
		recv(),
		send("\r\nLogin incorrect\r\nlogin: "),
	})

	err := tc.Connect()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "10.0.0.5", authErr.Host)
	assert.Contains(t, authErr.Output, "Login incorrect")

	assert.False(t, tc.IsConnected())
	assert.Equal(t, entities.StateDisconnected, tc.State())
	collect(received)
}

func TestTelnetClient_LoginIncorrectWinsOverPrompt(t *testing.T) {
	tc, server := newPipeClient(time.Second)
	received := runDevice(server, []step{
		send("login: "),
		recv(),
		send("Password: "),
		recv(),
		send("Login incorrect\r\n[root@box]# "),
	})

	err := tc.Connect()
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.NotEqual(t, entities.StateReady, tc.State())
	collect(received)
}

func TestTelnetClient_LoginTimeout(t *testing.T) {
	tc, server := newPipeClient(50 * time.Millisecond)
	received := runDevice(server, []step{
		send("login: "),
		recv(),
	})

	err := tc.Connect()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "Password: ", timeoutErr.Waiting)
	assert.False(t, tc.IsConnected())
	collect(received)
}

func TestTelnetClient_CommandNotFound(t *testing.T) {
	tc, server := newPipeClient(time.Second)
	steps := append(loginSteps(),
		recv(),
		send("bogus\r\nsh: bogus: not found\r\n[root@box]# "),
	)
	received := runDevice(server, steps)

	require.NoError(t, tc.Connect())
	_, err := tc.ExecuteCommand("bogus")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommand)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "bogus", cmdErr.Command)
	assert.Equal(t, "10.0.0.5", cmdErr.Host)
	assert.Contains(t, cmdErr.Response, "[root@box]# ")
	assert.True(t, tc.IsConnected(), "a rejected command leaves the session usable")

	tc.Disconnect()
	collect(received)
}

func TestTelnetClient_CommandTimeout(t *testing.T) {
	tc, server := newPipeClient(50 * time.Millisecond)
	steps := append(loginSteps(),
		recv(),
		send("top -bn1\r\nMem: 1234K used"),
	)
	received := runDevice(server, steps)

	require.NoError(t, tc.Connect())
	_, err := tc.ExecuteCommand("top -bn1")
	assert.ErrorIs(t, err, ErrTimeout)

	tc.Disconnect()
	collect(received)
}

func TestTelnetClient_ConnectionClosedMidCommand(t *testing.T) {
	tc, server := newPipeClient(time.Second)
	received := runDevice(server, loginSteps())

	require.NoError(t, tc.Connect())
	server.Close()

	_, err := tc.ExecuteCommand("uname -r")
	require.Error(t, err)
	assert.False(t, tc.IsConnected())
	collect(received)
}

func TestTelnetClient_SendCommand(t *testing.T) {
	tc, server := newPipeClient(time.Second)
	received := runDevice(server, append(loginSteps(), recv()))

	require.NoError(t, tc.Connect())
	require.NoError(t, tc.SendCommand("reboot"))

	tc.Disconnect()
	lines := collect(received)
	assert.Equal(t, "reboot\n", lines[len(lines)-1])
}

func TestTelnetClient_NotConnected(t *testing.T) {
	tc := NewTelnetClient(entities.DeviceConfig{Target: "10.0.0.5"}, testDialect, nil)

	_, err := tc.ExecuteCommand("uname -r")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, tc.SendCommand("reboot"), ErrNotConnected)
}

func TestTelnetClient_DialError(t *testing.T) {
	tc := NewTelnetClient(entities.DeviceConfig{Target: "10.0.0.5"}, testDialect, nil)
	dialErr := errors.New("connection refused")
	tc.dial = func(addr string) (Conn, error) {
		assert.Equal(t, "10.0.0.5:23", addr)
		return nil, dialErr
	}

	err := tc.Connect()
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, entities.StateDisconnected, tc.State())
}
