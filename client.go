package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"predictivecoder/config"
	"predictivecoder/logger"
)

// Client is the process Neovim spawns: it pipes msgpack-rpc between its own
// stdio and the daemon socket, starting the daemon when none answers.
type Client struct {
	socketPath string
	in         io.Reader
	out        io.Writer

	startTimeout time.Duration
	pollInterval time.Duration
}

func NewClient() *Client {
	return &Client{
		socketPath:   config.SocketPath(),
		in:           os.Stdin,
		out:          os.Stdout,
		startTimeout: 5 * time.Second,
		pollInterval: 100 * time.Millisecond,
	}
}

// Connect relays until the daemon closes the connection. When the editor
// side reaches EOF the write half is shut so the daemon sees it too.
func (c *Client) Connect() error {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	upstream := make(chan error, 1)
	go func() {
		_, err := io.Copy(conn, c.in)
		if uc, ok := conn.(*net.UnixConn); ok {
			uc.CloseWrite()
		}
		upstream <- err
	}()

	if _, err := io.Copy(c.out, conn); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("relay from daemon: %w", err)
	}

	select {
	case err := <-upstream:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("relay to daemon: %w", err)
		}
	default:
		// Daemon hung up first; stdin stays blocked until the editor exits.
	}
	return nil
}

// EnsureDaemonRunning returns once a daemon accepts connections on the socket.
func (c *Client) EnsureDaemonRunning() error {
	if c.reachable() {
		return nil
	}
	if running, pid := isDaemonRunning(); running {
		logger.Debug("daemon PID %d alive but socket not ready yet", pid)
		return c.waitForDaemon()
	}
	if err := c.startDaemon(); err != nil {
		return err
	}
	return c.waitForDaemon()
}

func (c *Client) reachable() bool {
	conn, err := net.DialTimeout("unix", c.socketPath, c.pollInterval)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// startDaemon re-executes this binary detached from the editor's stdio. The
// daemon inherits the environment, including PREDICTIVECODER_CONFIG.
func (c *Client) startDaemon() error {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	logger.Debug("starting daemon: %s daemon", exe)

	proc, err := os.StartProcess(exe, []string{exe, "daemon"}, &os.ProcAttr{
		Env:   os.Environ(),
		Files: []*os.File{nil, nil, nil},
	})
	if err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	return proc.Release()
}

func (c *Client) waitForDaemon() error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	deadline := time.After(c.startTimeout)

	for {
		if c.reachable() {
			logger.Debug("daemon is accepting connections")
			return nil
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return fmt.Errorf("daemon did not open %s within %s", c.socketPath, c.startTimeout)
		}
	}
}
