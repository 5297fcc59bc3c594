package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"predictivecoder/buffer"
	"predictivecoder/client/openai"
	"predictivecoder/config"
	"predictivecoder/engine"
	"predictivecoder/logger"
	"predictivecoder/metrics"
	"predictivecoder/provider"
	"predictivecoder/session"

	"github.com/neovim/go-client/nvim"
)

type Daemon struct {
	config      config.Config
	settings    *config.Settings
	client      *openai.Client
	cache       *provider.Cache
	tracker     *metrics.Tracker
	metricsOut  io.Closer
	listener    net.Listener
	socketPath  string
	pidPath     string
	clientCount int64
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewDaemon(cfg config.Config, settings *config.Settings) (*Daemon, error) {
	if err := os.MkdirAll(config.StateDir(), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	d := &Daemon{
		config:     cfg,
		settings:   settings,
		client:     openai.NewClient(cfg.BaseURL, cfg.CompressResponses),
		cache:      provider.NewCache(cfg.CacheCapacity, cfg.CacheTTL()),
		socketPath: config.SocketPath(),
		pidPath:    config.PidPath(),
	}

	var out io.Writer
	if f, err := os.OpenFile(config.MetricsPath(), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644); err != nil {
		logger.Warn("metrics journal disabled: %v", err)
	} else {
		w := logger.NewLimitedWriter(f, logger.MaxLogLines)
		out, d.metricsOut = w, w
	}
	d.tracker = metrics.NewTracker(config.StateDir(), out)

	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// apiKey resolves the credential on every request so a key saved while the
// daemon runs is picked up.
func (d *Daemon) apiKey() string {
	key, source := config.ResolveAPIKey(config.DefaultCredentialSources(d.config, d.settings)...)
	if key != "" {
		logger.Debug("using API key from %s", source)
	}
	return key
}

func (d *Daemon) Start() error {
	d.writePidFile()
	defer d.removePidFile()

	if err := d.setupSocket(); err != nil {
		return err
	}
	defer d.cleanup()

	logger.Info("daemon listening on socket: %s", d.socketPath)

	d.setupShutdownHandling()
	go d.acceptConnections()
	go d.monitorIdleShutdown()

	<-d.ctx.Done()
	logger.Info("daemon shutting down...")
	d.tracker.LogSummary()
	if d.metricsOut != nil {
		d.metricsOut.Close()
	}
	return nil
}

func (d *Daemon) setupSocket() error {
	os.Remove(d.socketPath)

	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return err
	}
	d.listener = listener
	return nil
}

func (d *Daemon) setupShutdownHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		d.Stop()
	}()
}

func (d *Daemon) acceptConnections() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.ctx.Done():
				return
			default:
				logger.Error("error accepting connection: %v", err)
				continue
			}
		}

		atomic.AddInt64(&d.clientCount, 1)
		logger.Info("new client connected, total clients: %d", atomic.LoadInt64(&d.clientCount))
		go d.handleConnection(conn)
	}
}

// handleConnection serves one Neovim instance. Each connection gets its own
// session manager; the HTTP client, cache and metrics are shared.
func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer func() {
		atomic.AddInt64(&d.clientCount, -1)
		logger.Info("client disconnected, remaining clients: %d", atomic.LoadInt64(&d.clientCount))
	}()

	n, err := nvim.New(conn, conn, conn, logger.Debug)
	if err != nil {
		logger.Error("error creating nvim client: %v", err)
		return
	}

	nsID, err := n.CreateNamespace(d.config.Namespace)
	if err != nil {
		logger.Error("error creating namespace: %v", err)
		return
	}

	notifier := buffer.NewNotifier(n, "predictivecoder")
	prov := provider.New(provider.Options{
		Model:    d.config.Model,
		Client:   d.client,
		Cache:    d.cache,
		APIKey:   d.apiKey,
		Notifier: notifier,
	})

	ctx, cancel := context.WithCancel(d.ctx)
	defer cancel()

	manager := session.NewManager(ctx, session.Options{
		Settings:  d.settings,
		Completer: prov,
		Tracker:   d.tracker,
		Notifier:  notifier,
		NewEditor: func(bufnr int) engine.Editor {
			return buffer.New(n, nvim.Buffer(bufnr), buffer.Config{NsID: nsID})
		},
		Engine: engine.EngineConfig{
			LineBoundaryDebounce: d.config.LineBoundaryDebounce(),
			CompletionTimeout:    d.config.CompletionTimeout(),
		},
	})
	defer manager.Close()

	if err := manager.Register(n); err != nil {
		logger.Error("error registering handler: %v", err)
		return
	}

	go func() {
		<-ctx.Done()
		n.Close()
	}()

	if err := n.Serve(); err != nil && err != io.EOF {
		logger.Error("error serving connection: %v", err)
	}
}

func (d *Daemon) monitorIdleShutdown() {
	if d.config.DebugImmediateShutdown {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				if atomic.LoadInt64(&d.clientCount) == 0 {
					logger.Info("debug mode: no clients connected, shutting down daemon immediately")
					d.Stop()
					return
				}
			}
		}
	}

	idle := d.config.IdleShutdown()
	if idle <= 0 {
		idle = 30 * time.Second
	}
	idleTimer := time.NewTimer(idle)
	defer idleTimer.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-idleTimer.C:
			if atomic.LoadInt64(&d.clientCount) == 0 {
				logger.Info("no clients connected for %s, shutting down daemon", idle)
				d.Stop()
				return
			}
		}

		if atomic.LoadInt64(&d.clientCount) == 0 {
			idleTimer.Reset(5 * time.Second)
		} else {
			idleTimer.Reset(idle)
		}
	}
}

func (d *Daemon) Stop() {
	if d.listener != nil {
		d.listener.Close()
	}
	d.cancel()
}

func (d *Daemon) cleanup() {
	os.Remove(d.socketPath)
}

func (d *Daemon) writePidFile() {
	pid := os.Getpid()
	if err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		logger.Warn("could not write PID file: %v", err)
	}
	logger.Info("server started with PID %d", pid)
}

func (d *Daemon) removePidFile() {
	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not remove PID file: %v", err)
	}
}
