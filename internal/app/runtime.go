package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/skobkin/rovlink/internal/bus"
	"github.com/skobkin/rovlink/internal/config"
	"github.com/skobkin/rovlink/internal/events"
	"github.com/skobkin/rovlink/internal/input"
	"github.com/skobkin/rovlink/internal/link"
	"github.com/skobkin/rovlink/internal/logging"
	"github.com/skobkin/rovlink/internal/notifications"
	"github.com/skobkin/rovlink/internal/router"
)

// Options configure Initialize. Zero values are usable: no input devices, no
// focus and desktop notifications.
type Options struct {
	ConfigPath string
	// Override is applied to every loaded or saved config. CLI flags use it
	// so they keep winning over hot reloads.
	Override func(*config.AppConfig)

	Keyboard input.Source
	Gamepad  input.Source
	Focus    func() bool
	Sender   notifications.Sender
	Dialers  link.DialerFactory
}

type Runtime struct {
	mu     sync.RWMutex
	config config.AppConfig

	Ctx    context.Context
	cancel context.CancelFunc

	Paths      Paths
	LogManager *logging.Manager
	Bus        *bus.PubSubBus

	Endpoints     *link.EndpointStore
	Outbox        *link.Outbox
	Supervisor    *link.Supervisor
	Sampler       *input.Sampler
	Commands      *Commands
	VehicleState  *VehicleState
	Notifications *NotificationService

	override func(*config.AppConfig)
	watcher  *config.Watcher
}

func Initialize(parent context.Context, opts Options) (*Runtime, error) {
	paths, err := ResolvePaths(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg, loadErr := config.LoadOrDefault(paths.ConfigFile)

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:      ctx,
		cancel:   cancel,
		Paths:    paths,
		override: opts.Override,
	}
	cfg, replaced := rt.prepare(cfg)

	logMgr := logging.NewManager()
	logErr := logMgr.Configure(cfg.Logging, paths.LogFile)
	if logErr != nil {
		// The level is already valid, so only the log file can fail.
		cfg.Logging.LogToFile = false
		if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
			_ = logMgr.Close()
			cancel()
			return nil, fmt.Errorf("configure logging: %w", err)
		}
	}
	rt.config = cfg
	rt.LogManager = logMgr
	slog.Info("starting rovlink runtime", "version", BuildVersion(), "build_date", BuildDateYMD(), "config", paths.ConfigFile)
	if loadErr != nil {
		slog.Warn("config unreadable, using defaults", "path", paths.ConfigFile, "error", loadErr)
	}
	logReplaced(replaced)
	if logErr != nil {
		slog.Warn("file logging disabled", "path", paths.LogFile, "error", logErr)
	}

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	sink := events.NewBusSink(b)

	rt.VehicleState = NewVehicleState(logMgr.Logger("vehicle"))
	rt.VehicleState.Start(ctx, b)

	sender := opts.Sender
	if sender == nil {
		sender = notifications.NewDesktopSender(Name, logMgr.Logger("notifications"))
	}
	rt.Notifications = NewNotificationService(b, rt.CurrentConfig, opts.Focus, sender, logMgr.Logger("app.notifications"))
	rt.Notifications.Start(ctx)

	inbound := router.New(logMgr.Logger("router"))
	inbound.RegisterSink(sink)

	rt.Endpoints = link.NewEndpointStore(cfg.Connection)
	rt.Outbox = link.NewOutbox(cfg.Link.OutboxCapacity)
	rt.Supervisor = link.NewSupervisor(link.SupervisorOptions{
		Endpoints:     rt.Endpoints,
		Outbox:        rt.Outbox,
		Status:        link.NewStatusTracker(sink, nil),
		Router:        inbound,
		Dialers:       opts.Dialers,
		Settings:      func() config.LinkConfig { return rt.CurrentConfig().Link },
		ClientName:    Name,
		ClientVersion: BuildVersion(),
		Logger:        slog.Default(),
	})
	rt.Commands = NewCommands(rt.Outbox)
	rt.Sampler = input.NewSampler(input.SamplerOptions{
		Keyboard: opts.Keyboard,
		Gamepad:  opts.Gamepad,
		Focus:    opts.Focus,
		Config:   func() config.InputConfig { return rt.CurrentConfig().Input },
		Outbox:   rt.Outbox,
		Logger:   slog.Default(),
	})
	rt.watcher = config.NewWatcher(paths.ConfigFile, logMgr.Logger("config.watcher"), rt.applyReloaded)

	return rt, nil
}

// Run drives the link, the input sampler and the config watcher until ctx or
// the runtime context is cancelled. A broken watcher only disables hot reload.
func (r *Runtime) Run(ctx context.Context) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-r.Ctx.Done():
			stop()
		case <-runCtx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return r.Supervisor.Run(gctx)
	})
	g.Go(func() error {
		return r.Sampler.Run(gctx)
	})
	g.Go(func() error {
		if err := r.watcher.Run(gctx); err != nil {
			slog.Warn("config hot reload disabled", "error", err)
		}

		return nil
	})

	return g.Wait()
}

func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.config
}

// SaveAndApplyConfig persists cfg and applies it without waiting for the
// file watcher.
func (r *Runtime) SaveAndApplyConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(r.Paths.ConfigFile, cfg); err != nil {
		return err
	}
	cfg, replaced := r.prepare(cfg)
	logReplaced(replaced)

	return r.applyConfig(cfg)
}

func (r *Runtime) applyReloaded(cfg config.AppConfig) {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		slog.Warn("ignoring invalid reloaded config", "error", err)
		return
	}
	cfg, replaced := r.prepare(cfg)
	logReplaced(replaced)
	if err := r.applyConfig(cfg); err != nil {
		slog.Warn("apply reloaded config", "error", err)
	}
}

// applyConfig stores cfg first so the sampler and the next dial read it, then
// restarts the link only when the endpoint target changed.
func (r *Runtime) applyConfig(cfg config.AppConfig) error {
	r.mu.Lock()
	r.config = cfg
	r.mu.Unlock()

	if err := r.LogManager.Configure(cfg.Logging, r.Paths.LogFile); err != nil {
		return err
	}
	if r.Endpoints.Apply(cfg.Connection) {
		slog.Info("vehicle endpoint changed", "target", cfg.Connection.Target())
	}

	return nil
}

// prepare layers the override on cfg and resets whatever is still invalid, so
// a bad file or flag never keeps the link from starting.
func (r *Runtime) prepare(cfg config.AppConfig) (config.AppConfig, []error) {
	if r.override != nil {
		r.override(&cfg)
	}
	cfg.FillMissingDefaults()
	replaced := cfg.Sanitize()

	return cfg, replaced
}

func logReplaced(replaced []error) {
	for _, err := range replaced {
		slog.Warn("invalid config section, using defaults", "error", err)
	}
}

func (r *Runtime) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}

	return nil
}
