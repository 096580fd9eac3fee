// Command rovlink keeps the control link to the vehicle up without a UI.
//
// It attaches no keyboard, gamepad or window focus, so the input sampler only
// streams neutral movement commands. That keeps the vehicle's command watchdog
// fed while telemetry, status and notifications flow through the runtime.
// Steering needs a frontend that passes input sources to app.Initialize.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/skobkin/rovlink/internal/app"
	"github.com/skobkin/rovlink/internal/config"
	"github.com/skobkin/rovlink/internal/platform"
)

type launchOptions struct {
	ConfigPath string
	Connector  string
	Host       string
	Port       int
	LogLevel   string
	Version    bool
}

func main() {
	opts, err := parseLaunchOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.Version {
		fmt.Println(app.Name, app.BuildVersionWithDate())
		return
	}

	if err := run(opts); err != nil {
		slog.Error("run rovlink", "error", err)
		os.Exit(1)
	}
}

func run(opts launchOptions) error {
	lock, err := platform.AcquireLinkLock(app.LinkLockName)
	switch {
	case errors.Is(err, platform.ErrLinkHeld):
		return err
	case errors.Is(err, platform.ErrLinkLockUnsupported):
		slog.Warn("running without link lock", "error", err)
	case err != nil:
		return fmt.Errorf("acquire link lock: %w", err)
	default:
		defer func() {
			if releaseErr := lock.Release(); releaseErr != nil {
				slog.Warn("release link lock", "error", releaseErr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Initialize(ctx, app.Options{
		ConfigPath: opts.ConfigPath,
		Override:   opts.override,
	})
	if err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	return rt.Run(ctx)
}

func newFlagSet(opts *launchOptions, out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(app.Name, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s [flags]\n\n", app.Name)
		fmt.Fprintln(out, "Keeps the vehicle control link up. No input devices are attached, so only")
		fmt.Fprintln(out, "neutral movement commands are sent.")
		fmt.Fprintln(out)
		fs.PrintDefaults()
	}
	fs.StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file (.json or .toml); defaults to the user config dir")
	fs.StringVar(&opts.Connector, "connector", "", "vehicle connector: websocket, tcp or serial")
	fs.StringVar(&opts.Host, "host", "", "vehicle host, or device path for the serial connector")
	fs.IntVar(&opts.Port, "port", 0, "vehicle control port")
	fs.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.BoolVarP(&opts.Version, "version", "v", false, "print version and exit")

	return fs
}

func parseLaunchOptions(args []string) (launchOptions, error) {
	var opts launchOptions

	fs := newFlagSet(&opts, os.Stderr)
	if err := fs.Parse(args); err != nil {
		return launchOptions{}, err
	}
	if fs.NArg() > 0 {
		return launchOptions{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if fs.Changed("port") && (opts.Port <= 0 || opts.Port > 65535) {
		return launchOptions{}, fmt.Errorf("port must be in 1..65535: %d", opts.Port)
	}

	opts.ConfigPath = strings.TrimSpace(opts.ConfigPath)
	opts.Connector = strings.ToLower(strings.TrimSpace(opts.Connector))
	opts.Host = strings.TrimSpace(opts.Host)
	opts.LogLevel = strings.TrimSpace(opts.LogLevel)
	if err := (config.LoggingConfig{Level: opts.LogLevel}).Validate(); err != nil {
		return launchOptions{}, err
	}

	return opts, nil
}

// override applies flags on top of the file config. Empty flags leave the file
// value alone.
func (o launchOptions) override(cfg *config.AppConfig) {
	if o.Connector != "" {
		cfg.Connection.Connector = config.ConnectorType(o.Connector)
	}
	if o.Host != "" {
		cfg.Connection.Host = o.Host
	}
	if o.Port > 0 {
		cfg.Connection.Port = o.Port
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
}
