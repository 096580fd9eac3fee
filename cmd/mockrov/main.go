package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/skobkin/rovlink/internal/config"
	"github.com/skobkin/rovlink/internal/logging"
	"github.com/skobkin/rovlink/internal/mockrov"
)

const shutdownTimeout = 3 * time.Second

type serverOptions struct {
	Addr     string
	LogLevel string
	Mock     mockrov.Options
}

func main() {
	opts, err := parseServerOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		slog.Error("run mock vehicle", "error", err)
		os.Exit(1)
	}
}

func run(opts serverOptions) error {
	logMgr := logging.NewManager()
	if err := logMgr.Configure(config.LoggingConfig{Level: opts.LogLevel}, ""); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logMgr.Close() }()
	logger := logMgr.Logger("cli")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts.Mock.Logger = slog.Default()
	mock := mockrov.New(opts.Mock)
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           mock,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("mock vehicle listening", "addr", opts.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	mock.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func parseServerOptions(args []string) (serverOptions, error) {
	opts := serverOptions{Mock: mockrov.DefaultOptions()}

	fs := pflag.NewFlagSet("mockrov", pflag.ContinueOnError)
	fs.StringVarP(&opts.Addr, "addr", "a", fmt.Sprintf(":%d", config.DefaultPort), "listen address")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.DurationVar(&opts.Mock.TelemetryInterval, "telemetry", opts.Mock.TelemetryInterval, "telemetry interval, 0 disables")
	fs.DurationVar(&opts.Mock.StatusInterval, "status", opts.Mock.StatusInterval, "status update interval, 0 disables")
	fs.DurationVar(&opts.Mock.HeartbeatInterval, "heartbeat", opts.Mock.HeartbeatInterval, "heartbeat interval, 0 disables")
	fs.StringVar(&opts.Mock.FirmwareVersion, "firmware", opts.Mock.FirmwareVersion, "reported firmware version")
	if err := fs.Parse(args); err != nil {
		return serverOptions{}, err
	}
	if fs.NArg() > 0 {
		return serverOptions{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	for name, d := range map[string]time.Duration{
		"telemetry": opts.Mock.TelemetryInterval,
		"status":    opts.Mock.StatusInterval,
		"heartbeat": opts.Mock.HeartbeatInterval,
	} {
		if d < 0 {
			return serverOptions{}, fmt.Errorf("--%s must not be negative: %s", name, d)
		}
	}
	if _, err := logging.ParseLevel(opts.LogLevel); err != nil {
		return serverOptions{}, err
	}

	return opts, nil
}
