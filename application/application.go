package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	confpkg "quantcycle/config"
)

func Run(config confpkg.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			slog.Warn("interrupt received, cancelling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return run(ctx, config, os.Stdout, nil)
}

// run is Run without process-level signal handling. A nil op selects the
// default operation.
func run(ctx context.Context, config confpkg.Config, w io.Writer, op Operation) error {
	logger, err := newLogger(config, w)
	slog.SetDefault(logger)
	if err != nil {
		logger.Warn("failed to parse log options", "error", err)
	}
	config.Log(logger)

	app := New(Options{
		Verbose:   config.Verbose,
		Logger:    logger.With("component", "quantcycle"),
		Operation: op,
	})
	return app.Execute(ctx)
}

// newLogger always returns a usable logger; the error reports log options
// that were ignored.
func newLogger(config confpkg.Config, w io.Writer) (*slog.Logger, error) {
	handlerOptions := slog.HandlerOptions{}
	logLevel := slog.LevelVar{}
	var err error
	if config.LogLevel != "" {
		err = logLevel.UnmarshalText([]byte(config.LogLevel))
		if err == nil {
			handlerOptions.Level = &logLevel
		}
	}
	if config.Verbose {
		logLevel.Set(slog.LevelDebug)
		handlerOptions.Level = &logLevel
	}

	if config.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, &handlerOptions)), err
	}
	if config.LogFormat != "" && config.LogFormat != "text" {
		err = fmt.Errorf("invalid log format: %s", config.LogFormat)
	}
	return slog.New(slog.NewTextHandler(w, &handlerOptions)), err
}
