package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrPanic is wrapped by the error Execute returns when the operation panics.
var ErrPanic = errors.New("operation panicked")

// Operation is the unit of work performed by Execute.
type Operation func(ctx context.Context, logger *slog.Logger) error

type Options struct {
	Verbose bool
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Operation defaults to a no-op.
	Operation Operation
}

// QuantCycle is the application object started by the CLI.
type QuantCycle struct {
	verbose bool
	logger  *slog.Logger
	op      Operation
}

func New(opts Options) *QuantCycle {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	op := opts.Operation
	if op == nil {
		op = noop
	}
	return &QuantCycle{
		verbose: opts.Verbose,
		logger:  logger,
		op:      op,
	}
}

func (q *QuantCycle) Verbose() bool {
	return q.verbose
}

// Execute runs the operation and blocks until it returns. The operation's
// error is returned as-is; a panic is converted into an error wrapping ErrPanic.
func (q *QuantCycle) Execute(ctx context.Context) (err error) {
	start := time.Now()
	q.logger.Debug("execute", "verbose", q.verbose)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		if err != nil {
			q.logger.Debug("execute failed", "error", err, "elapsed", time.Since(start))
			return
		}
		q.logger.Debug("execute finished", "elapsed", time.Since(start))
	}()

	return q.op(ctx, q.logger)
}

func noop(ctx context.Context, logger *slog.Logger) error {
	logger.Debug("no operation configured")
	return nil
}
