// Package trigger raises the shutdown signal from outside the pipeline:
// a "stop" line on an input stream, the end of that stream, or an OS signal.
package trigger

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/jzx17/matrixpipe/internal/logging"
	"github.com/jzx17/matrixpipe/pkg/shutdown"
	"go.uber.org/zap"
)

// StopCommand is the line that requests a stop, compared trimmed and case-insensitively
const StopCommand = "stop"

// Stop reasons recorded on the signal
const (
	ReasonStopCommand = "stop command"
	ReasonInputClosed = "input closed"
)

// Prompt is printed before every line read by LineListener
const Prompt = "type 'stop' to stop the program: "

// LineListener reads commands line by line and raises the signal on "stop" or end of input
type LineListener struct {
	in     io.Reader
	out    io.Writer
	sig    *shutdown.Signal
	logger *zap.Logger
}

// NewLineListener creates a listener on in. out receives the prompt and may be nil.
func NewLineListener(in io.Reader, out io.Writer, sig *shutdown.Signal, logger *zap.Logger) *LineListener {
	if out == nil {
		out = io.Discard
	}
	return &LineListener{
		in:     in,
		out:    out,
		sig:    sig,
		logger: logging.OrNop(logger).Named("trigger"),
	}
}

// Run reads until a stop command, end of input, or the signal is raised elsewhere.
// A read already blocked on in cannot be interrupted, so callers start Run in its
// own goroutine and do not wait for it.
func (l *LineListener) Run() error {
	scanner := bufio.NewScanner(l.in)
	for !l.sig.IsSet() {
		fmt.Fprint(l.out, Prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				l.logger.Warn("reading commands failed", zap.Error(err))
				l.raise(ReasonInputClosed)
				return fmt.Errorf("read commands: %w", err)
			}
			l.raise(ReasonInputClosed)
			return nil
		}

		cmd := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(cmd, StopCommand) {
			l.raise(ReasonStopCommand)
			fmt.Fprintln(l.out, "stop initiated.")
			return nil
		}
		if cmd != "" {
			l.logger.Debug("ignoring unknown command", zap.String("command", cmd))
		}
	}
	return nil
}

func (l *LineListener) raise(reason string) {
	if l.sig.Set(reason) {
		l.logger.Info("stop requested", zap.String("reason", reason))
	}
}

// WatchSignals raises sig when SIGINT or SIGTERM arrives. The returned function
// releases the OS signal handlers; call it once the pipeline has finished.
func WatchSignals(ctx context.Context, sig *shutdown.Signal, logger *zap.Logger) (release func()) {
	logger = logging.OrNop(logger).Named("trigger")

	notifyCtx, stopNotify := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	released := make(chan struct{})
	go watch(notifyCtx, ctx, released, sig, logger)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(released)
			stopNotify()
		})
	}
}

// watch raises sig when notifyCtx ends because a signal arrived
func watch(notifyCtx, parent context.Context, released <-chan struct{}, sig *shutdown.Signal, logger *zap.Logger) {
	select {
	case <-notifyCtx.Done():
	case <-released:
		return
	case <-sig.Done():
		return
	}

	select {
	case <-released:
		return
	default:
	}
	if parent.Err() != nil {
		return
	}
	if sig.Set("interrupt signal") {
		logger.Info("interrupt signal received, stopping")
	}
}
