// Package cli holds process-level helpers shared by the grafuna commands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/defaults"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/ui"
)

// SignalContext returns a context cancelled on SIGINT/SIGTERM. The scan
// then finishes the target in flight and stops. A second signal within
// gracePeriod exits the process immediately with defaults.ExitInterrupted,
// leaving the datasource wherever the last write put it.
//
//	ctx, cancel := cli.SignalContext(duration.SignalGrace)
//	defer cancel()
func SignalContext(gracePeriod time.Duration) (context.Context, context.CancelFunc) {
	return signalContextWithNotifier(gracePeriod, nil, nil)
}

// signalContextWithNotifier is the internal implementation for testing.
// sigChan, if non-nil, overrides the real signal channel.
// exitFn, if non-nil, overrides os.Exit.
func signalContextWithNotifier(
	gracePeriod time.Duration,
	sigChan chan os.Signal,
	exitFn func(int),
) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	ownChannel := sigChan == nil
	if ownChannel {
		sigChan = make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	}
	if exitFn == nil {
		exitFn = os.Exit
	}

	go func() {
		select {
		case <-sigChan:
			ui.PrintWarning("interrupt received, finishing the current target (interrupt again to quit now)")
			cancel()

			select {
			case <-sigChan:
				exitFn(defaults.ExitInterrupted)
			case <-time.After(gracePeriod):
			}
		case <-ctx.Done():
		}
		if ownChannel {
			signal.Stop(sigChan)
		}
	}()

	return ctx, cancel
}
