package transfer

import (
	"context"
	stderrors "errors"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/log"
	"github.com/TrevorEdris/transfer-utils/pkg/telemetry"
)

// Phase is the lifecycle of one cancellable operation.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseAborting
	PhaseCompleted
	PhaseCancelled
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseAborting:
		return "aborting"
	case PhaseCompleted:
		return "completed"
	case PhaseCancelled:
		return "cancelled"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunCancellable runs work against s and aborts the session as soon as ctx is
// done. Engine calls are blocking and cannot observe ctx themselves; aborting
// the session is what makes the in-flight call return.
//
// A session error returned while ctx is done is reported as
// errors.ErrCancelled. Any other error is returned unchanged. When ctx is
// already done, work is not started.
func RunCancellable[T any](ctx context.Context, s engine.Session, work func(engine.Session) (T, error)) (T, error) {
	var zero T
	logger := log.FromCtx(ctx)

	if ctx.Err() != nil {
		finish(ctx, PhaseCancelled)
		return zero, cancelled(ctx)
	}

	var phase atomic.Int32
	phase.Store(int32(PhaseRunning))
	abortDone := make(chan struct{})

	stop := context.AfterFunc(ctx, func() {
		defer close(abortDone)
		if !phase.CompareAndSwap(int32(PhaseRunning), int32(PhaseAborting)) {
			return
		}
		logger.Debug("Cancellation requested, aborting session operation", zap.NamedError("cause", context.Cause(ctx)))
		if err := s.Abort(); err != nil {
			if stderrors.Is(err, errors.ErrNothingToAbort) {
				logger.Debug("Nothing in flight to abort")
				return
			}
			logger.Warn("Failed to abort session operation", zap.Error(err))
		}
	})

	settled := false
	settle := func(final Phase) {
		settled = true
		phase.CompareAndSwap(int32(PhaseRunning), int32(final))
		if !stop() {
			// The callback has started; let a pending abort land before reporting.
			<-abortDone
		}
	}
	defer func() {
		if !settled {
			settle(PhaseFailed)
		}
	}()

	v, err := work(s)

	final := PhaseCompleted
	if err != nil {
		final = PhaseFailed
	}
	settle(final)

	if err != nil && errors.IsSessionError(err) && ctx.Err() != nil {
		finish(ctx, PhaseCancelled)
		logger.Debug("Session operation cancelled", zap.Error(err))
		return zero, cancelled(ctx)
	}

	if err != nil {
		finish(ctx, PhaseFailed)
		return zero, err
	}

	finish(ctx, PhaseCompleted)
	return v, nil
}

// Run is RunCancellable for work without a result.
func Run(ctx context.Context, s engine.Session, work func(engine.Session) error) error {
	_, err := RunCancellable(ctx, s, func(s engine.Session) (struct{}, error) {
		return struct{}{}, work(s)
	})
	return err
}

func cancelled(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil {
		return eris.Wrap(errors.ErrCancelled, "context done")
	}
	return eris.Wrap(errors.ErrCancelled, cause.Error())
}

func finish(ctx context.Context, p Phase) {
	telemetry.RecordEnvelopeOutcome(ctx, p.String())
}
