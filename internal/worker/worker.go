// Package worker implements the capture worker: a long-lived actor that owns
// one renderer and executes one job at a time for the dispatcher.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/archive"
)

// ErrWorkerTerminated is returned when a message is sent to a worker that no
// longer accepts messages.
var ErrWorkerTerminated = errors.New("worker terminated")

var errAlreadyStarted = errors.New("worker already started")

// Worker moves through Starting, Idle, Busy and Terminated. It never talks to
// other workers; every message goes through the dispatcher.
type Worker struct {
	id      int
	factory archive.CapturerFactory
	logger  *zap.Logger
	state   atomic.Int32
	started atomic.Bool
}

// New constructs a Worker in the Starting state.
func New(id int, factory archive.CapturerFactory, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		id:      id,
		factory: factory,
		logger:  logger.With(zap.Int("worker_id", id)),
	}
	w.state.Store(int32(archive.WorkerStarting))
	return w
}

// ID returns the worker identifier.
func (w *Worker) ID() int {
	return w.id
}

// State returns the current lifecycle state.
func (w *Worker) State() archive.WorkerState {
	return archive.WorkerState(w.state.Load())
}

func (w *Worker) setState(s archive.WorkerState) {
	w.state.Store(int32(s))
}

// Run acquires the renderer, signals Ready, and then serves commands from
// inbox until it receives Shutdown, inbox is closed, or ctx ends. Each job
// produces exactly one terminal report. Run may only be called once.
func (w *Worker) Run(ctx context.Context, inbox <-chan archive.Command, outbox chan<- archive.Report) error {
	if !w.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}
	defer w.setState(archive.WorkerTerminated)

	if w.factory == nil {
		err := errors.New("no capturer factory configured")
		w.report(ctx, outbox, archive.Report{Signal: archive.SignalInitFailed, Error: err.Error()})
		return err
	}
	capturer, err := w.factory(ctx)
	if err != nil {
		w.logger.Error("renderer init failed", zap.Error(err))
		w.report(ctx, outbox, archive.Report{Signal: archive.SignalInitFailed, Error: err.Error()})
		return fmt.Errorf("acquire renderer: %w", err)
	}
	defer w.release(capturer)

	w.setState(archive.WorkerIdle)
	if !w.report(ctx, outbox, archive.Report{Signal: archive.SignalReady}) {
		return fmt.Errorf("report ready: %w", ctx.Err())
	}
	w.logger.Debug("worker ready")

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-inbox:
			if !ok || cmd.Kind == archive.CommandShutdown {
				w.logger.Debug("worker shutting down")
				return nil
			}
			if cmd.Kind != archive.CommandJob {
				w.logger.Warn("ignoring unknown command", zap.String("kind", string(cmd.Kind)))
				continue
			}
			w.setState(archive.WorkerBusy)
			rep := w.execute(ctx, capturer, cmd.Job)
			w.setState(archive.WorkerIdle)
			if !w.report(ctx, outbox, rep) {
				return nil
			}
		}
	}
}

// execute runs one capture and converts its outcome, including a panic, into
// a terminal report.
func (w *Worker) execute(ctx context.Context, capturer archive.Capturer, job archive.Job) (rep archive.Report) {
	start := time.Now()
	rep = archive.Report{Job: job}
	defer func() {
		if r := recover(); r != nil {
			rep.Signal = archive.SignalJobFailed
			rep.Error = fmt.Sprintf("capture panic: %v", r)
			w.logger.Error("capture panicked", zap.String("link", job.Link), zap.Any("panic", r))
		}
		rep.Duration = time.Since(start)
	}()

	w.logger.Info("capturing", zap.String("link", job.Link), zap.String("dest", job.DestinationDir))
	result, err := capturer.Capture(ctx, job)
	if err != nil {
		w.logger.Warn("capture failed", zap.String("link", job.Link), zap.Error(err))
		rep.Signal = archive.SignalJobFailed
		rep.Error = err.Error()
		return rep
	}
	rep.Signal = archive.SignalJobDone
	rep.Artifact = result.Screenshot
	rep.Media = len(result.Media)
	return rep
}

func (w *Worker) report(ctx context.Context, outbox chan<- archive.Report, rep archive.Report) bool {
	rep.WorkerID = w.id
	select {
	case outbox <- rep:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Worker) release(capturer archive.Capturer) {
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := capturer.Close(closeCtx); err != nil {
		w.logger.Warn("renderer release failed", zap.Error(err))
	}
}
