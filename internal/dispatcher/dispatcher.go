// Package dispatcher fans capture jobs out to a fixed pool of workers.
//
// The dispatcher owns the backlog and the pool counters. All of its state is
// mutated by one loop that handles a single worker report at a time, so no
// locking is needed. Scheduling is pull based: a worker is only handed a job
// in response to its own Ready or terminal signal.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/archive"
	ids "github.com/JakeFAU/link-archiver/internal/id/uuid"
	"github.com/JakeFAU/link-archiver/internal/progress"
)

var (
	// ErrInvalidPoolSize is returned when Run is asked for fewer than one worker.
	ErrInvalidPoolSize = errors.New("pool size must be at least 1")
	// ErrNoWorkers is returned when every worker is gone but jobs remain.
	ErrNoWorkers = errors.New("no workers left to drain the backlog")
)

// Result summarizes a finished run.
type Result struct {
	Total        int
	Completed    int
	Errors       int
	InitFailures int
	// Abandoned counts jobs never handed to a worker.
	Abandoned int
}

// Dispatcher runs a backlog of jobs over a pool of workers.
type Dispatcher struct {
	spawner archive.Spawner
	emitter progress.Emitter
	logger  *zap.Logger
}

// New creates a Dispatcher. A nil emitter discards progress events.
func New(spawner archive.Spawner, emitter progress.Emitter, logger *zap.Logger) *Dispatcher {
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		spawner: spawner,
		emitter: emitter,
		logger:  logger,
	}
}

type handle struct {
	id    int
	state archive.WorkerState
	conn  archive.WorkerConn
	job   archive.Job
}

// pool is the state of one Run. Only the Run loop touches it.
type pool struct {
	d       *Dispatcher
	runID   [16]byte
	backlog *Backlog
	handles map[int]*handle

	total        int
	completed    int
	errors       int
	live         int
	starting     int
	initFailures int
}

// Run spawns poolSize workers, hands out jobs last-in first-out, and returns
// once every worker has been retired. It reports how many jobs completed and
// how many of those failed. Run returns ErrInvalidPoolSize without spawning
// anything when poolSize < 1, and ErrNoWorkers when all workers failed to
// start or died while jobs remained.
func (d *Dispatcher) Run(ctx context.Context, jobs []archive.Job, poolSize int) (Result, error) {
	if poolSize < 1 {
		return Result{Total: len(jobs), Abandoned: len(jobs)},
			fmt.Errorf("%w: got %d", ErrInvalidPoolSize, poolSize)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p := &pool{
		d:       d,
		runID:   progress.UUIDToBytes(ids.NewRunID()),
		backlog: NewBacklog(jobs),
		handles: make(map[int]*handle, poolSize),
		total:   len(jobs),
	}
	// On a clean finish every worker has been sent Shutdown, so wait for them
	// to release their renderers before canceling runCtx, which would kill
	// process workers. On abort, cancel first.
	drained := false
	defer func() {
		if !drained {
			cancel()
		}
		p.closeAll()
		cancel()
	}()

	reports := make(chan archive.Report, poolSize)
	p.spawn(runCtx, poolSize, reports)
	d.logger.Info("dispatch started",
		zap.Stringer("run_id", uuid.UUID(p.runID)),
		zap.Int("jobs", p.total),
		zap.Int("pool_size", poolSize),
		zap.Int("starting", p.starting),
	)

	for p.live+p.starting > 0 {
		select {
		case <-ctx.Done():
			return p.result(), fmt.Errorf("dispatch canceled: %w", ctx.Err())
		case rep := <-reports:
			if err := p.handle(runCtx, rep); err != nil {
				return p.result(), err
			}
		}
	}

	drained = true
	res := p.result()
	if res.Abandoned > 0 {
		return res, fmt.Errorf("%w: no live workers remain, %d jobs abandoned (%d init failures)",
			ErrNoWorkers, res.Abandoned, res.InitFailures)
	}
	return res, nil
}

func (p *pool) spawn(ctx context.Context, size int, reports chan<- archive.Report) {
	for id := 0; id < size; id++ {
		conn, err := p.d.spawner.Spawn(ctx, id, reports)
		if err != nil {
			p.d.logger.Error("spawn worker failed", zap.Int("worker_id", id), zap.Error(err))
			p.initFailures++
			p.emit(progress.Event{Stage: progress.StageWorkerInitFailed, WorkerID: id, Note: err.Error()})
			continue
		}
		p.handles[id] = &handle{id: id, state: archive.WorkerStarting, conn: conn}
		p.starting++
	}
}

func (p *pool) handle(ctx context.Context, rep archive.Report) error {
	h, ok := p.handles[rep.WorkerID]
	if !ok {
		return fmt.Errorf("report %q from unknown worker %d", rep.Signal, rep.WorkerID)
	}

	switch rep.Signal {
	case archive.SignalReady:
		if h.state != archive.WorkerStarting {
			return protocolError(h, rep)
		}
		p.starting--
		p.live++
		h.state = archive.WorkerIdle
		p.emit(progress.Event{Stage: progress.StageWorkerReady, WorkerID: h.id})
		return p.assign(ctx, h)

	case archive.SignalJobDone, archive.SignalJobFailed:
		if h.state != archive.WorkerBusy {
			return protocolError(h, rep)
		}
		p.finishJob(h, rep)
		h.state = archive.WorkerIdle
		return p.assign(ctx, h)

	case archive.SignalInitFailed:
		if h.state != archive.WorkerStarting {
			return protocolError(h, rep)
		}
		p.starting--
		p.initFailures++
		h.state = archive.WorkerTerminated
		p.d.logger.Error("worker failed to start", zap.Int("worker_id", h.id), zap.String("error", rep.Error))
		p.emit(progress.Event{Stage: progress.StageWorkerInitFailed, WorkerID: h.id, Note: rep.Error})
		return nil

	case archive.SignalExited:
		p.exited(h, rep)
		return nil

	default:
		return fmt.Errorf("unknown signal %q from worker %d", rep.Signal, h.id)
	}
}

// exited handles a worker that went away on its own.
func (p *pool) exited(h *handle, rep archive.Report) {
	switch h.state {
	case archive.WorkerTerminated:
		return
	case archive.WorkerStarting:
		p.starting--
		p.initFailures++
		p.emit(progress.Event{Stage: progress.StageWorkerInitFailed, WorkerID: h.id, Note: rep.Error})
	case archive.WorkerBusy:
		p.finishJob(h, archive.Report{
			WorkerID: h.id,
			Signal:   archive.SignalJobFailed,
			Job:      h.job,
			Error:    fmt.Sprintf("worker exited mid-job: %s", rep.Error),
		})
		p.retire(h)
	case archive.WorkerIdle:
		p.retire(h)
	}
	h.state = archive.WorkerTerminated
	p.d.logger.Warn("worker exited unexpectedly", zap.Int("worker_id", h.id), zap.String("error", rep.Error))
}

func (p *pool) finishJob(h *handle, rep archive.Report) {
	p.completed++
	stage := progress.StageJobDone
	if rep.Signal == archive.SignalJobFailed {
		p.errors++
		stage = progress.StageJobError
	}
	p.emit(progress.Event{
		Stage:    stage,
		WorkerID: h.id,
		URL:      h.job.Link,
		Media:    rep.Media,
		Dur:      rep.Duration,
		Note:     rep.Error,
	})
	fields := []zap.Field{
		zap.Int("worker_id", h.id),
		zap.String("link", h.job.Link),
		zap.Int("completed", p.completed),
		zap.Int("total", p.total),
		zap.Int("errors", p.errors),
	}
	if rep.Signal == archive.SignalJobFailed {
		p.d.logger.Warn("job failed", append(fields, zap.String("error", rep.Error))...)
	} else {
		p.d.logger.Info("job done", append(fields, zap.String("artifact", rep.Artifact), zap.Int("media", rep.Media))...)
	}
	h.job = archive.Job{}
}

// assign gives h the last job in the backlog, or shuts it down when the
// backlog is empty. h must be Idle.
func (p *pool) assign(ctx context.Context, h *handle) error {
	job, ok := p.backlog.Pop()
	if !ok {
		if err := h.conn.Send(ctx, archive.ShutdownCommand()); err != nil {
			return fmt.Errorf("shutdown worker %d: %w", h.id, err)
		}
		h.state = archive.WorkerTerminated
		p.retire(h)
		return nil
	}
	if err := h.conn.Send(ctx, archive.JobCommand(job)); err != nil {
		return fmt.Errorf("assign job to worker %d: %w", h.id, err)
	}
	h.state = archive.WorkerBusy
	h.job = job
	p.emit(progress.Event{Stage: progress.StageJobStart, WorkerID: h.id, URL: job.Link})
	return nil
}

func (p *pool) retire(h *handle) {
	p.live--
	p.emit(progress.Event{Stage: progress.StageWorkerExit, WorkerID: h.id})
}

func (p *pool) closeAll() {
	for _, h := range p.handles {
		if err := h.conn.Close(); err != nil {
			p.d.logger.Warn("close worker", zap.Int("worker_id", h.id), zap.Error(err))
		}
	}
}

func (p *pool) emit(evt progress.Event) {
	evt.RunID = p.runID
	evt.TS = time.Now().UTC()
	p.d.emitter.Emit(evt)
}

func (p *pool) result() Result {
	return Result{
		Total:        p.total,
		Completed:    p.completed,
		Errors:       p.errors,
		InitFailures: p.initFailures,
		Abandoned:    p.backlog.Len(),
	}
}

func protocolError(h *handle, rep archive.Report) error {
	return fmt.Errorf("worker %d sent %q while %s", h.id, rep.Signal, h.state)
}
