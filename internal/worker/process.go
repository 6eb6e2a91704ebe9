package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/archive"
)

// ProcessConfig controls how worker processes are launched.
type ProcessConfig struct {
	// Executable defaults to the running binary.
	Executable string
	// Args precede the "--id N" arguments appended for each worker.
	Args []string
	// Env is passed to the child; nil inherits the parent environment.
	Env []string
	// Stderr receives the child's logs; defaults to os.Stderr.
	Stderr io.Writer
}

// ProcessSpawner runs each worker in its own OS process. Commands travel as
// newline-delimited JSON on the child's stdin and reports come back on its
// stdout, so a crashing renderer only takes down its own worker.
type ProcessSpawner struct {
	cfg    ProcessConfig
	logger *zap.Logger
}

// NewProcessSpawner validates cfg and resolves the executable.
func NewProcessSpawner(cfg ProcessConfig, logger *zap.Logger) (*ProcessSpawner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve worker executable: %w", err)
		}
		cfg.Executable = exe
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	return &ProcessSpawner{cfg: cfg, logger: logger}, nil
}

// Spawn starts a worker process. The process is killed if ctx ends.
func (s *ProcessSpawner) Spawn(ctx context.Context, id int, reports chan<- archive.Report) (archive.WorkerConn, error) {
	args := append(append([]string(nil), s.cfg.Args...), "--id", strconv.Itoa(id))
	cmd := exec.CommandContext(ctx, s.cfg.Executable, args...)
	cmd.Env = s.cfg.Env
	cmd.Stderr = s.cfg.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker %d stdin: %w", id, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker %d stdout: %w", id, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %d: %w", id, err)
	}

	conn := &processConn{
		id:     id,
		cmd:    cmd,
		stdin:  stdin,
		enc:    json.NewEncoder(stdin),
		exited: make(chan struct{}),
		logger: s.logger.With(zap.Int("worker_id", id), zap.Int("pid", cmd.Process.Pid)),
	}
	go conn.pump(ctx, stdout, reports)
	return conn, nil
}

type processConn struct {
	id     int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	enc    *json.Encoder
	exited chan struct{}
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// pump forwards decoded reports until the child's stdout ends, then reaps the
// process and reports its exit.
func (c *processConn) pump(ctx context.Context, stdout io.Reader, reports chan<- archive.Report) {
	dec := json.NewDecoder(stdout)
	forward := true
	var decodeErr error
	for {
		var rep archive.Report
		if err := dec.Decode(&rep); err != nil {
			if !errors.Is(err, io.EOF) {
				decodeErr = fmt.Errorf("decode report: %w", err)
			}
			break
		}
		rep.WorkerID = c.id
		if forward {
			forward = deliver(ctx, reports, rep)
		}
	}
	if decodeErr != nil {
		// The stream is unusable; stop the child so Wait can return.
		if err := c.cmd.Process.Kill(); err != nil {
			c.logger.Debug("kill worker process", zap.Error(err))
		}
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := c.cmd.Wait()
	close(c.exited)

	exit := archive.Report{WorkerID: c.id, Signal: archive.SignalExited}
	if err := errors.Join(decodeErr, waitErr); err != nil {
		exit.Error = err.Error()
		c.logger.Warn("worker process exited", zap.Error(err))
	} else {
		c.logger.Debug("worker process exited")
	}
	if forward {
		deliver(ctx, reports, exit)
	}
}

func deliver(ctx context.Context, reports chan<- archive.Report, rep archive.Report) bool {
	select {
	case reports <- rep:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *processConn) Send(_ context.Context, cmd archive.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrWorkerTerminated
	}
	select {
	case <-c.exited:
		return ErrWorkerTerminated
	default:
	}
	if err := c.enc.Encode(cmd); err != nil {
		return fmt.Errorf("send to worker %d: %w", c.id, err)
	}
	if cmd.Kind == archive.CommandShutdown {
		c.closed = true
		if err := c.stdin.Close(); err != nil {
			c.logger.Debug("close worker stdin", zap.Error(err))
		}
	}
	return nil
}

func (c *processConn) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		if err := c.stdin.Close(); err != nil {
			c.logger.Debug("close worker stdin", zap.Error(err))
		}
	}
	c.mu.Unlock()
	<-c.exited
	return nil
}

// Serve runs w as the child side of the process transport: commands are read
// from in and reports are written to out, one JSON document per line.
func Serve(ctx context.Context, w *Worker, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbox := make(chan archive.Command, 1)
	outbox := make(chan archive.Report, 1)

	go func() {
		defer close(inbox)
		dec := json.NewDecoder(in)
		for {
			var cmd archive.Command
			if err := dec.Decode(&cmd); err != nil {
				return
			}
			select {
			case inbox <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	var writeErr error
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		enc := json.NewEncoder(out)
		for rep := range outbox {
			if writeErr != nil {
				continue
			}
			if err := enc.Encode(rep); err != nil {
				writeErr = fmt.Errorf("write report: %w", err)
				cancel()
			}
		}
	}()

	runErr := w.Run(ctx, inbox, outbox)
	close(outbox)
	<-writerDone
	if writeErr != nil {
		return writeErr
	}
	return runErr
}
