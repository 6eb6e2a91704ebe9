package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/archive"
)

// InProcSpawner runs each worker as a goroutine with an owned mailbox.
type InProcSpawner struct {
	factory archive.CapturerFactory
	logger  *zap.Logger
}

// NewInProcSpawner creates a spawner whose workers acquire renderers from factory.
func NewInProcSpawner(factory archive.CapturerFactory, logger *zap.Logger) *InProcSpawner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InProcSpawner{factory: factory, logger: logger}
}

// Spawn starts a worker goroutine.
func (s *InProcSpawner) Spawn(ctx context.Context, id int, reports chan<- archive.Report) (archive.WorkerConn, error) {
	w := New(id, s.factory, s.logger.Named("worker"))
	conn := &inProcConn{
		inbox: make(chan archive.Command, 1),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(conn.done)
		if err := w.Run(ctx, conn.inbox, reports); err != nil {
			s.logger.Debug("worker exited with error", zap.Int("worker_id", id), zap.Error(err))
		}
	}()
	return conn, nil
}

type inProcConn struct {
	inbox     chan archive.Command
	done      chan struct{}
	mu        sync.Mutex
	shutdown  bool
	closeOnce sync.Once
}

func (c *inProcConn) Send(ctx context.Context, cmd archive.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return ErrWorkerTerminated
	}
	select {
	case c.inbox <- cmd:
	case <-c.done:
		return ErrWorkerTerminated
	case <-ctx.Done():
		return fmt.Errorf("send command: %w", ctx.Err())
	}
	if cmd.Kind == archive.CommandShutdown {
		c.shutdown = true
	}
	return nil
}

func (c *inProcConn) Close() error {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.inbox) })
	<-c.done
	return nil
}
