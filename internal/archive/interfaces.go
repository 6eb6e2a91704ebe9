package archive

import (
	"context"
	"io"
)

// Capturer renders a single link into artifacts beneath the job's destination.
// A Capturer owns one renderer instance and is used by one worker at a time.
type Capturer interface {
	Capture(ctx context.Context, job Job) (Result, error)
	Close(ctx context.Context) error
}

// CapturerFactory acquires the renderer a worker keeps for its whole lifetime.
type CapturerFactory func(ctx context.Context) (Capturer, error)

// ArtifactStore writes raw artifacts and returns a URI.
type ArtifactStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// WorkerConn is the dispatcher's end of the point-to-point channel to one
// worker. Messages on a single connection are delivered in send order.
type WorkerConn interface {
	Send(ctx context.Context, cmd Command) error
	// Close releases the connection and waits for the worker to exit.
	Close() error
}

// Spawner launches a worker that reports to the shared dispatcher inbox.
type Spawner interface {
	Spawn(ctx context.Context, id int, reports chan<- Report) (WorkerConn, error)
}
