package archive

import (
	"time"
)

// Job pairs a link with the directory its artifacts are written beneath.
type Job struct {
	Link           string `json:"link"`
	DestinationDir string `json:"destination_dir"`
}

// CommandKind identifies a message sent from the dispatcher to a worker.
type CommandKind string

// Command kinds understood by workers.
const (
	CommandJob      CommandKind = "job"
	CommandShutdown CommandKind = "shutdown"
)

// Command is a dispatcher-to-worker message.
type Command struct {
	Kind CommandKind `json:"kind"`
	Job  Job         `json:"job,omitzero"`
}

// JobCommand wraps a job for delivery to a worker.
func JobCommand(job Job) Command {
	return Command{Kind: CommandJob, Job: job}
}

// ShutdownCommand asks an idle worker to release its renderer and exit.
func ShutdownCommand() Command {
	return Command{Kind: CommandShutdown}
}

// Signal identifies a worker-to-dispatcher message.
type Signal string

// Signals reported by workers (and by transports on their behalf).
const (
	SignalReady      Signal = "ready"
	SignalJobDone    Signal = "job_done"
	SignalJobFailed  Signal = "job_failed"
	SignalInitFailed Signal = "init_failed"
	SignalExited     Signal = "exited"
)

// Terminal reports whether the signal ends a job.
func (s Signal) Terminal() bool {
	return s == SignalJobDone || s == SignalJobFailed
}

// Report is a worker-to-dispatcher message.
type Report struct {
	WorkerID int           `json:"worker_id"`
	Signal   Signal        `json:"signal"`
	Job      Job           `json:"job,omitzero"`
	Artifact string        `json:"artifact,omitempty"`
	Media    int           `json:"media,omitempty"`
	Duration time.Duration `json:"duration,omitzero"`
	Error    string        `json:"error,omitempty"`
}

// Result describes the artifacts produced by one successful capture.
type Result struct {
	// Screenshot is the URI of the primary artifact. It is always set on success.
	Screenshot string
	// Media lists the URIs of best-effort side downloads.
	Media []string
}
