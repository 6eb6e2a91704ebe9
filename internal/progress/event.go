package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageWorkerReady      Stage = "WORKER_READY"
	StageWorkerInitFailed Stage = "WORKER_INIT_FAILED"
	StageWorkerExit       Stage = "WORKER_EXIT"
	StageJobStart         Stage = "JOB_START"
	StageJobDone          Stage = "JOB_DONE"
	StageJobError         Stage = "JOB_ERROR"
)

// Event captures one pool or job transition.
type Event struct {
	// RunID identifies one dispatcher run in 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	Stage Stage
	WorkerID int
	// URL is the job link for JOB_* stages.
	URL string
	// Media counts side downloads for JOB_DONE.
	Media int
	Dur   time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageWorkerReady, StageWorkerInitFailed, StageWorkerExit:
	case StageJobStart, StageJobDone, StageJobError:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Media < 0 {
		return errors.New("media must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
