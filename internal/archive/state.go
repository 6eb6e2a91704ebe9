package archive

// WorkerState is the lifecycle state of a worker.
type WorkerState int32

// Worker lifecycle states.
const (
	WorkerStarting WorkerState = iota
	WorkerIdle
	WorkerBusy
	WorkerTerminated
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStarting:
		return "starting"
	case WorkerIdle:
		return "idle"
	case WorkerBusy:
		return "busy"
	case WorkerTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
