package pipeline

import "fmt"

type State int

const (
	Queued State = iota
	SlotAcquired
	DiarizationRunning
	TranscriptionRunning
	Reconciling
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case SlotAcquired:
		return "slot_acquired"
	case DiarizationRunning:
		return "diarization_running"
	case TranscriptionRunning:
		return "transcription_running"
	case Reconciling:
		return "reconciling"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// JobError is a per-job failure. State is the state the job was in when it
// failed; Err is the original cause.
type JobError struct {
	JobID string
	State State
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed while %s: %v", e.JobID, e.State, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}
