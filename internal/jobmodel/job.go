// Package jobmodel defines the orchestrator's core data model: jobs,
// settings, checkpoints, and segments. Types here are plain, tagged
// structs serialized to JSON by internal/store — there is no ORM in this
// layer, only the on-disk layout spec.md §4.A describes.
package jobmodel

import "time"

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusCreated    Status = "created"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusPaused     Status = "paused"
	StatusFinished   Status = "finished"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
	StatusInterrupted Status = "interrupted"
)

// Terminal reports whether the status never re-enters the queue except via
// an explicit restore transition.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Phase is a named stage of the transcription pipeline.
type Phase string

const (
	PhasePending       Phase = "pending"
	PhaseExtract       Phase = "extract"
	PhaseBGMDetect     Phase = "bgm_detect"
	PhaseDemucsGlobal  Phase = "demucs_global"
	PhaseSplit         Phase = "split"
	PhaseTranscribe    Phase = "transcribe"
	PhaseAlign         Phase = "align"
	PhaseSRT           Phase = "srt"
	PhaseComplete      Phase = "complete"
)

// PhaseWeights maps each phase to its share of the global percent. Weights
// sum to 100; phases not listed (pending, complete) contribute zero.
var PhaseWeights = map[Phase]int{
	PhaseExtract:      5,
	PhaseBGMDetect:     3,
	PhaseDemucsGlobal: 7,
	PhaseSplit:        5,
	PhaseTranscribe:   50,
	PhaseAlign:        20,
	PhaseSRT:          10,
}

// PhaseOrder lists phases in pipeline execution order.
var PhaseOrder = []Phase{
	PhasePending,
	PhaseExtract,
	PhaseBGMDetect,
	PhaseDemucsGlobal,
	PhaseSplit,
	PhaseTranscribe,
	PhaseAlign,
	PhaseSRT,
	PhaseComplete,
}

// Paths holds the derived filesystem locations for a job's artifacts.
type Paths struct {
	InputPath      string `json:"input_path"`
	WorkingDir     string `json:"working_dir"`
	AudioPath      string `json:"audio_path"`
	VocalsPath     string `json:"vocals_path,omitempty"`
	OutputSRTPath  string `json:"output_srt_path"`
	CheckpointPath string `json:"checkpoint_path"`
	ThumbnailPath  string `json:"thumbnail_path"`
	PeaksPath      string `json:"peaks_path"`
}

// Job is the unit of work tracked by the Registry and driven by the
// Supervisor/Executor. See spec.md §3.1.
type Job struct {
	ID      string `json:"id"`
	Filename string `json:"filename"`
	Title   string `json:"title,omitempty"`

	Status       Status `json:"status"`
	Phase        Phase  `json:"phase"`
	Percent      int    `json:"percent"`
	PhasePercent int    `json:"phase_percent"`
	Message      string `json:"message,omitempty"`

	Settings Settings `json:"settings"`
	Language string   `json:"language,omitempty"`

	LastError string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Paths Paths `json:"paths"`
}

// Clone returns a deep-enough copy for safe snapshotting across the
// Registry's lock boundary (slices inside Settings are not mutated after
// freeze, so a shallow struct copy is sufficient).
func (j Job) Clone() Job {
	return j
}
