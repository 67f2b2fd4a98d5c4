package models

import "github.com/google/uuid"

// RunStatus tracks a generation run through its state machine.
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunInProgress RunStatus = "in_progress"
	RunComplete   RunStatus = "complete"
	RunFailed     RunStatus = "failed"
)

// Terminating conditions reported on a finished run.
const (
	ReasonCompleted         = "completed"
	ReasonStalled           = "stalled"
	ReasonRetryExhausted    = "retry_exhausted"
	ReasonAttemptsExhausted = "attempts_exhausted"
	ReasonCanceled          = "canceled"
	ReasonMissingDependency = "missing_dependency"
)

// RunReport summarizes one generation run for one entity type.
type RunReport struct {
	RunID      uuid.UUID `json:"run_id"`
	EntityType string    `json:"entity_type"`
	Status     RunStatus `json:"status"`
	Produced   int       `json:"produced"`
	Target     int       `json:"target"`
	Attempts   int       `json:"attempts"`
	Stalls     int       `json:"stalls"`
	Dropped    int       `json:"dropped"`
	Reason     string    `json:"reason,omitempty"`
	OutputFile string    `json:"output_file,omitempty"`
}

// Shortfall is how many records short of target the run finished.
func (r *RunReport) Shortfall() int {
	if r.Produced >= r.Target {
		return 0
	}
	return r.Target - r.Produced
}
