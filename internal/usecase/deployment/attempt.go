package deployment

import (
	"context"
	"time"
)

// Outcome classifies a finished deployment attempt.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeFailed     Outcome = "failed"
)

// Phase names the step of the redeploy sequence an attempt is in, and on
// failure, the step that failed.
type Phase string

const (
	PhaseBuild Phase = "build"
	PhaseQuery Phase = "query"
	PhaseDrain Phase = "drain"
	PhaseStart Phase = "start"
	PhaseProbe Phase = "probe"
)

// DeploymentAttempt records one redeploy cycle. It lives for the duration
// of one controller invocation; a summary is additionally written to the
// audit store when one is configured.
type DeploymentAttempt struct {
	ID                 string        `json:"id"`
	ServiceName        string        `json:"service_name"`
	ImageRef           string        `json:"image_ref"`
	PreviousInstanceID string        `json:"previous_instance_id,omitempty"`
	NewInstanceID      string        `json:"new_instance_id,omitempty"`
	StartedAt          time.Time     `json:"started_at"`
	FinishedAt         time.Time     `json:"finished_at"`
	Downtime           time.Duration `json:"downtime"`
	Outcome            Outcome       `json:"outcome"`
	FailedPhase        Phase         `json:"failed_phase,omitempty"`
	Error              string        `json:"error,omitempty"`
}

func (a *DeploymentAttempt) fail(phase Phase, err error) {
	a.Outcome = OutcomeFailed
	a.FailedPhase = phase
	if err != nil {
		a.Error = err.Error()
	}
}

// AttemptStore persists attempt summaries for operator review.
type AttemptStore interface {
	Save(ctx context.Context, attempt *DeploymentAttempt) error
	ListRecent(ctx context.Context, serviceName string, limit int) ([]*DeploymentAttempt, error)
}
