package nomad

import (
	"context"
	"strings"

	"github.com/hashicorp/nomad/api"
)

// JobState is the coarse state of a job as observed from the cluster.
type JobState string

const (
	JobStateNotFound JobState = "not_found"
	JobStatePending  JobState = "pending"
	JobStateRunning  JobState = "running"
	JobStateStopping JobState = "stopping"
	JobStateStopped  JobState = "stopped"
	JobStateFailed   JobState = "failed"
)

type Client struct {
	client *api.Client
}

// NewClient connects using NOMAD_ADDR and NOMAD_TOKEN from the environment,
// defaulting to localhost.
func NewClient() (*Client, error) {
	cfg := api.DefaultConfig()
	c, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{client: c}, nil
}

// RunJob registers (starts) a job.
func (c *Client) RunJob(ctx context.Context, job *api.Job) error {
	_, _, err := c.client.Jobs().Register(job, (&api.WriteOptions{}).WithContext(ctx))
	return err
}

// StopJob requests a graceful stop, keeping the job record around.
func (c *Client) StopJob(ctx context.Context, jobID string) error {
	_, _, err := c.client.Jobs().Deregister(jobID, false, (&api.WriteOptions{}).WithContext(ctx))
	return err
}

// PurgeJob removes the job record entirely.
func (c *Client) PurgeJob(ctx context.Context, jobID string) error {
	_, _, err := c.client.Jobs().Deregister(jobID, true, (&api.WriteOptions{}).WithContext(ctx))
	return err
}

// ListJobs returns job stubs whose ID starts with prefix.
func (c *Client) ListJobs(ctx context.Context, prefix string) ([]*api.JobListStub, error) {
	opts := (&api.QueryOptions{Prefix: prefix}).WithContext(ctx)
	stubs, _, err := c.client.Jobs().List(opts)
	if err != nil {
		return nil, err
	}
	return stubs, nil
}

// JobInfo fetches the full job record, or nil when the cluster no longer
// knows the ID.
func (c *Client) JobInfo(ctx context.Context, jobID string) (*api.Job, error) {
	job, _, err := c.client.Jobs().Info(jobID, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

// JobStatus derives the coarse job state from the job record and its latest
// allocation. "running" requires every task of the newest allocation to be
// up; scheduler-level "running" alone is not enough.
func (c *Client) JobStatus(ctx context.Context, jobID string) (JobState, error) {
	job, err := c.JobInfo(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job == nil {
		return JobStateNotFound, nil
	}

	stopped := job.Stop != nil && *job.Stop
	status := ""
	if job.Status != nil {
		status = strings.ToLower(strings.TrimSpace(*job.Status))
	}

	if stopped {
		if status == "dead" {
			return JobStateStopped, nil
		}
		return JobStateStopping, nil
	}

	switch status {
	case "dead":
		return JobStateFailed, nil
	case "running":
		ready, err := c.jobReady(ctx, jobID)
		if err != nil {
			return "", err
		}
		if ready {
			return JobStateRunning, nil
		}
		return JobStatePending, nil
	default:
		return JobStatePending, nil
	}
}

func (c *Client) jobReady(ctx context.Context, jobID string) (bool, error) {
	allocs, _, err := c.client.Jobs().Allocations(jobID, false, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	alloc := latestAllocation(allocs)
	return allocationReady(alloc), nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}

func latestAllocation(allocs []*api.AllocationListStub) *api.AllocationListStub {
	var latest *api.AllocationListStub
	for _, alloc := range allocs {
		if alloc == nil {
			continue
		}
		if latest == nil {
			latest = alloc
			continue
		}
		if alloc.ModifyIndex > latest.ModifyIndex {
			latest = alloc
			continue
		}
		if alloc.ModifyIndex == latest.ModifyIndex && alloc.CreateIndex > latest.CreateIndex {
			latest = alloc
		}
	}
	return latest
}

func allocationReady(alloc *api.AllocationListStub) bool {
	if alloc == nil {
		return false
	}
	if alloc.DesiredStatus != "" && strings.ToLower(alloc.DesiredStatus) != api.AllocDesiredStatusRun {
		return false
	}
	if len(alloc.TaskStates) == 0 {
		return false
	}
	for _, state := range alloc.TaskStates {
		if state == nil {
			return false
		}
		if state.Failed {
			return false
		}
		if strings.ToLower(strings.TrimSpace(state.State)) != "running" {
			return false
		}
	}
	return true
}
