package nomad

import (
	"context"
	"fmt"
	"time"

	"github.com/sichatlabs/sichat-deploy/internal/domain/instance"
	"github.com/sichatlabs/sichat-deploy/pkg/nomad"
	"github.com/sichatlabs/sichat-deploy/pkg/snowflake"
)

const (
	homeserverPort = 6167
	volumeDest     = "/var/lib/matrix-conduit"
)

// Adapter implements instance.Registry on top of the Nomad job lifecycle.
// One Nomad job is one service instance; the job ID doubles as the
// instance ID and carries the service name as its prefix.
type Adapter struct {
	client *nomad.Client
	node   *snowflake.Node
}

func NewAdapter(client *nomad.Client, node *snowflake.Node) *Adapter {
	return &Adapter{client: client, node: node}
}

func (a *Adapter) List(ctx context.Context, serviceName string) ([]*instance.ServiceInstance, error) {
	stubs, err := a.client.ListJobs(ctx, serviceName+"-")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	instances := make([]*instance.ServiceInstance, 0, len(stubs))
	for _, stub := range stubs {
		if stub == nil {
			continue
		}
		inst, err := a.Get(ctx, stub.ID)
		if err != nil {
			return nil, err
		}
		if inst == nil || inst.State == instance.StateRemoved {
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

func (a *Adapter) Get(ctx context.Context, id string) (*instance.ServiceInstance, error) {
	job, err := a.client.JobInfo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("job info: %w", err)
	}
	if job == nil {
		return &instance.ServiceInstance{ID: id, State: instance.StateRemoved}, nil
	}

	state, err := a.client.JobStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("job status: %w", err)
	}

	inst := &instance.ServiceInstance{
		ID:          id,
		ServiceName: job.Meta["service"],
		ImageRef:    job.Meta["image"],
		VolumeName:  job.Meta["volume"],
		State:       mapState(state),
		UpdatedAt:   time.Now().UTC(),
	}
	if len(job.Datacenters) > 0 {
		inst.Region = job.Datacenters[0]
	}
	if job.SubmitTime != nil {
		inst.CreatedAt = time.Unix(0, *job.SubmitTime).UTC()
	}
	if state == nomad.JobStateFailed {
		inst.LastError = "job dead without stop request"
	}
	return inst, nil
}

func (a *Adapter) Stop(ctx context.Context, id string) error {
	if err := a.client.StopJob(ctx, id); err != nil {
		return fmt.Errorf("stop job %s: %w", id, err)
	}
	return nil
}

func (a *Adapter) Remove(ctx context.Context, id string) error {
	if err := a.client.PurgeJob(ctx, id); err != nil {
		return fmt.Errorf("remove job %s: %w", id, err)
	}
	return nil
}

func (a *Adapter) Start(ctx context.Context, spec instance.StartSpec) (*instance.ServiceInstance, error) {
	if err := spec.Volume.Validate(); err != nil {
		return nil, err
	}

	jobID := fmt.Sprintf("%s-%d", spec.ServiceName, a.node.GenerateID())
	job, err := nomad.GenerateJob(nomad.JobConfig{
		JobID:       jobID,
		ServiceName: spec.ServiceName,
		Image:       spec.ImageRef,
		Region:      spec.Volume.Region,
		VolumeName:  spec.Volume.Name,
		VolumeDest:  volumeDest,
		Port:        homeserverPort,
		Env:         spec.Env,
	})
	if err != nil {
		return nil, err
	}

	if err := a.client.RunJob(ctx, job); err != nil {
		return nil, fmt.Errorf("register job %s: %w", jobID, err)
	}

	return instance.NewServiceInstance(jobID, spec.ServiceName, spec.ImageRef, spec.Volume.Name, spec.Volume.Region), nil
}

func mapState(state nomad.JobState) instance.State {
	switch state {
	case nomad.JobStateNotFound:
		return instance.StateRemoved
	case nomad.JobStateRunning:
		return instance.StateRunning
	case nomad.JobStateStopping:
		return instance.StateDraining
	case nomad.JobStateStopped, nomad.JobStateFailed:
		return instance.StateStopped
	default:
		return instance.StateStarting
	}
}
