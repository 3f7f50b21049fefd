package nomad

import (
	"fmt"
	"time"

	"github.com/hashicorp/nomad/api"
)

const (
	defaultCPU      = 500
	defaultMemoryMB = 1024
)

// GenerateJob creates a Nomad job specification for a single homeserver
// instance. The job claims the durable volume with single-writer access so
// the scheduler refuses a second concurrent claim.
func GenerateJob(cfg JobConfig) (*api.Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job config: %w", err)
	}

	jobType := "service"
	region := "global"

	cpu := cfg.CPU
	if cpu <= 0 {
		cpu = defaultCPU
	}
	memoryMB := cfg.MemoryMB
	if memoryMB <= 0 {
		memoryMB = defaultMemoryMB
	}

	taskGroup := &api.TaskGroup{
		Name:  stringToPtr(cfg.JobID),
		Count: intToPtr(1),
		RestartPolicy: &api.RestartPolicy{
			Attempts: intToPtr(2),
			Interval: timeToPtr(5 * time.Minute),
			Delay:    timeToPtr(15 * time.Second),
			Mode:     stringToPtr("fail"),
		},
		Networks: []*api.NetworkResource{
			{
				DynamicPorts: []api.Port{
					{Label: "http", To: cfg.Port},
				},
			},
		},
		Volumes: map[string]*api.VolumeRequest{
			"data": {
				Name:           "data",
				Type:           "csi",
				Source:         cfg.VolumeName,
				ReadOnly:       false,
				AccessMode:     "single-node-single-writer",
				AttachmentMode: "file-system",
			},
		},
	}

	task := &api.Task{
		Name:   "homeserver",
		Driver: "docker",
		Config: map[string]interface{}{
			"image": cfg.Image,
			"ports": []string{"http"},
		},
		Env: cfg.Env,
		Resources: &api.Resources{
			CPU:      &cpu,
			MemoryMB: &memoryMB,
		},
		VolumeMounts: []*api.VolumeMount{
			{
				Volume:      stringToPtr("data"),
				Destination: stringToPtr(cfg.VolumeDest),
				ReadOnly:    boolToPtr(false),
			},
		},
	}

	service := &api.Service{
		Name:      cfg.ServiceName,
		PortLabel: "http",
		Checks: []api.ServiceCheck{
			{
				Type:     "http",
				Path:     "/_matrix/client/versions",
				Interval: 10 * time.Second,
				Timeout:  2 * time.Second,
			},
		},
	}

	taskGroup.Tasks = []*api.Task{task}
	taskGroup.Services = []*api.Service{service}

	job := &api.Job{
		ID:          stringToPtr(cfg.JobID),
		Name:        stringToPtr(cfg.JobID),
		Type:        stringToPtr(jobType),
		Region:      stringToPtr(region),
		Datacenters: []string{cfg.Region},
		Meta: map[string]string{
			"service": cfg.ServiceName,
			"image":   cfg.Image,
			"volume":  cfg.VolumeName,
		},
		TaskGroups: []*api.TaskGroup{taskGroup},
	}

	return job, nil
}

// Helpers
func intToPtr(i int) *int                      { return &i }
func boolToPtr(b bool) *bool                   { return &b }
func stringToPtr(s string) *string             { return &s }
func timeToPtr(d time.Duration) *time.Duration { return &d }
