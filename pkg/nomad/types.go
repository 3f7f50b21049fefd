package nomad

import "errors"

// JobConfig holds the configuration required to generate a homeserver job.
// One job is one service instance; replacing a version means registering a
// new job, never updating one in place.
type JobConfig struct {
	JobID       string
	ServiceName string
	Image       string
	Region      string

	// VolumeName is the durable volume backing the homeserver database.
	// The generated job claims it single-writer: the volume must never be
	// mounted read-write by two allocations at once.
	VolumeName string
	// VolumeDest is the mount path inside the task.
	VolumeDest string

	Port int
	Env  map[string]string

	CPU      int
	MemoryMB int
}

// Validate checks if the JobConfig is valid.
func (c JobConfig) Validate() error {
	if c.JobID == "" {
		return errors.New("job id is required")
	}
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}
	if c.Image == "" {
		return errors.New("image is required")
	}
	if c.VolumeName == "" {
		return errors.New("volume name is required")
	}
	if c.VolumeDest == "" {
		return errors.New("volume destination is required")
	}
	if c.Port <= 0 {
		return errors.New("invalid port")
	}
	return nil
}
