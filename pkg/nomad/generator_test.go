package nomad

import (
	"testing"
)

func TestGenerateJob(t *testing.T) {
	cfg := JobConfig{
		JobID:       "sichat-1234",
		ServiceName: "sichat",
		Image:       "registry.test/conduit:v0.7.0",
		Region:      "fra",
		VolumeName:  "sichat_data",
		VolumeDest:  "/var/lib/matrix-conduit",
		Port:        6167,
		Env:         map[string]string{"CONDUIT_PORT": "6167"},
	}

	job, err := GenerateJob(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job == nil {
		t.Fatal("expected job to be not nil")
	}

	if *job.ID != "sichat-1234" {
		t.Errorf("expected ID 'sichat-1234', got %s", *job.ID)
	}
	if job.Datacenters[0] != "fra" {
		t.Errorf("expected datacenter 'fra', got %s", job.Datacenters[0])
	}
	if job.Meta["service"] != "sichat" {
		t.Errorf("expected meta service 'sichat', got %s", job.Meta["service"])
	}
	if job.Meta["volume"] != "sichat_data" {
		t.Errorf("expected meta volume 'sichat_data', got %s", job.Meta["volume"])
	}

	taskGroup := job.TaskGroups[0]
	if *taskGroup.Count != 1 {
		t.Errorf("expected count 1, got %d", *taskGroup.Count)
	}

	vol := taskGroup.Volumes["data"]
	if vol == nil {
		t.Fatal("expected volume request 'data'")
	}
	if vol.Source != "sichat_data" {
		t.Errorf("expected volume source 'sichat_data', got %s", vol.Source)
	}
	if vol.AccessMode != "single-node-single-writer" {
		t.Errorf("expected single-writer access mode, got %s", vol.AccessMode)
	}
	if vol.ReadOnly {
		t.Error("expected volume to be read-write")
	}

	task := taskGroup.Tasks[0]
	if task.Config["image"] != "registry.test/conduit:v0.7.0" {
		t.Errorf("unexpected image %v", task.Config["image"])
	}
	if task.Env["CONDUIT_PORT"] != "6167" {
		t.Errorf("expected CONDUIT_PORT 6167, got %s", task.Env["CONDUIT_PORT"])
	}
	if *task.VolumeMounts[0].Destination != "/var/lib/matrix-conduit" {
		t.Errorf("unexpected mount destination %s", *task.VolumeMounts[0].Destination)
	}

	check := taskGroup.Services[0].Checks[0]
	if check.Path != "/_matrix/client/versions" {
		t.Errorf("unexpected check path %s", check.Path)
	}
}

func TestGenerateJob_DefaultResources(t *testing.T) {
	cfg := JobConfig{
		JobID:       "sichat-1",
		ServiceName: "sichat",
		Image:       "registry.test/conduit:v0.7.0",
		Region:      "fra",
		VolumeName:  "sichat_data",
		VolumeDest:  "/var/lib/matrix-conduit",
		Port:        6167,
	}

	job, err := GenerateJob(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := job.TaskGroups[0].Tasks[0]
	if *task.Resources.CPU != 500 {
		t.Errorf("expected CPU 500, got %d", *task.Resources.CPU)
	}
	if *task.Resources.MemoryMB != 1024 {
		t.Errorf("expected Memory 1024, got %d", *task.Resources.MemoryMB)
	}
}

func TestGenerateJob_InvalidConfig(t *testing.T) {
	_, err := GenerateJob(JobConfig{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
}
