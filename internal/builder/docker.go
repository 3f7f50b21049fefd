package builder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sichatlabs/sichat-deploy/internal/domain/artifact"
)

// CommandRunner abstracts process execution so the build steps can be
// tested without a Docker daemon.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, out.String())
	}
	return strings.TrimSpace(out.String()), nil
}

// DockerBuilder builds and pushes homeserver images with the Docker CLI.
// The dependency cache layer is keyed by a hash of the dependency manifest
// content, never by a mutable tag, so a silently repointed upstream tag
// cannot reuse a stale layer.
type DockerBuilder struct {
	repo       string
	dockerfile string
	runner     CommandRunner
	logger     *zap.Logger
}

func NewDockerBuilder(repo, dockerfile string, logger *zap.Logger) *DockerBuilder {
	return &DockerBuilder{
		repo:       repo,
		dockerfile: dockerfile,
		runner:     execRunner{},
		logger:     logger.Named("builder"),
	}
}

func (b *DockerBuilder) Build(ctx context.Context, src artifact.SourceRef, args artifact.BuildArgs) (*artifact.ImageArtifact, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	manifestHash, err := hashManifest(filepath.Join(src.Dir, src.ManifestPath))
	if err != nil {
		return nil, fmt.Errorf("hash dependency manifest: %w", err)
	}

	tag := fmt.Sprintf("%s:%s", b.repo, manifestHash[:12])
	buildArgs := buildCommandArgs(tag, b.dockerfile, manifestHash, src.Dir, args)

	b.logger.Info("build_started",
		zap.String("tag", tag),
		zap.String("manifest_hash", manifestHash),
	)

	if _, err := b.runner.Run(ctx, "docker", buildArgs...); err != nil {
		return nil, fmt.Errorf("image build: %w", err)
	}

	if _, err := b.runner.Run(ctx, "docker", "push", tag); err != nil {
		return nil, fmt.Errorf("image push: %w", err)
	}

	digest, err := b.runner.Run(ctx, "docker", "inspect", "--format", "{{index .RepoDigests 0}}", tag)
	if err != nil {
		return nil, fmt.Errorf("resolve image digest: %w", err)
	}

	b.logger.Info("build_finished",
		zap.String("tag", tag),
		zap.String("digest", digest),
	)

	return &artifact.ImageArtifact{
		Digest: digest,
		Tag:    tag,
	}, nil
}

// buildCommandArgs assembles the docker build invocation. Build args are
// sorted so the command line is stable for identical inputs.
func buildCommandArgs(tag, dockerfile, manifestHash, dir string, args artifact.BuildArgs) []string {
	out := []string{
		"build",
		"--file", dockerfile,
		"--tag", tag,
		"--label", "deploy.manifest-sha256=" + manifestHash,
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, "--build-arg", fmt.Sprintf("%s=%s", k, args[k]))
	}

	return append(out, dir)
}

func hashManifest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
