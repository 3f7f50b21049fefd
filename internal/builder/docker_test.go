package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sichatlabs/sichat-deploy/internal/domain/artifact"
)

type fakeRunner struct {
	commands [][]string
	outputs  map[string]string
	failOn   string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := append([]string{name}, args...)
	f.commands = append(f.commands, cmd)

	verb := args[0]
	if f.failOn == verb {
		return "", errors.New("exit status 1")
	}
	return f.outputs[verb], nil
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Cargo.lock")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir
}

func TestBuild_TagDerivedFromManifestHash(t *testing.T) {
	dir := writeManifest(t, "[[package]]\nname = \"conduit\"\n")
	sum := sha256.Sum256([]byte("[[package]]\nname = \"conduit\"\n"))
	wantHash := hex.EncodeToString(sum[:])

	runner := &fakeRunner{outputs: map[string]string{
		"inspect": "registry.test/conduit@sha256:abc123",
	}}
	b := &DockerBuilder{
		repo:       "registry.test/conduit",
		dockerfile: "Dockerfile",
		runner:     runner,
		logger:     zap.NewNop(),
	}

	art, err := b.Build(context.Background(), artifact.SourceRef{Dir: dir, ManifestPath: "Cargo.lock"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "registry.test/conduit:"+wantHash[:12], art.Tag)
	assert.Equal(t, "registry.test/conduit@sha256:abc123", art.Digest)
	assert.Equal(t, art.Digest, art.Ref())

	require.Len(t, runner.commands, 3)
	assert.Equal(t, "build", runner.commands[0][1])
	assert.Equal(t, "push", runner.commands[1][1])
	assert.Equal(t, "inspect", runner.commands[2][1])

	joined := strings.Join(runner.commands[0], " ")
	assert.Contains(t, joined, "--label deploy.manifest-sha256="+wantHash)
}

func TestBuild_SameManifestSameTag(t *testing.T) {
	dirA := writeManifest(t, "pinned deps v1")
	dirB := writeManifest(t, "pinned deps v1")

	runner := &fakeRunner{outputs: map[string]string{"inspect": "registry.test/conduit@sha256:x"}}
	b := &DockerBuilder{repo: "registry.test/conduit", dockerfile: "Dockerfile", runner: runner, logger: zap.NewNop()}

	artA, err := b.Build(context.Background(), artifact.SourceRef{Dir: dirA, ManifestPath: "Cargo.lock"}, nil)
	require.NoError(t, err)
	artB, err := b.Build(context.Background(), artifact.SourceRef{Dir: dirB, ManifestPath: "Cargo.lock"}, nil)
	require.NoError(t, err)

	assert.Equal(t, artA.Tag, artB.Tag)
}

func TestBuild_ChangedManifestChangesTag(t *testing.T) {
	dirA := writeManifest(t, "pinned deps v1")
	dirB := writeManifest(t, "pinned deps v2")

	runner := &fakeRunner{outputs: map[string]string{"inspect": "registry.test/conduit@sha256:x"}}
	b := &DockerBuilder{repo: "registry.test/conduit", dockerfile: "Dockerfile", runner: runner, logger: zap.NewNop()}

	artA, err := b.Build(context.Background(), artifact.SourceRef{Dir: dirA, ManifestPath: "Cargo.lock"}, nil)
	require.NoError(t, err)
	artB, err := b.Build(context.Background(), artifact.SourceRef{Dir: dirB, ManifestPath: "Cargo.lock"}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, artA.Tag, artB.Tag)
}

func TestBuild_BuildArgsSorted(t *testing.T) {
	dir := writeManifest(t, "deps")

	runner := &fakeRunner{outputs: map[string]string{"inspect": "registry.test/conduit@sha256:x"}}
	b := &DockerBuilder{repo: "registry.test/conduit", dockerfile: "Dockerfile", runner: runner, logger: zap.NewNop()}

	_, err := b.Build(context.Background(), artifact.SourceRef{Dir: dir, ManifestPath: "Cargo.lock"}, artifact.BuildArgs{
		"ZED": "1",
		"ALP": "2",
	})
	require.NoError(t, err)

	joined := strings.Join(runner.commands[0], " ")
	assert.Less(t, strings.Index(joined, "ALP=2"), strings.Index(joined, "ZED=1"))
}

func TestBuild_PushFailureSurfaces(t *testing.T) {
	dir := writeManifest(t, "deps")

	runner := &fakeRunner{failOn: "push"}
	b := &DockerBuilder{repo: "registry.test/conduit", dockerfile: "Dockerfile", runner: runner, logger: zap.NewNop()}

	_, err := b.Build(context.Background(), artifact.SourceRef{Dir: dir, ManifestPath: "Cargo.lock"}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "image push")
}

func TestBuild_MissingManifest(t *testing.T) {
	b := &DockerBuilder{repo: "r", dockerfile: "Dockerfile", runner: &fakeRunner{}, logger: zap.NewNop()}

	_, err := b.Build(context.Background(), artifact.SourceRef{Dir: t.TempDir(), ManifestPath: "Cargo.lock"}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash dependency manifest")
}
