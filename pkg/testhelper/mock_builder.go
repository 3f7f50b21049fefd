package testhelper

import (
	"context"
	"fmt"

	"github.com/sichatlabs/sichat-deploy/internal/domain/artifact"
)

// MockBuilder is a scripted implementation of artifact.Builder for testing.
type MockBuilder struct {
	BuildCalls []artifact.SourceRef
	Artifact   *artifact.ImageArtifact
	ShouldFail bool
}

func (m *MockBuilder) Build(ctx context.Context, src artifact.SourceRef, args artifact.BuildArgs) (*artifact.ImageArtifact, error) {
	m.BuildCalls = append(m.BuildCalls, src)
	if m.ShouldFail {
		return nil, fmt.Errorf("mock builder: build failed")
	}
	if m.Artifact != nil {
		return m.Artifact, nil
	}
	return &artifact.ImageArtifact{
		Digest: "registry.test/conduit@sha256:deadbeef",
		Tag:    "registry.test/conduit:mock",
	}, nil
}
