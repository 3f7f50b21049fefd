package artifact

import (
	"context"
	"errors"
	"strings"
)

var ErrInvalidSource = errors.New("invalid build source")

// ImageArtifact is a container image produced by a build. The digest is
// content-addressed and immutable; the tag is a mutable pointer that may be
// repointed by later builds while old digests remain pullable.
type ImageArtifact struct {
	Digest string `json:"digest"`
	Tag    string `json:"tag"`
}

// Ref returns the reference deploys should use: the digest when known, so a
// tag repoint between build and deploy cannot change what runs.
func (a ImageArtifact) Ref() string {
	if a.Digest != "" {
		return a.Digest
	}
	return a.Tag
}

// SourceRef locates the source tree to build from.
type SourceRef struct {
	// Dir is the build context directory.
	Dir string
	// ManifestPath is the dependency manifest within Dir. Its content hash
	// keys the dependency cache layer; mutable tags never do.
	ManifestPath string
}

// Validate checks the source reference is usable.
func (s SourceRef) Validate() error {
	if strings.TrimSpace(s.Dir) == "" || strings.TrimSpace(s.ManifestPath) == "" {
		return ErrInvalidSource
	}
	return nil
}

// BuildArgs are passed through to the image build.
type BuildArgs map[string]string

// Builder produces an immutable, versioned container image from a source
// tree. The output is a pure function of (source tree, build args) given
// pinned base-layer digests.
type Builder interface {
	Build(ctx context.Context, src SourceRef, args BuildArgs) (*ImageArtifact, error)
}
