// Package engine abstracts the container engine the pipeline shells out
// to. The pipeline never talks to a daemon API: it drives the engine's
// CLI exactly the way an operator would, and propagates its exit status
// unmodified, so a native-extension compilation failure inside a build
// surfaces as the engine's own non-zero exit.
package engine

import (
	"context"
	"io"
)

// BuildOptions configures a single image build.
type BuildOptions struct {
	// ContextDir is the build-context directory handed to the engine.
	// The engine copies it wholesale; filtering is the ignore file's
	// job, not the pipeline's.
	ContextDir string

	// File is the path of the rendered Containerfile.
	File string

	// Tag is the full image reference to produce.
	Tag string

	// Labels are attached to the image as metadata.
	Labels map[string]string
}

// RunOptions configures starting a container from a built image.
type RunOptions struct {
	Image string

	// PublishExternal maps this host port onto PublishInternal in the
	// container. Zero means no mapping: the advertised port is used as
	// the container sees it.
	PublishExternal int
	PublishInternal int

	// Remove deletes the container when it exits.
	Remove bool

	// Name optionally names the container.
	Name string
}

// ImageInfo is the subset of image metadata the pipeline verifies.
type ImageInfo struct {
	ID           string
	User         string
	WorkingDir   string
	Env          []string
	Cmd          []string
	ExposedPorts []string
	Labels       map[string]string
}

// Engine is the container-engine contract the pipeline builds against.
type Engine interface {
	// Name identifies the engine binary, e.g. "docker".
	Name() string

	// Available reports whether the engine binary can be invoked.
	Available() error

	// Build builds an image, streaming engine output to the configured
	// writers. Any engine failure aborts with the engine's exit status.
	Build(ctx context.Context, opts BuildOptions) error

	// ImageExists reports whether the image reference resolves locally.
	ImageExists(ctx context.Context, ref string) (bool, error)

	// Inspect returns the runtime metadata of a built image.
	Inspect(ctx context.Context, ref string) (*ImageInfo, error)

	// RunShell runs a one-shot command inside the image with a shell
	// entrypoint and returns its combined output. Used by verification
	// to inspect the image filesystem.
	RunShell(ctx context.Context, ref, command string) (string, error)

	// Run starts a container in the foreground. The container's exit
	// code propagates as the returned error's exit status.
	Run(ctx context.Context, opts RunOptions) error

	// Stop stops a running container by name.
	Stop(ctx context.Context, name string) error

	// RemoveImage deletes a local image.
	RemoveImage(ctx context.Context, ref string) error
}

// OutputStreams bundles the writers engine output is streamed to.
type OutputStreams struct {
	Stdout io.Writer
	Stderr io.Writer
}
