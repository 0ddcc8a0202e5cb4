package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dockhand-build/dockhand/internal/engine"
	pipelineerrors "github.com/dockhand-build/dockhand/internal/errors"
	"github.com/dockhand-build/dockhand/internal/manifest"
	"github.com/dockhand-build/dockhand/internal/render"
	"go.uber.org/zap"
)

// Stage and label names shared with the verify and history commands.
const (
	StageNameResolve  = "resolve"
	StageNameAssemble = "assemble"

	LabelBuildID        = "dockhand.build-id"
	LabelRecipeDigest   = "dockhand.recipe-digest"
	LabelManifestDigest = "dockhand.manifest-digest"

	// WorkDirName is the pipeline's scratch/publish directory inside
	// the project root.
	WorkDirName = ".dockhand"
)

// NewStandardGraph wires the canonical two-stage pipeline: dependency
// resolution feeding the runtime assembler.
func NewStandardGraph() *Graph {
	g := NewGraph()
	// Both stages have unique names; Add cannot fail here.
	_ = g.Add(&ResolveStage{})
	_ = g.Add(&AssembleStage{})
	return g
}

// ResolveStage validates the dependency manifest before any engine work
// starts. It is the host-side half of the builder stage: unresolvable
// syntax, duplicates, or a missing manifest fail the build here, so the
// runtime assembler never runs against a broken input.
type ResolveStage struct{}

// Name implements Stage.
func (s *ResolveStage) Name() string { return StageNameResolve }

// Deps implements Stage.
func (s *ResolveStage) Deps() []string { return nil }

// Run implements Stage.
func (s *ResolveStage) Run(ctx context.Context, b *Build) error {
	path := filepath.Join(b.ContextDir(), b.Recipe.Builder.Manifest)

	m, errs := manifest.ParseFile(path)
	if errs.HasErrors() {
		return errs
	}
	b.Manifest = m

	pinned := 0
	for _, req := range m.Requirements {
		if req.Pinned() {
			pinned++
		}
	}
	b.Log.Info("manifest resolved",
		zap.Int("packages", len(m.Requirements)),
		zap.Int("pinned", pinned),
		zap.String("digest", m.Digest()))

	if b.Recipe.Builder.UpgradePip {
		// The pip self-upgrade floats the resolver version between
		// otherwise identical builds. Accepted, but never silent.
		b.Log.Warn("package manager upgrade enabled; resolver version floats between builds")
	}

	return nil
}

// AssembleStage renders the Containerfile and drives the engine build.
// The rendered file lives in a scratch path until the engine succeeds;
// only then is it promoted into the publish directory, so a failed build
// leaves no half-published artifact behind.
type AssembleStage struct{}

// Name implements Stage.
func (s *AssembleStage) Name() string { return StageNameAssemble }

// Deps implements Stage.
func (s *AssembleStage) Deps() []string { return []string{StageNameResolve} }

// Run implements Stage.
func (s *AssembleStage) Run(ctx context.Context, b *Build) error {
	data, errs := render.Render(b.Recipe)
	if errs.HasErrors() {
		return errs
	}
	b.Containerfile = data

	workDir := filepath.Join(b.Dir, WorkDirName)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}

	scratch := filepath.Join(workDir, render.DefaultFileName+".partial")
	if err := os.WriteFile(scratch, data, 0644); err != nil {
		return pipelineerrors.Newf(pipelineerrors.StageRender, pipelineerrors.ErrRenderWrite,
			"failed to write containerfile: %v", err)
	}
	defer os.Remove(scratch)

	ref := b.Recipe.Ref()
	err := b.Engine.Build(ctx, engine.BuildOptions{
		ContextDir: b.ContextDir(),
		File:       scratch,
		Tag:        ref,
		Labels: map[string]string{
			LabelBuildID:        b.ID,
			LabelRecipeDigest:   b.Recipe.Digest(),
			LabelManifestDigest: b.Manifest.Digest(),
		},
	})
	if err != nil {
		return err
	}

	published := filepath.Join(workDir, render.DefaultFileName)
	if err := os.Rename(scratch, published); err != nil {
		return pipelineerrors.Newf(pipelineerrors.StageRender, pipelineerrors.ErrRenderWrite,
			"failed to publish containerfile: %v", err)
	}

	b.ContainerfilePath = published
	b.ImageRef = ref
	b.Log.Info("image assembled", zap.String("image", ref))

	return nil
}

// ContextDir resolves the recipe's build-context directory against the
// project root.
func (b *Build) ContextDir() string {
	if filepath.IsAbs(b.Recipe.Context) {
		return b.Recipe.Context
	}
	return filepath.Join(b.Dir, b.Recipe.Context)
}
