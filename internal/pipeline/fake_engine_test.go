package pipeline

import (
	"context"
	"fmt"

	"github.com/dockhand-build/dockhand/internal/engine"
)

// fakeEngine records engine calls and fails on demand.
type fakeEngine struct {
	buildErr   error
	buildCalls []engine.BuildOptions
	runCalls   []engine.RunOptions
	images     map[string]*engine.ImageInfo
	shellOut   map[string]string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		images:   make(map[string]*engine.ImageInfo),
		shellOut: make(map[string]string),
	}
}

func (f *fakeEngine) Name() string     { return "fake" }
func (f *fakeEngine) Available() error { return nil }

func (f *fakeEngine) Build(ctx context.Context, opts engine.BuildOptions) error {
	f.buildCalls = append(f.buildCalls, opts)
	return f.buildErr
}

func (f *fakeEngine) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, ok := f.images[ref]
	return ok, nil
}

func (f *fakeEngine) Inspect(ctx context.Context, ref string) (*engine.ImageInfo, error) {
	info, ok := f.images[ref]
	if !ok {
		return nil, fmt.Errorf("no such image: %s", ref)
	}
	return info, nil
}

func (f *fakeEngine) RunShell(ctx context.Context, ref, command string) (string, error) {
	out, ok := f.shellOut[command]
	if !ok {
		return "", fmt.Errorf("unexpected command: %s", command)
	}
	return out, nil
}

func (f *fakeEngine) Run(ctx context.Context, opts engine.RunOptions) error {
	f.runCalls = append(f.runCalls, opts)
	return nil
}

func (f *fakeEngine) Stop(ctx context.Context, name string) error { return nil }

func (f *fakeEngine) RemoveImage(ctx context.Context, ref string) error {
	delete(f.images, ref)
	return nil
}
