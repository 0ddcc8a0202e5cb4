package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	pipelineerrors "github.com/dockhand-build/dockhand/internal/errors"
)

// execCommand is swapped out by tests.
var execCommand = exec.CommandContext

// CLIEngine drives a container engine through its command-line binary.
// It works with docker and podman; both accept the same verbs for the
// subset of operations the pipeline needs.
type CLIEngine struct {
	binary  string
	streams OutputStreams
	log     *zap.Logger
}

// NewCLIEngine creates an engine for the given binary name. The logger
// may be nil; engine output is streamed to the given writers during
// Build and Run.
func NewCLIEngine(binary string, streams OutputStreams, log *zap.Logger) *CLIEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &CLIEngine{binary: binary, streams: streams, log: log}
}

// Name implements Engine.
func (e *CLIEngine) Name() string { return e.binary }

// Available implements Engine.
func (e *CLIEngine) Available() error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return pipelineerrors.Newf(pipelineerrors.StageEngine, pipelineerrors.ErrEngineNotFound,
			"container engine %q not found in PATH", e.binary).AsFatal()
	}
	return nil
}

// Build implements Engine.
func (e *CLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	args := buildArgs(opts)
	e.log.Debug("running engine build", zap.String("binary", e.binary), zap.Strings("args", args))

	cmd := execCommand(ctx, e.binary, args...)
	cmd.Stdout = e.streams.Stdout
	cmd.Stderr = e.streams.Stderr

	if err := cmd.Run(); err != nil {
		return pipelineerrors.Newf(pipelineerrors.StageEngine, pipelineerrors.ErrEngineBuild,
			"%s build failed (exit status %d)", e.binary, exitCode(err)).AsFatal()
	}
	return nil
}

// ImageExists implements Engine.
func (e *CLIEngine) ImageExists(ctx context.Context, ref string) (bool, error) {
	cmd := execCommand(ctx, e.binary, "image", "inspect", ref)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect image %s: %w", ref, err)
	}
	return true, nil
}

// Inspect implements Engine.
func (e *CLIEngine) Inspect(ctx context.Context, ref string) (*ImageInfo, error) {
	cmd := execCommand(ctx, e.binary, "image", "inspect", ref)
	out, err := cmd.Output()
	if err != nil {
		return nil, pipelineerrors.Newf(pipelineerrors.StageEngine, pipelineerrors.ErrEngineNoImage,
			"image %s not found: %v", ref, err)
	}
	return parseImageInfo(out, ref)
}

// RunShell implements Engine.
func (e *CLIEngine) RunShell(ctx context.Context, ref, command string) (string, error) {
	cmd := execCommand(ctx, e.binary, "run", "--rm", "--entrypoint", "sh", ref, "-c", command)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), pipelineerrors.Newf(pipelineerrors.StageEngine, pipelineerrors.ErrEngineRun,
			"command failed in %s (exit status %d): %s", ref, exitCode(err), strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Run implements Engine.
func (e *CLIEngine) Run(ctx context.Context, opts RunOptions) error {
	args := runArgs(opts)
	e.log.Debug("running container", zap.String("binary", e.binary), zap.Strings("args", args))

	cmd := execCommand(ctx, e.binary, args...)
	cmd.Stdout = e.streams.Stdout
	cmd.Stderr = e.streams.Stderr

	if err := cmd.Run(); err != nil {
		return pipelineerrors.Newf(pipelineerrors.StageRuntime, pipelineerrors.ErrRuntimeStart,
			"container exited with status %d", exitCode(err))
	}
	return nil
}

// Stop implements Engine.
func (e *CLIEngine) Stop(ctx context.Context, name string) error {
	cmd := execCommand(ctx, e.binary, "stop", name)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to stop container %s: %w", name, err)
	}
	return nil
}

// RemoveImage implements Engine.
func (e *CLIEngine) RemoveImage(ctx context.Context, ref string) error {
	cmd := execCommand(ctx, e.binary, "image", "rm", ref)
	cmd.Stdout = e.streams.Stdout
	cmd.Stderr = e.streams.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to remove image %s: %w", ref, err)
	}
	return nil
}

// buildArgs assembles the engine build invocation. Labels are emitted in
// sorted order so the invocation is deterministic.
func buildArgs(opts BuildOptions) []string {
	args := []string{"build", "--file", opts.File, "--tag", opts.Tag}

	keys := make([]string, 0, len(opts.Labels))
	for k := range opts.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--label", k+"="+opts.Labels[k])
	}

	return append(args, opts.ContextDir)
}

// runArgs assembles the engine run invocation.
func runArgs(opts RunOptions) []string {
	args := []string{"run"}
	if opts.Remove {
		args = append(args, "--rm")
	}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	if opts.PublishExternal > 0 && opts.PublishInternal > 0 {
		args = append(args, "--publish",
			strconv.Itoa(opts.PublishExternal)+":"+strconv.Itoa(opts.PublishInternal))
	}
	return append(args, opts.Image)
}

// inspectRecord mirrors the engine's inspect JSON shape. Both docker and
// podman emit an array with a Config object.
type inspectRecord struct {
	ID     string `json:"Id"`
	Config struct {
		User         string            `json:"User"`
		WorkingDir   string            `json:"WorkingDir"`
		Env          []string          `json:"Env"`
		Cmd          []string          `json:"Cmd"`
		ExposedPorts map[string]any    `json:"ExposedPorts"`
		Labels       map[string]string `json:"Labels"`
	} `json:"Config"`
}

func parseImageInfo(data []byte, ref string) (*ImageInfo, error) {
	var records []inspectRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, pipelineerrors.Newf(pipelineerrors.StageEngine, pipelineerrors.ErrEngineInspect,
			"cannot parse inspect output for %s: %v", ref, err)
	}
	if len(records) == 0 {
		return nil, pipelineerrors.Newf(pipelineerrors.StageEngine, pipelineerrors.ErrEngineNoImage,
			"inspect returned no records for %s", ref)
	}

	rec := records[0]
	info := &ImageInfo{
		ID:         rec.ID,
		User:       rec.Config.User,
		WorkingDir: rec.Config.WorkingDir,
		Env:        rec.Config.Env,
		Cmd:        rec.Config.Cmd,
		Labels:     rec.Config.Labels,
	}
	for port := range rec.Config.ExposedPorts {
		info.ExposedPorts = append(info.ExposedPorts, port)
	}
	sort.Strings(info.ExposedPorts)
	return info, nil
}

// exitCode extracts the process exit status from an exec error.
func exitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
