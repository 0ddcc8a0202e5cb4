// Package verify checks a built image against the pipeline's contract:
// no build toolchain or package-index caches in the runtime surface, a
// non-privileged execution identity, the advertised port, the enumerated
// runtime environment, and the declared start command. Metadata checks
// read the engine's image inspection; filesystem checks run a one-shot
// container.
package verify

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dockhand-build/dockhand/internal/engine"
	pipelineerrors "github.com/dockhand-build/dockhand/internal/errors"
	"github.com/dockhand-build/dockhand/internal/recipe"
)

// Options configures a verification run.
type Options struct {
	// Probe starts a container and waits for the advertised port to
	// accept connections. Off by default: it needs a runnable image and
	// a free host port.
	Probe bool

	// ProbeTimeout bounds how long the probe waits for the port.
	ProbeTimeout time.Duration

	// ProbePort is the host port the probe publishes the advertised
	// port on. Zero means same as the advertised port.
	ProbePort int
}

// Result is the outcome of a single check.
type Result struct {
	Check   string
	Err     error
	Skipped bool
	Detail  string
}

// Passed reports whether the result succeeded.
func (r Result) Passed() bool { return r.Err == nil && !r.Skipped }

// Passed reports whether every non-skipped check succeeded.
func Passed(results []Result) bool {
	for _, r := range results {
		if r.Err != nil {
			return false
		}
	}
	return true
}

// Run executes every check against the image the recipe describes.
// Checks continue past failures so one run reports every violation.
func Run(ctx context.Context, eng engine.Engine, r *recipe.Recipe, ref string, opts Options) ([]Result, error) {
	info, err := eng.Inspect(ctx, ref)
	if err != nil {
		return nil, err
	}

	results := []Result{
		checkNoToolchain(ctx, eng, ref),
		checkNoPackageCache(ctx, eng, ref),
		checkUser(info, r),
		checkExposedPort(info, r),
		checkRuntimeEnv(info, r),
		checkStartCommand(info, r),
	}

	if opts.Probe {
		results = append(results, probeListen(ctx, eng, r, ref, opts))
	} else {
		results = append(results, Result{
			Check:   "listen-probe",
			Skipped: true,
			Detail:  "probe disabled; pass --probe to start the image and wait for the port",
		})
	}

	return results, nil
}

// toolchainBinaries is the fixed set of compiler tools that must never
// survive into the runtime image.
var toolchainBinaries = []string{"gcc", "cc", "g++", "make", "ld"}

func checkNoToolchain(ctx context.Context, eng engine.Engine, ref string) Result {
	cmd := fmt.Sprintf("for t in %s; do command -v $t; done; true", strings.Join(toolchainBinaries, " "))
	out, err := eng.RunShell(ctx, ref, cmd)
	if err != nil {
		return Result{Check: "no-toolchain", Err: err}
	}
	if found := strings.TrimSpace(out); found != "" {
		return Result{
			Check: "no-toolchain",
			Err: pipelineerrors.Newf(pipelineerrors.StageVerify, pipelineerrors.ErrVerifyToolchain,
				"compiler toolchain present in runtime image: %s", strings.Join(strings.Fields(found), " ")),
		}
	}
	return Result{Check: "no-toolchain"}
}

// cachePaths are the package-manager cache locations that must be empty
// or absent in the runtime image.
var cachePaths = []string{
	"/root/.cache/pip",
	"/home/*/.cache/pip",
	"/var/lib/apt/lists/*",
	"/var/cache/apt/archives/*.deb",
}

func checkNoPackageCache(ctx context.Context, eng engine.Engine, ref string) Result {
	cmd := fmt.Sprintf("ls -d %s 2>/dev/null; true", strings.Join(cachePaths, " "))
	out, err := eng.RunShell(ctx, ref, cmd)
	if err != nil {
		return Result{Check: "no-package-cache", Err: err}
	}
	if found := strings.TrimSpace(out); found != "" {
		return Result{
			Check: "no-package-cache",
			Err: pipelineerrors.Newf(pipelineerrors.StageVerify, pipelineerrors.ErrVerifyCache,
				"package caches present in runtime image: %s", strings.Join(strings.Fields(found), " ")),
		}
	}
	return Result{Check: "no-package-cache"}
}

func checkUser(info *engine.ImageInfo, r *recipe.Recipe) Result {
	switch info.User {
	case "":
		return Result{
			Check: "non-root-user",
			Err: pipelineerrors.New(pipelineerrors.StageVerify, pipelineerrors.ErrVerifyUser,
				"image declares no user; processes would start as root"),
		}
	case "root", "0":
		return Result{
			Check: "non-root-user",
			Err: pipelineerrors.New(pipelineerrors.StageVerify, pipelineerrors.ErrVerifyUser,
				"image runs as root"),
		}
	case r.Runtime.User.Name:
		return Result{Check: "non-root-user"}
	default:
		return Result{
			Check: "non-root-user",
			Err: pipelineerrors.Newf(pipelineerrors.StageVerify, pipelineerrors.ErrVerifyUser,
				"image user is %q, recipe declares %q", info.User, r.Runtime.User.Name),
		}
	}
}

func checkExposedPort(info *engine.ImageInfo, r *recipe.Recipe) Result {
	want := fmt.Sprintf("%d/tcp", r.Runtime.Start.Port)
	for _, p := range info.ExposedPorts {
		if p == want {
			return Result{Check: "exposed-port"}
		}
	}
	return Result{
		Check: "exposed-port",
		Err: pipelineerrors.Newf(pipelineerrors.StageVerify, pipelineerrors.ErrVerifyPort,
			"image does not advertise port %s (exposed: %v)", want, info.ExposedPorts),
	}
}

func checkRuntimeEnv(info *engine.ImageInfo, r *recipe.Recipe) Result {
	present := make(map[string]string, len(info.Env))
	for _, kv := range info.Env {
		if i := strings.Index(kv, "="); i > 0 {
			present[kv[:i]] = kv[i+1:]
		}
	}

	var missing []string
	for _, want := range r.Runtime.Env.Vars(r.Runtime.AppDir) {
		if got, ok := present[want.Name]; !ok || got != want.Value {
			missing = append(missing, want.Name+"="+want.Value)
		}
	}
	if len(missing) > 0 {
		return Result{
			Check: "runtime-env",
			Err: pipelineerrors.Newf(pipelineerrors.StageVerify, pipelineerrors.ErrVerifyEnv,
				"runtime environment missing %s", strings.Join(missing, ", ")),
		}
	}
	return Result{Check: "runtime-env"}
}

func checkStartCommand(info *engine.ImageInfo, r *recipe.Recipe) Result {
	want := r.Runtime.Start.Argv()
	if len(info.Cmd) != len(want) {
		return startMismatch(info.Cmd, want)
	}
	for i := range want {
		if info.Cmd[i] != want[i] {
			return startMismatch(info.Cmd, want)
		}
	}
	return Result{Check: "start-command"}
}

func startMismatch(got, want []string) Result {
	return Result{
		Check: "start-command",
		Err: pipelineerrors.Newf(pipelineerrors.StageVerify, pipelineerrors.ErrVerifyStart,
			"image start command %v does not match declared %v", got, want),
	}
}

// probeListen starts the image and waits, bounded, for the advertised
// port to accept a TCP connection. The externally published port is an
// injected option, kept deliberately separate from the baked-in
// advertised port.
func probeListen(ctx context.Context, eng engine.Engine, r *recipe.Recipe, ref string, opts Options) Result {
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hostPort := opts.ProbePort
	if hostPort == 0 {
		hostPort = r.Runtime.Start.Port
	}

	name := fmt.Sprintf("dockhand-probe-%d", time.Now().UnixNano())
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- eng.Run(runCtx, engine.RunOptions{
			Image:           ref,
			Name:            name,
			Remove:          true,
			PublishExternal: hostPort,
			PublishInternal: r.Runtime.Start.Port,
		})
	}()
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = eng.Stop(stopCtx, name)
	}()

	addr := net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", hostPort))
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case err := <-runDone:
			return Result{
				Check: "listen-probe",
				Err: pipelineerrors.Newf(pipelineerrors.StageVerify, pipelineerrors.ErrVerifyProbe,
					"container exited before listening: %v", err),
			}
		default:
		}

		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			conn.Close()
			return Result{Check: "listen-probe", Detail: fmt.Sprintf("accepting connections on %s", addr)}
		}
		time.Sleep(250 * time.Millisecond)
	}

	return Result{
		Check: "listen-probe",
		Err: pipelineerrors.Newf(pipelineerrors.StageVerify, pipelineerrors.ErrVerifyProbe,
			"port %s not accepting connections within %s", addr, timeout),
	}
}
