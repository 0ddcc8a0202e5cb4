package recipe

import (
	"path"
	"regexp"
	"strings"

	pipelineerrors "github.com/dockhand-build/dockhand/internal/errors"
)

var (
	imageRefRe = regexp.MustCompile(`^[a-z0-9]+([._/-][a-z0-9]+)*$`)
	appRefRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*:[A-Za-z_][A-Za-z0-9_]*$`)
	userNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)
)

// Validate checks the recipe structurally. Every violation is a fatal
// build-time error: the pipeline refuses to render or build from a
// recipe that could only fail later, or produce an image that breaks the
// privilege or copy-path invariants. Checks that require the builder
// image's filesystem (shared-library source existence, native headers)
// are deferred to the engine, where the build fails with the engine's
// own exit status.
func (r *Recipe) Validate() pipelineerrors.List {
	var errs pipelineerrors.List
	fail := func(code, format string, args ...interface{}) {
		errs = append(errs, pipelineerrors.Newf(pipelineerrors.StageRecipe, code, format, args...))
	}

	if r.Image == "" {
		fail(pipelineerrors.ErrRecipeMissingField, "image name is required")
	} else if !imageRefRe.MatchString(r.Image) {
		fail(pipelineerrors.ErrRecipeBadImage, "invalid image name %q", r.Image)
	}

	switch r.Engine {
	case "docker", "podman":
	case "":
		fail(pipelineerrors.ErrRecipeMissingField, "engine is required (docker or podman)")
	default:
		fail(pipelineerrors.ErrRecipeBadEngine, "unsupported engine %q (docker or podman)", r.Engine)
	}

	if r.Builder.BaseImage == "" {
		fail(pipelineerrors.ErrRecipeMissingField, "builder.base_image is required")
	}
	if r.Builder.Manifest == "" {
		fail(pipelineerrors.ErrRecipeMissingField, "builder.manifest is required")
	}
	if r.Builder.InstallPrefix == "" {
		fail(pipelineerrors.ErrRecipeMissingField, "builder.install_prefix is required")
	} else if !path.IsAbs(r.Builder.InstallPrefix) {
		fail(pipelineerrors.ErrRecipeBadPrefix,
			"builder.install_prefix must be absolute, got %q", r.Builder.InstallPrefix)
	} else if isSystemPath(r.Builder.InstallPrefix) {
		// The install prefix must stay distinct from system library
		// paths inside the builder, or the copy into the runtime image
		// would drag the whole toolchain along.
		fail(pipelineerrors.ErrRecipeBadPrefix,
			"builder.install_prefix %q overlaps a system library path", r.Builder.InstallPrefix)
	}

	if r.Runtime.BaseImage == "" {
		fail(pipelineerrors.ErrRecipeMissingField, "runtime.base_image is required")
	}
	if r.Runtime.AppDir == "" {
		fail(pipelineerrors.ErrRecipeMissingField, "runtime.app_dir is required")
	} else if !path.IsAbs(r.Runtime.AppDir) {
		fail(pipelineerrors.ErrRecipeBadPrefix, "runtime.app_dir must be absolute, got %q", r.Runtime.AppDir)
	}
	if r.Runtime.InstallTarget == "" {
		fail(pipelineerrors.ErrRecipeMissingField, "runtime.install_target is required")
	} else if !path.IsAbs(r.Runtime.InstallTarget) {
		fail(pipelineerrors.ErrRecipeBadPrefix,
			"runtime.install_target must be absolute, got %q", r.Runtime.InstallTarget)
	}

	for _, lib := range r.Runtime.SharedLibraries {
		if !path.IsAbs(lib) {
			// Shared objects are referenced by absolute path at load
			// time; a relative path could never be copied verbatim.
			fail(pipelineerrors.ErrRecipeBadLibPath,
				"shared library path must be absolute, got %q", lib)
		}
	}

	if r.Runtime.User.Name == "" {
		fail(pipelineerrors.ErrRecipeMissingField, "runtime.user.name is required")
	} else {
		if r.Runtime.User.Name == "root" || !userNameRe.MatchString(r.Runtime.User.Name) {
			fail(pipelineerrors.ErrRecipeBadUser, "invalid runtime user %q", r.Runtime.User.Name)
		}
		if r.Runtime.User.UID == 0 {
			fail(pipelineerrors.ErrRecipeBadUser, "runtime user uid must be non-zero")
		}
	}

	errs = append(errs, r.Runtime.Start.Validate()...)

	return errs
}

// Validate checks the start record independently of any engine or
// running server.
func (s StartCommand) Validate() pipelineerrors.List {
	var errs pipelineerrors.List
	fail := func(code, format string, args ...interface{}) {
		errs = append(errs, pipelineerrors.Newf(pipelineerrors.StageRecipe, code, format, args...))
	}

	if s.Server == "" {
		fail(pipelineerrors.ErrRecipeMissingField, "runtime.start.server is required")
	}
	if s.App == "" {
		fail(pipelineerrors.ErrRecipeMissingField, "runtime.start.app is required")
	} else if !appRefRe.MatchString(s.App) {
		fail(pipelineerrors.ErrRecipeBadStart,
			"runtime.start.app must be a module-qualified object like \"main:app\", got %q", s.App)
	}
	if s.Host == "" {
		fail(pipelineerrors.ErrRecipeMissingField, "runtime.start.host is required")
	}
	if s.Port < 1 || s.Port > 65535 {
		fail(pipelineerrors.ErrRecipeBadPort, "runtime.start.port must be in 1-65535, got %d", s.Port)
	}

	return errs
}

// isSystemPath reports whether p is, or sits under, one of the paths
// that hold system-wide libraries in the builder image.
func isSystemPath(p string) bool {
	for _, sys := range []string{"/usr", "/lib", "/bin", "/sbin", "/etc"} {
		if p == sys || strings.HasPrefix(p, sys+"/") {
			return true
		}
	}
	return false
}
