// Package recipe defines the declarative two-stage build recipe: the
// dependency-resolver (builder) stage and the runtime-assembler stage,
// plus the process-start contract of the produced image. The recipe is
// loaded once, validated up front, and treated as immutable by every
// later stage.
package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// Recipe is the full pipeline configuration for one service image.
type Recipe struct {
	Project string `mapstructure:"project" json:"project"`
	Image   string `mapstructure:"image" json:"image"`
	Tag     string `mapstructure:"tag" json:"tag"`
	Context string `mapstructure:"context" json:"context"`
	Engine  string `mapstructure:"engine" json:"engine"`

	Builder BuilderStage `mapstructure:"builder" json:"builder"`
	Runtime RuntimeStage `mapstructure:"runtime" json:"runtime"`
}

// BuilderStage configures the dependency-resolver stage: an ephemeral
// environment holding the compiler toolchain and native-extension
// headers, which installs the manifest into an isolated prefix and is
// then discarded entirely.
type BuilderStage struct {
	BaseImage string `mapstructure:"base_image" json:"base_image"`

	// SystemPackages are the OS-level build prerequisites (toolchain and
	// headers for native extensions). Installed into the ephemeral stage
	// only; they never reach the runtime image.
	SystemPackages []string `mapstructure:"system_packages" json:"system_packages"`

	// Manifest is the requirement file path, relative to the context dir.
	Manifest string `mapstructure:"manifest" json:"manifest"`

	// InstallPrefix is the isolated install tree, distinct from system
	// library paths. The runtime stage copies it wholesale.
	InstallPrefix string `mapstructure:"install_prefix" json:"install_prefix"`

	// UpgradePip upgrades the package manager before resolving the
	// manifest. This floats the resolver version and is the one accepted
	// non-determinism surface of the pipeline.
	UpgradePip bool `mapstructure:"upgrade_pip" json:"upgrade_pip"`

	// DisableCache disables the local package cache during install.
	DisableCache bool `mapstructure:"disable_cache" json:"disable_cache"`
}

// RuntimeStage configures the runtime assembler: the minimal image that
// carries only the install tree, the required shared libraries, the
// application source, and a non-privileged execution identity.
type RuntimeStage struct {
	BaseImage string `mapstructure:"base_image" json:"base_image"`

	// AppDir is where the application source tree lands, and doubles as
	// the import path root.
	AppDir string `mapstructure:"app_dir" json:"app_dir"`

	// InstallTarget is where the builder's install prefix is merged into
	// the runtime image's standard lookup path.
	InstallTarget string `mapstructure:"install_target" json:"install_target"`

	// SharedLibraries are absolute paths of native shared objects copied
	// verbatim from the builder stage. The path must be identical on
	// both sides: compiled extensions hard-reference it at load time.
	SharedLibraries []string `mapstructure:"shared_libraries" json:"shared_libraries"`

	User  User         `mapstructure:"user" json:"user"`
	Env   RuntimeEnv   `mapstructure:"env" json:"env"`
	Start StartCommand `mapstructure:"start" json:"start"`
}

// User is the non-privileged execution identity created in the runtime
// image. Nothing after the identity switch may require elevation.
type User struct {
	Name string `mapstructure:"name" json:"name"`
	UID  int    `mapstructure:"uid" json:"uid"`
}

// RuntimeEnv is the enumerated runtime environment configuration. It is
// applied exactly once, at image assembly, and passed explicitly to the
// renderer rather than mutated as ambient state.
type RuntimeEnv struct {
	// DisableBytecode suppresses bytecode-cache file generation,
	// avoiding stale cache artifacts across rebuilds.
	DisableBytecode bool `mapstructure:"disable_bytecode" json:"disable_bytecode"`

	// Unbuffered forces unbuffered stdout/stderr so log collectors see
	// lines as they are written.
	Unbuffered bool `mapstructure:"unbuffered" json:"unbuffered"`

	// PathRoot marks the application directory as an importable module
	// root. Empty means the app dir is used.
	PathRoot string `mapstructure:"path_root" json:"path_root"`
}

// EnvVar is one rendered environment variable.
type EnvVar struct {
	Name  string
	Value string
}

// Vars renders the enumerated configuration into concrete variables, in
// a fixed order. appDir supplies the default import path root.
func (e RuntimeEnv) Vars(appDir string) []EnvVar {
	var vars []EnvVar
	if e.DisableBytecode {
		vars = append(vars, EnvVar{"PYTHONDONTWRITEBYTECODE", "1"})
	}
	if e.Unbuffered {
		vars = append(vars, EnvVar{"PYTHONUNBUFFERED", "1"})
	}
	root := e.PathRoot
	if root == "" {
		root = appDir
	}
	if root != "" {
		vars = append(vars, EnvVar{"PYTHONPATH", root})
	}
	return vars
}

// StartCommand is the declarative process-start contract: which ASGI
// server to launch, the module-qualified application object, and the
// bind address. It is a plain record so it can be validated and tested
// without starting anything.
type StartCommand struct {
	// Server is the ASGI server executable, e.g. "uvicorn".
	Server string `mapstructure:"server" json:"server"`

	// App is the module-qualified application object, e.g. "main:app".
	App string `mapstructure:"app" json:"app"`

	// Host is the bind address baked into the image.
	Host string `mapstructure:"host" json:"host"`

	// Port is the advertised listening port. The externally exposed port
	// may differ; mapping the two is injected at run time, never baked.
	Port int `mapstructure:"port" json:"port"`
}

// Argv returns the exec-form start command for the image.
func (s StartCommand) Argv() []string {
	return []string{s.Server, s.App, "--host", s.Host, "--port", strconv.Itoa(s.Port)}
}

// Ref returns the full image reference including the tag.
func (r *Recipe) Ref() string {
	tag := r.Tag
	if tag == "" {
		tag = "latest"
	}
	return fmt.Sprintf("%s:%s", r.Image, tag)
}

// Digest returns a stable hex digest of the recipe contents, used to
// correlate builds in the history ledger.
func (r *Recipe) Digest() string {
	data, err := json.Marshal(r)
	if err != nil {
		// Recipe is a plain data struct; marshalling cannot fail for
		// any value constructed by Load.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Default returns the canonical recipe for a Python ASGI service: a slim
// builder with the toolchain and libpq/libjpeg headers, an isolated
// /install prefix, and a minimal runtime serving uvicorn on port 8000 as
// a dedicated non-root user.
func Default() *Recipe {
	return &Recipe{
		Project: "service",
		Image:   "service",
		Tag:     "latest",
		Context: ".",
		Engine:  "docker",
		Builder: BuilderStage{
			BaseImage:      "python:3.11-slim",
			SystemPackages: []string{"gcc", "libpq-dev", "libjpeg-dev"},
			Manifest:       "requirements.txt",
			InstallPrefix:  "/install",
			UpgradePip:     true,
			DisableCache:   true,
		},
		Runtime: RuntimeStage{
			BaseImage:     "python:3.11-slim",
			AppDir:        "/app",
			InstallTarget: "/usr/local",
			SharedLibraries: []string{
				"/usr/lib/x86_64-linux-gnu/libpq.so.5",
				"/usr/lib/x86_64-linux-gnu/libjpeg.so.62",
			},
			User: User{Name: "appuser", UID: 1000},
			Env: RuntimeEnv{
				DisableBytecode: true,
				Unbuffered:      true,
			},
			Start: StartCommand{
				Server: "uvicorn",
				App:    "main:app",
				Host:   "0.0.0.0",
				Port:   8000,
			},
		},
	}
}
