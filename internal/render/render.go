// Package render turns a validated recipe into Containerfile text. The
// renderer is pure: recipe in, bytes out, no filesystem or engine
// access, so the rendered build can be inspected and tested without a
// container runtime.
package render

import (
	"bytes"
	"encoding/json"
	"path"
	"strings"
	"text/template"

	pipelineerrors "github.com/dockhand-build/dockhand/internal/errors"
	"github.com/dockhand-build/dockhand/internal/recipe"
)

// DefaultFileName is where the build command writes the rendered file.
const DefaultFileName = "Containerfile"

// containerfileTemplate renders the two-stage build. The builder stage
// acquires the system toolchain without leaving a package-index cache,
// upgrades the package manager, and installs the manifest into an
// isolated prefix. The runtime stage carries forward only the install
// tree, the hard-referenced shared objects at their original absolute
// paths, and the application source, then drops privileges before
// declaring the start command.
const containerfileTemplate = `# Generated by dockhand. Edit {{.RecipeName}} instead of this file.

FROM {{.Builder.BaseImage}} AS builder

{{- if .Builder.SystemPackages}}

RUN apt-get update \
    && apt-get install -y --no-install-recommends {{join .Builder.SystemPackages " "}} \
    && rm -rf /var/lib/apt/lists/*
{{- end}}

WORKDIR /build

COPY {{.Builder.Manifest}} ./{{.ManifestBase}}
{{- if .Builder.UpgradePip}}

RUN pip install --upgrade pip
{{- end}}

RUN pip install --prefix={{.Builder.InstallPrefix}}{{if .Builder.DisableCache}} --no-cache-dir{{end}} -r {{.ManifestBase}}

FROM {{.Runtime.BaseImage}}
{{- if .EnvVars}}

{{range .EnvVars}}ENV {{.Name}}={{.Value}}
{{end}}
{{- end}}
WORKDIR {{.Runtime.AppDir}}

COPY --from=builder {{.Builder.InstallPrefix}} {{.Runtime.InstallTarget}}
{{- range .Runtime.SharedLibraries}}
COPY --from=builder {{.}} {{.}}
{{- end}}

COPY . {{.Runtime.AppDir}}

RUN useradd --uid {{.Runtime.User.UID}} --create-home {{.Runtime.User.Name}}
USER {{.Runtime.User.Name}}

EXPOSE {{.Runtime.Start.Port}}

CMD {{.CmdJSON}}
`

// templateData is the view passed to the Containerfile template.
type templateData struct {
	RecipeName   string
	Builder      recipe.BuilderStage
	Runtime      recipe.RuntimeStage
	EnvVars      []recipe.EnvVar
	ManifestBase string
	CmdJSON      string
}

// Render produces the Containerfile for the recipe.
func Render(r *recipe.Recipe) ([]byte, pipelineerrors.List) {
	cmdJSON, err := json.Marshal(r.Runtime.Start.Argv())
	if err != nil {
		return nil, pipelineerrors.List{
			pipelineerrors.Newf(pipelineerrors.StageRender, pipelineerrors.ErrRenderTemplate,
				"failed to encode start command: %v", err),
		}
	}

	data := templateData{
		RecipeName:   recipe.FileName + ".yml",
		Builder:      r.Builder,
		Runtime:      r.Runtime,
		EnvVars:      r.Runtime.Env.Vars(r.Runtime.AppDir),
		ManifestBase: path.Base(r.Builder.Manifest),
		CmdJSON:      string(cmdJSON),
	}

	tmpl, err := template.New("containerfile").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(containerfileTemplate)
	if err != nil {
		return nil, pipelineerrors.List{
			pipelineerrors.Newf(pipelineerrors.StageRender, pipelineerrors.ErrRenderTemplate,
				"invalid containerfile template: %v", err),
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, pipelineerrors.List{
			pipelineerrors.Newf(pipelineerrors.StageRender, pipelineerrors.ErrRenderTemplate,
				"failed to render containerfile: %v", err),
		}
	}

	return buf.Bytes(), nil
}
