package recipe

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// FileName is the base name of the recipe file, without extension.
const FileName = "dockhand"

// Load reads the recipe from dockhand.yml (or .yaml) in dir, applies
// defaults for every omitted field, and returns the unvalidated recipe.
// Missing file is not an error: the defaults alone describe a complete,
// working pipeline for a conventional project layout.
func Load(dir string) (*Recipe, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("project", def.Project)
	v.SetDefault("image", def.Image)
	v.SetDefault("tag", def.Tag)
	v.SetDefault("context", def.Context)
	v.SetDefault("engine", def.Engine)
	v.SetDefault("builder.base_image", def.Builder.BaseImage)
	v.SetDefault("builder.system_packages", def.Builder.SystemPackages)
	v.SetDefault("builder.manifest", def.Builder.Manifest)
	v.SetDefault("builder.install_prefix", def.Builder.InstallPrefix)
	v.SetDefault("builder.upgrade_pip", def.Builder.UpgradePip)
	v.SetDefault("builder.disable_cache", def.Builder.DisableCache)
	v.SetDefault("runtime.base_image", def.Runtime.BaseImage)
	v.SetDefault("runtime.app_dir", def.Runtime.AppDir)
	v.SetDefault("runtime.install_target", def.Runtime.InstallTarget)
	v.SetDefault("runtime.shared_libraries", def.Runtime.SharedLibraries)
	v.SetDefault("runtime.user.name", def.Runtime.User.Name)
	v.SetDefault("runtime.user.uid", def.Runtime.User.UID)
	v.SetDefault("runtime.env.disable_bytecode", def.Runtime.Env.DisableBytecode)
	v.SetDefault("runtime.env.unbuffered", def.Runtime.Env.Unbuffered)
	v.SetDefault("runtime.env.path_root", def.Runtime.Env.PathRoot)
	v.SetDefault("runtime.start.server", def.Runtime.Start.Server)
	v.SetDefault("runtime.start.app", def.Runtime.Start.App)
	v.SetDefault("runtime.start.host", def.Runtime.Start.Host)
	v.SetDefault("runtime.start.port", def.Runtime.Start.Port)

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("DOCKHAND")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read recipe file: %w", err)
		}
		// No recipe file - the defaults describe the standard pipeline.
	}

	var r Recipe
	if err := v.Unmarshal(&r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe: %w", err)
	}

	return &r, nil
}

// InProject reports whether dir looks like a dockhand project: either a
// recipe file or a requirement manifest is present.
func InProject(dir string) bool {
	for _, name := range []string{FileName + ".yml", FileName + ".yaml", "requirements.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks upward from dir looking for a recipe file.
func FindProjectRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName+".yml")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, FileName+".yaml")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a dockhand project (no %s.yml found)", FileName)
		}
		dir = parent
	}
}
