package scaffold

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockhand-build/dockhand/internal/manifest"
	"github.com/dockhand-build/dockhand/internal/recipe"
)

func TestCreateGeneratesProject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog-api")

	created, err := Create(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		".dockerignore", "README.md", "dockhand.yml", "main.py", "requirements.txt",
	}, created)

	for _, name := range created {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestCreateRecipeRoundTrips(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog-api")

	_, err := Create(dir, Options{Port: 9000})
	require.NoError(t, err)

	r, err := recipe.Load(dir)
	require.NoError(t, err)
	assert.Empty(t, r.Validate(), "generated recipe must validate clean")

	assert.Equal(t, "catalog-api", r.Project)
	assert.Equal(t, "catalog-api", r.Image)
	assert.Equal(t, 9000, r.Runtime.Start.Port)
	assert.Equal(t, "uvicorn", r.Runtime.Start.Server)
	assert.True(t, r.Builder.DisableCache)
}

func TestCreateManifestParses(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "svc")

	_, err := Create(dir, Options{})
	require.NoError(t, err)

	m, errs := manifest.ParseFile(filepath.Join(dir, "requirements.txt"))
	require.False(t, errs.HasErrors(), "generated manifest must parse clean: %v", errs)
	require.NotNil(t, m)

	names := m.Names()
	assert.Contains(t, names, "fastapi")
	assert.Contains(t, names, "psycopg2")
	assert.Contains(t, names, "pillow")
}

func TestCreateAppNamesProject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pim-service")

	_, err := Create(dir, Options{})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "main.py"))
	require.NoError(t, err)
	assert.Contains(t, string(content), `FastAPI(title="pim-service")`)
	assert.Contains(t, string(content), "def health():")
}

func TestCreateRefusesExistingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "existing")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	_, err := Create(dir, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestValidateProjectName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "my-service", false},
		{"underscores", "my_service", false},
		{"empty", "", true},
		{"absolute path", "/etc/passwd", true},
		{"dots", "../escape", true},
		{"spaces", "my service", true},
		{"too long", strings.Repeat("a", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProjectName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateRemovesDirectoryOnFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog-api")

	calls := 0
	createFile = func(name string) (*os.File, error) {
		calls++
		if calls == 3 {
			return nil, errors.New("disk full")
		}
		return os.Create(name)
	}
	defer func() { createFile = os.Create }()

	_, err := Create(dir, Options{})
	require.Error(t, err)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "failed scaffold must leave no directory behind")
}
