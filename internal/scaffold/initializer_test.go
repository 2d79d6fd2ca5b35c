package scaffold

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/exofit/internal/config"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_MatchesDefaults(t *testing.T) {
	t.Setenv(config.RedisURLEnv, "")
	path := filepath.Join(t.TempDir(), "exofit.yml")
	tmpl, err := Template()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, tmpl, 0644))

	loaded, err := config.Load(path)
	require.NoError(t, err)

	if diff := cmp.Diff(config.Default(), loaded); diff != "" {
		t.Errorf("template differs from defaults (-want +got):\n%s", diff)
	}
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		force     bool
		setupFunc func(dir string)
		wantErr   bool
		wantFiles []string
	}{
		{
			name:      "fresh initialization",
			setupFunc: func(dir string) {},
			wantFiles: []string{"exofit.yml", ".gitignore", "plots"},
		},
		{
			name: "existing config without force",
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, "exofit.yml"), []byte("old content"), 0644)
			},
			wantErr: true,
		},
		{
			name:  "force replaces config and keeps gitignore",
			force: true,
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, "exofit.yml"), []byte("old content"), 0644)
				os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("mine\n"), 0644)
			},
			wantFiles: []string{"exofit.yml", "plots"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setupFunc(dir)
			path := filepath.Join(dir, "exofit.yml")

			created, err := Initialize(path, tt.force)
			if tt.wantErr {
				var exists *ExistsError
				require.True(t, errors.As(err, &exists), "got %v", err)
				assert.Equal(t, path, exists.Path)
				return
			}
			require.NoError(t, err)
			assert.Len(t, created, len(tt.wantFiles))
			for _, name := range tt.wantFiles {
				_, err := os.Stat(filepath.Join(dir, name))
				assert.NoError(t, err, "expected %s to exist", name)
			}
			_, err = config.Load(path)
			assert.NoError(t, err)
		})
	}
}

func TestInitialize_PreservesGitignore(t *testing.T) {
	dir := t.TempDir()
	ignore := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(ignore, []byte("mine\n"), 0644))

	_, err := Initialize(filepath.Join(dir, "exofit.yml"), false)
	require.NoError(t, err)

	data, err := os.ReadFile(ignore)
	require.NoError(t, err)
	assert.Equal(t, "mine\n", string(data))
}
