package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfqa/configs"
	"github.com/Aman-CERP/pdfqa/internal/config"
)

func TestConfigPath(t *testing.T) {
	env := setupEnv(t)

	out, err := execute(t, "config", "path")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.dir, "config", "pdfqa", "config.yaml"), strings.TrimSpace(out))
}

func TestConfigInit(t *testing.T) {
	// Given: no user config
	setupEnv(t)
	path := config.GetUserConfigPath()

	// When: initializing
	out, err := execute(t, "config", "init")

	// Then: the template is written
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, configs.UserConfigTemplate, string(data))

	// When: initializing again without --force
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o600))
	out, err = execute(t, "config", "init")

	// Then: the file is left alone
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))

	// When: forcing
	_, err = execute(t, "config", "init", "--force")

	// Then: a backup is kept and the template restored
	require.NoError(t, err)
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, configs.UserConfigTemplate, string(data))
}

func TestConfigTemplate_LoadsCleanly(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "config", "init")
	require.NoError(t, err)

	cfg, err := loadConfig()

	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Upload.MaxSizeMB)
	assert.Equal(t, "tester", cfg.Owner.ID)
}

func TestConfigShow(t *testing.T) {
	setupEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-very-secret")

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name:    "merged redacts secrets",
			args:    []string{"config", "show"},
			want:    []string{"merged", "sweep_interval", "****"},
			notWant: []string{"sk-very-secret"},
		},
		{
			name: "defaults",
			args: []string{"config", "show", "--source", "defaults"},
			want: []string{"defaults", "max_size_mb: 50"},
		},
		{
			name: "user without file",
			args: []string{"config", "show", "--source", "user"},
			want: []string{"No user configuration file found"},
		},
		{
			name:    "json",
			args:    []string{"config", "show", "--json"},
			want:    []string{`"Owner"`, `"tester"`},
			notWant: []string{"sk-very-secret"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}
}

func TestConfigShow_InvalidSource(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "config", "show", "--source", "nowhere")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid source")
}
