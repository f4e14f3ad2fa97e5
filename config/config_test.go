package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagekit/transit/config"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "transit.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
network: vbb
timetable: /var/lib/transit/vbb
storage:
  driver: sqlite
  path: /var/lib/transit/vbb.db
`))
	require.NoError(t, err)
	assert.Equal(t, "vbb", cfg.Network)
	assert.Equal(t, "/var/lib/transit/vbb", cfg.Timetable)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/transit/vbb.db", cfg.Storage.Path)
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	for name, content := range map[string]string{
		"missing network": `
timetable: /tmp/tt
storage:
  driver: memory
`,
		"missing timetable": `
network: vbb
storage:
  driver: memory
`,
		"unknown driver": `
network: vbb
timetable: /tmp/tt
storage:
  driver: redis
`,
		"sqlite without path": `
network: vbb
timetable: /tmp/tt
storage:
  driver: sqlite
`,
		"postgres without conn_str": `
network: vbb
timetable: /tmp/tt
storage:
  driver: postgres
`,
		"not yaml": `{{{`,
	} {
		_, err := config.Load(writeConfig(t, content))
		assert.Error(t, err, name)
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
