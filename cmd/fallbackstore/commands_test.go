package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruteri/fallback-storage/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	primary   string
	secondary string
}

func newCLIEnv(t *testing.T) *cliEnv {
	return &cliEnv{primary: t.TempDir(), secondary: t.TempDir()}
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.Reader = strings.NewReader(stdin)

	argv := []string{"fallbackstore",
		"--backend", "file://" + filepath.ToSlash(e.primary) + "?base_url=https://cdn.local/",
		"--backend", "file://" + filepath.ToSlash(e.secondary),
	}
	err := app.Run(append(argv, args...))
	return out.String(), err
}

func TestPutCatAndRename(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "first", "put", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a.txt\n", out)

	out, err = env.run(t, "second", "put", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a_1.txt\n", out)

	out, err = env.run(t, "", "cat", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	out, err = env.run(t, "", "ls")
	require.NoError(t, err)
	assert.Equal(t, "a.txt\na_1.txt\n", out)
}

func TestPutFromFile(t *testing.T) {
	env := newCLIEnv(t)
	src := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(src, []byte("from disk"), 0644))

	_, err := env.run(t, "", "put", "docs/b.bin", src)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(env.primary, "docs", "b.bin"))
	require.NoError(t, err)
	assert.Equal(t, "from disk", string(data))
}

func TestCatFallsBackToSecondary(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.secondary, "old.txt"), []byte("archived"), 0644))

	out, err := env.run(t, "", "cat", "old.txt")
	require.NoError(t, err)
	assert.Equal(t, "archived", out)

	out, err = env.run(t, "", "exists", "old.txt")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = env.run(t, "", "exists", "new.txt")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	_, err = env.run(t, "", "cat", "new.txt")
	assert.Error(t, err)
}

func TestStatURLAndPath(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.primary, "c.txt"), []byte("abc"), 0644))

	out, err := env.run(t, "", "stat", "c.txt")
	require.NoError(t, err)
	var info api.FileInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, int64(3), info.Size)
	assert.Equal(t, "https://cdn.local/c.txt", info.URL)
	assert.NotNil(t, info.ModifiedTime)

	out, err = env.run(t, "", "url", "c.txt")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.local/c.txt\n", out)

	out, err = env.run(t, "", "path", "c.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.primary, "c.txt")+"\n", out)
}

func TestNamesAndRemove(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.secondary, "d.txt"), []byte("x"), 0644))

	out, err := env.run(t, "", "valid-name", " my photo.jpg ")
	require.NoError(t, err)
	assert.Equal(t, "my_photo.jpg\n", out)

	out, err = env.run(t, "", "available-name", "d.txt")
	require.NoError(t, err)
	assert.Equal(t, "d_1.txt\n", out)

	require.NoError(t, os.WriteFile(filepath.Join(env.primary, "d.txt"), []byte("y"), 0644))
	_, err = env.run(t, "", "rm", "d.txt")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(env.primary, "d.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(env.secondary, "d.txt"))
	assert.NoError(t, err)
}

func TestMissingArguments(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "", "cat")
	assert.ErrorContains(t, err, "missing file name")
}

func TestNoBackends(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	for _, env := range []string{"FALLBACK_STORAGES", "FALLBACK_STORAGE_CONFIG"} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}

	err := app.Run([]string{"fallbackstore", "ls"})
	assert.ErrorContains(t, err, "no storage backends configured")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "e.txt"), []byte("from config"), 0644))

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("backends:\n  - file://"+filepath.ToSlash(dir)+"\n"), 0644))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"fallbackstore", "--config", cfgPath, "cat", "e.txt"}))
	assert.Equal(t, "from config", out.String())
}
