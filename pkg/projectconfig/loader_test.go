package projectconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	schemasassets "github.com/3leaps/pspace/internal/assets/schemas"
)

func validProjectYAML() string {
	return `create:
  machineType: P4000
  container: paperspace/tensorflow-python
  ignoreFiles:
    - data
    - .git
  commands:
    - pip install -r requirements.txt
    - python train.py
tail:
  last: 50
  follow: true
getart:
  destdir: results
`
}

func TestLoadFromBytes_Valid(t *testing.T) {
	f, err := LoadFromBytes([]byte(validProjectYAML()))
	require.NoError(t, err)

	create, ok := f.Section("create")
	require.True(t, ok)
	assert.Equal(t, "P4000", create["machineType"])
	assert.Equal(t, []any{"data", ".git"}, create["ignoreFiles"])

	tail, ok := f.Section("tail")
	require.True(t, ok)
	assert.Equal(t, 50, tail["last"])
	assert.Equal(t, true, tail["follow"])

	_, ok = f.Section("jobs")
	assert.False(t, ok)
}

func TestLoadFromBytes_Empty(t *testing.T) {
	f, err := LoadFromBytes([]byte("   \n"))
	require.NoError(t, err)
	assert.Empty(t, f.Sections)
	assert.False(t, f.Exists())
}

func TestLoadFromBytes_NullValuesAreUnset(t *testing.T) {
	f, err := LoadFromBytes([]byte("create:\n  project: null\n  machineType: K80\n"))
	require.NoError(t, err)

	create, ok := f.Section("create")
	require.True(t, ok)
	_, present := create["project"]
	assert.False(t, present)
	assert.Equal(t, "K80", create["machineType"])
}

func TestLoadFromBytes_RejectsUnknownKeys(t *testing.T) {
	_, err := LoadFromBytes([]byte("create:\n  machinetype: K80\n"))
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	_, err = LoadFromBytes([]byte("deploy:\n  target: prod\n"))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestLoadFromBytes_InvalidYAML(t *testing.T) {
	_, err := LoadFromBytes([]byte("create: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML")
}

func TestLoadDir(t *testing.T) {
	t.Run("missing file contributes nothing", func(t *testing.T) {
		f, err := LoadDir(t.TempDir())
		require.NoError(t, err)
		assert.False(t, f.Exists())
		_, ok := f.Section("create")
		assert.False(t, ok)
	})

	t.Run("working directory file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(validProjectYAML()), 0644))

		f, err := LoadDir(dir)
		require.NoError(t, err)
		assert.True(t, f.Exists())
		assert.Equal(t, filepath.Join(dir, FileName), f.Path)
	})

	t.Run("fallback subdirectory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, FallbackDir), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, FallbackDir, FileName), []byte("stop: {}\n"), 0644))

		f, err := LoadDir(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, FallbackDir, FileName), f.Path)
	})

	t.Run("invalid file reports path", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("bogus: 1\n"), 0644))

		_, err := LoadDir(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), FileName)
	})
}

func TestRenderRoundTrip(t *testing.T) {
	sections := []Section{
		{Command: "create", Values: map[string]any{
			"machineType": "K80",
			"project":     nil,
			"ignoreFiles": []string{},
			"commands":    []string{"python main.py"},
		}},
		{Command: "tail", Values: map[string]any{"follow": false, "last": 20}},
	}

	data, err := Render(sections)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# pspace project config.")

	f, err := LoadFromBytes(data)
	require.NoError(t, err)
	create, ok := f.Section("create")
	require.True(t, ok)
	assert.Equal(t, "K80", create["machineType"])
	assert.Equal(t, []any{"python main.py"}, create["commands"])
}

func TestWriteNew(t *testing.T) {
	dir := t.TempDir()
	sections := []Section{{Command: "stop", Values: map[string]any{"job_id": nil}}}

	path, err := WriteNew(dir, sections, false)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = WriteNew(dir, sections, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = WriteNew(dir, sections, true)
	require.NoError(t, err)
}

func TestSchemaIDMatchesEmbeddedSchema(t *testing.T) {
	var doc struct {
		ID string `json:"$id"`
	}
	require.NoError(t, json.Unmarshal(schemasassets.ProjectConfigSchema, &doc))
	assert.True(t, strings.HasSuffix(doc.ID, "/"+SchemaID+".schema.json"), doc.ID)
}
