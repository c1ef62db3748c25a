package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taskSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["plan"],
	"properties": {
		"plan": {"type": "string", "minLength": 1},
		"priority": {"type": "integer", "minimum": 0}
	}
}`

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("task", taskSchema))
	assert.True(t, r.Has("task"))
	assert.False(t, r.Has("invoice"))

	t.Run("valid content", func(t *testing.T) {
		err := r.Validate("task", map[string]any{"plan": "deploy", "priority": 3.0})
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := r.Validate("task", map[string]any{"priority": 1.0})
		assert.ErrorIs(t, err, ErrSchemaInvalid)
	})

	t.Run("wrong type", func(t *testing.T) {
		err := r.Validate("task", map[string]any{"plan": 42.0})
		assert.ErrorIs(t, err, ErrSchemaInvalid)
	})

	t.Run("unregistered type", func(t *testing.T) {
		err := r.Validate("invoice", map[string]any{})
		assert.ErrorIs(t, err, ErrSchemaNotFound)
	})

	t.Run("bad schema source", func(t *testing.T) {
		err := r.Register("broken", `{"type": 17}`)
		assert.Error(t, err)
	})
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "task.schema.json"), []byte(taskSchema), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadDir(dir))
	assert.True(t, r.Has("task"))
	assert.False(t, r.Has("notes"))
}
