package canon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeysRecursively(t *testing.T) {
	v := map[string]interface{}{
		"b": 1,
		"a": map[string]interface{}{"z": 1, "y": 2},
	}
	out, err := Marshal(v)
	require.NoError(t, err)
	require.Equal(t, `{"a":{"y":2,"z":1},"b":1}`, string(out))
}

func TestMarshalNoWhitespace(t *testing.T) {
	out, err := Marshal(map[string]interface{}{"x": []interface{}{1, 2, 3}})
	require.NoError(t, err)
	require.NotContains(t, string(out), " ")
	require.NotContains(t, string(out), "\n")
}

func TestMarshalShortestNumberForm(t *testing.T) {
	out, err := Marshal(map[string]interface{}{"n": 1.10})
	require.NoError(t, err)
	require.Equal(t, `{"n":1.1}`, string(out))

	out, err = Marshal(map[string]interface{}{"n": 7})
	require.NoError(t, err)
	require.Equal(t, `{"n":7}`, string(out))
}

func TestMarshalRoundTripIdempotent(t *testing.T) {
	x := map[string]interface{}{
		"query":   "hello",
		"context": map[string]interface{}{"user_id": "u1", "n": 3},
		"list":    []interface{}{"a", "b", 1.5},
	}
	first, err := Marshal(x)
	require.NoError(t, err)

	var parsed interface{}
	require.NoError(t, json.Unmarshal(first, &parsed))

	second, err := Marshal(parsed)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestSHA256ChainDeterministic(t *testing.T) {
	payload := []byte(`{"a":1}`)
	h1 := SHA256Chain("", payload)
	h2 := SHA256Chain("", payload)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)

	h3 := SHA256Chain(h1, payload)
	require.NotEqual(t, h1, h3)
}

func TestAtomicWriteFileReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.json")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0o644))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first", string(got))

	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0o644))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no leftover temp files")
}
