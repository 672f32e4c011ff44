package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValidatesThresholds(t *testing.T) {
	_, err := Parse([]byte("hold_threshold: 0.9\nreject_threshold: 0.5\n"))
	require.Error(t, err)
}

func TestParseRejectsUnknownAction(t *testing.T) {
	data := []byte(`
categories:
  - category: self_harm
    max_risk_allow: 0.05
    action_on_exceed: nuke
`)
	_, err := Parse(data)
	require.Error(t, err)
}

func TestStoreReloadSwapsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v1\nmin_evidence: 2\n"), 0o644))

	store, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)
	require.Equal(t, "v1", store.Current().Version)

	changed, err := store.Reload()
	require.NoError(t, err)
	require.False(t, changed)

	require.NoError(t, os.WriteFile(path, []byte("version: v2\nmin_evidence: 3\n"), 0o644))
	changed, err = store.Reload()
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "v2", store.Current().Version)
	require.Equal(t, 3, store.Current().MinEvidence)
}

func TestStoreReloadKeepsPreviousDocumentOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v1\n"), 0o644))

	store, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("hold_threshold: 0.9\nreject_threshold: 0.1\n"), 0o644))
	changed, err := store.Reload()
	require.Error(t, err)
	require.False(t, changed)
	require.Equal(t, "v1", store.Current().Version)
}
