package trustlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendChainsRecords(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(DefaultConfig(dir))
	require.NoError(t, err)

	r1, err := log.Append("req-1", "fuji", map[string]interface{}{"decision": "allow"})
	require.NoError(t, err)
	require.Equal(t, "", r1.SHA256Prev)
	require.Len(t, r1.SHA256, 64)

	r2, err := log.Append("req-2", "fuji", map[string]interface{}{"decision": "hold"})
	require.NoError(t, err)
	require.Equal(t, r1.SHA256, r2.SHA256Prev)

	result, err := Verify(dir)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, 2, result.TotalRecords)
}

func TestVerifyDetectsTamperedPayload(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(DefaultConfig(dir))
	require.NoError(t, err)

	var recs []*Record
	for i := 0; i < 100; i++ {
		r, err := log.Append("req", "fuji", map[string]interface{}{"n": i})
		require.NoError(t, err)
		recs = append(recs, r)
	}

	// Flip record 57's payload without recomputing its sha256 (spec.md §8
	// scenario 6: "modify byte 0 of record 57's payload").
	tamperRecordAt(t, filepath.Join(dir, primaryFileName), 57)

	result, err := Verify(dir)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, 57, result.MismatchIndex)
}

func tamperRecordAt(t *testing.T, path string, index int) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := splitLines(data)
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[index]), &rec))
	payload := rec["payload"].(map[string]interface{})
	payload["n"] = -999999
	tampered, err := json.Marshal(rec)
	require.NoError(t, err)
	lines[index] = string(tampered)

	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(out), 0o644))
}

func splitLines(data []byte) []string {
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, string(data[start:i]))
			}
			start = i + 1
		}
	}
	return lines
}

func TestRotationPreservesContinuity(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.RotationMaxBytes = 2000 // force rotation well before 5000 records
	log, err := Open(cfg)
	require.NoError(t, err)

	const total = 500
	for i := 0; i < total; i++ {
		_, err := log.Append("req", "fuji", map[string]interface{}{"i": i, "padding": "0123456789012345678901234567890123456789"})
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	sawSegment := false
	for _, e := range entries {
		if e.Name() != primaryFileName && e.Name() != mirrorFileName && e.Name() != markerFileName && e.Name() != ".trust_log.lock" {
			sawSegment = true
		}
	}
	require.True(t, sawSegment, "expected at least one rotated segment")

	result, err := Verify(dir)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, total, result.TotalRecords)

	marker, err := MarkerLastHash(dir)
	require.NoError(t, err)
	require.NotEmpty(t, marker)
}

func TestAppendDegradedSkipsHashCheckButKeepsContinuity(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(DefaultConfig(dir))
	require.NoError(t, err)

	r1, err := log.Append("req", "fuji", map[string]interface{}{"decision": "allow"})
	require.NoError(t, err)

	degraded, err := log.AppendDegraded("req", "seal_trust_log", map[string]interface{}{"error": "fatal"})
	require.NoError(t, err)
	require.Equal(t, r1.SHA256, degraded.SHA256Prev)
	require.Equal(t, "unavailable", degraded.HashChain)

	result, err := Verify(dir)
	require.NoError(t, err)
	require.True(t, result.OK)
}

func TestTailReturnsMostRecentFromMirror(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(DefaultConfig(dir))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := log.Append("req", "fuji", map[string]interface{}{"i": i})
		require.NoError(t, err)
	}

	tail, err := log.Tail(2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	require.Equal(t, 3, tail[0].Payload["i"])
	require.Equal(t, 4, tail[1].Payload["i"])
}
