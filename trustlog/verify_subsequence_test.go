package trustlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifySubsequenceAcceptsMidChainRecords(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(DefaultConfig(dir))
	require.NoError(t, err)

	_, err = log.Append("other", "fuji", map[string]interface{}{"n": 0})
	require.NoError(t, err)
	r2, err := log.Append("req-x", "seal_trust_log", map[string]interface{}{"n": 1})
	require.NoError(t, err)
	_, err = log.Append("other", "fuji", map[string]interface{}{"n": 2})
	require.NoError(t, err)

	result := VerifySubsequence([]Record{*r2})
	require.True(t, result.OK)
	require.Equal(t, -1, result.MismatchIndex)
}

func TestVerifySubsequenceDetectsTamperedRecord(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(DefaultConfig(dir))
	require.NoError(t, err)

	r1, err := log.Append("req-x", "collect_options", map[string]interface{}{"n": 0})
	require.NoError(t, err)
	r2, err := log.Append("req-x", "seal_trust_log", map[string]interface{}{"n": 1})
	require.NoError(t, err)

	tampered := *r2
	tampered.Payload = map[string]interface{}{"n": 999}

	result := VerifySubsequence([]Record{*r1, tampered})
	require.False(t, result.OK)
	require.Equal(t, 1, result.MismatchIndex)
}

func TestVerifySubsequenceEmptyIsOK(t *testing.T) {
	result := VerifySubsequence(nil)
	require.True(t, result.OK)
}
