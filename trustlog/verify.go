package trustlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/veritasfuji-japan/veritas/canon"
)

// VerifyResult is the outcome of a chain-continuity/hash pass (spec.md §4.4
// "Verification", §8 "flipping any single byte ... makes verification
// report the index of that record").
type VerifyResult struct {
	OK            bool
	MismatchIndex int // -1 when OK
	TotalRecords  int
	Reason        string
}

// Verify recomputes every record's expected sha256 across the whole chain —
// archived segments in chronological order followed by the active primary —
// and reports the first index (0-based, across the concatenated sequence)
// whose stored sha256 doesn't match. Records flagged hash_chain:unavailable
// have their own hash check skipped, but continuity around them is still
// enforced per spec.md §4.4.
func Verify(dir string) (VerifyResult, error) {
	records, err := allRecordsInOrder(dir)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyRecords(records), nil
}

// VerifyRecords runs the same check as Verify directly against an in-memory
// slice (used by tests and by the TrustLog fetch "by-request_id aggregation"
// operation, which verifies continuity over just the records belonging to
// one request).
func VerifyRecords(records []Record) VerifyResult {
	expectedPrev := ""
	for i, rec := range records {
		if rec.SHA256Prev != expectedPrev {
			return VerifyResult{OK: false, MismatchIndex: i, TotalRecords: len(records),
				Reason: fmt.Sprintf("record %d: sha256_prev %q does not match preceding chain head %q", i, rec.SHA256Prev, expectedPrev)}
		}

		if rec.HashChain == "unavailable" {
			// Degraded entry: skip its own hash check, chain head does not
			// advance past it (spec.md §4.4 Verification).
			continue
		}

		hashable := hashableFields(rec.Payload)
		payload, err := canon.Marshal(hashable)
		if err != nil {
			return VerifyResult{OK: false, MismatchIndex: i, TotalRecords: len(records),
				Reason: fmt.Sprintf("record %d: payload not canonicalizable: %v", i, err)}
		}
		want := canon.SHA256Chain(rec.SHA256Prev, payload)
		if want != rec.SHA256 {
			return VerifyResult{OK: false, MismatchIndex: i, TotalRecords: len(records),
				Reason: fmt.Sprintf("record %d: sha256 mismatch (stored %q, computed %q)", i, rec.SHA256, want)}
		}
		expectedPrev = rec.SHA256
	}
	return VerifyResult{OK: true, MismatchIndex: -1, TotalRecords: len(records)}
}

// VerifySubsequence checks chain continuity over an arbitrary in-order
// subsequence of the full chain — e.g. just the records belonging to one
// request_id (spec.md §6 "by-request_id aggregation returning the
// chain-continuity verdict for that request's stage records"). Unlike
// VerifyRecords it does not assume records[0] is the chain's genesis
// record: it trusts the first record's own sha256_prev as the starting
// point and only checks that each record's stored sha256 is internally
// consistent and that later records in the subsequence build on the
// previous one's hash.
func VerifySubsequence(records []Record) VerifyResult {
	if len(records) == 0 {
		return VerifyResult{OK: true, MismatchIndex: -1}
	}

	expectedPrev := records[0].SHA256Prev
	for i, rec := range records {
		if i > 0 && rec.SHA256Prev != expectedPrev {
			return VerifyResult{OK: false, MismatchIndex: i, TotalRecords: len(records),
				Reason: fmt.Sprintf("record %d: sha256_prev %q does not match preceding record's sha256 %q", i, rec.SHA256Prev, expectedPrev)}
		}

		if rec.HashChain == "unavailable" {
			continue
		}

		hashable := hashableFields(rec.Payload)
		payload, err := canon.Marshal(hashable)
		if err != nil {
			return VerifyResult{OK: false, MismatchIndex: i, TotalRecords: len(records),
				Reason: fmt.Sprintf("record %d: payload not canonicalizable: %v", i, err)}
		}
		want := canon.SHA256Chain(rec.SHA256Prev, payload)
		if want != rec.SHA256 {
			return VerifyResult{OK: false, MismatchIndex: i, TotalRecords: len(records),
				Reason: fmt.Sprintf("record %d: sha256 mismatch (stored %q, computed %q)", i, rec.SHA256, want)}
		}
		expectedPrev = rec.SHA256
	}
	return VerifyResult{OK: true, MismatchIndex: -1, TotalRecords: len(records)}
}

// allRecordsInOrder reads every archived "*.segment" file in chronological
// (lexicographic — the timestamp embedded in the filename sorts correctly)
// order, followed by the active primary.
func allRecordsInOrder(dir string) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("trustlog: read dir: %w", err)
	}

	var segments []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "trust_log.") && strings.HasSuffix(name, ".segment") {
			segments = append(segments, name)
		}
	}
	sort.Strings(segments)

	var all []Record
	for _, name := range segments {
		recs, err := readAllRecords(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("trustlog: read segment %s: %w", name, err)
		}
		all = append(all, recs...)
	}

	primary, err := readAllRecords(filepath.Join(dir, primaryFileName))
	if err != nil {
		return nil, fmt.Errorf("trustlog: read primary: %w", err)
	}
	all = append(all, primary...)
	return all, nil
}

// MarkerLastHash reads the rotation marker's last_sha256, or "" if no
// rotation has occurred yet.
func MarkerLastHash(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, markerFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var marker rotationMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return "", err
	}
	return marker.LastSHA256, nil
}
