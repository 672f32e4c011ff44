// Package trustlog implements VERITAS's append-only, hash-chained audit
// log (spec.md §4.4): every sealed Record links to its predecessor via a
// SHA-256 chain over canonical JSON, so any removal, reordering, or
// modification is detectable by Verify.
package trustlog

import (
	"fmt"
	"time"
)

// Timestamp marshals as the ISO8601-UTC string spec.md §3 specifies
// ("2006-01-02T15:04:05.000Z") rather than encoding/json's default
// RFC3339Nano, so the wire format is stable regardless of the local
// timezone a record was created in.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + FormatTimestamp(time.Time(t)) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("trustlog: invalid timestamp %q", s)
	}
	parsed, err := time.Parse(iso8601UTC, s[1:len(s)-1])
	if err != nil {
		// Tolerate RFC3339Nano for records written before a schema change.
		parsed, err = time.Parse(time.RFC3339Nano, s[1:len(s)-1])
		if err != nil {
			return err
		}
	}
	*t = Timestamp(parsed)
	return nil
}

func (t Timestamp) Time() time.Time { return time.Time(t) }

// Record is one sealed audit entry. Immutable once Append returns it.
// Field names/JSON tags mirror spec.md §3 "TrustLogRecord" and are informed
// by the audit-event record shape in the retrieval pack's helpdesk audit
// module (source/target entity + actor + payload, keyed by a hash chain
// rather than a sequence number).
type Record struct {
	ID         string                 `json:"id"`
	CreatedAt  Timestamp              `json:"created_at"`
	RequestID  string                 `json:"request_id"`
	Stage      string                 `json:"stage"`
	Payload    map[string]interface{} `json:"payload"`
	SHA256Prev string                 `json:"sha256_prev,omitempty"`
	SHA256     string                 `json:"sha256"`

	// HashChain is set to "unavailable" for degraded entries written by the
	// fallback path when a canonical seal could not complete (spec.md §7
	// "the seal stage ... always attempts an entry, even for fatal paths,
	// with hash_chain: unavailable"). Verify skips the hash check for these
	// records while still enforcing chain continuity on either side.
	HashChain string `json:"hash_chain,omitempty"`
}

// hashableFields returns the subset of Payload used for hashing: spec.md
// §4.4 excludes sha256/sha256_prev from the payload prior to hashing. Those
// two fields never appear inside Payload itself (they are sibling JSON
// fields on Record), so this is effectively identity — kept as a named
// step so the exclusion is visible at the call site in log.go.
func hashableFields(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k == "sha256" || k == "sha256_prev" {
			continue
		}
		out[k] = v
	}
	return out
}

const iso8601UTC = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t as the ISO8601-UTC string spec.md §3 requires.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(iso8601UTC)
}
