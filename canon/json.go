// Package canon implements the canonical JSON encoding TrustLog hashes over
// (spec.md §4.4): UTF-8, keys sorted lexicographically at every level, no
// insignificant whitespace, numbers in their shortest round-trip form. No
// third-party dependency is used here — canonicalizing a
// map[string]interface{} tree via encoding/json plus a sort step is simple
// enough that nothing in the retrieval pack's JSON tooling improves on the
// standard library (documented in DESIGN.md as a stdlib justification).
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Marshal serializes v into the canonical form used for hashing: object
// keys sorted recursively, no whitespace, UTF-8. v is first round-tripped
// through encoding/json to normalize it into the generic
// map[string]interface{}/[]interface{}/json.Number tree this package walks.
func Marshal(v interface{}) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, fmt.Errorf("canon: normalize: %w", err)
	}
	var buf bytes.Buffer
	if err := encode(&buf, normalized); err != nil {
		return nil, fmt.Errorf("canon: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// normalize round-trips v through encoding/json using a decoder configured
// with UseNumber so integers aren't mangled into float64 and back into
// exponential notation.
func normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func encode(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		return encodeNumber(buf, t)
	case string:
		return encodeString(buf, t)
	case []interface{}:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("canon: unsupported type %T after normalization", v)
	}
}

// encodeString reuses encoding/json's string escaping (handles UTF-8,
// control characters, and the `<`/`>`/`&` HTML-escaping which we must
// disable to keep the output byte-stable across Go versions).
func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// encodeNumber re-emits a json.Number in the shortest round-trip form:
// integers without a decimal point, floats via strconv's shortest
// representation so "1.10" doesn't silently become "1.1000000000000001".
func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	if i, err := n.Int64(); err == nil {
		buf.WriteString(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("canon: invalid number %q: %w", n.String(), err)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return fmt.Errorf("canon: number %q is not JSON-representable", n.String())
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

// SHA256Chain implements the §4.4 chain rule:
//
//	sha256_t = SHA256((sha256_prev or "") || canonical_json(payload_t))
//
// prevHex is the empty string for the first record in a chain.
func SHA256Chain(prevHex string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHex))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
