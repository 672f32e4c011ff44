package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/veritasfuji-japan/veritas/core"
)

// Parse decodes a policy document from YAML bytes and validates it.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("policy: parse: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads and parses a policy file from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return Parse(data)
}

// Store holds the active policy document behind an atomic pointer so
// readers (the FUJI layers, evaluated once per request) never block on a
// reload in progress, mirroring the teacher's preference for lock-free
// reads over hot paths (core/config.go's Option pattern is write-time only;
// Store adds the read-time counterpart the policy file needs because it
// changes at runtime, unlike Config).
type Store struct {
	mu      sync.Mutex
	path    string
	hash    string
	current atomic.Pointer[Document]
	Logger  core.Logger
}

// NewStore builds a Store seeded with doc (Default() if nil is given).
func NewStore(doc *Document) *Store {
	if doc == nil {
		doc = Default()
	}
	s := &Store{}
	s.current.Store(doc)
	return s
}

// NewStoreFromFile loads path and seeds a Store with it, remembering path
// for subsequent Reload calls.
func NewStoreFromFile(path string, logger core.Logger) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, hash: contentHash(data), Logger: logger}
	s.current.Store(doc)
	return s, nil
}

// Current returns the active document. Safe for concurrent use.
func (s *Store) Current() *Document {
	if d := s.current.Load(); d != nil {
		return d
	}
	return Default()
}

// Reload re-reads the configured file and swaps the active document only if
// its content changed and it validates, matching spec.md §6's requirement
// that a malformed policy file on reload does not take down the gate — the
// previous document stays active and the error is surfaced to the caller
// for logging/alerting.
func (s *Store) Reload() (changed bool, err error) {
	if s.path == "" {
		return false, fmt.Errorf("policy: store has no backing file to reload")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("policy: reload %s: %w", s.path, err)
	}
	h := contentHash(data)
	if h == s.hash {
		return false, nil
	}
	doc, err := Parse(data)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("policy: reload rejected, keeping previous document", map[string]interface{}{"path": s.path, "err": err.Error()})
		}
		return false, err
	}
	s.current.Store(doc)
	s.hash = h
	if s.Logger != nil {
		s.Logger.Info("policy: reloaded document", map[string]interface{}{"path": s.path, "version": doc.Version})
	}
	return true, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
