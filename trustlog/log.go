package trustlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/veritasfuji-japan/veritas/canon"
	"github.com/veritasfuji-japan/veritas/core"
)

const (
	primaryFileName  = "trust_log.primary"
	mirrorFileName   = "trust_log.mirror"
	markerFileName   = "trust_log.rotation.marker"
	segmentTimeLayout = "20060102T150405.000000000Z"
)

// Config configures a Log instance. Mirrors core.TrustLogConfig but kept
// independent so trustlog has no import-cycle dependency on core beyond the
// shared error/logger types.
type Config struct {
	Dir              string
	RotationMaxBytes int64
	MirrorSize       int
	MirrorEnabled    bool
	LockTimeout      time.Duration
	Logger           core.Logger
}

// DefaultConfig returns sane defaults matching core.DefaultConfig's
// TrustLogConfig section.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		RotationMaxBytes: 100 << 20,
		MirrorSize:       2000,
		MirrorEnabled:    true,
		LockTimeout:      5 * time.Second,
		Logger:           &core.NoOpLogger{},
	}
}

// Log is the append-only hash-chained audit log described in spec.md §4.4.
// It owns the primary segment file, an exclusive file lock (grounded on
// five82-spindle's daemon.go flock.New(lockPath)/TryLock()/Unlock()
// pattern — the one genuinely new domain dependency the retrieval pack
// contributes for TrustLog's concurrency contract, since the teacher itself
// has no file-locking primitive), a bounded in-memory mirror, and a
// rotation marker.
type Log struct {
	cfg  Config
	lock *flock.Flock

	// mu serializes appends within this process; the flock additionally
	// serializes across processes sharing the same Dir, matching spec.md §5
	// "TrustLog: single writer at a time via an exclusive lock".
	mu sync.Mutex

	mirror []Record
}

// Open creates the log directory if needed and returns a ready Log. It does
// not hold the lock between calls — each Append/AppendDegraded call acquires
// and releases it per spec.md §4.4 step 1/7.
func Open(cfg Config) (*Log, error) {
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	if cfg.MirrorSize <= 0 {
		cfg.MirrorSize = 2000
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, core.NewVeritasError("trustlog.Open", "log", fmt.Errorf("mkdir: %w", err))
	}

	l := &Log{
		cfg:  cfg,
		lock: flock.New(filepath.Join(cfg.Dir, ".trust_log.lock")),
	}

	if cfg.MirrorEnabled {
		if err := l.loadMirror(); err != nil {
			cfg.Logger.Warn("trustlog: mirror load failed, will rebuild lazily", map[string]interface{}{"err": err.Error()})
		}
	}
	return l, nil
}

func (l *Log) primaryPath() string { return filepath.Join(l.cfg.Dir, primaryFileName) }
func (l *Log) mirrorPath() string  { return filepath.Join(l.cfg.Dir, mirrorFileName) }
func (l *Log) markerPath() string  { return filepath.Join(l.cfg.Dir, markerFileName) }

// Append seals a new Record and writes it durably, following the seven-step
// protocol of spec.md §4.4 exactly:
//  1. acquire exclusive lock
//  2. read the last sha256 (tail of primary, or marker if primary empty)
//  3. compute sha256_prev/sha256
//  4. append the serialized record to primary
//  5. fsync data file, fsync directory
//  6. update the mirror (write-temp → fsync → rename, fsync directory)
//  7. release lock
func (l *Log) Append(requestID, stage string, payload map[string]interface{}) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	locked, err := l.lock.TryLock()
	if err != nil {
		return nil, core.NewVeritasError("trustlog.Append", "log", fmt.Errorf("acquire lock: %w", err))
	}
	if !locked {
		return nil, core.NewVeritasError("trustlog.Append", "log", core.ErrLockTimeout)
	}
	defer l.lock.Unlock()

	prevHash, err := l.lastHashLocked()
	if err != nil {
		return nil, core.NewVeritasError("trustlog.Append", "log", err)
	}

	hashable := hashableFields(payload)
	canonPayload, err := canon.Marshal(hashable)
	if err != nil {
		return nil, core.NewVeritasError("trustlog.Append", "log", fmt.Errorf("canonicalize payload: %w", err))
	}

	rec := &Record{
		ID:         uuid.NewString(),
		CreatedAt:  Timestamp(time.Now()),
		RequestID:  requestID,
		Stage:      stage,
		Payload:    payload,
		SHA256Prev: prevHash,
		SHA256:     canon.SHA256Chain(prevHash, canonPayload),
	}

	if err := l.appendRecordLocked(rec); err != nil {
		return nil, core.NewVeritasError("trustlog.Append", "log", err)
	}

	if l.cfg.MirrorEnabled {
		l.mirror = append(l.mirror, *rec)
		if len(l.mirror) > l.cfg.MirrorSize {
			l.mirror = l.mirror[len(l.mirror)-l.cfg.MirrorSize:]
		}
		if err := l.writeMirrorLocked(); err != nil {
			// Per §4.4 failure semantics: a mirror-update failure after the
			// primary line flushed is tolerated; the mirror is rebuilt
			// lazily on next successful append.
			l.cfg.Logger.Warn("trustlog: mirror update failed, primary is authoritative", map[string]interface{}{"err": err.Error()})
		}
	}

	if info, err := os.Stat(l.primaryPath()); err == nil && info.Size() >= l.cfg.RotationMaxBytes {
		if err := l.rotateLocked(rec.SHA256); err != nil {
			l.cfg.Logger.Warn("trustlog: rotation failed", map[string]interface{}{"err": err.Error()})
		}
	}

	return rec, nil
}

// AppendDegraded seals a fallback entry with hash_chain: "unavailable" when
// the canonical seal path could not complete (spec.md §7, the seal stage's
// "last line of defense"). It still participates in chain continuity: its
// sha256_prev is recorded but its own sha256 is left empty and Verify skips
// the hash check for it.
func (l *Log) AppendDegraded(requestID, stage string, payload map[string]interface{}) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	locked, err := l.lock.TryLock()
	if err != nil || !locked {
		return nil, core.NewVeritasError("trustlog.AppendDegraded", "log", core.ErrLockTimeout)
	}
	defer l.lock.Unlock()

	prevHash, err := l.lastHashLocked()
	if err != nil {
		prevHash = ""
	}

	rec := &Record{
		ID:         uuid.NewString(),
		CreatedAt:  Timestamp(time.Now()),
		RequestID:  requestID,
		Stage:      stage,
		Payload:    payload,
		SHA256Prev: prevHash,
		HashChain:  "unavailable",
	}
	if err := l.appendRecordLocked(rec); err != nil {
		return nil, core.NewVeritasError("trustlog.AppendDegraded", "log", err)
	}
	if l.cfg.MirrorEnabled {
		l.mirror = append(l.mirror, *rec)
		_ = l.writeMirrorLocked()
	}
	return rec, nil
}

func (l *Log) appendRecordLocked(rec *Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(l.primaryPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open primary: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write primary: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsync primary: %w", err)
	}
	return syncDir(l.cfg.Dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// lastHashLocked returns the sha256 of the last record in the active
// primary segment, or the rotation marker's value if the primary is empty
// and a marker exists, or "" for a brand-new chain. Must be called with l.mu
// held and the flock acquired.
func (l *Log) lastHashLocked() (string, error) {
	rec, err := tailRecord(l.primaryPath())
	if err != nil {
		return "", err
	}
	if rec != nil {
		if rec.HashChain == "unavailable" {
			// A degraded entry has no sha256 of its own; the chain head is
			// still the hash it was appended after.
			return rec.SHA256Prev, nil
		}
		return rec.SHA256, nil
	}
	if data, err := os.ReadFile(l.markerPath()); err == nil {
		var marker rotationMarker
		if err := json.Unmarshal(data, &marker); err == nil {
			return marker.LastSHA256, nil
		}
	}
	return "", nil
}

// tailRecord seeks from EOF backward to find the last line rather than
// loading the whole file, per spec.md §5 "implementations should seek from
// EOF backward to find the last line rather than loading the whole file".
func tailRecord(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open for tail: %w", err)
	}
	defer f.Close()

	line, err := lastNonEmptyLine(f)
	if err != nil {
		return nil, err
	}
	if line == "" {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return nil, fmt.Errorf("parse tail record: %w", err)
	}
	return &rec, nil
}

// lastNonEmptyLine reads backward from EOF in fixed-size chunks until it
// finds a newline preceding a non-empty line, avoiding a full-file read for
// large segments.
func lastNonEmptyLine(f *os.File) (string, error) {
	const chunkSize = 4096
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()
	if size == 0 {
		return "", nil
	}

	var tail []byte
	pos := size
	for pos > 0 {
		readSize := int64(chunkSize)
		if readSize > pos {
			readSize = pos
		}
		pos -= readSize
		buf := make([]byte, readSize)
		if _, err := f.ReadAt(buf, pos); err != nil {
			return "", err
		}
		tail = append(buf, tail...)

		trimmed := trimTrailingNewlines(tail)
		if idx := lastNewlineIndex(trimmed); idx >= 0 {
			return string(trimmed[idx+1:]), nil
		}
		if pos == 0 {
			return string(trimmed), nil
		}
	}
	return "", nil
}

func trimTrailingNewlines(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == '\n' {
		end--
	}
	return b[:end]
}

func lastNewlineIndex(b []byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == '\n' {
			return i
		}
	}
	return -1
}

// LastHash returns the current chain head (see lastHashLocked) by reading
// the primary's tail or the rotation marker without taking the append lock,
// per spec.md §5 "Read-only operations ... MUST NOT block appends for longer
// than a single record read".
func (l *Log) LastHash() (string, error) {
	return l.lastHashLocked()
}

// Tail returns up to n most recent records from the mirror if enabled,
// falling back to reading the primary's tail otherwise.
func (l *Log) Tail(n int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.MirrorEnabled && len(l.mirror) > 0 {
		if n <= 0 || n > len(l.mirror) {
			n = len(l.mirror)
		}
		out := make([]Record, n)
		copy(out, l.mirror[len(l.mirror)-n:])
		return out, nil
	}
	return readAllRecords(l.primaryPath())
}

type rotationMarker struct {
	LastSHA256   string    `json:"last_sha256"`
	RotatedAt    time.Time `json:"rotated_at"`
	SegmentFile  string    `json:"segment_file"`
}

// rotateLocked archives the current primary under a timestamped name,
// writes the rotation marker, and leaves a fresh empty primary so the next
// Append starts a new segment whose first record's sha256_prev equals
// lastSHA (spec.md §4.4 "Rotation"). Must be called with l.mu held and the
// flock acquired (Append calls this inline, under the same critical
// section).
func (l *Log) rotateLocked(lastSHA string) error {
	segmentName := fmt.Sprintf("trust_log.%s-%s.segment", time.Now().UTC().Format(segmentTimeLayout), uuid.NewString()[:8])
	archivePath := filepath.Join(l.cfg.Dir, segmentName)

	if err := os.Rename(l.primaryPath(), archivePath); err != nil {
		return fmt.Errorf("archive segment: %w", err)
	}

	marker := rotationMarker{LastSHA256: lastSHA, RotatedAt: time.Now().UTC(), SegmentFile: segmentName}
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("marshal rotation marker: %w", err)
	}
	if err := canon.AtomicWriteFile(l.markerPath(), data, 0o644); err != nil {
		return fmt.Errorf("write rotation marker: %w", err)
	}

	// A fresh empty primary is implicit: appendRecordLocked creates it with
	// os.O_CREATE on the next Append, and lastHashLocked now falls back to
	// the marker since the (new, empty) primary has no tail record.
	return nil
}

func (l *Log) loadMirror() error {
	data, err := os.ReadFile(l.mirrorPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return err
	}
	l.mirror = recs
	return nil
}

func (l *Log) writeMirrorLocked() error {
	data, err := json.Marshal(l.mirror)
	if err != nil {
		return err
	}
	return canon.AtomicWriteFile(l.mirrorPath(), data, 0o644)
}

func readAllRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("parse record: %w", err)
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}
