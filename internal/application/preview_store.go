package application

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

type sessionState int

const (
	sessionActive sessionState = iota
	sessionConfirming
)

// storedSession is the store's bookkeeping around one staged preview. Small
// sessions stay resident; large ones spill their payload to disk and keep
// only metadata and an integrity digest in memory.
type storedSession struct {
	session   PreviewSession
	state     sessionState
	sizeBytes int64
	spillPath string
	spillSum  [blake2b.Size256]byte
}

// PreviewStore stages validated batches under opaque tokens until they are
// confirmed, discarded, or expire. Storage is bounded by a byte budget;
// payloads above the spill threshold are written to disk so a handful of
// large uploads cannot hold the whole budget in memory.
//
// Expiry is enforced lazily on every read and eagerly by SweepExpired. A
// session in the confirming state is invisible to expiry until the commit
// settles.
type PreviewStore struct {
	mu             sync.Mutex
	sessions       map[string]*storedSession
	totalBytes     int64
	budgetBytes    int64
	spillThreshold int64
	spillDir       string
	ttl            time.Duration
	now            func() time.Time
}

// PreviewStoreConfig bundles the store's tuning knobs.
type PreviewStoreConfig struct {
	// BudgetBytes caps the summed size of all staged sessions. Non-positive
	// disables the cap.
	BudgetBytes int64
	// SpillThresholdBytes moves sessions at or above this encoded size to
	// disk. Non-positive keeps everything resident.
	SpillThresholdBytes int64
	// SpillDir receives spilled payload files.
	SpillDir string
	// TTL is how long a staged session stays retrievable.
	TTL time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewPreviewStore constructs an empty store.
func NewPreviewStore(cfg PreviewStoreConfig) *PreviewStore {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &PreviewStore{
		sessions:       make(map[string]*storedSession),
		budgetBytes:    cfg.BudgetBytes,
		spillThreshold: cfg.SpillThresholdBytes,
		spillDir:       cfg.SpillDir,
		ttl:            ttl,
		now:            now,
	}
}

// Stage stores a session under its token and stamps CreatedAt/ExpiresAt.
// It returns ErrCapacityExceeded when the encoded session would push the
// store past its byte budget; the caller surfaces that as backpressure.
func (s *PreviewStore) Stage(session PreviewSession) (PreviewSession, error) {
	if session.Token == "" {
		return PreviewSession{}, fmt.Errorf("preview store: session token is empty")
	}

	now := s.now()
	session.CreatedAt = now
	session.ExpiresAt = now.Add(s.ttl)

	payload, err := json.Marshal(session)
	if err != nil {
		return PreviewSession{}, fmt.Errorf("preview store: encode session: %w", err)
	}
	size := int64(len(payload))
	session.SizeBytes = size

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeExpiredLocked(now)

	if s.budgetBytes > 0 && s.totalBytes+size > s.budgetBytes {
		return PreviewSession{}, ErrCapacityExceeded
	}
	if _, exists := s.sessions[session.Token]; exists {
		return PreviewSession{}, fmt.Errorf("preview store: token collision")
	}

	stored := &storedSession{session: session, sizeBytes: size}
	if s.spillThreshold > 0 && size >= s.spillThreshold {
		if err := s.spill(stored, payload); err != nil {
			return PreviewSession{}, err
		}
	}

	s.sessions[session.Token] = stored
	s.totalBytes += size
	return session, nil
}

// Get returns the staged session for a token. Unknown, expired, and
// currently-confirming tokens all read as not found.
func (s *PreviewStore) Get(token string) (PreviewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.activeLocked(token)
	if err != nil {
		return PreviewSession{}, err
	}
	return s.loadLocked(stored)
}

// Discard removes a staged session. Discarding an unknown or expired token
// is a no-op so the operation is idempotent.
func (s *PreviewStore) Discard(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[token]
	if !ok || stored.state != sessionActive {
		return
	}
	s.removeLocked(token, stored)
}

// BeginConfirm transitions a session to confirming and returns its payload.
// The session stays staged but is hidden from reads and the sweeper until
// CompleteConfirm or AbortConfirm settles it. A second BeginConfirm on the
// same token reports ErrConfirmInProgress.
func (s *PreviewStore) BeginConfirm(token string) (PreviewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[token]
	if !ok {
		return PreviewSession{}, ErrNotFound
	}
	if stored.state == sessionConfirming {
		return PreviewSession{}, ErrConfirmInProgress
	}
	if s.now().After(stored.session.ExpiresAt) {
		s.removeLocked(token, stored)
		return PreviewSession{}, ErrNotFound
	}

	session, err := s.loadLocked(stored)
	if err != nil {
		return PreviewSession{}, err
	}
	stored.state = sessionConfirming
	return session, nil
}

// CompleteConfirm removes a committed session and releases its budget share.
func (s *PreviewStore) CompleteConfirm(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[token]
	if !ok {
		return
	}
	s.removeLocked(token, stored)
}

// AbortConfirm returns a session to active after a failed commit so the user
// can retry before the TTL runs out.
func (s *PreviewStore) AbortConfirm(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.sessions[token]; ok {
		stored.state = sessionActive
	}
}

// SweepExpired evicts every expired active session and reports how many were
// removed.
func (s *PreviewStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeExpiredLocked(s.now())
}

// UsedBytes reports the budget currently held by staged sessions.
func (s *PreviewStore) UsedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes
}

func (s *PreviewStore) activeLocked(token string) (*storedSession, error) {
	stored, ok := s.sessions[token]
	if !ok || stored.state != sessionActive {
		return nil, ErrNotFound
	}
	if s.now().After(stored.session.ExpiresAt) {
		s.removeLocked(token, stored)
		return nil, ErrNotFound
	}
	return stored, nil
}

// loadLocked materializes the full session, reloading and verifying spilled
// payloads.
func (s *PreviewStore) loadLocked(stored *storedSession) (PreviewSession, error) {
	if stored.spillPath == "" {
		return stored.session, nil
	}

	payload, err := os.ReadFile(stored.spillPath)
	if err != nil {
		return PreviewSession{}, fmt.Errorf("preview store: reload spilled session: %w", err)
	}
	if blake2b.Sum256(payload) != stored.spillSum {
		return PreviewSession{}, fmt.Errorf("preview store: spilled session failed integrity check")
	}

	var session PreviewSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return PreviewSession{}, fmt.Errorf("preview store: decode spilled session: %w", err)
	}
	session.SizeBytes = stored.sizeBytes
	return session, nil
}

// spill writes the encoded payload to disk and strips the record list from
// the resident copy. The session still charges its full size against the
// budget; spilling trades memory, not accounting.
func (s *PreviewStore) spill(stored *storedSession, payload []byte) error {
	path := filepath.Join(s.spillDir, stored.session.Token+".json")
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("preview store: spill session: %w", err)
	}
	stored.spillPath = path
	stored.spillSum = blake2b.Sum256(payload)
	stored.session.Records = nil
	return nil
}

func (s *PreviewStore) removeLocked(token string, stored *storedSession) {
	delete(s.sessions, token)
	s.totalBytes -= stored.sizeBytes
	if stored.spillPath != "" {
		_ = os.Remove(stored.spillPath)
	}
}

func (s *PreviewStore) removeExpiredLocked(now time.Time) int {
	removed := 0
	for token, stored := range s.sessions {
		if stored.state != sessionActive {
			continue
		}
		if now.After(stored.session.ExpiresAt) {
			s.removeLocked(token, stored)
			removed++
		}
	}
	return removed
}
