package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. All operations, including the mint
// callback of Exchange, run under a single mutex.
type MemoryStore struct {
	mu     sync.Mutex
	byHash map[string]*Record
	byID   map[string]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byHash: make(map[string]*Record),
		byID:   make(map[string]*Record),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(rec)
}

func (s *MemoryStore) insertLocked(rec Record) error {
	if _, ok := s.byHash[rec.TokenHash]; ok {
		return ErrDuplicateToken
	}
	if _, ok := s.byID[rec.ID]; ok {
		return ErrDuplicateToken
	}
	r := cloneRecord(rec)
	s.byHash[r.TokenHash] = &r
	s.byID[r.ID] = &r
	return nil
}

func (s *MemoryStore) FindByHash(ctx context.Context, tokenHash string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byHash[tokenHash]
	if !ok {
		return Record{}, ErrSessionNotFound
	}
	return cloneRecord(*r), nil
}

func (s *MemoryStore) Revoke(ctx context.Context, now time.Time, tokenHash, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.byHash[tokenHash]; ok {
		revokeLocked(r, now, reason)
	}
	return nil
}

func (s *MemoryStore) RevokeAllForOwner(ctx context.Context, now time.Time, ownerID, reason string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, r := range s.byID {
		if r.OwnerID == ownerID && r.RevokedAt == nil {
			revokeLocked(r, now, reason)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Exchange(ctx context.Context, now time.Time, tokenHash string, mint MintFunc) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byHash[tokenHash]
	if !ok {
		return Record{}, ErrSessionNotFound
	}

	next, err := mint(cloneRecord(*old))
	if err != nil {
		return Record{}, err
	}
	// Nothing is applied once the caller has given up.
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if _, dup := s.byHash[next.TokenHash]; dup {
		return Record{}, ErrDuplicateToken
	}

	if err := s.insertLocked(next); err != nil {
		return Record{}, err
	}
	revokeLocked(old, now, ReasonRotation)
	rotated := now
	replacedBy := next.ID
	old.RotatedAt = &rotated
	old.ReplacedByID = &replacedBy

	return cloneRecord(next), nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, r := range s.byID {
		if r.ExpiresAt.Before(before) {
			delete(s.byID, id)
			delete(s.byHash, r.TokenHash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func revokeLocked(r *Record, now time.Time, reason string) {
	if r.RevokedAt != nil {
		return
	}
	t := now
	why := reason
	r.RevokedAt = &t
	r.RevocationReason = &why
}

func cloneRecord(r Record) Record {
	out := r
	if r.RevokedAt != nil {
		t := *r.RevokedAt
		out.RevokedAt = &t
	}
	if r.RotatedAt != nil {
		t := *r.RotatedAt
		out.RotatedAt = &t
	}
	if r.ReplacedByID != nil {
		s := *r.ReplacedByID
		out.ReplacedByID = &s
	}
	if r.RevocationReason != nil {
		s := *r.RevocationReason
		out.RevocationReason = &s
	}
	return out
}
