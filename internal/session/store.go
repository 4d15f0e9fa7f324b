package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates there is no live session for the given identifier.
var ErrNotFound = errors.New("session not found")

// ErrExpiredToken is returned when the presented token is already past its
// expiry at creation time.
var ErrExpiredToken = errors.New("token already expired")

// Known role identifiers carried in the upstream access token.
const (
	RoleAdmin    = 0
	RoleCustomer = 2
	RoleSeller   = 3
)

// Record is the stored state of an authenticated session.
type Record struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Role      int       `json:"role"`
	KYCDone   bool      `json:"kycDone"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Manager is the session surface consumed by HTTP middleware and handlers.
type Manager interface {
	Current(ctx context.Context, sid string) (Record, error)
	Invalidate(ctx context.Context, sid string) error
}

// Store keeps session records in Redis keyed by session:<sid> with a TTL
// matching the token expiry. A single in-process timer tracks the most
// recently created session so its record is proactively removed on expiry;
// Redis TTLs are the backstop for everything else.
type Store struct {
	R        *redis.Client
	MaxTTL   time.Duration
	Now      func() time.Time
	OnExpire func(Record)

	mu       sync.Mutex
	timer    *time.Timer
	timerSID string
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func key(sid string) string { return "session:" + sid }

// Create decodes the access token, stores a new session record and arms the
// expiry timer for it. The returned record carries the generated session id.
func (s *Store) Create(ctx context.Context, token string) (Record, error) {
	if s == nil || s.R == nil {
		return Record{}, errors.New("session store not configured")
	}
	claims, err := DecodeToken(token)
	if err != nil {
		return Record{}, err
	}
	now := s.now()
	if !claims.ExpiresAt.After(now) {
		return Record{}, ErrExpiredToken
	}
	ttl := claims.ExpiresAt.Sub(now)
	if s.MaxTTL > 0 && ttl > s.MaxTTL {
		ttl = s.MaxTTL
	}
	rec := Record{
		ID:        uuid.NewString(),
		Token:     token,
		Username:  claims.Username,
		Role:      claims.Role,
		KYCDone:   claims.KYCDone,
		ExpiresAt: now.Add(ttl),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return Record{}, err
	}
	if err := s.R.Set(ctx, key(rec.ID), raw, ttl).Err(); err != nil {
		return Record{}, err
	}
	s.arm(rec, ttl)
	return rec, nil
}

// Current returns the live session for sid. A record whose expiry has passed
// is treated as absent and its key removed.
func (s *Store) Current(ctx context.Context, sid string) (Record, error) {
	if s == nil || s.R == nil {
		return Record{}, errors.New("session store not configured")
	}
	if sid == "" {
		return Record{}, ErrNotFound
	}
	raw, err := s.R.Get(ctx, key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		_ = s.R.Del(ctx, key(sid)).Err()
		return Record{}, ErrNotFound
	}
	if !rec.ExpiresAt.After(s.now()) {
		_ = s.R.Del(ctx, key(sid)).Err()
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Invalidate removes the session record and cancels its pending timer. It is
// idempotent: invalidating a missing or already-expired session is a no-op.
func (s *Store) Invalidate(ctx context.Context, sid string) error {
	if s == nil || s.R == nil {
		return errors.New("session store not configured")
	}
	if sid == "" {
		return nil
	}
	s.disarm(sid)
	return s.R.Del(ctx, key(sid)).Err()
}

// Close cancels any pending expiry timer.
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.timerSID = ""
	}
}

// arm replaces the pending expiry timer with one for the given record. Only
// one timer is live at a time; the newest session wins.
func (s *Store) arm(rec Record, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerSID = rec.ID
	s.timer = time.AfterFunc(ttl, func() { s.expire(rec) })
}

func (s *Store) disarm(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil && s.timerSID == sid {
		s.timer.Stop()
		s.timer = nil
		s.timerSID = ""
	}
}

func (s *Store) expire(rec Record) {
	s.mu.Lock()
	if s.timerSID == rec.ID {
		s.timer = nil
		s.timerSID = ""
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.R.Del(ctx, key(rec.ID)).Err()
	if s.OnExpire != nil {
		s.OnExpire(rec)
	}
}
