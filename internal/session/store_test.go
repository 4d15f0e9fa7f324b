package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, username string, role int, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().
		Subject(username).
		Claim("username", username).
		Claim("role", role).
		Claim("kyc_done", true).
		Expiration(exp).
		Build()
	require.NoError(t, err)
	raw, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("remote-secret")))
	require.NoError(t, err)
	return string(raw)
}

func newStore(t *testing.T, now func() time.Time) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := &Store{R: client, MaxTTL: 24 * time.Hour, Now: now}
	t.Cleanup(s.Close)
	return s, mr
}

func TestCreateAndCurrent(t *testing.T) {
	base := time.Now()
	s, mr := newStore(t, func() time.Time { return base })

	token := signedToken(t, "alice", RoleCustomer, base.Add(time.Hour))
	rec, err := s.Create(context.Background(), token)
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, "alice", rec.Username)
	require.Equal(t, RoleCustomer, rec.Role)
	require.True(t, rec.KYCDone)
	require.True(t, mr.Exists("session:"+rec.ID))

	got, err := s.Current(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, token, got.Token)
}

func TestCreateRejectsExpiredToken(t *testing.T) {
	base := time.Now()
	s, _ := newStore(t, func() time.Time { return base })

	token := signedToken(t, "bob", RoleSeller, base.Add(-time.Minute))
	_, err := s.Create(context.Background(), token)
	require.True(t, errors.Is(err, ErrExpiredToken))
}

func TestCurrentTreatsStaleRecordAsAbsent(t *testing.T) {
	clock := time.Now()
	s, mr := newStore(t, func() time.Time { return clock })

	rec, err := s.Create(context.Background(), signedToken(t, "carol", RoleCustomer, clock.Add(time.Minute)))
	require.NoError(t, err)

	// Move the wall clock past expiry while the Redis key still exists.
	clock = clock.Add(2 * time.Minute)
	_, err = s.Current(context.Background(), rec.ID)
	require.True(t, errors.Is(err, ErrNotFound))
	require.False(t, mr.Exists("session:"+rec.ID))
}

func TestInvalidateIsIdempotent(t *testing.T) {
	base := time.Now()
	s, mr := newStore(t, func() time.Time { return base })

	rec, err := s.Create(context.Background(), signedToken(t, "dave", RoleAdmin, base.Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, s.Invalidate(context.Background(), rec.ID))
	require.False(t, mr.Exists("session:"+rec.ID))
	require.NoError(t, s.Invalidate(context.Background(), rec.ID))
	require.NoError(t, s.Invalidate(context.Background(), "missing"))
}

// Token expiries have one-second resolution, so a short timer is produced by
// pinning the injected clock just short of a whole-second expiry.
func TestExpiryTimerFires(t *testing.T) {
	exp := time.Now().Truncate(time.Second).Add(time.Hour)
	clock := exp.Add(-30 * time.Millisecond)
	var expired atomic.Int32
	s, mr := newStore(t, func() time.Time { return clock })
	s.OnExpire = func(Record) { expired.Add(1) }

	rec, err := s.Create(context.Background(), signedToken(t, "erin", RoleCustomer, exp))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return expired.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, mr.Exists("session:"+rec.ID))
}

func TestNewSessionReplacesPendingTimer(t *testing.T) {
	expOld := time.Now().Truncate(time.Second).Add(time.Hour)
	expNew := expOld.Add(time.Hour)
	clock := expOld.Add(-40 * time.Millisecond)
	var expired atomic.Int32
	s, _ := newStore(t, func() time.Time { return clock })
	s.OnExpire = func(Record) { expired.Add(1) }

	_, err := s.Create(context.Background(), signedToken(t, "old", RoleCustomer, expOld))
	require.NoError(t, err)
	clock = expNew.Add(-60 * time.Millisecond)
	_, err = s.Create(context.Background(), signedToken(t, "new", RoleCustomer, expNew))
	require.NoError(t, err)

	// Only the newest session's timer is pending; the older one never fires.
	require.Eventually(t, func() bool { return expired.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	require.EqualValues(t, 1, expired.Load())
}

func TestDecodeTokenMalformed(t *testing.T) {
	_, err := DecodeToken("not-a-jwt")
	require.True(t, errors.Is(err, ErrMalformedToken))
}
