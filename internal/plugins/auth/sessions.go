package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionKeyPrefix is the Redis key prefix for session data.
const sessionKeyPrefix = "session:"

// sessionTokenBytes is the number of random bytes in a session token.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const sessionTokenBytes = 32

// sessionReapGrace is how long an expired session record lingers in Redis
// past its expiry timestamp before the key TTL reaps it. Expiry itself is
// the ExpiresAt check in Validate; the key TTL is storage hygiene only and
// never decides validity.
const sessionReapGrace = 24 * time.Hour

// Sentinel errors returned by session operations. The authorization
// middleware collapses both into a single 403 so callers can't probe which
// one occurred; the distinction exists for logging and tests.
var (
	// ErrInvalidToken means no session record exists for the token:
	// never issued, already revoked, or reaped long after expiry.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrSessionExpired means the record exists but its expiry timestamp
	// has passed.
	ErrSessionExpired = errors.New("session expired")
)

// SessionStore issues, validates, and revokes opaque bearer session tokens
// backed by Redis. Tokens are random and stateless on the client side; the
// store itself is the source of truth, which makes revocation immediate --
// no signed token can be withdrawn before its embedded expiry without a
// denylist, which this design avoids.
type SessionStore struct {
	redis *redis.Client
	ttl   time.Duration

	// now is swapped out in tests to walk the clock past expiry.
	now func() time.Time
}

// NewSessionStore creates a session store with the given TTL. A session is
// valid from issuance until (strictly before) issuance+ttl.
func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		redis: rdb,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Issue creates a new session for the given user: a fresh random token,
// creation timestamp, and absolute expiry at creation+TTL. One Redis record
// per call; issuing never touches existing sessions for the same user.
func (s *SessionStore) Issue(ctx context.Context, userID string) (*Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}

	now := s.now().UTC()
	session := &Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshaling session: %w", err)
	}

	// Key TTL = session TTL + grace, so an expired session stays observable
	// as expired (not unknown) until the reaper removes it.
	key := sessionKeyPrefix + token
	if err := s.redis.Set(ctx, key, data, s.ttl+sessionReapGrace).Err(); err != nil {
		return nil, fmt.Errorf("storing session in redis: %w", err)
	}

	return session, nil
}

// Validate looks up a session by token. Returns ErrInvalidToken if no
// record exists and ErrSessionExpired if the expiry timestamp has passed.
// Expired records are left in place -- expiry is lazy, evaluated here, and
// removal is the key TTL's job.
func (s *SessionStore) Validate(ctx context.Context, token string) (*Session, error) {
	key := sessionKeyPrefix + token

	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading session from redis: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	session.Token = token

	// Valid iff now is strictly before expiry. No sliding renewal.
	if !s.now().UTC().Before(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// Revoke deletes the session record for the token. Returns ErrInvalidToken
// if no record existed, so revoking twice fails cleanly rather than
// reporting success. After a successful revoke, Validate fails with
// ErrInvalidToken -- the record is gone, not merely expired.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	key := sessionKeyPrefix + token

	removed, err := s.redis.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("deleting session from redis: %w", err)
	}
	if removed == 0 {
		return ErrInvalidToken
	}

	return nil
}

// generateSessionToken creates a cryptographically random hex-encoded token.
func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
