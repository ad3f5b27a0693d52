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

const (
	sessionNamespace = "healthcore:session:"
	tokenEntropy     = 32
)

// errNoSession means the token is unknown or its TTL ran out.
var errNoSession = errors.New("no such session")

// sessionStore keeps sessions as JSON blobs under an expiring Redis key.
type sessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func (s sessionStore) key(token string) string { return sessionNamespace + token }

// open issues a fresh token for user.
func (s sessionStore) open(ctx context.Context, user *User) (string, error) {
	raw := make([]byte, tokenEntropy)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("reading token entropy: %w", err)
	}
	token := hex.EncodeToString(raw)

	blob, err := json.Marshal(&Session{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.DisplayName,
		Roles:     user.Roles,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(token), blob, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("saving session: %w", err)
	}
	return token, nil
}

func (s sessionStore) load(ctx context.Context, token string) (*Session, error) {
	blob, err := s.rdb.Get(ctx, s.key(token)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, errNoSession
	case err != nil:
		return nil, fmt.Errorf("loading session: %w", err)
	}

	session := new(Session)
	if err := json.Unmarshal(blob, session); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return session, nil
}

func (s sessionStore) close(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}
