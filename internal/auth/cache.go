package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachingVerifier remembers successful verifications for a short TTL so
// repeated Basic-auth requests skip the Argon2id check. Keys are keyed
// HMACs of the credentials; plaintext passwords are never stored. Failed
// verifications are not cached.
type CachingVerifier struct {
	next  Verifier
	cache *gocache.Cache
	key   []byte
}

// NewCachingVerifier wraps next. A ttl of zero or less returns next unwrapped.
func NewCachingVerifier(next Verifier, ttl time.Duration) Verifier {
	if ttl <= 0 {
		return next
	}

	key := make([]byte, 32) //nolint:mnd // 256-bit HMAC key
	if _, err := rand.Read(key); err != nil {
		return next
	}

	return &CachingVerifier{
		next:  next,
		cache: gocache.New(ttl, time.Minute),
		key:   key,
	}
}

// Verify consults the cache before delegating.
func (c *CachingVerifier) Verify(ctx context.Context, username, password string) (*Identity, error) {
	k := c.cacheKey(username, password)
	if v, ok := c.cache.Get(k); ok {
		if id, ok := v.(Identity); ok {
			return &id, nil
		}
	}

	id, err := c.next.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(k, *id)
	return id, nil
}

func (c *CachingVerifier) cacheKey(username, password string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(username))
	mac.Write([]byte{0})
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}
