package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// authTimingFloor is the minimum response time for rejected requests so
// valid and invalid keys cannot be told apart by latency.
const authTimingFloor = 50 * time.Millisecond

// accessTokenParam carries the key on websocket upgrades, where browsers
// cannot set an Authorization header.
const accessTokenParam = "access_token"

// PrincipalKey is the gin context key holding the redacted caller key.
const PrincipalKey = "principal"

// KeySet holds the accepted canvas access keys as hashes.
type KeySet struct {
	hashes [][sha256.Size]byte
}

// NewKeySet builds a KeySet. Empty keys are ignored; an empty set disables auth.
func NewKeySet(keys ...string) *KeySet {
	ks := &KeySet{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			ks.hashes = append(ks.hashes, sha256.Sum256([]byte(k)))
		}
	}
	return ks
}

// Empty reports whether no keys are configured.
func (ks *KeySet) Empty() bool { return len(ks.hashes) == 0 }

// Valid reports whether key is accepted. Every stored hash is compared.
func (ks *KeySet) Valid(key string) bool {
	h := sha256.Sum256([]byte(key))
	match := 0
	for i := range ks.hashes {
		match |= subtle.ConstantTimeCompare(h[:], ks.hashes[i][:])
	}
	return match == 1
}

// Auth returns middleware that requires a valid access key. With an empty
// KeySet every request passes. Failed attempts are tracked per client IP.
func Auth(keys *KeySet, guard *LockoutGuard, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keys.Empty() {
			c.Next()
			return
		}

		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		ip := c.ClientIP()
		if guard.Blocked(ip) {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many failed authentication attempts")
			return
		}

		key := AccessKey(c)
		if key == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing access key")
			return
		}

		if !keys.Valid(key) {
			guard.RecordFailure(ip)
			logAuthFailure(log, c, key)
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid access key")
			return
		}

		guard.Reset(ip)
		c.Set(PrincipalKey, truncateKey(key))
		c.Next()
	}
}

// AccessKey extracts the key from the Authorization header or, failing
// that, the access_token query parameter.
func AccessKey(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query(accessTokenParam)
}

// truncateKey returns at most the first 4 characters of key followed by "...".
func truncateKey(key string) string {
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return key
}

func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

func logAuthFailure(log *logrus.Logger, c *gin.Context, key string) {
	log.WithFields(logrus.Fields{
		"client_ip":  c.ClientIP(),
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"request_id": c.GetString(RequestIDKey),
		"key_prefix": truncateKey(key),
	}).Warn("authentication failed: invalid access key")
}
