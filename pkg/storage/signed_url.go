package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken is returned for malformed or tampered download tokens.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("download token expired")
)

// Grant is the payload carried by a signed download token.
type Grant struct {
	JobID     string
	Key       string
	ExpiresAt time.Time
}

// URLSigner issues HMAC-signed download tokens for export artifacts.
type URLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewURLSigner constructs a signer; a non-positive ttl falls back to 24h.
func NewURLSigner(secret string, ttl time.Duration) *URLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &URLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token granting access to key on behalf of jobID.
func (s *URLSigner) Sign(jobID, key string) (string, Grant, error) {
	if jobID == "" || key == "" {
		return "", Grant{}, fmt.Errorf("job id and key required")
	}
	if len(s.secret) == 0 {
		return "", Grant{}, fmt.Errorf("signing secret missing")
	}
	grant := Grant{JobID: jobID, Key: key, ExpiresAt: s.now().Add(s.ttl).Truncate(time.Second)}
	encodedKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	expires := strconv.FormatInt(grant.ExpiresAt.Unix(), 10)
	token := strings.Join([]string{jobID, expires, encodedKey, s.mac(jobID, expires, encodedKey)}, ".")
	return token, grant, nil
}

// Verify checks the token signature and expiry and returns its grant.
func (s *URLSigner) Verify(token string) (Grant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Grant{}, ErrInvalidToken
	}
	jobID, expires, encodedKey, signature := parts[0], parts[1], parts[2], parts[3]
	if !hmac.Equal([]byte(s.mac(jobID, expires, encodedKey)), []byte(signature)) {
		return Grant{}, ErrInvalidToken
	}
	rawKey, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return Grant{}, ErrInvalidToken
	}
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return Grant{}, ErrInvalidToken
	}
	grant := Grant{JobID: jobID, Key: string(rawKey), ExpiresAt: time.Unix(unix, 0)}
	if s.now().After(grant.ExpiresAt) {
		return grant, ErrTokenExpired
	}
	return grant, nil
}

func (s *URLSigner) mac(jobID, expires, encodedKey string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(jobID + "|" + expires + "|" + encodedKey))
	return hex.EncodeToString(mac.Sum(nil))
}
