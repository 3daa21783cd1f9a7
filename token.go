package bifrost

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/awnumar/memguard"
)

// Secret holds the server HMAC key inside an encrypted memguard enclave.
// The plaintext key only exists in locked memory for the duration of a
// single digest computation.
type Secret struct {
	enclave *memguard.Enclave
}

// NewSecret seals key into an enclave. The key slice is wiped.
// An empty key yields a nil Secret, which reports ErrSecretNotConfigured.
func NewSecret(key []byte) *Secret {
	if len(key) == 0 {
		return nil
	}
	return &Secret{enclave: memguard.NewEnclave(key)}
}

// Sign returns the hex token for c.
func (s *Secret) Sign(c Claim) (string, error) {
	if s == nil || s.enclave == nil {
		return "", ErrSecretNotConfigured
	}

	buf, err := s.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("bifrost: failed to open secret: %w", err)
	}
	defer buf.Destroy()

	return Sign(buf.Bytes(), c), nil
}

// Verify checks token against c at time now. See Verify.
func (s *Secret) Verify(token string, c Claim, now int64) error {
	expected, err := s.Sign(c)
	if err != nil {
		return err
	}
	return compare(expected, token, c, now)
}

// Sign returns HMAC-SHA256(key, identity|client_ip|issued_at) as lowercase hex.
func Sign(key []byte, c Claim) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(c.Message()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the digest for c and compares it with token in constant
// time. A mismatch yields ErrTokenInvalid. A matching digest whose claim is
// older than its validity at now (milliseconds since epoch) yields
// ErrTokenExpired.
func Verify(key []byte, token string, c Claim, now int64) error {
	return compare(Sign(key, c), token, c, now)
}

func compare(expected, token string, c Claim, now int64) error {
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrTokenInvalid
	}
	if c.Expired(now) {
		return ErrTokenExpired
	}
	return nil
}
