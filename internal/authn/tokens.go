// Package authn implements bearer-token authentication and per-client
// rate limiting for the Tool Dispatcher, per spec.md §4.3 steps 2-3.
// Token hashing is grounded on the teacher's
// internal/auth/local.go Argon2id password hashing, adapted from
// user passwords to opaque bearer tokens.
package authn

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Time    = 2
	argon2Memory  = 64 * 1024
	argon2Threads = 2
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// Registry holds the set of known bearer tokens, hashed at rest the
// same way the teacher hashes passwords. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	tokens  map[string]string // name -> "saltHex:hashHex"
	revoked map[string]bool
}

// NewRegistry returns an empty token Registry. When disabled (Enabled
// == false on the caller side), every request is treated as
// authenticated — the dispatcher only consults the Registry if auth is
// turned on, per spec.md §4.3 ("if auth is enabled").
func NewRegistry() *Registry {
	return &Registry{
		tokens:  make(map[string]string),
		revoked: make(map[string]bool),
	}
}

// Add registers a new named token, hashing the raw value. Re-adding a
// name overwrites its hash and clears any prior revocation.
func (r *Registry) Add(name, rawToken string) error {
	hash, err := hashToken(rawToken)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[name] = hash
	delete(r.revoked, name)
	return nil
}

// Revoke marks name's token as no longer valid without forgetting its
// hash; Authenticate skips revoked entries until Add re-registers name.
func (r *Registry) Revoke(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[name] = true
}

// Authenticate reports whether rawToken matches some registered,
// unrevoked token. Comparison time is independent of which entry (if
// any) matches, since every stored hash is checked.
func (r *Registry) Authenticate(rawToken string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ok := false
	for name, hash := range r.tokens {
		if r.revoked[name] {
			continue
		}
		if verifyToken(rawToken, hash) {
			ok = true
		}
	}
	return ok
}

func hashToken(token string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("authn: generating token salt: %w", err)
	}
	hash := argon2.IDKey([]byte(token), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(hash), nil
}

func verifyToken(token, stored string) bool {
	parts := strings.SplitN(stored, ":", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	actual := argon2.IDKey([]byte(token), salt, argon2Time, argon2Memory, argon2Threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}
