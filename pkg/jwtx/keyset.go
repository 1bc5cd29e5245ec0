package jwtx

import (
	"crypto"
	"fmt"
	"sync"
)

// KeySet holds public verification keys by kid. Safe for concurrent use.
type KeySet struct {
	mu   sync.RWMutex
	keys map[string]crypto.PublicKey
	jwks map[string]JWK
}

func NewKeySet() *KeySet {
	return &KeySet{
		keys: make(map[string]crypto.PublicKey),
		jwks: make(map[string]JWK),
	}
}

// AddJWK parses a JWK and registers its key, replacing any existing
// entry under the same kid.
func (s *KeySet) AddJWK(k JWK) error {
	pub, err := k.PublicKey()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[k.Kid] = pub
	s.jwks[k.Kid] = k
	return nil
}

// AddSigner registers a signer's public key for verification and JWKS
// publishing.
func (s *KeySet) AddSigner(signer Signer) error {
	if err := signer.Validate(); err != nil {
		return err
	}
	return s.AddJWK(signer.PublicJWK())
}

// Get returns the key for a kid, or ErrUnknownKID.
func (s *KeySet) Get(kid string) (crypto.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pub, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
	}
	return pub, nil
}

// JWKS snapshots the set for serving at the jwks endpoint.
func (s *KeySet) JWKS() JWKS {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := JWKS{Keys: make([]JWK, 0, len(s.jwks))}
	for _, k := range s.jwks {
		out.Keys = append(out.Keys, k)
	}
	return out
}

// IsReady reports whether at least one verification key is loaded.
func (s *KeySet) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys) > 0
}
