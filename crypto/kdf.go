package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// kdfSalt separates keys derived here from any other HKDF use of the seed.
var kdfSalt = []byte("zkrsa/prover-keys/v1")

var ErrKDFEmptySeed = errors.New("kdf: empty seed")

// DeriveKey expands seed into n bytes of key material bound to info using
// HKDF-SHA256.
func DeriveKey(seed, info []byte, n int) ([]byte, error) {
	if len(seed) == 0 {
		return nil, ErrKDFEmptySeed
	}
	out := make([]byte, n)
	r := hkdf.New(sha256.New, seed, kdfSalt, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("kdf: expand %q: %w", info, err)
	}
	return out, nil
}
