package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Recoverable secp256k1 signature layout: [R || S || V], V in {0, 1}.
const (
	SecpSigSize  = 65
	secpHashSize = 32
)

var (
	ErrSecpInvalidKey  = errors.New("secp256k1: invalid private key")
	ErrSecpInvalidHash = errors.New("secp256k1: hash must be 32 bytes")
)

// SecpSigner produces recoverable secp256k1 signatures whose signer can be
// identified on-chain with ecrecover.
type SecpSigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewSecpSigner loads a signer from a 32-byte private scalar.
func NewSecpSigner(secret []byte) (*SecpSigner, error) {
	key, err := gethcrypto.ToECDSA(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecpInvalidKey, err)
	}
	return &SecpSigner{key: key, addr: gethcrypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the Ethereum address of the signer.
func (s *SecpSigner) Address() common.Address {
	return s.addr
}

// Sign signs a 32-byte digest.
func (s *SecpSigner) Sign(hash []byte) ([]byte, error) {
	if len(hash) != secpHashSize {
		return nil, ErrSecpInvalidHash
	}
	return gethcrypto.Sign(hash, s.key)
}

// SecpVerifyAddress reports whether sig is a valid low-S recoverable
// signature over hash produced by the key behind addr.
func SecpVerifyAddress(addr common.Address, hash, sig []byte) bool {
	if len(hash) != secpHashSize || len(sig) != SecpSigSize {
		return false
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !gethcrypto.ValidateSignatureValues(sig[64], r, s, true) {
		return false
	}
	pub, err := gethcrypto.SigToPub(hash, sig)
	if err != nil {
		return false
	}
	return gethcrypto.PubkeyToAddress(*pub) == addr
}
