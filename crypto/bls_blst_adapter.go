// BLS12-381 seal signing backed by the supranational/blst library.
//
// Seals use the "MinPk" layout:
//   - Public keys in G1 (48-byte compressed P1Affine)
//   - Signatures in G2 (96-byte compressed P2Affine)
//   - DST: BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_ (basic scheme)
package crypto

import (
	"errors"

	blst "github.com/supranational/blst/bindings/go"
)

// blsSealDST is the domain separation tag for seal signatures.
var blsSealDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

// Key and signature sizes for the MinPk scheme.
const (
	BLSPubkeySize = 48 // compressed G1
	BLSSigSize    = 96 // compressed G2
	blsSecretSize = 32 // scalar field element
	blsMinIKMSize = 32
)

// Errors returned by the BLS helpers.
var (
	ErrBLSInvalidIKM       = errors.New("bls: IKM must be at least 32 bytes")
	ErrBLSKeyGenFailed     = errors.New("bls: key generation failed")
	ErrBLSInvalidSecretKey = errors.New("bls: invalid secret key bytes")
	ErrBLSSignFailed       = errors.New("bls: signing failed")
)

// BLSSigner signs messages with a single BLS secret key.
type BLSSigner struct {
	sk     *blst.SecretKey
	pubkey []byte
}

// NewBLSSigner derives a signer from input key material (IKM). IKM must be
// at least 32 bytes.
func NewBLSSigner(ikm []byte) (*BLSSigner, error) {
	if len(ikm) < blsMinIKMSize {
		return nil, ErrBLSInvalidIKM
	}
	sk := blst.KeyGen(ikm)
	if sk == nil {
		return nil, ErrBLSKeyGenFailed
	}
	pk := new(blst.P1Affine).From(sk)
	return &BLSSigner{sk: sk, pubkey: pk.Compress()}, nil
}

// NewBLSSignerFromSecret loads a signer from a serialized 32-byte secret key.
func NewBLSSignerFromSecret(secret []byte) (*BLSSigner, error) {
	if len(secret) != blsSecretSize {
		return nil, ErrBLSInvalidSecretKey
	}
	sk := new(blst.SecretKey).Deserialize(secret)
	if sk == nil {
		return nil, ErrBLSInvalidSecretKey
	}
	pk := new(blst.P1Affine).From(sk)
	return &BLSSigner{sk: sk, pubkey: pk.Compress()}, nil
}

// PublicKey returns a copy of the 48-byte compressed public key.
func (s *BLSSigner) PublicKey() []byte {
	return append([]byte(nil), s.pubkey...)
}

// Sign returns the 96-byte compressed signature over msg.
func (s *BLSSigner) Sign(msg []byte) ([]byte, error) {
	sig := new(blst.P2Affine).Sign(s.sk, msg, blsSealDST)
	if sig == nil {
		return nil, ErrBLSSignFailed
	}
	return sig.Compress(), nil
}

// BLSVerify checks a single signature. pubkey must be a 48-byte compressed
// G1 point and sig a 96-byte compressed G2 point; both are subgroup checked.
func BLSVerify(pubkey, msg, sig []byte) bool {
	if len(pubkey) != BLSPubkeySize || len(sig) != BLSSigSize {
		return false
	}
	pk := new(blst.P1Affine).Uncompress(pubkey)
	if pk == nil {
		return false
	}
	s := new(blst.P2Affine).Uncompress(sig)
	if s == nil {
		return false
	}
	return s.Verify(true, pk, true, msg, blsSealDST)
}
