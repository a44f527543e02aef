// rsa.go implements the RSA pieces of the proof-carrying encryption
// protocol: host-side key pairs backed by crypto/rsa, a raw-parts public key
// that the guest builds without validation, and RSAES-PKCS1-v1_5 encryption
// over that raw key.
package crypto

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"math/bits"
)

// RSA errors.
var (
	ErrRSANilKey          = errors.New("rsa: nil key component")
	ErrRSAInvalidModulus  = errors.New("rsa: invalid modulus")
	ErrRSAInvalidExponent = errors.New("rsa: invalid public exponent")
	ErrRSAModulusTooSmall = errors.New("rsa: modulus too small")
	ErrRSAMessageTooLong  = errors.New("rsa: message too long for key size")
	ErrRSANilRandom       = errors.New("rsa: nil randomness source")
	ErrRSADecryption      = errors.New("rsa: decryption error")
)

const (
	// pkcs1v15Overhead is 0x00 || 0x02 || PS(>=8 bytes) || 0x00.
	pkcs1v15Overhead = 11

	// MinValidatedModulusBits is the smallest modulus NewRSAPublicKey accepts.
	MinValidatedModulusBits = 1024
)

// RSAPublicKey is an RSA public key held as raw big-integer parts. Unlike
// crypto/rsa.PublicKey the exponent is arbitrary precision, so every key that
// can be written down in the transport encoding can be represented.
type RSAPublicKey struct {
	N *big.Int
	E *big.Int
}

// NewRSAPublicKeyUnchecked builds a public key from raw parts without any
// validation: no primality, size, parity or exponent range checks. Both
// parts are copied. This is the constructor the guest uses, it trusts the
// exact values handed to it. Use NewRSAPublicKey when the key source is
// untrusted.
func NewRSAPublicKeyUnchecked(n, e *big.Int) *RSAPublicKey {
	k := &RSAPublicKey{}
	if n != nil {
		k.N = new(big.Int).Set(n)
	}
	if e != nil {
		k.E = new(big.Int).Set(e)
	}
	return k
}

// NewRSAPublicKey builds a public key from raw parts and rejects values that
// cannot belong to a usable RSA key: an even or too small modulus, or an
// exponent that is even, below 3, or wider than 31 bits.
func NewRSAPublicKey(n, e *big.Int) (*RSAPublicKey, error) {
	if n == nil || e == nil {
		return nil, ErrRSANilKey
	}
	if n.Sign() <= 0 || n.Bit(0) == 0 {
		return nil, ErrRSAInvalidModulus
	}
	if n.BitLen() < MinValidatedModulusBits {
		return nil, fmt.Errorf("%w: %d bits", ErrRSAModulusTooSmall, n.BitLen())
	}
	if e.Cmp(big.NewInt(3)) < 0 || e.Bit(0) == 0 || e.BitLen() > 31 {
		return nil, ErrRSAInvalidExponent
	}
	return NewRSAPublicKeyUnchecked(n, e), nil
}

// RSAPublicKeyFromStd converts a crypto/rsa public key.
func RSAPublicKeyFromStd(pub *rsa.PublicKey) *RSAPublicKey {
	return NewRSAPublicKeyUnchecked(pub.N, big.NewInt(int64(pub.E)))
}

// Std converts the key to a crypto/rsa public key. It fails if the exponent
// does not fit the int range crypto/rsa supports.
func (k *RSAPublicKey) Std() (*rsa.PublicKey, error) {
	if k == nil || k.N == nil || k.E == nil {
		return nil, ErrRSANilKey
	}
	if !k.E.IsInt64() || k.E.Int64() > math.MaxInt32 || k.E.Sign() <= 0 {
		return nil, ErrRSAInvalidExponent
	}
	return &rsa.PublicKey{N: new(big.Int).Set(k.N), E: int(k.E.Int64())}, nil
}

// Size returns the modulus size in bytes, which is also the ciphertext size.
func (k *RSAPublicKey) Size() int {
	if k == nil || k.N == nil {
		return 0
	}
	return (k.N.BitLen() + 7) / 8
}

// Equal reports whether both keys have the same modulus and exponent.
func (k *RSAPublicKey) Equal(other *RSAPublicKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	if k.N == nil || k.E == nil || other.N == nil || other.E == nil {
		return false
	}
	return k.N.Cmp(other.N) == 0 && k.E.Cmp(other.E) == 0
}

// EncryptCost estimates the work of one encryption under k in 64-bit word
// multiplications: one squaring per exponent bit over the modulus words.
// The result saturates at math.MaxUint64.
func (k *RSAPublicKey) EncryptCost() uint64 {
	if k == nil || k.N == nil || k.E == nil {
		return 0
	}
	words := uint64(k.N.BitLen()+63) / 64
	hi, sq := bits.Mul64(words, words)
	if hi != 0 {
		return math.MaxUint64
	}
	hi, cost := bits.Mul64(sq, uint64(k.E.BitLen()))
	if hi != 0 {
		return math.MaxUint64
	}
	return cost
}

// EncryptPKCS1v15 encrypts msg under pub with RSAES-PKCS1-v1_5 padding. The
// padding bytes are drawn from random. The key is used as given; the only
// requirement is a positive modulus wide enough to hold the padded message.
func EncryptPKCS1v15(random io.Reader, pub *RSAPublicKey, msg []byte) ([]byte, error) {
	if random == nil {
		return nil, ErrRSANilRandom
	}
	if pub == nil || pub.N == nil || pub.E == nil {
		return nil, ErrRSANilKey
	}
	if pub.N.Sign() <= 0 {
		return nil, ErrRSAInvalidModulus
	}
	if pub.E.Sign() < 0 {
		return nil, ErrRSAInvalidExponent
	}
	k := pub.Size()
	if k < pkcs1v15Overhead || len(msg) > k-pkcs1v15Overhead {
		return nil, ErrRSAMessageTooLong
	}

	// EM = 0x00 || 0x02 || PS || 0x00 || M
	em := make([]byte, k)
	em[1] = 2
	ps := em[2 : k-len(msg)-1]
	if err := nonZeroRandomBytes(ps, random); err != nil {
		return nil, err
	}
	copy(em[k-len(msg):], msg)

	// m exceeds N only for moduli whose top byte is 0x02 or less; Exp reduces
	// it and such keys cannot decrypt the result.
	m := new(big.Int).SetBytes(em)
	c := new(big.Int).Exp(m, pub.E, pub.N)
	return c.FillBytes(make([]byte, k)), nil
}

// nonZeroRandomBytes fills s with random non-zero bytes.
func nonZeroRandomBytes(s []byte, random io.Reader) error {
	if _, err := io.ReadFull(random, s); err != nil {
		return fmt.Errorf("rsa: read padding: %w", err)
	}
	var one [1]byte
	for i := range s {
		for s[i] == 0 {
			if _, err := io.ReadFull(random, one[:]); err != nil {
				return fmt.Errorf("rsa: read padding: %w", err)
			}
			s[i] = one[0]
		}
	}
	return nil
}

// RSAKeyPair holds a host-owned RSA private key. The private half has no
// accessor and no serialization; only the public parts leave the pair.
type RSAKeyPair struct {
	priv *rsa.PrivateKey
}

// GenerateRSAKeyPair generates a key pair of the given modulus size using
// random as the entropy source.
func GenerateRSAKeyPair(random io.Reader, bits int) (*RSAKeyPair, error) {
	if random == nil {
		return nil, ErrRSANilRandom
	}
	priv, err := rsa.GenerateKey(random, bits)
	if err != nil {
		return nil, fmt.Errorf("rsa: generate %d-bit key: %w", bits, err)
	}
	return &RSAKeyPair{priv: priv}, nil
}

// Public returns a copy of the public component.
func (kp *RSAKeyPair) Public() *RSAPublicKey {
	return RSAPublicKeyFromStd(&kp.priv.PublicKey)
}

// Bits returns the modulus size in bits.
func (kp *RSAKeyPair) Bits() int {
	return kp.priv.N.BitLen()
}

// Decrypt reverses EncryptPKCS1v15 with the private key.
func (kp *RSAKeyPair) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != kp.priv.Size() {
		return nil, fmt.Errorf("%w: ciphertext is %d bytes, want %d",
			ErrRSADecryption, len(ciphertext), kp.priv.Size())
	}
	pt, err := rsa.DecryptPKCS1v15(nil, kp.priv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRSADecryption, err)
	}
	return pt, nil
}
