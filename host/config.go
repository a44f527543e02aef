// Package host drives the proof-carrying encryption protocol: it generates
// an RSA key pair, has the guest encrypt a plaintext under the public key
// inside the zkvm, decrypts the committed ciphertext and verifies the
// receipt before releasing any result.
package host

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkrsa/zkrsa/crypto"
	"github.com/zkrsa/zkrsa/guest"
	"github.com/zkrsa/zkrsa/zkvm"
)

// pkcs1Overhead is the PKCS#1 v1.5 padding overhead in bytes.
const pkcs1Overhead = 11

// Config holds the parameters of one protocol run.
type Config struct {
	// KeyBits is the RSA modulus size.
	KeyBits int

	// Plaintext is encrypted by the guest. Nil runs the fixed-plaintext
	// guest, which always encrypts guest.Plaintext.
	Plaintext []byte

	// ReceiptKind is the seal format of the released receipt. A composite
	// receipt is compressed when compact is requested.
	ReceiptKind zkvm.ReceiptKind

	// ProveTimeout bounds guest execution. Zero means no timeout beyond the
	// caller's context.
	ProveTimeout time.Duration

	// VerifierParams are the public parameters the receipt is checked
	// against. They are set by the caller from a trusted source, never read
	// back from the prover that produced the receipt.
	VerifierParams zkvm.VerifierParams

	// Rand is the entropy source for key generation. Nil selects
	// crypto/rand.Reader. RunBatch serializes access when jobs share it.
	Rand io.Reader
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyBits:      2048,
		ReceiptKind:  zkvm.KindComposite,
		ProveTimeout: 5 * time.Minute,
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.KeyBits < crypto.MinValidatedModulusBits {
		return fmt.Errorf("config: key size %d below minimum %d", c.KeyBits, crypto.MinValidatedModulusBits)
	}
	if c.KeyBits%8 != 0 {
		return fmt.Errorf("config: key size %d is not a whole number of bytes", c.KeyBits)
	}
	if limit := c.KeyBits/8 - pkcs1Overhead; len(c.Plaintext) > limit {
		return fmt.Errorf("config: plaintext is %d bytes, at most %d fit a %d-bit key", len(c.Plaintext), limit, c.KeyBits)
	}
	switch c.ReceiptKind {
	case zkvm.KindComposite, zkvm.KindCompact:
	default:
		return fmt.Errorf("config: unknown receipt kind %v", c.ReceiptKind)
	}
	if c.ProveTimeout < 0 {
		return errors.New("config: negative prove timeout")
	}
	if len(c.VerifierParams.BLSPubkey) == 0 && c.VerifierParams.SignerAddress == (common.Address{}) {
		return errors.New("config: verifier params not set")
	}
	return nil
}

func (c *Config) random() io.Reader {
	if c.Rand != nil {
		return c.Rand
	}
	return rand.Reader
}

// program returns the guest image, its id and the plaintext it will
// encrypt.
func (c *Config) program() ([]byte, zkvm.ImageID, []byte) {
	if c.Plaintext == nil {
		return guest.EncryptImage, guest.EncryptID, []byte(guest.Plaintext)
	}
	return guest.EncryptInputImage, guest.EncryptInputID, c.Plaintext
}
