// Package guest holds the guest programs of the proof-carrying encryption
// protocol. Both programs read an encoded RSA public key, encrypt a
// plaintext under it with PKCS#1 v1.5 padding and commit only the
// ciphertext to the journal.
package guest

import (
	"errors"
	"fmt"

	"github.com/zkrsa/zkrsa/crypto"
	"github.com/zkrsa/zkrsa/keycodec"
	"github.com/zkrsa/zkrsa/zkvm"
)

// Plaintext is the fixed message EncryptMain encrypts.
const Plaintext = "hello world"

// Program images. The ImageIDs below are the SHA-256 of these labels, not
// of the Go code behind them: the version suffix must be bumped by hand
// whenever the behaviour of the matching entry point changes.
var (
	EncryptImage      = []byte("zkrsa/guest/rsa-encrypt-fixed/v1: read key; encrypt \"hello world\" pkcs1v15; commit ciphertext")
	EncryptInputImage = []byte("zkrsa/guest/rsa-encrypt-input/v1: read key; read plaintext; encrypt pkcs1v15; commit ciphertext")

	EncryptID      = zkvm.ComputeImageID(EncryptImage)
	EncryptInputID = zkvm.ComputeImageID(EncryptInputImage)
)

// ErrMalformedInput halts the guest when its input cannot be parsed.
var ErrMalformedInput = errors.New("guest: malformed input")

// Register installs both guest programs.
func Register(reg *zkvm.Registry) error {
	if _, err := reg.Register("rsa-encrypt", EncryptImage, EncryptMain); err != nil {
		return err
	}
	if _, err := reg.Register("rsa-encrypt-input", EncryptInputImage, EncryptInputMain); err != nil {
		return err
	}
	return nil
}

// NewRegistry returns a registry holding both guest programs.
func NewRegistry() *zkvm.Registry {
	reg := zkvm.NewRegistry()
	if err := Register(reg); err != nil {
		panic(fmt.Sprintf("guest: register programs: %v", err))
	}
	return reg
}

// EncryptMain encrypts Plaintext under the key read from the first input
// frame.
func EncryptMain(env zkvm.Env) error {
	pub, err := readKey(env)
	if err != nil {
		return err
	}
	return encryptAndCommit(env, pub, []byte(Plaintext))
}

// EncryptInputMain encrypts the second input frame under the key read from
// the first.
func EncryptInputMain(env zkvm.Env) error {
	pub, err := readKey(env)
	if err != nil {
		return err
	}
	msg, err := env.Read()
	if err != nil {
		return fmt.Errorf("%w: plaintext: %w", ErrMalformedInput, err)
	}
	return encryptAndCommit(env, pub, msg)
}

// readKey parses the encoded key. keycodec builds it from its raw parts
// without validation: the guest encrypts under exactly the key it is given.
func readKey(env zkvm.Env) (*crypto.RSAPublicKey, error) {
	encoded, err := env.ReadString()
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %w", ErrMalformedInput, err)
	}
	parsed, err := keycodec.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	return parsed, nil
}

// encryptAndCommit charges the modular exponentiation up front, so a key
// with an oversized exponent or modulus exhausts the cycle budget before any
// work is done.
func encryptAndCommit(env zkvm.Env, pub *crypto.RSAPublicKey, msg []byte) error {
	if err := env.Charge(pub.EncryptCost()); err != nil {
		return err
	}
	ct, err := crypto.EncryptPKCS1v15(env.Rand(), pub, msg)
	if err != nil {
		return fmt.Errorf("guest: encrypt: %w", err)
	}
	return env.Commit(ct)
}
