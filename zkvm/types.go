// Package zkvm provides an attested execution environment for guest
// programs. A guest runs in an isolated sandbox with one input stream and one
// write-once journal; the environment seals a claim binding the program
// image, the input and the journal, and returns it as a Receipt that anyone
// holding the VerifierParams can check against an expected ImageID.
package zkvm

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ImageID identifies a guest program: the SHA-256 of its exact image bytes.
type ImageID = common.Hash

// ComputeImageID hashes a program image.
func ComputeImageID(image []byte) ImageID {
	return ImageID(sha256.Sum256(image))
}

// GuestFunc is the entry point of a guest program. Returning a non-nil
// error or panicking halts the guest abnormally and no receipt is produced.
type GuestFunc func(env Env) error

// GuestProgram is a registered guest: its image, identity and entry point.
type GuestProgram struct {
	// Name is a human-readable label used in logs.
	Name string

	// Image is the canonical program image the ImageID is derived from.
	Image []byte

	// ID is ComputeImageID(Image).
	ID ImageID

	// Entry is invoked once per execution.
	Entry GuestFunc
}

// ReceiptKind selects the seal format of a receipt.
type ReceiptKind uint8

const (
	// KindComposite seals the claim with a BLS12-381 signature.
	KindComposite ReceiptKind = iota + 1

	// KindCompact seals the claim with a selector-tagged recoverable
	// secp256k1 signature that an on-chain verifier can check with ecrecover.
	KindCompact
)

// String returns the kind name.
func (k ReceiptKind) String() string {
	switch k {
	case KindComposite:
		return "composite"
	case KindCompact:
		return "compact"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseReceiptKind parses a kind name as printed by String.
func ParseReceiptKind(s string) (ReceiptKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "composite":
		return KindComposite, nil
	case "compact":
		return KindCompact, nil
	default:
		return 0, fmt.Errorf("zkvm: unknown receipt kind %q", s)
	}
}

// ProverOpts controls how receipts are sealed.
type ProverOpts struct {
	Kind ReceiptKind
}

// DefaultProverOpts produces composite receipts.
func DefaultProverOpts() ProverOpts {
	return ProverOpts{Kind: KindComposite}
}

// CompactProverOpts produces receipts ready for on-chain verification.
func CompactProverOpts() ProverOpts {
	return ProverOpts{Kind: KindCompact}
}
