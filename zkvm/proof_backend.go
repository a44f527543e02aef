// proof_backend.go defines the receipt claim, its digest, the prover key
// material and the public VerifierParams a receipt is checked against.
//
// Seal formats:
//   - composite: BLS12-381 signature over the claim digest (96 bytes)
//   - compact:   selector(4) || secp256k1 [R || S || V] over the claim digest (69 bytes)
package zkvm

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/zkrsa/zkrsa/crypto"
)

// Seal sizes.
const (
	SelectorSize      = 4
	CompositeSealSize = crypto.BLSSigSize
	CompactSealSize   = SelectorSize + crypto.SecpSigSize

	proverSeedSize = 32
)

// claimTag domain-separates claim digests from any other SHA-256 use.
var claimTag = []byte("zkrsa.ReceiptClaim.v1")

// ReceiptClaim is the statement a seal attests to: the program identified
// by ImageID, run on the input with InputDigest, halted with ExitCode and
// committed the journal with JournalDigest.
type ReceiptClaim struct {
	ImageID         ImageID
	InputDigest     common.Hash
	JournalDigest   common.Hash
	TraceCommitment common.Hash
	ExitCode        uint32
}

// Digest returns the claim digest that seals sign:
//
//	SHA-256(tag || imageID || inputDigest || journalDigest || traceCommitment || word(exitCode))
//
// where word is a 32-byte big-endian word as in Solidity ABI encoding.
func (c *ReceiptClaim) Digest() common.Hash {
	exit := uint256.NewInt(uint64(c.ExitCode)).Bytes32()

	h := sha256.New()
	h.Write(claimTag)
	h.Write(c.ImageID[:])
	h.Write(c.InputDigest[:])
	h.Write(c.JournalDigest[:])
	h.Write(c.TraceCommitment[:])
	h.Write(exit[:])
	return common.BytesToHash(h.Sum(nil))
}

// JournalDigest hashes journal bytes.
func JournalDigest(journal []byte) common.Hash {
	return sha256.Sum256(journal)
}

// VerifierParams are the public parameters of a prover: the keys its seals
// are checked against.
type VerifierParams struct {
	// BLSPubkey verifies composite seals (48-byte compressed G1).
	BLSPubkey []byte

	// SignerAddress verifies compact seals.
	SignerAddress common.Address
}

// Selector tags compact seals with the parameter set that produced them, so
// a router can dispatch a seal to the matching verifier.
func (p VerifierParams) Selector() [SelectorSize]byte {
	return crypto.Selector(append(append([]byte("zkrsa.verifier.v1"), p.BLSPubkey...), p.SignerAddress[:]...))
}

// String encodes the params as "<bls pubkey hex>,<signer address>", the
// form ParseVerifierParams accepts.
func (p VerifierParams) String() string {
	return hexutil.Encode(p.BLSPubkey) + "," + p.SignerAddress.Hex()
}

// ParseVerifierParams decodes the String form. Either half may be left
// zero ("0x" or the zero address) when only one receipt kind is checked,
// but not both.
func ParseVerifierParams(s string) (VerifierParams, error) {
	blsHex, addrHex, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return VerifierParams{}, fmt.Errorf("%w: want \"<bls pubkey>,<address>\"", ErrVerifierParams)
	}
	var params VerifierParams
	if blsHex != "0x" && blsHex != "" {
		pub, err := hexutil.Decode(blsHex)
		if err != nil {
			return VerifierParams{}, fmt.Errorf("%w: bls public key: %v", ErrVerifierParams, err)
		}
		if len(pub) != crypto.BLSPubkeySize {
			return VerifierParams{}, fmt.Errorf("%w: bls public key is %d bytes", ErrVerifierParams, len(pub))
		}
		params.BLSPubkey = pub
	}
	if !common.IsHexAddress(addrHex) {
		return VerifierParams{}, fmt.Errorf("%w: bad signer address %q", ErrVerifierParams, addrHex)
	}
	params.SignerAddress = common.HexToAddress(addrHex)
	if params.BLSPubkey == nil && params.SignerAddress == (common.Address{}) {
		return VerifierParams{}, fmt.Errorf("%w: empty", ErrVerifierParams)
	}
	return params, nil
}

// ProverKeys holds the signing keys of a prover.
type ProverKeys struct {
	bls  *crypto.BLSSigner
	secp *crypto.SecpSigner
}

var ErrShortProverSeed = errors.New("zkvm: prover seed must be at least 32 bytes")

// NewProverKeys derives both signing keys from seed with HKDF. The same seed
// always yields the same VerifierParams.
func NewProverKeys(seed []byte) (*ProverKeys, error) {
	if len(seed) < proverSeedSize {
		return nil, ErrShortProverSeed
	}
	ikm, err := crypto.DeriveKey(seed, []byte("bls"), 32)
	if err != nil {
		return nil, err
	}
	bls, err := crypto.NewBLSSigner(ikm)
	if err != nil {
		return nil, fmt.Errorf("zkvm: bls key: %w", err)
	}
	secret, err := crypto.DeriveKey(seed, []byte("secp256k1"), 32)
	if err != nil {
		return nil, err
	}
	secp, err := crypto.NewSecpSigner(secret)
	if err != nil {
		return nil, fmt.Errorf("zkvm: secp256k1 key: %w", err)
	}
	return &ProverKeys{bls: bls, secp: secp}, nil
}

// GenerateProverKeys draws a fresh seed from random.
func GenerateProverKeys(random io.Reader) (*ProverKeys, error) {
	seed := make([]byte, proverSeedSize)
	if _, err := io.ReadFull(random, seed); err != nil {
		return nil, fmt.Errorf("zkvm: read prover seed: %w", err)
	}
	return NewProverKeys(seed)
}

// Params returns the public parameters matching these keys.
func (k *ProverKeys) Params() VerifierParams {
	return VerifierParams{
		BLSPubkey:     k.bls.PublicKey(),
		SignerAddress: k.secp.Address(),
	}
}

// seal signs the claim digest in the requested format.
func (k *ProverKeys) seal(kind ReceiptKind, digest common.Hash) ([]byte, error) {
	switch kind {
	case KindComposite:
		return k.bls.Sign(digest[:])
	case KindCompact:
		sig, err := k.secp.Sign(digest[:])
		if err != nil {
			return nil, err
		}
		sel := k.Params().Selector()
		out := make([]byte, 0, CompactSealSize)
		out = append(out, sel[:]...)
		return append(out, sig...), nil
	default:
		return nil, fmt.Errorf("zkvm: cannot seal receipt kind %v", kind)
	}
}
