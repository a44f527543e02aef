package zkvm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// verifierABI describes the on-chain verifier entry point compact receipts
// target. The arguments carry every claim field, so the contract can
// rebuild the claim digest
//
//	sha256(abi.encodePacked(tag, imageId, inputDigest, journalDigest, traceCommitment, uint256(exitCode)))
//
// and ecrecover the signer from seal[4:].
const verifierABI = `[{
	"type": "function",
	"name": "verify",
	"stateMutability": "view",
	"inputs": [
		{"name": "seal", "type": "bytes"},
		{"name": "imageId", "type": "bytes32"},
		{"name": "journalDigest", "type": "bytes32"},
		{"name": "inputDigest", "type": "bytes32"},
		{"name": "traceCommitment", "type": "bytes32"},
		{"name": "exitCode", "type": "uint32"}
	],
	"outputs": []
}]`

var ErrNotCompact = errors.New("zkvm: on-chain encoding requires a compact receipt")

var parsedVerifierABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(verifierABI))
	if err != nil {
		panic(fmt.Sprintf("zkvm: parse verifier abi: %v", err))
	}
	return parsed
}()

// ClaimTag returns the domain tag prefixed to every claim digest preimage.
// An on-chain verifier embeds it as a constant.
func ClaimTag() []byte {
	return append([]byte(nil), claimTag...)
}

// EncodeSeal returns the seal bytes an on-chain verifier consumes:
// selector || signature.
func EncodeSeal(r *Receipt) ([]byte, error) {
	if r == nil {
		return nil, ErrNilReceipt
	}
	if r.Kind() != KindCompact {
		return nil, fmt.Errorf("%w: got %v", ErrNotCompact, r.Kind())
	}
	return r.inner.Seal(), nil
}

// VerifyCalldata ABI-encodes verify(seal, imageId, journalDigest,
// inputDigest, traceCommitment, exitCode) for r.
func VerifyCalldata(r *Receipt, id ImageID) ([]byte, error) {
	seal, err := EncodeSeal(r)
	if err != nil {
		return nil, err
	}
	claim := r.Claim(id)
	return parsedVerifierABI.Pack("verify", seal,
		[32]byte(claim.ImageID),
		[32]byte(claim.JournalDigest),
		[32]byte(claim.InputDigest),
		[32]byte(claim.TraceCommitment),
		claim.ExitCode,
	)
}
