package zkvm

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// receiptVersion is the binary encoding version.
const receiptVersion = 1

var (
	ErrReceiptVersion   = errors.New("zkvm: unsupported receipt encoding version")
	ErrMalformedReceipt = errors.New("zkvm: malformed receipt encoding")
)

// InnerReceipt is the opaque proof part of a receipt: claim metadata that
// is not derivable from the journal or the expected ImageID, plus the seal.
type InnerReceipt struct {
	kind            ReceiptKind
	inputDigest     common.Hash
	traceCommitment common.Hash
	exitCode        uint32
	seal            []byte
}

// Kind returns the seal format.
func (in *InnerReceipt) Kind() ReceiptKind { return in.kind }

// InputDigest returns SHA-256 of the input stream the guest ran on.
func (in *InnerReceipt) InputDigest() common.Hash { return in.inputDigest }

// TraceCommitment returns the Merkle root of the execution trace.
func (in *InnerReceipt) TraceCommitment() common.Hash { return in.traceCommitment }

// ExitCode returns the guest exit code.
func (in *InnerReceipt) ExitCode() uint32 { return in.exitCode }

// Seal returns a copy of the seal bytes.
func (in *InnerReceipt) Seal() []byte { return append([]byte(nil), in.seal...) }

type innerRLP struct {
	Kind            uint8
	InputDigest     common.Hash
	TraceCommitment common.Hash
	ExitCode        uint32
	Seal            []byte
}

func (in *InnerReceipt) toRLP() innerRLP {
	return innerRLP{
		Kind:            uint8(in.kind),
		InputDigest:     in.inputDigest,
		TraceCommitment: in.traceCommitment,
		ExitCode:        in.exitCode,
		Seal:            in.seal,
	}
}

// MarshalBinary encodes the inner receipt. This is the proof blob that
// travels next to the journal.
func (in *InnerReceipt) MarshalBinary() ([]byte, error) {
	return rlp.EncodeToBytes(in.toRLP())
}

// Receipt attests that a guest program produced a journal. A receipt cannot
// be modified after creation; every accessor returns a copy.
type Receipt struct {
	journal []byte
	inner   InnerReceipt
}

func newReceipt(journal []byte, inner InnerReceipt) *Receipt {
	inner.seal = append([]byte(nil), inner.seal...)
	return &Receipt{
		journal: append([]byte{}, journal...),
		inner:   inner,
	}
}

// Journal returns a copy of the committed output.
func (r *Receipt) Journal() []byte { return append([]byte{}, r.journal...) }

// JournalDigest returns SHA-256 of the journal.
func (r *Receipt) JournalDigest() common.Hash { return JournalDigest(r.journal) }

// Inner returns a copy of the proof part.
func (r *Receipt) Inner() InnerReceipt {
	in := r.inner
	in.seal = in.Seal()
	return in
}

// Kind returns the seal format.
func (r *Receipt) Kind() ReceiptKind { return r.inner.kind }

// Claim reconstructs the claim this receipt makes about the program id.
// The id is supplied by the caller; a receipt never names its own program.
func (r *Receipt) Claim(id ImageID) ReceiptClaim {
	return ReceiptClaim{
		ImageID:         id,
		InputDigest:     r.inner.inputDigest,
		JournalDigest:   r.JournalDigest(),
		TraceCommitment: r.inner.traceCommitment,
		ExitCode:        r.inner.exitCode,
	}
}

// Verify checks the receipt against params and the expected program.
func (r *Receipt) Verify(params VerifierParams, expected ImageID) error {
	return NewVerifier(params).Verify(r, expected)
}

// VerifyInput checks the receipt against params, the expected program and
// the digest of the input the caller sent.
func (r *Receipt) VerifyInput(params VerifierParams, expected ImageID, inputDigest common.Hash) error {
	return NewVerifier(params).VerifyInput(r, expected, inputDigest)
}

type receiptRLP struct {
	Version uint
	Journal []byte
	Inner   innerRLP
}

// MarshalBinary encodes the full receipt.
func (r *Receipt) MarshalBinary() ([]byte, error) {
	return rlp.EncodeToBytes(receiptRLP{
		Version: receiptVersion,
		Journal: r.journal,
		Inner:   r.inner.toRLP(),
	})
}

// UnmarshalReceipt decodes a receipt produced by MarshalBinary. Decoding
// only checks the structure; call Verify before trusting the journal.
func UnmarshalReceipt(data []byte) (*Receipt, error) {
	var dec receiptRLP
	if err := rlp.DecodeBytes(data, &dec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReceipt, err)
	}
	if dec.Version != receiptVersion {
		return nil, fmt.Errorf("%w: %d", ErrReceiptVersion, dec.Version)
	}
	return newReceipt(dec.Journal, InnerReceipt{
		kind:            ReceiptKind(dec.Inner.Kind),
		inputDigest:     dec.Inner.InputDigest,
		traceCommitment: dec.Inner.TraceCommitment,
		exitCode:        dec.Inner.ExitCode,
		seal:            dec.Inner.Seal,
	}), nil
}
