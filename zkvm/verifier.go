package zkvm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkrsa/zkrsa/crypto"
	"github.com/zkrsa/zkrsa/metrics"
)

// Verification errors. Every verification failure wraps
// ErrVerificationFailed; the second error names the reason.
var (
	ErrVerificationFailed = errors.New("zkvm: receipt verification failed")

	ErrNilReceipt       = errors.New("zkvm: nil receipt")
	ErrZeroImageID      = errors.New("zkvm: zero image id")
	ErrNonZeroExitCode  = errors.New("zkvm: guest exited with non-zero code")
	ErrUnknownKind      = errors.New("zkvm: unknown receipt kind")
	ErrSealLength       = errors.New("zkvm: invalid seal length")
	ErrSelectorMismatch = errors.New("zkvm: seal selector does not match verifier")
	ErrInvalidSeal      = errors.New("zkvm: seal does not match claim")
	ErrVerifierParams   = errors.New("zkvm: invalid verifier parameters")
	ErrInputMismatch    = errors.New("zkvm: receipt was proved on a different input")
)

// Verifier checks receipts against one set of VerifierParams.
type Verifier struct {
	params VerifierParams
}

// NewVerifier creates a verifier for params.
func NewVerifier(params VerifierParams) *Verifier {
	return &Verifier{params: VerifierParams{
		BLSPubkey:     append([]byte(nil), params.BLSPubkey...),
		SignerAddress: params.SignerAddress,
	}}
}

// Params returns the parameters this verifier checks against.
func (v *Verifier) Params() VerifierParams {
	return VerifierParams{
		BLSPubkey:     append([]byte(nil), v.params.BLSPubkey...),
		SignerAddress: v.params.SignerAddress,
	}
}

// Verify checks that r was sealed by the prover behind the verifier params
// for a run of the program expected. The claim is rebuilt from expected and
// the journal, so a receipt for any other program or a modified journal
// fails. Any failure, including a panic inside a signature library, is
// reported as an error wrapping ErrVerificationFailed.
func (v *Verifier) Verify(r *Receipt, expected ImageID) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: verifier panic: %v", ErrVerificationFailed, rec)
		}
		metrics.VerifyCount.Inc()
		if err != nil {
			metrics.VerifyFailures.Inc()
		}
	}()

	if reason := v.check(r, expected); reason != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, reason)
	}
	return nil
}

// VerifyInput is Verify plus a check that the guest ran on the input stream
// whose digest is inputDigest (see InputDigest). Verify alone proves which
// program produced the journal, not what it was given: a receipt proved on
// someone else's input passes Verify but fails VerifyInput.
func (v *Verifier) VerifyInput(r *Receipt, expected ImageID, inputDigest common.Hash) error {
	if err := v.Verify(r, expected); err != nil {
		return err
	}
	if got := r.inner.inputDigest; got != inputDigest {
		metrics.VerifyFailures.Inc()
		return fmt.Errorf("%w: %w: got %x, want %x", ErrVerificationFailed, ErrInputMismatch, got[:8], inputDigest[:8])
	}
	return nil
}

func (v *Verifier) check(r *Receipt, expected ImageID) error {
	if r == nil {
		return ErrNilReceipt
	}
	if expected == (ImageID{}) {
		return ErrZeroImageID
	}
	if r.inner.exitCode != 0 {
		return fmt.Errorf("%w: %d", ErrNonZeroExitCode, r.inner.exitCode)
	}

	claim := r.Claim(expected)
	digest := claim.Digest()
	seal := r.inner.seal

	switch r.inner.kind {
	case KindComposite:
		if len(v.params.BLSPubkey) != crypto.BLSPubkeySize {
			return fmt.Errorf("%w: bls public key is %d bytes", ErrVerifierParams, len(v.params.BLSPubkey))
		}
		if len(seal) != CompositeSealSize {
			return fmt.Errorf("%w: %d bytes", ErrSealLength, len(seal))
		}
		if !crypto.BLSVerify(v.params.BLSPubkey, digest[:], seal) {
			return ErrInvalidSeal
		}
	case KindCompact:
		if len(seal) != CompactSealSize {
			return fmt.Errorf("%w: %d bytes", ErrSealLength, len(seal))
		}
		sel := v.params.Selector()
		if !bytes.Equal(seal[:SelectorSize], sel[:]) {
			return fmt.Errorf("%w: %x", ErrSelectorMismatch, seal[:SelectorSize])
		}
		if !crypto.SecpVerifyAddress(v.params.SignerAddress, digest[:], seal[SelectorSize:]) {
			return ErrInvalidSeal
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnknownKind, r.inner.kind)
	}
	return nil
}
