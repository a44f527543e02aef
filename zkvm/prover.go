package zkvm

import (
	"context"
	"errors"
	"fmt"

	"github.com/zkrsa/zkrsa/log"
	"github.com/zkrsa/zkrsa/metrics"
)

var (
	ErrNilProverKeys = errors.New("zkvm: nil prover keys")
	ErrAlreadyKind   = errors.New("zkvm: receipt already has the requested kind")
)

// Prover executes guests and seals their claims into receipts.
type Prover struct {
	exec *Executor
	keys *ProverKeys
	opts ProverOpts
	log  *log.Logger
}

// NewProver creates a prover over the guests in registry.
func NewProver(registry *Registry, keys *ProverKeys, config ExecutorConfig, opts ProverOpts) (*Prover, error) {
	if keys == nil {
		return nil, ErrNilProverKeys
	}
	exec, err := NewExecutor(registry, config)
	if err != nil {
		return nil, err
	}
	if opts.Kind == 0 {
		opts.Kind = KindComposite
	}
	if opts.Kind != KindComposite && opts.Kind != KindCompact {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, opts.Kind)
	}
	return &Prover{
		exec: exec,
		keys: keys,
		opts: opts,
		log:  log.Default().Module("zkvm"),
	}, nil
}

// Params returns the public parameters receipts from this prover verify
// against.
func (p *Prover) Params() VerifierParams {
	return p.keys.Params()
}

// Verifier returns a verifier for this prover's receipts.
func (p *Prover) Verifier() *Verifier {
	return NewVerifier(p.Params())
}

// Execute runs the guest identified by id on input and returns a sealed
// receipt. On any execution fault the error wraps ErrExecutionFault and no
// receipt is returned. Execution stops when ctx ends.
func (p *Prover) Execute(ctx context.Context, image []byte, id ImageID, input []byte) (*Receipt, error) {
	timer := metrics.NewTimer(metrics.ProveTime)
	metrics.ProveCount.Inc()

	sess, err := p.exec.Execute(ctx, image, id, input)
	if err != nil {
		metrics.ProveFailures.Inc()
		p.log.Warn("Guest execution failed", "image", id, "err", err)
		return nil, err
	}
	receipt, err := p.sealSession(sess, p.opts.Kind)
	if err != nil {
		metrics.ProveFailures.Inc()
		return nil, err
	}
	metrics.ProveCycles.Observe(float64(sess.Cycles))
	elapsed := timer.Stop()
	p.log.Debug("Guest proved", "image", id, "kind", p.opts.Kind,
		"cycles", sess.Cycles, "journal", len(sess.Journal), "elapsed", elapsed)
	return receipt, nil
}

func (p *Prover) sealSession(sess *Session, kind ReceiptKind) (*Receipt, error) {
	claim := ReceiptClaim{
		ImageID:         sess.ImageID,
		InputDigest:     sess.InputDigest,
		JournalDigest:   JournalDigest(sess.Journal),
		TraceCommitment: sess.TraceCommitment,
		ExitCode:        sess.ExitCode,
	}
	seal, err := p.keys.seal(kind, claim.Digest())
	if err != nil {
		return nil, fmt.Errorf("zkvm: seal receipt: %w", err)
	}
	return newReceipt(sess.Journal, InnerReceipt{
		kind:            kind,
		inputDigest:     sess.InputDigest,
		traceCommitment: sess.TraceCommitment,
		exitCode:        sess.ExitCode,
		seal:            seal,
	}), nil
}

// Compress turns a composite receipt into a compact one for on-chain or
// low-resource verification. The receipt is verified against id first; the
// compact receipt attests to the same claim.
func (p *Prover) Compress(r *Receipt, id ImageID) (*Receipt, error) {
	if err := p.Verifier().Verify(r, id); err != nil {
		return nil, err
	}
	if r.Kind() == KindCompact {
		return nil, ErrAlreadyKind
	}
	claim := r.Claim(id)
	seal, err := p.keys.seal(KindCompact, claim.Digest())
	if err != nil {
		return nil, fmt.Errorf("zkvm: seal receipt: %w", err)
	}
	inner := r.Inner()
	inner.kind = KindCompact
	inner.seal = seal
	return newReceipt(r.journal, inner), nil
}
