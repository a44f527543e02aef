package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zkrsa/zkrsa/crypto"
	"github.com/zkrsa/zkrsa/keycodec"
	"github.com/zkrsa/zkrsa/log"
	"github.com/zkrsa/zkrsa/metrics"
	"github.com/zkrsa/zkrsa/zkvm"
)

// Result is what a successful run releases. It is only built once the
// receipt has verified.
type Result struct {
	// EncodedKey is the public key as sent to the guest.
	EncodedKey string

	// ImageID is the guest program the receipt was verified against.
	ImageID zkvm.ImageID

	// Ciphertext is the journal of the receipt.
	Ciphertext []byte

	// Plaintext is the decrypted journal.
	Plaintext []byte

	// Receipt is the verified receipt.
	Receipt *zkvm.Receipt

	// Trail lists every state the pipeline passed through, in order.
	Trail []State
}

// Pipeline runs the protocol once:
//
//	init -> keygen-done -> key-sent -> proved -> decrypted -> verified -> done
//
// Any failure moves it to aborted and returns a *StageError.
//
// The journal is decrypted before the receipt is verified. That is only
// sound because this host holds the private key and nothing leaves Run
// before verification passes. A party that consumes the journal without the
// private key must verify first.
type Pipeline struct {
	cfg      Config
	prover   *zkvm.Prover
	verifier *zkvm.Verifier
	log      *log.Logger

	mu    sync.Mutex
	state State
	trail []State
	used  bool
}

// NewPipeline validates cfg and binds it to prover.
func NewPipeline(cfg Config, prover *zkvm.Prover) (*Pipeline, error) {
	if prover == nil {
		return nil, ErrNilProver
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Plaintext != nil {
		cfg.Plaintext = append([]byte{}, cfg.Plaintext...)
	}
	return &Pipeline{
		cfg:      cfg,
		prover:   prover,
		verifier: zkvm.NewVerifier(cfg.VerifierParams),
		log:      log.Default().Module("host"),
		state:    StateInit,
		trail:    []State{StateInit},
	}, nil
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Trail returns the states visited so far.
func (p *Pipeline) Trail() []State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]State(nil), p.trail...)
}

func (p *Pipeline) advance() {
	p.mu.Lock()
	p.state = p.state.next()
	p.trail = append(p.trail, p.state)
	state := p.state
	p.mu.Unlock()
	p.log.Debug("Pipeline transition", "state", state)
}

func (p *Pipeline) abort(kind, err error) error {
	p.mu.Lock()
	after := p.state
	p.state = StateAborted
	p.trail = append(p.trail, StateAborted)
	p.mu.Unlock()

	metrics.PipelineAborts.Inc()
	serr := &StageError{Stage: after.next(), After: after, Kind: kind, Err: err}
	p.log.Warn("Pipeline aborted", "stage", serr.Stage, "after", after, "kind", kind, "err", err)
	return serr
}

// Run executes the pipeline. It may be called once.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	if p.used {
		p.mu.Unlock()
		return nil, ErrPipelineUsed
	}
	p.used = true
	p.mu.Unlock()

	metrics.PipelineRuns.Inc()
	metrics.PipelineActive.Inc()
	defer metrics.PipelineActive.Dec()
	timer := metrics.NewTimer(metrics.PipelineTime)

	image, id, want := p.cfg.program()

	// Key generation.
	keys, err := crypto.GenerateRSAKeyPair(p.cfg.random(), p.cfg.KeyBits)
	if err != nil {
		return nil, p.abort(ErrKeygenFailed, err)
	}
	p.advance()

	// Send the encoded public key (and plaintext) to the guest.
	encoded, err := keycodec.Encode(keys.Public())
	if err != nil {
		return nil, p.abort(ErrMalformedInput, err)
	}
	in := zkvm.NewInputBuilder().WriteString(encoded)
	if p.cfg.Plaintext != nil {
		in.Write(p.cfg.Plaintext)
	}
	input, err := in.Build()
	if err != nil {
		return nil, p.abort(ErrMalformedInput, err)
	}
	p.advance()

	// Prove.
	receipt, err := p.prove(ctx, image, id, input)
	if err != nil {
		kind := ErrExecutionFault
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = ErrCancelled
		}
		return nil, p.abort(kind, err)
	}
	p.advance()

	// Decrypt. Nothing derived from the journal is released before the
	// receipt verifies below.
	ciphertext := receipt.Journal()
	plaintext, err := keys.Decrypt(ciphertext)
	if err != nil {
		return nil, p.abort(ErrDecryptionFailed, err)
	}
	if !bytes.Equal(plaintext, want) {
		return nil, p.abort(ErrDecryptionFailed, ErrPlaintextMismatch)
	}
	p.advance()

	// Verify against the caller's params, bound to the exact input sent.
	if err := p.verifier.VerifyInput(receipt, id, zkvm.InputDigest(input)); err != nil {
		return nil, p.abort(ErrVerificationFailed, err)
	}
	p.advance()

	p.advance()
	elapsed := timer.Stop()
	p.log.Info("Pipeline complete", "image", id, "kind", receipt.Kind(),
		"bits", keys.Bits(), "journal", len(ciphertext), "elapsed", elapsed)

	return &Result{
		EncodedKey: encoded,
		ImageID:    id,
		Ciphertext: ciphertext,
		Plaintext:  plaintext,
		Receipt:    receipt,
		Trail:      p.Trail(),
	}, nil
}

// prove runs the guest under the prove timeout and converts the receipt to
// the configured kind.
func (p *Pipeline) prove(ctx context.Context, image []byte, id zkvm.ImageID, input []byte) (*zkvm.Receipt, error) {
	if p.cfg.ProveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ProveTimeout)
		defer cancel()
	}
	start := time.Now()
	receipt, err := p.prover.Execute(ctx, image, id, input)
	if err != nil {
		return nil, err
	}
	if receipt.Kind() != p.cfg.ReceiptKind {
		if p.cfg.ReceiptKind != zkvm.KindCompact {
			return nil, fmt.Errorf("host: prover produced %v receipt, want %v", receipt.Kind(), p.cfg.ReceiptKind)
		}
		if receipt, err = p.prover.Compress(receipt, id); err != nil {
			return nil, err
		}
	}
	p.log.Debug("Receipt produced", "kind", receipt.Kind(), "elapsed", time.Since(start))
	return receipt, nil
}
