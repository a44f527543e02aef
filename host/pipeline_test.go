package host

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/zkrsa/zkrsa/crypto"
	"github.com/zkrsa/zkrsa/guest"
	"github.com/zkrsa/zkrsa/keycodec"
	"github.com/zkrsa/zkrsa/zkvm"
)

func testProverKeys(t *testing.T) *zkvm.ProverKeys {
	t.Helper()
	keys, err := zkvm.NewProverKeys(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatal(err)
	}
	return keys
}

func newTestProver(t *testing.T, opts zkvm.ProverOpts) *zkvm.Prover {
	t.Helper()
	p, err := zkvm.NewProver(guest.NewRegistry(), testProverKeys(t), zkvm.DefaultExecutorConfig(), opts)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// proverWith registers entry under the fixed-plaintext guest image, so the
// pipeline runs it in place of the real guest.
func proverWith(t *testing.T, entry zkvm.GuestFunc) *zkvm.Prover {
	t.Helper()
	reg := zkvm.NewRegistry()
	if _, err := reg.Register("impostor", guest.EncryptImage, entry); err != nil {
		t.Fatal(err)
	}
	p, err := zkvm.NewProver(reg, testProverKeys(t), zkvm.DefaultExecutorConfig(), zkvm.DefaultProverOpts())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// testConfig is DefaultConfig with the params of testProverKeys.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.VerifierParams = testProverKeys(t).Params()
	return cfg
}

func smallConfig(t *testing.T) Config {
	t.Helper()
	cfg := testConfig(t)
	cfg.KeyBits = 1024
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"plaintext fits", func(c *Config) { c.Plaintext = make([]byte, 245) }, true},
		{"plaintext too long", func(c *Config) { c.Plaintext = make([]byte, 246) }, false},
		{"small key", func(c *Config) { c.KeyBits = 512 }, false},
		{"odd key size", func(c *Config) { c.KeyBits = 2047 }, false},
		{"bad kind", func(c *Config) { c.ReceiptKind = 0 }, false},
		{"negative timeout", func(c *Config) { c.ProveTimeout = -1 }, false},
		{"compact", func(c *Config) { c.ReceiptKind = zkvm.KindCompact }, true},
		{"no params", func(c *Config) { c.VerifierParams = zkvm.VerifierParams{} }, false},
	}
	for _, tt := range tests {
		cfg := testConfig(t)
		tt.mutate(&cfg)
		err := cfg.Validate()
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestStateString(t *testing.T) {
	if StateKeySent.String() != "key-sent" || StateAborted.String() != "aborted" {
		t.Error("unexpected state names")
	}
	if State(42).String() != "state(42)" {
		t.Errorf("unknown state = %q", State(42).String())
	}
	if StateDone.next() != StateDone {
		t.Error("done must be terminal")
	}
}

var fullTrail = []State{
	StateInit, StateKeygenDone, StateKeySent, StateProved,
	StateDecrypted, StateVerified, StateDone,
}

func TestPipelineHelloWorld(t *testing.T) {
	prover := newTestProver(t, zkvm.DefaultProverOpts())
	p, err := NewPipeline(testConfig(t), prover)
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(res.Plaintext) != "hello world" {
		t.Errorf("plaintext = %q", res.Plaintext)
	}
	if len(res.Ciphertext) != 256 {
		t.Errorf("ciphertext length = %d, want 256", len(res.Ciphertext))
	}
	if !bytes.Equal(res.Ciphertext, res.Receipt.Journal()) {
		t.Error("ciphertext is not the journal")
	}
	if res.ImageID != guest.EncryptID {
		t.Error("result names the wrong image")
	}
	if err := prover.Verifier().Verify(res.Receipt, guest.EncryptID); err != nil {
		t.Errorf("released receipt does not verify: %v", err)
	}
	if !slices.Equal(res.Trail, fullTrail) {
		t.Errorf("trail = %v", res.Trail)
	}
	if p.State() != StateDone {
		t.Errorf("state = %v", p.State())
	}

	pub, err := keycodec.Decode(res.EncodedKey)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := crypto.NewRSAPublicKey(pub.N, pub.E); err != nil {
		t.Errorf("encoded key is not a valid RSA key: %v", err)
	}
}

func TestPipelineSuppliedPlaintextCompact(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Plaintext = []byte("proof-carrying encryption")
	cfg.ReceiptKind = zkvm.KindCompact

	prover := newTestProver(t, zkvm.DefaultProverOpts())
	p, err := NewPipeline(cfg, prover)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Plaintext[0] = 'X'

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(res.Plaintext) != "proof-carrying encryption" {
		t.Errorf("plaintext = %q", res.Plaintext)
	}
	if res.Receipt.Kind() != zkvm.KindCompact {
		t.Errorf("kind = %v", res.Receipt.Kind())
	}
	if res.ImageID != guest.EncryptInputID {
		t.Error("result names the wrong image")
	}
	if _, err := zkvm.VerifyCalldata(res.Receipt, res.ImageID); err != nil {
		t.Errorf("VerifyCalldata: %v", err)
	}
}

func TestPipelineRunOnce(t *testing.T) {
	p, err := NewPipeline(smallConfig(t), newTestProver(t, zkvm.DefaultProverOpts()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background()); err != ErrPipelineUsed {
		t.Fatalf("second Run: err = %v, want ErrPipelineUsed", err)
	}
}

func TestNewPipelineErrors(t *testing.T) {
	if _, err := NewPipeline(smallConfig(t), nil); err != ErrNilProver {
		t.Errorf("nil prover: err = %v", err)
	}
	cfg := smallConfig(t)
	cfg.KeyBits = 0
	if _, err := NewPipeline(cfg, newTestProver(t, zkvm.DefaultProverOpts())); err == nil {
		t.Error("expected config error")
	}
}

func assertAborted(t *testing.T, p *Pipeline, res *Result, err error, after State, kind error) *StageError {
	t.Helper()
	if res != nil {
		t.Fatal("result released on failure")
	}
	var serr *StageError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *StageError", err)
	}
	if serr.After != after {
		t.Errorf("after = %v, want %v", serr.After, after)
	}
	if serr.Stage != after.next() {
		t.Errorf("stage = %v, want %v", serr.Stage, after.next())
	}
	if !errors.Is(err, kind) {
		t.Errorf("err = %v, want kind %v", err, kind)
	}
	if p.State() != StateAborted {
		t.Errorf("state = %v, want aborted", p.State())
	}
	trail := p.Trail()
	if trail[len(trail)-1] != StateAborted || slices.Contains(trail, StateVerified) {
		t.Errorf("trail = %v", trail)
	}
	return serr
}

func TestPipelineCancelled(t *testing.T) {
	p, err := NewPipeline(smallConfig(t), newTestProver(t, zkvm.DefaultProverOpts()))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := p.Run(ctx)
	assertAborted(t, p, res, err, StateKeySent, ErrCancelled)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPipelineProveTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	cfg := smallConfig(t)
	cfg.ProveTimeout = 10 * time.Millisecond
	p, err := NewPipeline(cfg, proverWith(t, func(zkvm.Env) error {
		<-release
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Run(context.Background())
	assertAborted(t, p, res, err, StateKeySent, ErrCancelled)
}

func TestPipelineExecutionFault(t *testing.T) {
	p, err := NewPipeline(smallConfig(t), proverWith(t, func(zkvm.Env) error {
		return errors.New("refusing")
	}))
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Run(context.Background())
	assertAborted(t, p, res, err, StateKeySent, ErrExecutionFault)
	if !errors.Is(err, zkvm.ErrExecutionFault) {
		t.Errorf("cause lost: %v", err)
	}
}

func TestPipelineDecryptionFailures(t *testing.T) {
	tests := []struct {
		name  string
		entry zkvm.GuestFunc
		cause error
	}{
		{
			name: "wrong plaintext",
			entry: func(env zkvm.Env) error {
				s, err := env.ReadString()
				if err != nil {
					return err
				}
				pub, err := keycodec.Decode(s)
				if err != nil {
					return err
				}
				ct, err := crypto.EncryptPKCS1v15(env.Rand(), pub, []byte("goodbye world"))
				if err != nil {
					return err
				}
				return env.Commit(ct)
			},
			cause: ErrPlaintextMismatch,
		},
		{
			name:  "garbage journal",
			entry: func(env zkvm.Env) error { return env.Commit([]byte("not a ciphertext")) },
			cause: crypto.ErrRSADecryption,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPipeline(smallConfig(t), proverWith(t, tt.entry))
			if err != nil {
				t.Fatal(err)
			}
			res, err := p.Run(context.Background())
			assertAborted(t, p, res, err, StateProved, ErrDecryptionFailed)
			if !errors.Is(err, tt.cause) {
				t.Errorf("err = %v, want cause %v", err, tt.cause)
			}
		})
	}
}

func TestStageErrorMessage(t *testing.T) {
	err := &StageError{Stage: StateDecrypted, After: StateProved, Kind: ErrDecryptionFailed, Err: errors.New("bad padding")}
	msg := err.Error()
	for _, want := range []string{"decrypted (after proved)", "decryption failed", "bad padding"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestPipelineRejectsForeignParams(t *testing.T) {
	other, err := zkvm.NewProverKeys(bytes.Repeat([]byte{0x17}, 32))
	if err != nil {
		t.Fatal(err)
	}
	for _, kind := range []zkvm.ReceiptKind{zkvm.KindComposite, zkvm.KindCompact} {
		t.Run(kind.String(), func(t *testing.T) {
			cfg := smallConfig(t)
			cfg.ReceiptKind = kind
			cfg.VerifierParams = other.Params()
			p, err := NewPipeline(cfg, newTestProver(t, zkvm.DefaultProverOpts()))
			if err != nil {
				t.Fatal(err)
			}
			res, err := p.Run(context.Background())
			serr := assertAborted(t, p, res, err, StateDecrypted, ErrVerificationFailed)
			if serr.Stage != StateVerified {
				t.Errorf("stage = %v, want verified", serr.Stage)
			}
			if !errors.Is(err, zkvm.ErrVerificationFailed) {
				t.Errorf("err = %v, want zkvm.ErrVerificationFailed", err)
			}
		})
	}
}

func TestPipelineRejectsReplayedReceipt(t *testing.T) {
	// A ciphertext proved under one key is bound to that key's input and
	// cannot be passed off as the answer for another.
	prover := newTestProver(t, zkvm.DefaultProverOpts())
	first, err := NewPipeline(smallConfig(t), prover)
	if err != nil {
		t.Fatal(err)
	}
	prev, err := first.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// The receipt from the first run must not verify for a second input.
	in, err := zkvm.NewInputBuilder().WriteString("c5,3").Build()
	if err != nil {
		t.Fatal(err)
	}
	err = zkvm.NewVerifier(prover.Params()).VerifyInput(prev.Receipt, prev.ImageID, zkvm.InputDigest(in))
	if !errors.Is(err, zkvm.ErrInputMismatch) {
		t.Fatalf("err = %v, want ErrInputMismatch", err)
	}

	p, err := NewPipeline(smallConfig(t), proverWith(t, func(env zkvm.Env) error {
		return env.Commit(prev.Ciphertext)
	}))
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Run(context.Background())
	assertAborted(t, p, res, err, StateProved, ErrDecryptionFailed)
}
