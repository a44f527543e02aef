package zkvm

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkrsa/zkrsa/crypto"
)

// Executor errors.
var (
	// ErrExecutionFault is wrapped by every failure to run a guest to a
	// normal halt. No session or receipt accompanies it.
	ErrExecutionFault = errors.New("zkvm: execution fault")

	ErrNilRegistry     = errors.New("zkvm: nil guest registry")
	ErrImageIDMismatch = errors.New("zkvm: image id does not match program image")
	ErrInputTooLarge   = errors.New("zkvm: input exceeds size limit")
)

// Default resource limits.
const (
	DefaultMaxCycles      = 1 << 24 // ~16M cycles
	DefaultMaxInputSize   = 1 << 20 // 1 MiB
	DefaultMaxJournalSize = 1 << 16 // 64 KiB
)

// ExecutorConfig holds the resource limits and the randomness capability
// granted to guests.
type ExecutorConfig struct {
	// MaxCycles bounds the cycles a guest may consume. Zero disables the limit.
	MaxCycles uint64

	// MaxInputSize bounds the encoded input stream in bytes.
	MaxInputSize int

	// MaxJournalSize bounds the committed journal in bytes. Zero disables
	// the limit.
	MaxJournalSize int

	// Rand is the randomness source exposed through Env.Rand. Nil selects
	// crypto/rand.Reader. Concurrent executions share it; NewExecutor
	// serializes access.
	Rand io.Reader
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxCycles:      DefaultMaxCycles,
		MaxInputSize:   DefaultMaxInputSize,
		MaxJournalSize: DefaultMaxJournalSize,
	}
}

// Session is the outcome of a guest that halted normally.
type Session struct {
	// ImageID is the executed program.
	ImageID ImageID

	// Journal holds exactly the bytes the guest committed.
	Journal []byte

	// InputDigest is SHA-256 of the encoded input stream.
	InputDigest common.Hash

	// TraceCommitment is the Merkle root over the environment trace.
	TraceCommitment common.Hash

	// ExitCode is 0 for a normal halt.
	ExitCode uint32

	// Cycles is the total cycles consumed.
	Cycles uint64
}

// Executor runs registered guest programs.
type Executor struct {
	registry *Registry
	config   ExecutorConfig
}

// NewExecutor creates an executor bound to a guest registry.
func NewExecutor(registry *Registry, config ExecutorConfig) (*Executor, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if config.Rand != nil {
		config.Rand = crypto.NewLockedReader(config.Rand)
	}
	return &Executor{registry: registry, config: config}, nil
}

func fault(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrExecutionFault}, args...)...)
}

// Execute runs the guest identified by id on input. The image must hash to
// id and be registered. The guest runs on its own goroutine; a guest error,
// a panic, a resource limit or ctx ending turn into an error wrapping
// ErrExecutionFault, and no session is returned.
func (e *Executor) Execute(ctx context.Context, image []byte, id ImageID, input []byte) (*Session, error) {
	if len(image) == 0 {
		return nil, fault("%w", ErrGuestEmptyProgram)
	}
	if got := ComputeImageID(image); got != id {
		return nil, fault("%w: image hashes to %x, want %x", ErrImageIDMismatch, got[:8], id[:8])
	}
	prog, err := e.registry.Lookup(id)
	if err != nil {
		return nil, fault("%w: %x", err, id[:8])
	}
	if !bytes.Equal(prog.Image, image) {
		return nil, fault("%w", ErrImageIDMismatch)
	}
	if e.config.MaxInputSize > 0 && len(input) > e.config.MaxInputSize {
		return nil, fault("%w: %d > %d bytes", ErrInputTooLarge, len(input), e.config.MaxInputSize)
	}
	frames, err := decodeFrames(input)
	if err != nil {
		return nil, fault("%w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fault("%w: %w", ErrGuestAborted, err)
	}

	random := e.config.Rand
	if random == nil {
		random = rand.Reader
	}
	env := newGuestEnv(ctx, frames, e.config, random)

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrGuestPanicked, r)
			}
		}()
		done <- prog.Entry(env)
	}()

	select {
	case err := <-done:
		if err != nil {
			env.abort(err)
			return nil, fault("guest %s: %w", prog.Name, err)
		}
	case <-ctx.Done():
		env.abort(ctx.Err())
		return nil, fault("guest %s: %w: %w", prog.Name, ErrGuestAborted, ctx.Err())
	}

	env.mu.Lock()
	defer env.mu.Unlock()
	if env.fault != nil {
		return nil, fault("guest %s: %w", prog.Name, env.fault)
	}
	env.events = append(env.events, traceEvent{kind: traceHalt})

	return &Session{
		ImageID:         id,
		Journal:         env.journal,
		InputDigest:     InputDigest(input),
		TraceCommitment: traceCommitment(env.events),
		ExitCode:        0,
		Cycles:          env.cycles,
	}, nil
}
