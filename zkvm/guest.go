package zkvm

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
)

// Guest environment errors.
var (
	ErrInputExhausted  = errors.New("zkvm: input exhausted")
	ErrJournalSealed   = errors.New("zkvm: journal already committed")
	ErrJournalTooLarge = errors.New("zkvm: journal exceeds size limit")
	ErrCycleLimit      = errors.New("zkvm: cycle limit exceeded")
	ErrGuestPanicked   = errors.New("zkvm: guest execution panicked")
	ErrGuestAborted    = errors.New("zkvm: guest aborted")
)

// callCost is charged for every environment call on top of the bytes moved.
const callCost = 64

// Env is the only view a guest has of the outside world: an ordered input
// stream, a write-once journal and a randomness capability.
type Env interface {
	// Read returns the next input frame. Each frame is returned once.
	Read() ([]byte, error)

	// ReadString returns the next input frame as a string.
	ReadString() (string, error)

	// Commit writes data to the journal. It may be called once.
	Commit(data []byte) error

	// Rand returns the randomness source granted to this execution.
	Rand() io.Reader

	// Charge accounts n cycles of guest computation. Guests call it before
	// expensive work; an error means the budget is spent and the guest must
	// stop.
	Charge(n uint64) error

	// Cycles returns the cycles consumed so far.
	Cycles() uint64
}

// guestEnv implements Env for one execution. It is guarded by a mutex
// because an aborted guest goroutine may still be running when the executor
// has already returned.
type guestEnv struct {
	ctx context.Context

	mu        sync.Mutex
	frames    [][]byte
	next      int
	journal   []byte
	committed bool
	cycles    uint64
	maxCycles uint64
	maxJrnl   int
	events    []traceEvent
	fault     error // sticky; once set every call fails

	rand io.Reader
}

func newGuestEnv(ctx context.Context, frames [][]byte, cfg ExecutorConfig, random io.Reader) *guestEnv {
	env := &guestEnv{
		ctx:       ctx,
		frames:    frames,
		maxCycles: cfg.MaxCycles,
		maxJrnl:   cfg.MaxJournalSize,
	}
	env.rand = &meteredReader{env: env, src: random}
	return env
}

// charge accounts n cycles. Callers hold env.mu.
func (env *guestEnv) charge(n uint64) error {
	if env.fault != nil {
		return env.fault
	}
	if err := env.ctx.Err(); err != nil {
		env.fault = fmt.Errorf("%w: %v", ErrGuestAborted, err)
		return env.fault
	}
	if env.cycles+n < env.cycles {
		env.cycles = math.MaxUint64
	} else {
		env.cycles += n
	}
	if env.maxCycles > 0 && env.cycles > env.maxCycles {
		env.fault = fmt.Errorf("%w: %d > %d", ErrCycleLimit, env.cycles, env.maxCycles)
		return env.fault
	}
	return nil
}

func (env *guestEnv) Read() ([]byte, error) {
	env.mu.Lock()
	defer env.mu.Unlock()

	if env.next >= len(env.frames) {
		if err := env.charge(callCost); err != nil {
			return nil, err
		}
		return nil, ErrInputExhausted
	}
	frame := env.frames[env.next]
	if err := env.charge(callCost + uint64(len(frame))); err != nil {
		return nil, err
	}
	env.frames[env.next] = nil
	env.next++
	env.events = append(env.events, traceEvent{
		kind:   traceRead,
		length: uint64(len(frame)),
		digest: sha256.Sum256(frame),
	})
	return frame, nil
}

func (env *guestEnv) ReadString() (string, error) {
	b, err := env.Read()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (env *guestEnv) Commit(data []byte) error {
	env.mu.Lock()
	defer env.mu.Unlock()

	if err := env.charge(callCost + uint64(len(data))); err != nil {
		return err
	}
	if env.committed {
		env.fault = ErrJournalSealed
		return env.fault
	}
	if env.maxJrnl > 0 && len(data) > env.maxJrnl {
		env.fault = fmt.Errorf("%w: %d > %d bytes", ErrJournalTooLarge, len(data), env.maxJrnl)
		return env.fault
	}
	env.committed = true
	env.journal = append([]byte{}, data...)
	env.events = append(env.events, traceEvent{
		kind:   traceCommit,
		length: uint64(len(data)),
		digest: sha256.Sum256(env.journal),
	})
	return nil
}

func (env *guestEnv) Rand() io.Reader {
	return env.rand
}

func (env *guestEnv) Charge(n uint64) error {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.charge(n)
}

func (env *guestEnv) Cycles() uint64 {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.cycles
}

// abort marks the environment as failed so a still-running guest cannot make
// progress.
func (env *guestEnv) abort(err error) {
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.fault == nil {
		env.fault = fmt.Errorf("%w: %v", ErrGuestAborted, err)
	}
}

// meteredReader charges cycles for randomness and records how many bytes
// were drawn.
type meteredReader struct {
	env *guestEnv
	src io.Reader
}

func (r *meteredReader) Read(p []byte) (int, error) {
	r.env.mu.Lock()
	if err := r.env.charge(callCost + uint64(len(p))); err != nil {
		r.env.mu.Unlock()
		return 0, err
	}
	r.env.mu.Unlock()

	n, err := r.src.Read(p)

	r.env.mu.Lock()
	r.env.events = append(r.env.events, traceEvent{kind: traceRand, length: uint64(n)})
	r.env.mu.Unlock()
	return n, err
}
