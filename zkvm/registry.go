package zkvm

import (
	"errors"
	"sync"
)

// Registry errors.
var (
	ErrGuestEmptyProgram      = errors.New("zkvm: empty guest program")
	ErrGuestNilEntry          = errors.New("zkvm: nil guest entry point")
	ErrGuestNotRegistered     = errors.New("zkvm: guest program not registered")
	ErrGuestAlreadyRegistered = errors.New("zkvm: guest program already registered")
)

// Registry maps ImageIDs to guest programs.
type Registry struct {
	mu       sync.RWMutex
	programs map[ImageID]*GuestProgram
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		programs: make(map[ImageID]*GuestProgram),
	}
}

// Register installs a guest under the ImageID of its image and returns that
// ID. Registering the same image twice fails.
func (r *Registry) Register(name string, image []byte, entry GuestFunc) (ImageID, error) {
	if len(image) == 0 {
		return ImageID{}, ErrGuestEmptyProgram
	}
	if entry == nil {
		return ImageID{}, ErrGuestNilEntry
	}
	id := ComputeImageID(image)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.programs[id]; exists {
		return id, ErrGuestAlreadyRegistered
	}

	// Store a copy.
	stored := make([]byte, len(image))
	copy(stored, image)
	r.programs[id] = &GuestProgram{
		Name:  name,
		Image: stored,
		ID:    id,
		Entry: entry,
	}
	return id, nil
}

// Lookup returns the guest registered under id.
func (r *Registry) Lookup(id ImageID) (*GuestProgram, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prog, exists := r.programs[id]
	if !exists {
		return nil, ErrGuestNotRegistered
	}
	return prog, nil
}

// Count returns the number of registered guest programs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.programs)
}
