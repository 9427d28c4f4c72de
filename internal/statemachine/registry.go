package statemachine

import (
	"fmt"
	"sync"

	"github.com/marmos91/pvfsgo/internal/wire"
)

// Registry maps a wire request op to the machine that services it,
// mirroring the teacher's procedure dispatch tables (one map from a wire
// tag to a handler descriptor, built once and looked up per request)
// generalized from RPC procedures to state machines.
type Registry struct {
	mu       sync.RWMutex
	machines map[wire.Op]*Machine
}

func NewRegistry() *Registry {
	return &Registry{machines: make(map[wire.Op]*Machine)}
}

// Register binds op to machine. Re-registering an op replaces its entry.
func (r *Registry) Register(op wire.Op, machine *Machine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machines[op] = machine
}

// Lookup returns the machine servicing op, if any.
func (r *Registry) Lookup(op wire.Op) (*Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[op]
	if !ok {
		return nil, fmt.Errorf("statemachine: no machine registered for op %s", op)
	}
	return m, nil
}
