package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/mobility-simulator/model"
)

var (
	// ErrInvalidState indicates a lifecycle transition that is not allowed,
	// such as removing a node that never joined.
	ErrInvalidState = errors.New("invalid node state")
	// ErrNodeNotFound indicates a requested node identity was never issued.
	ErrNodeNotFound = errors.New("node not found")
)

// NodeRegistry tracks the nodes of a single simulation run. It issues
// identities, keeps the active set in join order and retains every node
// ever registered so historical events can still be resolved.
type NodeRegistry struct {
	mu sync.RWMutex

	// all is indexed by node identity.
	all    []*model.Node
	active []*model.Node
}

// NewNodeRegistry constructs an empty registry.
func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{}
}

// Add assigns n the next identity, records its join time and appends it
// to the active set. A node can only be added once.
func (r *NodeRegistry) Add(t float64, n *model.Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidState)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.Joined() {
		return fmt.Errorf("%w: node %d already joined at %v", ErrInvalidState, n.ID, n.JoinTime)
	}
	n.MarkJoined(len(r.all), t)
	r.all = append(r.all, n)
	r.active = append(r.active, n)
	return nil
}

// Remove records n's leave time and drops it from the active set. The
// identity stays resolvable through Get.
func (r *NodeRegistry) Remove(t float64, n *model.Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidState)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !n.Joined() {
		return fmt.Errorf("%w: node removed before it was added", ErrInvalidState)
	}
	if n.Left() {
		return fmt.Errorf("%w: node %d already left at %v", ErrInvalidState, n.ID, n.LeaveTime)
	}
	if n.ID < 0 || n.ID >= len(r.all) || r.all[n.ID] != n {
		return fmt.Errorf("%w: node %d is not registered here", ErrInvalidState, n.ID)
	}
	if t < n.JoinTime {
		return fmt.Errorf("%w: node %d leave time %v precedes join time %v", ErrInvalidState, n.ID, t, n.JoinTime)
	}

	n.MarkLeft(t)
	for i, a := range r.active {
		if a == n {
			r.active = append(r.active[:i], r.active[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the node with the given identity, whether or not it is
// still active.
func (r *NodeRegistry) Get(id int) (*model.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.all) {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return r.all[id], nil
}

// Active returns a snapshot of the active nodes in join order.
func (r *NodeRegistry) Active() []*model.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*model.Node(nil), r.active...)
}

// ActiveCount returns the number of currently active nodes.
func (r *NodeRegistry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Count returns the number of distinct identities issued so far.
func (r *NodeRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}
