package player

import (
	"sync"

	"github.com/driftvale/ripple/pkg/types"
)

// Registry is the concurrent map from guild to canonical Node.
//
// Get returns an independent snapshot and Insert is a full replace, so
// concurrent updaters of the same guild are last-write-wins. That is an
// intentional relaxation: node updates are infrequent and guild-scoped,
// and callers needing atomic read-modify-write serialise externally.
// Operations on different guilds never contend beyond the map access
// itself. All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	nodes map[types.GuildID]*Node
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[types.GuildID]*Node)}
}

// Get returns a snapshot of the guild's Node, or (nil, false) if none
// exists. Mutating the snapshot does not change the canonical Node; write
// it back with Insert.
func (r *Registry) Get(guildID types.GuildID) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[guildID]
	if !ok {
		return nil, false
	}
	return n.clone(), true
}

// Insert replaces the guild's canonical Node with a snapshot of n.
func (r *Registry) Insert(guildID types.GuildID, n *Node) {
	c := n.clone()
	c.GuildID = guildID
	r.mu.Lock()
	r.nodes[guildID] = c
	r.mu.Unlock()
}

// Remove deletes the guild's Node. Idempotent.
func (r *Registry) Remove(guildID types.GuildID) {
	r.mu.Lock()
	delete(r.nodes, guildID)
	r.mu.Unlock()
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
