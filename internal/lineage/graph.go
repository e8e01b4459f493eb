// Package lineage implements the process lineage DAG (SPEC_FULL.md §4.2):
// a pid → Node map under one reader/writer lock, with tombstone-based
// retention so late events from a just-exited pid can still enrich before
// the kernel reuses that pid.
package lineage

import (
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// TombstoneRetention is how long a node survives process-stop before it is
// purged, per SPEC_FULL.md §4.2.
const TombstoneRetention = 30 * time.Second

// DefaultAncestorDepth bounds the ancestors() walk absent an explicit depth.
const DefaultAncestorDepth = 8

// Container is the optional container-classification attached to a node.
type Container struct {
	Runtime string
	ID      string
}

// Node mirrors SPEC_FULL.md §3's process node shape.
type Node struct {
	PID       uint32
	PPID      uint32
	Comm      string
	ExePath   string
	User      string
	FirstSeen time.Time

	Container *Container

	Tombstoned  bool
	TombstoneAt time.Time

	Children map[uint32]struct{}
}

// Graph is the thread-safe lineage graph.
type Graph struct {
	mu    sync.RWMutex
	nodes map[uint32]*Node
	now   func() time.Time
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[uint32]*Node), now: time.Now}
}

// OnExec upserts the node for pid, links it under ppid's child set if the
// parent is known, and records first_seen. A reused pid (one that currently
// holds a tombstoned node) is superseded: the tombstone is cleared and a
// fresh node installed, per the DAG rationale in SPEC_FULL.md §4.2.
func (g *Graph) OnExec(pid, ppid uint32, comm, path, user string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node := &Node{
		PID:       pid,
		PPID:      ppid,
		Comm:      comm,
		ExePath:   path,
		User:      user,
		FirstSeen: g.now(),
		Children:  make(map[uint32]struct{}),
	}
	g.nodes[pid] = node

	if parent, ok := g.nodes[ppid]; ok && pid != ppid {
		parent.Children[pid] = struct{}{}
	}
}

// OnExit tombstones the node for pid with TombstoneRetention. Expired
// tombstones are purged by Lookup (for the pid it looks up) and by GC; the
// graph runs no background goroutine of its own. Ancestors does not purge
// and may return an expired tombstone until one of those runs.
func (g *Graph) OnExit(pid uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[pid]
	if !ok {
		return
	}
	node.Tombstoned = true
	node.TombstoneAt = g.now()
}

// SetContainer attaches container classification to a node, if present.
func (g *Graph) SetContainer(pid uint32, c Container) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if node, ok := g.nodes[pid]; ok {
		node.Container = &c
	}
}

// Lookup returns the node for pid — live or tombstoned-but-not-yet-expired —
// or false. An expired tombstone is purged and treated as a miss.
func (g *Graph) Lookup(pid uint32) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[pid]
	if !ok {
		return Node{}, false
	}
	if node.Tombstoned && g.now().Sub(node.TombstoneAt) > TombstoneRetention {
		g.removeLocked(pid)
		return Node{}, false
	}
	return *node, true
}

// Ancestors walks ppid links up to depth or the root, stopping at a cycle
// (pid == ppid, or a revisited pid) per SPEC_FULL.md §4.2/§9.
func (g *Graph) Ancestors(pid uint32, depth int) []Node {
	if depth <= 0 {
		depth = DefaultAncestorDepth
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var chain []Node
	var visited []uint32
	current := pid

	for i := 0; i < depth; i++ {
		node, ok := g.nodes[current]
		if !ok {
			break
		}
		if slices.Contains(visited, current) {
			break
		}
		visited = append(visited, current)
		chain = append(chain, *node)

		if node.PPID == current {
			break
		}
		current = node.PPID
	}
	return chain
}

// GC purges tombstoned nodes whose retention window has elapsed. Called
// periodically by the orchestrator; Lookup also purges an expired tombstone
// it meets, while Ancestors does not purge.
func (g *Graph) GC() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for _, pid := range maps.Keys(g.nodes) {
		node := g.nodes[pid]
		if node.Tombstoned && now.Sub(node.TombstoneAt) > TombstoneRetention {
			g.removeLocked(pid)
			removed++
		}
	}
	return removed
}

// Size reports the number of tracked nodes, live and tombstoned.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *Graph) removeLocked(pid uint32) {
	node, ok := g.nodes[pid]
	if !ok {
		return
	}
	if parent, ok := g.nodes[node.PPID]; ok && node.PPID != pid {
		delete(parent.Children, pid)
	}
	delete(g.nodes, pid)
}
