package gossip

import (
	"container/heap"
	"sync"

	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/perr"
)

// Graph is the content-addressed, append-only DAG of gossip events.
type Graph struct {
	mu     sync.RWMutex
	events map[identity.Hash]*Event
	order  []identity.Hash // insertion order == topological index order
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{events: make(map[identity.Hash]*Event)}
}

// Insert appends event to the graph. Fails with perr.ErrDuplicateEvent if its
// hash is already present, or perr.ErrUnknownParent if either parent is
// missing. Assigns TopologicalIndex = current size.
func (g *Graph) Insert(e *Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.events[e.Hash]; ok {
		return perr.New(perr.DuplicateEvent, "event "+e.Hash.Hex()+" already present")
	}
	if e.SelfParent != nil {
		if _, ok := g.events[*e.SelfParent]; !ok {
			return perr.New(perr.UnknownParent, "self-parent "+e.SelfParent.Hex()+" not in graph")
		}
	}
	if e.OtherParent != nil {
		if _, ok := g.events[*e.OtherParent]; !ok {
			return perr.New(perr.UnknownParent, "other-parent "+e.OtherParent.Hex()+" not in graph")
		}
	}

	e.TopologicalIndex = len(g.order)
	g.events[e.Hash] = e
	g.order = append(g.order, e.Hash)
	return nil
}

// Remove discards event h, undoing a provisional Insert whose later
// validation failed (spec §4.2, §7: append must be atomic — stage metadata,
// then commit or discard). Only safe to call immediately after inserting h
// with no intervening Insert, since it assumes h still holds the highest
// assigned TopologicalIndex; callers serialise appends behind their own lock
// so this always holds in practice.
func (g *Graph) Remove(h identity.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.events[h]; !ok {
		return
	}
	delete(g.events, h)
	if n := len(g.order); n > 0 && g.order[n-1] == h {
		g.order = g.order[:n-1]
	}
}

// Get returns the event with the given hash, if present.
func (g *Graph) Get(h identity.Hash) (*Event, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.events[h]
	return e, ok
}

// Contains reports whether h is already in the graph.
func (g *Graph) Contains(h identity.Hash) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.events[h]
	return ok
}

// Len returns the number of events in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// All returns every event in insertion (topological) order.
func (g *Graph) All() []*Event {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Event, len(g.order))
	for i, h := range g.order {
		out[i] = g.events[h]
	}
	return out
}

// eventHeap is a max-heap over TopologicalIndex, giving reverse-topological
// (children-before-parents) pop order.
type eventHeap []*Event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].TopologicalIndex > h[j].TopologicalIndex }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(*Event)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Ancestors is a lazy iterator over an event and all its transitive
// ancestors, in reverse topological order (descendants before ancestors),
// each yielded at most once. Implemented with a max-priority queue keyed by
// TopologicalIndex and a visited set sized at the starting event's
// TopologicalIndex+1, per spec §4.1.
type Ancestors struct {
	graph   *Graph
	queue   eventHeap
	visited []bool
}

// Ancestors creates an Ancestors iterator rooted at start.
func (g *Graph) Ancestors(start *Event) *Ancestors {
	it := &Ancestors{
		graph:   g,
		visited: make([]bool, start.TopologicalIndex+1),
	}
	heap.Push(&it.queue, start)
	return it
}

// Next returns the next ancestor in reverse topological order, or
// (nil, false) once exhausted. Every parent pushed has a strictly lower
// topological index than the event just popped, so each element produced
// has a lower index than the one before it and the iterator always
// terminates.
func (it *Ancestors) Next() (*Event, bool) {
	for it.queue.Len() > 0 {
		e := heap.Pop(&it.queue).(*Event)
		if it.visited[e.TopologicalIndex] {
			continue
		}
		it.visited[e.TopologicalIndex] = true

		if e.SelfParent != nil {
			if p, ok := it.graph.Get(*e.SelfParent); ok {
				heap.Push(&it.queue, p)
			}
		}
		if e.OtherParent != nil {
			if p, ok := it.graph.Get(*e.OtherParent); ok {
				heap.Push(&it.queue, p)
			}
		}
		return e, true
	}
	return nil, false
}

// Collect drains the iterator into a slice, for callers that don't need
// lazy evaluation.
func (it *Ancestors) Collect() []*Event {
	var out []*Event
	for {
		e, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}
