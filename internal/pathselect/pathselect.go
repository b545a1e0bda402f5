// Package pathselect implements the two path-selection policies RPA and
// Extended RPA choose between when deciding which source→target path to
// search next: ShortestPath (prefer the fewest commits between a valid
// node and an unresolved target) and LongestPath (prefer the most). Both
// expose the same CalculateDistances/ExtractPath contract so the rest of
// the search machinery never branches on which policy is active.
package pathselect

import (
	"github.com/emirpasic/gods/queues/priorityqueue"

	"github.com/apfelbeet/crs/internal/adag"
)

// Graph is the traversal surface pathselect needs from an Adag: forward
// adjacency only. It is satisfied by adag.Adag[N] for any N.
type Graph interface {
	Children(id adag.NodeID) []adag.NodeID
}

// PathKey names a candidate search: a valid node to start from and a
// target to reach.
type PathKey struct {
	Source adag.NodeID
	Target adag.NodeID
}

// Ordering is a priority queue over PathKey, highest priority first. Both
// policies populate it so that popping always returns the (source,
// target) pair RPA should search next.
type Ordering struct {
	pq *priorityqueue.Queue
}

type entry struct {
	key      PathKey
	priority int
}

func comparePriority(a, b interface{}) int {
	ea, eb := a.(*entry), b.(*entry)
	switch {
	case ea.priority > eb.priority:
		return -1
	case ea.priority < eb.priority:
		return 1
	default:
		return 0
	}
}

// NewOrdering returns an empty Ordering.
func NewOrdering() *Ordering {
	return &Ordering{pq: priorityqueue.NewWith(comparePriority)}
}

// Push records a candidate (source, target) search at the given priority.
// Higher priority values are popped first.
func (o *Ordering) Push(key PathKey, priority int) {
	o.pq.Enqueue(&entry{key: key, priority: priority})
}

// Pop removes and returns the highest-priority candidate. ok is false if
// the ordering is empty.
func (o *Ordering) Pop() (PathKey, int, bool) {
	v, ok := o.pq.Dequeue()
	if !ok {
		return PathKey{}, 0, false
	}
	e := v.(*entry)
	return e.key, e.priority, true
}

// Len returns the number of candidates still queued.
func (o *Ordering) Len() int {
	return o.pq.Size()
}

// Empty reports whether the ordering has no candidates left.
func (o *Ordering) Empty() bool {
	return o.pq.Empty()
}

// PathSelection is implemented by ShortestPath and LongestPath.
type PathSelection interface {
	// CalculateDistances builds an Ordering over every (validNode,
	// target) pair reachable from validNode, ranked per the policy.
	CalculateDistances(graph Graph, targets, validNodes map[adag.NodeID]bool) *Ordering
	// ExtractPath returns the concrete node sequence from source to
	// target chosen by the policy, inclusive of both endpoints.
	ExtractPath(graph Graph, source, target adag.NodeID) []adag.NodeID
}
