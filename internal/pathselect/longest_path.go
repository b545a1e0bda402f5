package pathselect

import "github.com/apfelbeet/crs/internal/adag"

// LongestPath ranks candidates by most commits between source and target,
// trading search-step count for a (hopefully) more informative set of
// commits to bisect over. It is a relaxation over the DAG driven by its
// own internal Ordering rather than a single BFS pass, since the longest
// path to a node can still grow after it is first reached.
type LongestPath struct{}

type distanceRecord struct {
	from adag.NodeID
	dist int
}

// CalculateDistances seeds every valid node as its own zero-distance
// anchor, then repeatedly relaxes forward, replacing a target's recorded
// distance whenever a strictly longer path arrives — except a node that
// is itself an anchor (distance 0 to itself) never yields to an incoming
// path, matching the original's treatment of valid nodes as fixed.
func (LongestPath) CalculateDistances(graph Graph, targets, validNodes map[adag.NodeID]bool) *Ordering {
	queue := NewOrdering()
	for source := range validNodes {
		queue.Push(PathKey{Source: source, Target: source}, 0)
	}

	distance := make(map[adag.NodeID]distanceRecord)

	for !queue.Empty() {
		key, dist, _ := queue.Pop()
		old, exists := distance[key.Target]
		insert := !exists || (old.dist != 0 && dist > old.dist)
		if !insert {
			continue
		}
		distance[key.Target] = distanceRecord{from: key.Source, dist: dist}
		for _, child := range graph.Children(key.Target) {
			queue.Push(PathKey{Source: key.Source, Target: child}, dist+1)
		}
	}

	res := NewOrdering()
	for target := range targets {
		rec, ok := distance[target]
		if !ok {
			continue
		}
		res.Push(PathKey{Source: rec.from, Target: target}, rec.dist)
	}
	return res
}

// ExtractPath reconstructs the longest source→target path via the same
// relaxation scheme, tracking parents instead of anchors.
func (LongestPath) ExtractPath(graph Graph, source, target adag.NodeID) []adag.NodeID {
	queue := NewOrdering()
	queue.Push(PathKey{Source: source, Target: source}, 0)

	distance := make(map[adag.NodeID]distanceRecord)

	for !queue.Empty() {
		key, dist, _ := queue.Pop()
		old, exists := distance[key.Target]
		if exists && dist <= old.dist {
			continue
		}
		distance[key.Target] = distanceRecord{from: key.Source, dist: dist}
		for _, child := range graph.Children(key.Target) {
			queue.Push(PathKey{Source: key.Target, Target: child}, dist+1)
		}
	}

	var path []adag.NodeID
	child := target
	for {
		path = append([]adag.NodeID{child}, path...)
		rec := distance[child]
		if rec.from == child {
			break
		}
		child = rec.from
	}
	return path
}
