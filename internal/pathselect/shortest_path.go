package pathselect

import "github.com/apfelbeet/crs/internal/adag"

// ShortestPath ranks candidates by fewest commits between source and
// target, so RPA always searches the nearest unresolved target first.
type ShortestPath struct{}

// CalculateDistances runs a BFS from every valid node and records, for
// each target it reaches, the shortest distance. Priorities are stored as
// negative distances so Ordering.Pop (highest priority first) yields the
// closest pair.
func (ShortestPath) CalculateDistances(graph Graph, targets, validNodes map[adag.NodeID]bool) *Ordering {
	best := make(map[PathKey]int)

	for source := range validNodes {
		distance := map[adag.NodeID]int{source: 0}
		queue := []adag.NodeID{source}

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			currentDistance := distance[current]

			for _, child := range graph.Children(current) {
				if _, seen := distance[child]; seen {
					continue
				}
				distance[child] = currentDistance + 1
				queue = append(queue, child)
				if targets[child] {
					key := PathKey{Source: source, Target: child}
					if prior, ok := best[key]; !ok || currentDistance+1 < prior {
						best[key] = currentDistance + 1
					}
				}
			}
		}
	}

	ordering := NewOrdering()
	for key, dist := range best {
		ordering.Push(key, -dist)
	}
	return ordering
}

// ExtractPath returns the shortest source→target path via a parent-tracked
// BFS.
func (ShortestPath) ExtractPath(graph Graph, source, target adag.NodeID) []adag.NodeID {
	parent := make(map[adag.NodeID]adag.NodeID)
	visited := map[adag.NodeID]bool{source: true}
	queue := []adag.NodeID{source}

found:
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range graph.Children(current) {
			if visited[child] {
				continue
			}
			visited[child] = true
			parent[child] = current
			queue = append(queue, child)
			if child == target {
				break found
			}
		}
	}

	return reconstruct(parent, source, target)
}

func reconstruct(parent map[adag.NodeID]adag.NodeID, source, target adag.NodeID) []adag.NodeID {
	var path []adag.NodeID
	current := target
	for {
		path = append([]adag.NodeID{current}, path...)
		if current == source {
			break
		}
		prev, ok := parent[current]
		if !ok {
			break
		}
		current = prev
	}
	return path
}
