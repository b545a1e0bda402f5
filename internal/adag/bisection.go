package adag

import "sort"

// RelevantAncestors returns the set of ancestors of target that the
// search still considers "in play": reachable by walking parent edges
// from target, but not past any node in boundary (a source/valid-node
// floor). It is the same reachability pass AssociatedValueBisection uses
// internally, exposed on its own for callers (BISECT's interrupt
// computation) that need to know which in-flight jobs a new target still
// covers.
func RelevantAncestors[N any](graph *Adag[N], boundary map[NodeID]bool, target NodeID) map[NodeID]bool {
	relevant := map[NodeID]bool{target: true}
	queue := []NodeID{target}
	irrelevantQueue := []NodeID{}
	irrelevant := map[NodeID]bool{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if boundary[current] {
			if !irrelevant[current] {
				irrelevant[current] = true
				irrelevantQueue = append(irrelevantQueue, current)
			}
			continue
		}

		for _, parent := range graph.Parents(current) {
			if !relevant[parent] {
				relevant[parent] = true
				queue = append(queue, parent)
			}
		}
	}

	for len(irrelevantQueue) > 0 {
		current := irrelevantQueue[0]
		irrelevantQueue = irrelevantQueue[1:]
		for _, parent := range graph.Parents(current) {
			if !irrelevant[parent] {
				irrelevant[parent] = true
				irrelevantQueue = append(irrelevantQueue, parent)
			}
		}
	}

	for id := range irrelevant {
		delete(relevant, id)
	}
	return relevant
}

// sectionRecord tracks, during AssociatedValueBisection's topological
// pass, the set of disjoint upstream "sections" merging into a node and
// how many of the immediately preceding branch's paths (offset) still
// haven't been folded into a counted section.
type sectionRecord struct {
	sections map[NodeID]bool
	offset   int
}

// AssociatedValueBisection picks the commit that best bisects the
// relevant ancestry of target: the one whose count of ancestors, and
// count of non-ancestors within the relevant set, are as close to equal
// as possible. sources marks nodes the search will never probe below
// (valid/known-Pass commits act as a floor); ignored marks commits that
// must never be returned (already tested and uninformative, e.g. Skip).
//
// Ties are broken by ascending NodeID — this mirrors an arbitrary
// HashMap-iteration tie-break in the algorithm this was ported from, so
// callers (and their tests) must treat either of two equally-good
// bisection points as correct.
func AssociatedValueBisection[N any](graph *Adag[N], sources, ignored map[NodeID]bool, target NodeID) (NodeID, bool) {
	relevant := map[NodeID]bool{target: true}
	queue := []NodeID{target}
	irrelevantQueue := []NodeID{}
	irrelevant := map[NodeID]bool{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if sources[current] {
			if !irrelevant[current] {
				irrelevant[current] = true
				irrelevantQueue = append(irrelevantQueue, current)
			}
			continue
		}

		for _, parent := range graph.Parents(current) {
			if !relevant[parent] {
				relevant[parent] = true
				queue = append(queue, parent)
			}
		}
	}

	for len(irrelevantQueue) > 0 {
		current := irrelevantQueue[0]
		irrelevantQueue = irrelevantQueue[1:]
		for _, parent := range graph.Parents(current) {
			if !irrelevant[parent] {
				irrelevant[parent] = true
				irrelevantQueue = append(irrelevantQueue, parent)
			}
		}
	}

	isRelevantEdge := func(id NodeID) bool {
		return relevant[id] && !irrelevant[id]
	}

	startPoints := map[NodeID]bool{}
	visited := map[NodeID]bool{target: true}
	queue = []NodeID{target}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var filteredParents []NodeID
		for _, parent := range graph.Parents(current) {
			if isRelevantEdge(parent) {
				filteredParents = append(filteredParents, parent)
			}
		}

		if len(filteredParents) == 0 {
			startPoints[current] = true
			continue
		}
		for _, parent := range filteredParents {
			if !visited[parent] {
				visited[parent] = true
				queue = append(queue, parent)
			}
		}
	}

	numberOfParents := map[NodeID]int{}
	size := len(startPoints)
	queue = nil
	for source := range startPoints {
		queue = append(queue, source)
		numberOfParents[source] = 0
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == target {
			continue
		}
		for _, child := range graph.Children(current) {
			if !isRelevantEdge(child) {
				continue
			}
			if _, ok := numberOfParents[child]; ok {
				numberOfParents[child]++
			} else {
				numberOfParents[child] = 1
				queue = append(queue, child)
				size++
			}
		}
	}

	if size <= 1 {
		return 0, false
	}

	sectionSizes := map[NodeID]int{}
	sectionsOfNodes := map[NodeID]*sectionRecord{}
	numberOfAncestors := map[NodeID]int{}
	queue = nil

	for source := range startPoints {
		queue = append(queue, source)
		sectionsOfNodes[source] = &sectionRecord{sections: map[NodeID]bool{}, offset: 1}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		rec, ok := sectionsOfNodes[current]
		delete(sectionsOfNodes, current)
		if !ok {
			rec = &sectionRecord{sections: map[NodeID]bool{}, offset: 1}
		}

		anc := rec.offset
		for section := range rec.sections {
			anc += sectionSizes[section]
		}
		numberOfAncestors[current] = anc

		if current == target {
			break
		}
		if anc > size/2 {
			continue
		}

		var children []NodeID
		for _, child := range graph.Children(current) {
			if isRelevantEdge(child) {
				children = append(children, child)
			}
		}

		switch len(children) {
		case 0:
			// nothing to fold forward.
		case 1:
			child := children[0]
			if childRec, ok := sectionsOfNodes[child]; ok {
				childRec.offset += rec.offset
				for s := range rec.sections {
					childRec.sections[s] = true
				}
			} else {
				rec.offset++
				sectionsOfNodes[child] = rec
			}
		default:
			sectionSizes[current] = rec.offset
			newSections := map[NodeID]bool{current: true}
			for s := range rec.sections {
				newSections[s] = true
			}
			for _, child := range children {
				if childRec, ok := sectionsOfNodes[child]; ok {
					for s := range newSections {
						childRec.sections[s] = true
					}
				} else {
					copied := map[NodeID]bool{}
					for s := range newSections {
						copied[s] = true
					}
					sectionsOfNodes[child] = &sectionRecord{sections: copied, offset: 1}
				}
			}
		}

		for _, child := range children {
			if np, ok := numberOfParents[child]; ok {
				np--
				numberOfParents[child] = np
				if np == 0 {
					queue = append(queue, child)
				}
			}
		}
	}

	keys := make([]NodeID, 0, len(numberOfAncestors))
	for id := range numberOfAncestors {
		if !ignored[id] {
			keys = append(keys, id)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	best, hasBest := NodeID(0), false
	bestValue := -1
	for _, id := range keys {
		v := numberOfAncestors[id]
		if v > size-v {
			v = size - v
		}
		if v > bestValue {
			bestValue = v
			best = id
			hasBest = true
		}
	}
	return best, hasBest
}
