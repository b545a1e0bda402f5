// Package bisect implements speculative BISECT: a binary-search variant
// that, instead of waiting for each probe's result before picking the
// next one, builds a tree of candidate bisection points in advance (one
// child for "this commit Passes", one for "this commit Fails") so a
// worker pool with idle capacity always has something useful to run next.
// Results are absorbed by walking down the known-result branch; the tree
// only needs to be extended once the known branches run out.
package bisect

import (
	"github.com/apfelbeet/crs/internal/adag"
	"github.com/apfelbeet/crs/internal/regression"
)

// Bisect is a regression.RegressionAlgorithm driving the speculative
// bisection tree toward a single target's regression point.
type Bisect struct {
	graph          *adag.Adag[struct{}]
	results        map[adag.NodeID]regression.TestResult
	validNodes     map[adag.NodeID]bool
	ignoredNodes   map[adag.NodeID]bool
	tree           child
	jobs           []adag.NodeID
	jobsAwait      map[adag.NodeID]bool
	interrupts     map[string]bool
	originalTarget adag.NodeID
	currentTarget  adag.NodeID
}

// New builds a Bisect over graph, which must carry exactly one target
// (BISECT resolves a single target per run) and at least one source.
func New(graph *adag.Adag[struct{}]) *Bisect {
	validNodes := make(map[adag.NodeID]bool, len(graph.Sources))
	for _, s := range graph.Sources {
		validNodes[s] = true
	}
	ignoredNodes := make(map[adag.NodeID]bool)
	results := make(map[adag.NodeID]regression.TestResult)
	target := graph.Targets[0]

	tree := newRoot(graph, results, validNodes, ignoredNodes, &target)

	return &Bisect{
		graph:          graph,
		results:        results,
		validNodes:     validNodes,
		ignoredNodes:   ignoredNodes,
		tree:           tree,
		jobsAwait:      make(map[adag.NodeID]bool),
		interrupts:     make(map[string]bool),
		originalTarget: target,
		currentTarget:  target,
	}
}

// newRoot repeatedly bisects the (validNodes, target) interval until it
// lands on a commit with no cached result, absorbing any cached result it
// meets along the way: a cached Pass promotes the node to validNodes, a
// cached Fail moves target back to it, and a cached Skip is added to
// ignoredNodes and to the ignored set handed to the bisector
// (fictiveValids), not to validNodes (the restriction stays intact; the
// search does not shrink past it, but it is never returned as an answer).
func newRoot(
	graph *adag.Adag[struct{}],
	results map[adag.NodeID]regression.TestResult,
	validNodes map[adag.NodeID]bool,
	ignoredNodes map[adag.NodeID]bool,
	target *adag.NodeID,
) child {
	fictiveValids := make(map[adag.NodeID]bool, len(validNodes))
	for id := range validNodes {
		fictiveValids[id] = true
	}

	for {
		candidate, ok := adag.AssociatedValueBisection(graph, validNodes, fictiveValids, *target)
		if !ok {
			return endChild
		}
		res, has := results[candidate]
		if !has {
			return nodeChild(candidate)
		}
		switch res {
		case regression.Pass:
			validNodes[candidate] = true
			fictiveValids[candidate] = true
		case regression.Fail:
			*target = candidate
		case regression.Skip:
			fictiveValids[candidate] = true
			ignoredNodes[candidate] = true
		}
	}
}

type speculateItem struct {
	node   *node
	depth  int
	vs     map[adag.NodeID]bool
	target adag.NodeID
}

func copySet(s map[adag.NodeID]bool) map[adag.NodeID]bool {
	out := make(map[adag.NodeID]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

// extendSpeculationTree grows every branch of the tree that has run out
// of known-result nodes by exactly one more bisection, stopping at the
// first depth where any branch had to speculate (so the tree never grows
// lopsided relative to how far results have actually arrived).
func (b *Bisect) extendSpeculationTree() bool {
	changed := false

	switch b.tree.kind {
	case childEnd:
		return false
	case childUnknown:
		b.tree = newRoot(b.graph, b.results, b.validNodes, b.ignoredNodes, &b.currentTarget)
		return true
	}

	queue := []speculateItem{{node: b.tree.node, depth: 0, vs: map[adag.NodeID]bool{}, target: b.currentTarget}}
	limit := -1

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if limit >= 0 && limit < item.depth {
			break
		}

		result, hasResult := b.results[item.node.index]

		if !hasResult || result == regression.Pass || result == regression.Skip {
			vs2 := copySet(item.vs)
			if !hasResult || result == regression.Pass {
				vs2[item.node.index] = true
			}
			switch item.node.right.kind {
			case childNext:
				queue = append(queue, speculateItem{node: item.node.right.node, depth: item.depth + 1, vs: vs2, target: item.target})
			case childUnknown:
				if limit < 0 {
					limit = item.depth
				}
				vs2[item.node.index] = true
				for v := range b.validNodes {
					vs2[v] = true
				}
				candidate, ok := adag.AssociatedValueBisection(b.graph, vs2, b.ignoredNodes, item.target)
				changed = true
				item.node.right = childFromBisection(candidate, ok)
			}
		}

		if !hasResult || result == regression.Fail {
			switch item.node.left.kind {
			case childNext:
				queue = append(queue, speculateItem{node: item.node.left.node, depth: item.depth + 1, vs: copySet(item.vs), target: item.node.index})
			case childUnknown:
				if limit < 0 {
					limit = item.depth
				}
				vs := copySet(item.vs)
				for v := range b.validNodes {
					vs[v] = true
				}
				candidate, ok := adag.AssociatedValueBisection(b.graph, vs, b.ignoredNodes, item.node.index)
				changed = true
				item.node.left = childFromBisection(candidate, ok)
			}
		}
	}

	return changed
}

type extractItem struct {
	node  *node
	depth int
}

// extractJobs collects every still-unprocessed node at the minimum depth
// reachable from the root via known-result branches.
func (b *Bisect) extractJobs() map[adag.NodeID]bool {
	if b.tree.kind != childNext {
		return map[adag.NodeID]bool{}
	}

	jobs := map[adag.NodeID]bool{}
	limit := -1
	queue := []extractItem{{node: b.tree.node, depth: 0}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if limit >= 0 && limit < item.depth {
			break
		}

		if b.isUnprocessed(item.node.index) {
			if limit < 0 {
				limit = item.depth
			}
			jobs[item.node.index] = true
			continue
		}

		result, hasResult := b.results[item.node.index]
		if !hasResult || result == regression.Pass || result == regression.Skip {
			if item.node.right.kind == childNext {
				queue = append(queue, extractItem{node: item.node.right.node, depth: item.depth + 1})
			}
		}
		if !hasResult || result == regression.Fail {
			if item.node.left.kind == childNext {
				queue = append(queue, extractItem{node: item.node.left.node, depth: item.depth + 1})
			}
		}
	}

	return jobs
}

func (b *Bisect) isUnprocessed(id adag.NodeID) bool {
	_, has := b.results[id]
	return !has && !b.jobsAwait[id]
}

// AddResult implements regression.RegressionAlgorithm.
func (b *Bisect) AddResult(commit string, result regression.TestResult) {
	idx := b.graph.MustIndex(commit)
	b.results[idx] = result
	delete(b.jobsAwait, idx)

	current := b.tree
	b.tree = unknownChild
	changed := false

	for current.kind == childNext {
		res, has := b.results[current.node.index]
		if !has {
			break
		}
		switch res {
		case regression.Pass:
			b.validNodes[current.node.index] = true
			current = current.node.right
			changed = true
		case regression.Fail:
			b.currentTarget = current.node.index
			current = current.node.left
			changed = true
		case regression.Skip:
			b.ignoredNodes[current.node.index] = true
			current = current.node.right
			changed = true
		}
	}
	b.tree = current

	if changed {
		remaining := adag.RelevantAncestors(b.graph, b.validNodes, b.currentTarget)
		for id := range b.jobsAwait {
			if !remaining[id] {
				b.interrupts[b.graph.Hash(id)] = true
			}
		}
	}

	if b.tree.kind == childUnknown {
		b.tree = newRoot(b.graph, b.results, b.validNodes, b.ignoredNodes, &b.currentTarget)
	}
}

// NextJob implements regression.RegressionAlgorithm.
func (b *Bisect) NextJob(capacity, _ int) regression.AlgorithmResponse {
	if len(b.jobs) == 0 {
		jobs := b.extractJobs()
		for len(jobs) == 0 {
			changed := b.extendSpeculationTree()
			jobs = b.extractJobs()
			if !changed {
				break
			}
		}
		if capacity >= len(jobs) {
			b.jobs = make([]adag.NodeID, 0, len(jobs))
			for id := range jobs {
				b.jobs = append(b.jobs, id)
			}
		}
	}

	if len(b.jobs) > 0 {
		job := b.jobs[0]
		b.jobs = b.jobs[1:]
		b.jobsAwait[job] = true
		return regression.JobResponse(b.graph.Hash(job))
	}
	if len(b.jobsAwait) == 0 {
		return regression.ErrorResponse("bisect: search error")
	}
	return regression.WaitResponse()
}

// Interrupts implements regression.RegressionAlgorithm.
func (b *Bisect) Interrupts() []string {
	out := make([]string, 0, len(b.interrupts))
	for hash := range b.interrupts {
		out = append(out, hash)
	}
	b.interrupts = make(map[string]bool)
	return out
}

// Done implements regression.RegressionAlgorithm.
func (b *Bisect) Done() bool {
	return b.tree.kind == childEnd
}

// Results implements regression.RegressionAlgorithm.
func (b *Bisect) Results() []regression.RegressionPoint {
	return []regression.RegressionPoint{{
		Target:          b.graph.Hash(b.originalTarget),
		RegressionPoint: b.graph.Hash(b.currentTarget),
	}}
}

// Display renders the current speculation tree, for per-iteration log
// summaries.
func (b *Bisect) Display() string {
	return display(b.tree, b.graph, b.results)
}
