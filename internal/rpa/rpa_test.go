package rpa

import (
	"testing"

	"github.com/apfelbeet/crs/internal/adag"
	"github.com/apfelbeet/crs/internal/interval"
	"github.com/apfelbeet/crs/internal/pathselect"
	"github.com/apfelbeet/crs/internal/regression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearSearchFactory drives every path with plain LinearSearch, the
// simplest regression.PathAlgorithm, so these tests exercise RPA's path
// selection and propagation logic rather than any particular interval
// strategy.
func linearSearchFactory(path []string) regression.PathAlgorithm {
	return interval.NewLinearSearch(path)
}

// driveRPA feeds oracle results to alg one dispatch at a time until it
// reports Done, matching a single-worker run (a valid arrival order under
// the at-most-one-concurrent-job-per-commit invariant).
func driveRPA(t *testing.T, alg *RPA, oracle map[string]regression.TestResult) {
	t.Helper()
	for !alg.Done() {
		resp := alg.NextJob(3, 3)
		switch resp.Kind {
		case regression.Job:
			res, ok := oracle[resp.Hash]
			require.True(t, ok, "no oracle result for %s", resp.Hash)
			alg.AddResult(resp.Hash, res)
		case regression.WaitForResult:
			t.Fatalf("unexpected wait: every dispatch is resolved before the next NextJob call")
		case regression.InternalError:
			t.Fatalf("rpa error: %s", resp.Msg)
		}
	}
}

func buildChain(t *testing.T, hashes []string) *adag.Adag[struct{}] {
	t.Helper()
	g := adag.New[struct{}]()
	ids := make([]adag.NodeID, len(hashes))
	for i, h := range hashes {
		ids[i] = g.AddNode(h, struct{}{})
	}
	for i := 0; i+1 < len(ids); i++ {
		g.AddEdge(ids[i], ids[i+1])
	}
	g.Sources = []adag.NodeID{ids[0]}
	return g
}

// TestRPA_LinearPassFail covers a single source, single target chain.
func TestRPA_LinearPassFail(t *testing.T) {
	g := buildChain(t, []string{"A", "B", "C", "D", "E"})
	g.Targets = []adag.NodeID{g.MustIndex("E")}

	r := New(g, Settings{}, pathselect.ShortestPath{}, linearSearchFactory)
	driveRPA(t, r, map[string]regression.TestResult{
		"B": regression.Pass,
		"C": regression.Pass,
		"D": regression.Fail,
	})

	assert.Equal(t, []regression.RegressionPoint{{Target: "E", RegressionPoint: "D"}}, r.Results())
}

// TestRPA_MultiTargetSameBranch covers two targets on the same branch, once
// with propagation and once with independent per-target searches; both must
// land on the same answers.
func TestRPA_MultiTargetSameBranch(t *testing.T) {
	oracle := map[string]regression.TestResult{
		"B": regression.Pass,
		"C": regression.Fail,
		"D": regression.Fail,
	}
	want := []regression.RegressionPoint{
		{Target: "C", RegressionPoint: "C"},
		{Target: "E", RegressionPoint: "C"},
	}

	for _, propagate := range []bool{true, false} {
		g := buildChain(t, []string{"A", "B", "C", "D", "E"})
		g.Targets = []adag.NodeID{g.MustIndex("C"), g.MustIndex("E")}

		r := New(g, Settings{Propagate: propagate}, pathselect.ShortestPath{}, linearSearchFactory)
		driveRPA(t, r, oracle)

		assert.ElementsMatch(t, want, r.Results(), "propagate=%v", propagate)
	}
}

// TestRPA_ForkMerge covers a diamond: two parents converging on D before the
// target E. With A->B added before A->C, ShortestPath's BFS tie-break always
// reaches D via B first, so B (not the alternate branch C) is the correct
// regression point.
func TestRPA_ForkMerge(t *testing.T) {
	g := adag.New[struct{}]()
	a := g.AddNode("A", struct{}{})
	b := g.AddNode("B", struct{}{})
	c := g.AddNode("C", struct{}{})
	d := g.AddNode("D", struct{}{})
	e := g.AddNode("E", struct{}{})
	g.AddEdge(a, b)
	g.AddEdge(a, c)
	g.AddEdge(b, d)
	g.AddEdge(c, d)
	g.AddEdge(d, e)
	g.Sources = []adag.NodeID{a}
	g.Targets = []adag.NodeID{e}

	r := New(g, Settings{}, pathselect.ShortestPath{}, linearSearchFactory)
	driveRPA(t, r, map[string]regression.TestResult{
		"B": regression.Fail,
		"C": regression.Pass,
		"D": regression.Fail,
	})

	assert.Equal(t, []regression.RegressionPoint{{Target: "E", RegressionPoint: "B"}}, r.Results())
}
