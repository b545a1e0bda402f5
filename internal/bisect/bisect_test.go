package bisect

import (
	"fmt"
	"testing"

	"github.com/apfelbeet/crs/internal/adag"
	"github.com/apfelbeet/crs/internal/regression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBisect_FindsFailBoundary drives the speculative bisection tree over a
// 9-commit chain with a single Fail boundary in the middle and checks both
// that the reported regression point is exactly that boundary and that the
// number of dispatches stays well under testing every commit individually.
func TestBisect_FindsFailBoundary(t *testing.T) {
	const n = 9
	hashes := make([]string, n)
	for i := range hashes {
		hashes[i] = fmt.Sprintf("c%d", i)
	}

	g := adag.New[struct{}]()
	ids := make([]adag.NodeID, n)
	for i, h := range hashes {
		ids[i] = g.AddNode(h, struct{}{})
	}
	for i := 0; i+1 < n; i++ {
		g.AddEdge(ids[i], ids[i+1])
	}
	g.Sources = []adag.NodeID{ids[0]}
	g.Targets = []adag.NodeID{ids[n-1]}

	// c0..c4 Pass, c5..c8 Fail: c5 is the regression point.
	const boundary = 5
	oracle := make(map[string]regression.TestResult, n)
	for i, h := range hashes {
		if i < boundary {
			oracle[h] = regression.Pass
		} else {
			oracle[h] = regression.Fail
		}
	}

	b := New(g)
	dispatches := 0
	for !b.Done() {
		resp := b.NextJob(n, n)
		switch resp.Kind {
		case regression.Job:
			dispatches++
			res, ok := oracle[resp.Hash]
			require.True(t, ok, "no oracle result for %s", resp.Hash)
			b.AddResult(resp.Hash, res)
		case regression.WaitForResult:
			t.Fatal("unexpected wait: every dispatch is resolved immediately")
		case regression.InternalError:
			t.Fatalf("bisect error: %s", resp.Msg)
		}
	}

	require.Equal(t, []regression.RegressionPoint{{Target: "c8", RegressionPoint: "c5"}}, b.Results())
	assert.Less(t, dispatches, n-2, "bisection must resolve in sublinear dispatches, not one probe per commit")
}
