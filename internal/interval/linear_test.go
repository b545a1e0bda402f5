package interval

import (
	"testing"

	"github.com/apfelbeet/crs/internal/regression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLinearSearch_LinearPassFail walks a path back to front and expects
// the regression point to land on the first Fail commit encountered.
func TestLinearSearch_LinearPassFail(t *testing.T) {
	path := []string{"A", "B", "C", "D", "E"}
	l := NewLinearSearch(path)

	oracle := map[string]regression.TestResult{
		"B": regression.Pass,
		"C": regression.Pass,
		"D": regression.Fail,
	}

	for !l.Done() {
		resp := l.NextJob(1, 1)
		require.Equal(t, regression.Job, resp.Kind, "unexpected response: %+v", resp)
		res, ok := oracle[resp.Hash]
		require.True(t, ok, "no oracle result for %s", resp.Hash)
		l.AddResult(resp.Hash, res)
	}

	assert.Equal(t, []regression.RegressionPoint{{Target: "E", RegressionPoint: "D"}}, l.Results())
}

// TestLinearSearch_InterruptsOnEarlyFail checks that once a Fail settles
// the regression point, a commit still awaited from earlier in the scan (now
// known redundant because a later Pass already supersedes it) is drained
// into Interrupts instead of being waited on forever.
func TestLinearSearch_InterruptsOnEarlyFail(t *testing.T) {
	path := []string{"A", "B", "C", "D", "E"}
	l := NewLinearSearch(path)

	// Dispatch all three in-flight jobs before any resolves, matching a
	// 3-worker run: D, C, B, in that order (walking back from the Fail
	// boundary).
	d := l.NextJob(3, 3)
	require.Equal(t, "D", d.Hash)
	c := l.NextJob(3, 3)
	require.Equal(t, "C", c.Hash)
	b := l.NextJob(3, 3)
	require.Equal(t, "B", b.Hash)

	l.AddResult("C", regression.Pass)
	assert.False(t, l.Done(), "D has not reported yet")
	l.AddResult("D", regression.Fail)

	require.True(t, l.Done())
	assert.Equal(t, []regression.RegressionPoint{{Target: "E", RegressionPoint: "D"}}, l.Results())
	assert.Equal(t, []string{"B"}, l.Interrupts(), "B is now redundant: C already supersedes it as the known-valid boundary")
}

// TestLinearSearch_SkipIsTransparent checks that a Skip result does not
// block the forward scan from concluding once the Fail boundary is known.
func TestLinearSearch_SkipIsTransparent(t *testing.T) {
	path := []string{"A", "B", "C", "D", "E"}
	l := NewLinearSearch(path)

	d := l.NextJob(1, 1)
	require.Equal(t, "D", d.Hash)
	c := l.NextJob(1, 1)
	require.Equal(t, "C", c.Hash)
	b := l.NextJob(1, 1)
	require.Equal(t, "B", b.Hash)

	l.AddResult("D", regression.Fail)
	assert.False(t, l.Done(), "B is still unknown, so the scan cannot reach D yet")
	l.AddResult("C", regression.Skip)
	assert.False(t, l.Done(), "B is still unknown")
	l.AddResult("B", regression.Pass)

	require.True(t, l.Done())
	assert.Equal(t, []regression.RegressionPoint{{Target: "E", RegressionPoint: "D"}}, l.Results())
}
