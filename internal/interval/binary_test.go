package interval

import (
	"testing"

	"github.com/apfelbeet/crs/internal/regression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBinarySearch_LinearPassFail drives a single uniform-sample round to
// completion and checks the regression point lands on the first Fail
// commit, with every strict predecessor on the path resolved Pass.
func TestBinarySearch_LinearPassFail(t *testing.T) {
	path := []string{"A", "B", "C", "D", "E"}
	b := NewBinarySearch(path)
	require.False(t, b.Done())

	oracle := map[string]regression.TestResult{
		"B": regression.Pass,
		"C": regression.Pass,
		"D": regression.Fail,
	}

	for !b.Done() {
		resp := b.NextJob(3, 3)
		require.Equal(t, regression.Job, resp.Kind, "unexpected response: %+v", resp)
		res, ok := oracle[resp.Hash]
		require.True(t, ok, "no oracle result for %s", resp.Hash)
		b.AddResult(resp.Hash, res)
	}

	require.True(t, b.Done())
	assert.Equal(t, []regression.RegressionPoint{{Target: "E", RegressionPoint: "D"}}, b.Results())
}

// TestBinarySearch_SkipIsTransparent checks that a Skip result neither
// advances the known-Pass boundary nor blocks the forward scan from seeing
// a Fail result recorded further along.
func TestBinarySearch_SkipIsTransparent(t *testing.T) {
	path := []string{"A", "M1", "M2", "M3", "E"}
	b := NewBinarySearch(path)

	// One round samples M1, M2 and M3.
	for i := 0; i < 3; i++ {
		resp := b.NextJob(3, 3)
		require.Equal(t, regression.Job, resp.Kind, "unexpected response: %+v", resp)
	}

	// Deliver in reverse path order: the Fail arrives before the Skip and
	// the Pass that precede it on the path.
	b.AddResult("M3", regression.Fail)
	assert.False(t, b.Done(), "must wait for M1/M2 before concluding")
	b.AddResult("M2", regression.Skip)
	assert.False(t, b.Done(), "must still wait for M1")
	b.AddResult("M1", regression.Pass)

	require.True(t, b.Done())
	assert.Equal(t, []regression.RegressionPoint{{Target: "E", RegressionPoint: "M3"}}, b.Results())
}

// TestBinarySearch_LowestCaptureSurvivesOutOfOrderArrival reproduces the
// exact counter-example that used to downgrade the best-known Pass: C is
// recorded first as the best Pass, then a lower-path-index commit (A)
// reports Pass afterward. C, being the higher-index Pass, must remain the
// boundary.
func TestBinarySearch_LowestCaptureSurvivesOutOfOrderArrival(t *testing.T) {
	path := []string{"L", "A", "B", "C", "R"}
	b := NewBinarySearch(path)

	// One round samples A, B and C.
	for i := 0; i < 3; i++ {
		resp := b.NextJob(3, 3)
		require.Equal(t, regression.Job, resp.Kind, "unexpected response: %+v", resp)
	}

	b.AddResult("C", regression.Pass)
	b.AddResult("A", regression.Pass)
	b.AddResult("B", regression.Pass)

	require.True(t, b.Done())
	// Had the bug survived, lowest would have been downgraded to A and the
	// search would have finalized on a Pass commit instead of R.
	assert.Equal(t, []regression.RegressionPoint{{Target: "R", RegressionPoint: "R"}}, b.Results())
}

// TestBinarySearch_InterruptsInFlightSamples exercises a round where the
// Fail boundary is found before every dispatched sample has reported: the
// still-pending sample must be drained into Interrupts rather than waited
// on, and the round must conclude without it.
func TestBinarySearch_InterruptsInFlightSamples(t *testing.T) {
	path := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	b := NewBinarySearch(path)

	var dispatched []string
	for len(dispatched) < 3 {
		resp := b.NextJob(3, 3)
		require.Equal(t, regression.Job, resp.Kind, "unexpected response: %+v", resp)
		dispatched = append(dispatched, resp.Hash)
	}
	require.ElementsMatch(t, []string{"C", "E", "F"}, dispatched)

	// A (idx0) .. D (idx3) pass, E (idx4) .. H (idx7) fail.
	b.AddResult("C", regression.Pass)
	assert.False(t, b.Done())
	b.AddResult("E", regression.Fail)

	// F was still in flight when the round concluded on E.
	assert.Equal(t, []string{"F"}, b.Interrupts())
	assert.Empty(t, b.Interrupts(), "Interrupts must drain its buffer")
	assert.False(t, b.Done(), "C..E still spans D, one more round is needed")

	// Second round narrows C..E down to D.
	resp := b.NextJob(3, 3)
	require.Equal(t, regression.Job, resp.Kind)
	require.Equal(t, "D", resp.Hash)
	b.AddResult("D", regression.Pass)

	require.True(t, b.Done())
	assert.Equal(t, []regression.RegressionPoint{{Target: "H", RegressionPoint: "E"}}, b.Results())
	assert.Empty(t, b.Interrupts())
}
