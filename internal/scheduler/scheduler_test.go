package scheduler

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/apfelbeet/crs/internal/adag"
	"github.com/apfelbeet/crs/internal/dvcs"
	"github.com/apfelbeet/crs/internal/regression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDVCS is an in-memory dvcs.DVCS double: CreateWorktree hands out a
// unique path per call, Checkout/Distance never touch disk.
type fakeDVCS struct {
	mu           sync.Mutex
	created      int
	removed      int
	distanceFunc func(from, to string) int
}

var _ dvcs.DVCS = (*fakeDVCS)(nil)

func (f *fakeDVCS) CommitGraph(context.Context, []string, []string) (*adag.Adag[struct{}], error) {
	return adag.New[struct{}](), nil
}

func (f *fakeDVCS) CreateWorktree(_ context.Context, name, _ string) (dvcs.Worktree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return dvcs.Worktree{Location: "/tmp/" + name, Name: name}, nil
}

func (f *fakeDVCS) RemoveWorktree(context.Context, dvcs.Worktree) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed++
	return nil
}

func (f *fakeDVCS) Checkout(context.Context, dvcs.Worktree, string) error { return nil }

func (f *fakeDVCS) GetCommitInfo(context.Context, string) (dvcs.CommitInfo, error) {
	return "", nil
}

func (f *fakeDVCS) Distance(_ context.Context, from, to string) (int, error) {
	if f.distanceFunc != nil {
		return f.distanceFunc(from, to), nil
	}
	return 0, nil
}

// fakeAlgorithm is a scripted regression.RegressionAlgorithm: it serves a
// fixed job queue and records every AddResult call.
type fakeAlgorithm struct {
	mu       sync.Mutex
	jobs     []string
	inFlight map[string]bool
	recorded []regression.TestResult
}

var _ regression.RegressionAlgorithm = (*fakeAlgorithm)(nil)

func newFakeAlgorithm(jobs []string) *fakeAlgorithm {
	return &fakeAlgorithm{jobs: jobs, inFlight: make(map[string]bool)}
}

func (a *fakeAlgorithm) AddResult(commit string, result regression.TestResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, commit)
	a.recorded = append(a.recorded, result)
}

func (a *fakeAlgorithm) NextJob(capacity, _ int) regression.AlgorithmResponse {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.jobs) == 0 {
		if len(a.inFlight) == 0 {
			return regression.ErrorResponse("no jobs and nothing in flight")
		}
		return regression.WaitResponse()
	}
	job := a.jobs[0]
	a.jobs = a.jobs[1:]
	a.inFlight[job] = true
	return regression.JobResponse(job)
}

func (a *fakeAlgorithm) Interrupts() []string { return nil }

func (a *fakeAlgorithm) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.jobs) == 0 && len(a.inFlight) == 0
}

func (a *fakeAlgorithm) Results() []regression.RegressionPoint { return nil }

// fakeRunner always reports Pass immediately.
type fakeRunner struct{}

func (fakeRunner) Run(_ context.Context, _ dvcs.Worktree, commit string, _ <-chan struct{}) JobResult {
	return JobResult{Commit: commit, Result: regression.Pass}
}

func TestPool_RunsEveryJobToCompletion(t *testing.T) {
	alg := newFakeAlgorithm([]string{"c1", "c2", "c3"})
	d := &fakeDVCS{}
	var buf bytes.Buffer

	pool := New(d, alg, fakeRunner{}, Settings{MaxWorkers: 2}, &buf)
	require.NoError(t, pool.Run(context.Background()))

	require.Len(t, alg.recorded, 3)
	for _, r := range alg.recorded {
		assert.Equal(t, regression.Pass, r)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Equal(t, d.created, d.removed, "every created worktree should be removed on shutdown")
	assert.LessOrEqual(t, d.created, 2, "never spawns more workers than MaxWorkers")
}

func TestPool_ZeroMaxWorkersClampsToOne(t *testing.T) {
	alg := newFakeAlgorithm([]string{"c1"})
	d := &fakeDVCS{}
	pool := New(d, alg, fakeRunner{}, Settings{MaxWorkers: 0}, &bytes.Buffer{})
	assert.Equal(t, 1, pool.settings.MaxWorkers)
	require.NoError(t, pool.Run(context.Background()))
}

func TestPool_QueriesDistanceWhenReusingIdleWorker(t *testing.T) {
	alg := newFakeAlgorithm([]string{"c1", "c2"})
	var distanceCalls []string
	d := &fakeDVCS{
		distanceFunc: func(from, to string) int {
			distanceCalls = append(distanceCalls, from+"->"+to)
			if from == "c1" {
				return 0
			}
			return 100
		},
	}
	pool := New(d, alg, fakeRunner{}, Settings{MaxWorkers: 1}, &bytes.Buffer{})
	require.NoError(t, pool.Run(context.Background()))
	assert.NotEmpty(t, distanceCalls, "a single worker reused for a second job should query distance")
}
