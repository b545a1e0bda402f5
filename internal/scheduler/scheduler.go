// Package scheduler implements the worker-pool coordinator: a
// single-threaded coordinator drives a
// regression.RegressionAlgorithm, dispatching its Job responses onto a
// bounded pool of per-worktree workers and feeding completed results
// back in. Each worker owns exactly one dvcs.Worktree for its lifetime;
// idle workers are reused for the next job by picking whichever one
// minimizes DVCS.Distance to the next commit, so checkouts stay cheap.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/apfelbeet/crs/internal/dvcs"
	"github.com/apfelbeet/crs/internal/regression"
	"golang.org/x/sync/errgroup"
)

// JobResult is what a worker reports back to the coordinator once a job
// finishes, crashes, or is interrupted.
type JobResult struct {
	Commit string
	Result regression.TestResult
	// WorkerID identifies which of the pool's workers ran this job.
	WorkerID int
	// Setup is the time from job assignment to the post-checkout point;
	// Query is the test script's own run time; Total is Setup+Query plus
	// any scheduling overhead.
	Setup, Query, Total time.Duration
	// Interrupted is true if the job was cancelled before or during the
	// test run rather than completing normally.
	Interrupted bool
	// Err is non-nil for a DVCS failure (checkout) or a fatal exit code;
	// either aborts the whole run.
	Err error
}

// Runner executes the user's test script against a single commit inside
// a worktree. The default implementation (ProcessRunner) checks out
// the commit and spawns the script as a child process; tests substitute
// a fake.
type Runner interface {
	Run(ctx context.Context, wt dvcs.Worktree, commit string, cancel <-chan struct{}) JobResult
}

// Settings configures the pool.
type Settings struct {
	// MaxWorkers bounds the number of worktrees (and concurrently
	// running test scripts) the pool will ever create.
	MaxWorkers int
	// WorktreeLocation is passed to DVCS.CreateWorktree for every
	// worker; empty means "let the DVCS implementation choose".
	WorktreeLocation string
	// Interrupt enables sending cancellation signals to workers whose
	// job the algorithm no longer needs.
	// When false, Pool.Run never calls RegressionAlgorithm.Interrupts.
	Interrupt bool
}

type workerResponse struct {
	workerID int
	result   JobResult
}

type worker struct {
	id       int
	wt       dvcs.Worktree
	commit   string // commit this worker is currently checked out to, best-effort
	cancel   chan struct{}
}

// Pool drives alg to completion, dispatching its jobs across a bounded
// set of workers.
type Pool struct {
	dvcs     dvcs.DVCS
	alg      regression.RegressionAlgorithm
	runner   Runner
	settings Settings
	out      io.Writer

	results       chan workerResponse
	idle          []*worker
	active        map[int]*worker
	nextID        int
	emptySlots    int
	jobToWorkerID map[string]int

	// OnResult, if set, is called with every job result the moment it is
	// applied to the algorithm (including interrupted and errored jobs,
	// before the error aborts the run). Callers use this to write the
	// run log and update a live progress display without the scheduler
	// needing to know either concern exists.
	OnResult func(JobResult)
}

// New builds a Pool ready to run.
func New(d dvcs.DVCS, alg regression.RegressionAlgorithm, runner Runner, settings Settings, out io.Writer) *Pool {
	if settings.MaxWorkers < 1 {
		settings.MaxWorkers = 1
	}
	return &Pool{
		dvcs:          d,
		alg:           alg,
		runner:        runner,
		settings:      settings,
		out:           out,
		results:       make(chan workerResponse, settings.MaxWorkers),
		active:        make(map[int]*worker),
		emptySlots:    settings.MaxWorkers,
		jobToWorkerID: make(map[string]int),
	}
}

// Run drives the main loop to completion: dispatching jobs, absorbing
// results, propagating interrupts, and finally tearing down every idle
// worktree. It returns the first fatal error encountered (an
// InternalError response, or a worker's fatal exit code); partial
// results are still available from alg.Results() even on error.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.settings.MaxWorkers)
	defer func() {
		wg.Wait()
	}()

	for !p.alg.Done() {
		capacity := len(p.idle) + p.emptySlots
		resp := p.alg.NextJob(capacity, p.settings.MaxWorkers)

		wait := false
		switch resp.Kind {
		case regression.Job:
			w, err := p.acquireWorker(ctx, resp.Hash)
			if err != nil {
				return fmt.Errorf("scheduler: acquiring worker: %w", err)
			}
			p.active[w.id] = w
			p.jobToWorkerID[resp.Hash] = w.id
			wg.Add(1)
			g.Go(func() error {
				defer wg.Done()
				result := p.runner.Run(gctx, w.wt, resp.Hash, w.cancel)
				result.WorkerID = w.id
				w.commit = resp.Hash
				p.results <- workerResponse{workerID: w.id, result: result}
				return nil
			})
		case regression.WaitForResult:
			wait = true
			if len(p.active) == 0 {
				return fmt.Errorf("scheduler: algorithm requested a wait with no active workers")
			}
		case regression.InternalError:
			return fmt.Errorf("scheduler: %s", resp.Msg)
		}

		if wait || (len(p.idle) == 0 && p.emptySlots == 0) {
			if err := p.absorbOne(); err != nil {
				return err
			}
		}

		if err := p.drainReady(); err != nil {
			return err
		}

		if p.settings.Interrupt {
			p.sendInterrupts()
		}
	}

	for len(p.active) > 0 {
		if err := p.absorbOne(); err != nil {
			return err
		}
	}

	for _, w := range p.idle {
		if err := p.dvcs.RemoveWorktree(ctx, w.wt); err != nil {
			fmt.Fprintf(p.out, "scheduler: removing worktree %s: %v\n", w.wt.Name, err)
		}
	}

	return nil
}

// acquireWorker reuses the idle worker whose worktree is closest to
// commit, or spawns a fresh one if none is idle but a slot remains.
func (p *Pool) acquireWorker(ctx context.Context, commit string) (*worker, error) {
	if len(p.idle) > 0 {
		best := 0
		bestDistance := -1
		for i, w := range p.idle {
			from := w.commit
			if from == "" {
				from = commit
			}
			d, err := p.dvcs.Distance(ctx, from, commit)
			if err != nil {
				return nil, err
			}
			if bestDistance < 0 || d < bestDistance {
				bestDistance = d
				best = i
			}
		}
		w := p.idle[best]
		p.idle = append(p.idle[:best], p.idle[best+1:]...)
		return w, nil
	}

	if p.emptySlots == 0 {
		return nil, fmt.Errorf("no free worker slot")
	}

	id := p.nextID
	p.nextID++
	p.emptySlots--

	wt, err := p.dvcs.CreateWorktree(ctx, fmt.Sprintf("%d", id), p.settings.WorktreeLocation)
	if err != nil {
		return nil, fmt.Errorf("creating worktree for worker %d: %w", id, err)
	}

	return &worker{id: id, wt: wt, cancel: make(chan struct{}, 1)}, nil
}

// absorbOne blocks for exactly one result, applies it, and moves the
// worker back to idle.
func (p *Pool) absorbOne() error {
	resp, ok := <-p.results
	if !ok {
		return fmt.Errorf("scheduler: results channel closed unexpectedly")
	}
	return p.apply(resp)
}

// drainReady absorbs every result already waiting without blocking.
func (p *Pool) drainReady() error {
	for {
		select {
		case resp := <-p.results:
			if err := p.apply(resp); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (p *Pool) apply(resp workerResponse) error {
	w, ok := p.active[resp.workerID]
	if !ok {
		return nil
	}
	delete(p.active, resp.workerID)
	delete(p.jobToWorkerID, resp.result.Commit)
	p.idle = append(p.idle, w)

	if p.OnResult != nil {
		p.OnResult(resp.result)
	}

	if resp.result.Err != nil {
		return fmt.Errorf("worker %d on %s: %w", w.id, resp.result.Commit, resp.result.Err)
	}
	if resp.result.Interrupted {
		return nil
	}
	p.alg.AddResult(resp.result.Commit, resp.result.Result)
	return nil
}

func (p *Pool) sendInterrupts() {
	for _, hash := range p.alg.Interrupts() {
		id, ok := p.jobToWorkerID[hash]
		if !ok {
			continue
		}
		w, ok := p.active[id]
		if !ok {
			continue
		}
		select {
		case w.cancel <- struct{}{}:
		default:
		}
	}
}
