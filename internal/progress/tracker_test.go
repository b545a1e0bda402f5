package progress

import "testing"

func TestTracker_Render(t *testing.T) {
	tests := map[string]struct {
		total      int
		passed     int
		failed     int
		skipped    int
		running    int
		wantRender string
	}{
		"initial state": {
			total:      5,
			wantRender: "0/5 tested (0 running, 5 pending)",
		},
		"partial completion": {
			total:      5,
			passed:     2,
			running:    1,
			wantRender: "2/5 tested (1 running, 2 pending)",
		},
		"with failures": {
			total:      5,
			passed:     2,
			failed:     1,
			skipped:    1,
			wantRender: "4/5 tested (0 running, 1 pending)",
		},
		"all tested": {
			total:      3,
			passed:     3,
			wantRender: "3/3 tested (0 running, 0 pending)",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tr := NewTracker(tt.total)

			for i := 0; i < tt.passed; i++ {
				tr.MarkRunning()
				tr.MarkPassed()
			}
			for i := 0; i < tt.failed; i++ {
				tr.MarkRunning()
				tr.MarkFailed()
			}
			for i := 0; i < tt.skipped; i++ {
				tr.MarkRunning()
				tr.MarkSkipped()
			}
			for i := 0; i < tt.running; i++ {
				tr.MarkRunning()
			}

			if got := tr.Stats().Render(); got != tt.wantRender {
				t.Errorf("Render() = %q, want %q", got, tt.wantRender)
			}
		})
	}
}

func TestTracker_OnChangeFiresOnEveryTransition(t *testing.T) {
	tr := NewTracker(2)
	var snapshots []Stats
	tr.OnChange(func(s Stats) { snapshots = append(snapshots, s) })

	tr.MarkRunning()
	tr.MarkPassed()
	tr.MarkRunning()
	tr.MarkFailed()

	if len(snapshots) != 4 {
		t.Fatalf("got %d snapshots, want 4", len(snapshots))
	}
	last := snapshots[len(snapshots)-1]
	if !last.IsComplete() {
		t.Errorf("expected final snapshot to be complete, got %+v", last)
	}
}
