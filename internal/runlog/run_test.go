package runlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apfelbeet/crs/internal/regression"
)

func TestNewRun_WritesArgumentsAndHeader(t *testing.T) {
	base := t.TempDir()

	run, err := NewRun(base, ArgsSummary{
		Repository: "/repo",
		Test:       "./test.sh",
		Processes:  4,
		Propagate:  true,
		SearchMode: "exrpa-long-bin",
		Sources:    []string{"aaa"},
		Targets:    []string{"bbb"},
	})
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	argsPath := filepath.Join(run.Dir(), "arguments")
	content, err := os.ReadFile(argsPath)
	if err != nil {
		t.Fatalf("reading arguments file: %v", err)
	}
	if !strings.Contains(string(content), "repository: /repo") {
		t.Errorf("arguments file missing repository line: %s", content)
	}
	if !strings.Contains(string(content), "processes: 4") {
		t.Errorf("arguments file missing processes line: %s", content)
	}

	queriesPath := filepath.Join(run.Dir(), "queries")
	queries, err := os.ReadFile(queriesPath)
	if err != nil {
		t.Fatalf("reading queries file: %v", err)
	}
	if !strings.HasPrefix(string(queries), queriesHeader+"\n") {
		t.Errorf("queries file missing header, got: %s", queries)
	}
}

func TestRun_RecordJobAndFinish(t *testing.T) {
	base := t.TempDir()
	run, err := NewRun(base, ArgsSummary{Processes: 1})
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	if err := run.RecordJob(1, "aaa", regression.Pass, 2*time.Second, time.Second, time.Second); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}
	if err := run.RecordJob(2, "bbb", regression.Fail, 3*time.Second, time.Second, 2*time.Second); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}

	points := []regression.RegressionPoint{{Target: "bbb", RegressionPoint: "bbb"}}
	if err := run.Finish(10*time.Second, points); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(run.Dir(), "queries"))
	if err != nil {
		t.Fatalf("reading queries file: %v", err)
	}
	text := string(content)
	for _, want := range []string{"1,aaa,Pass", "2,bbb,Fail", "regression point,target", "bbb,bbb", "overall execution time"} {
		if !strings.Contains(text, want) {
			t.Errorf("queries file missing %q, got:\n%s", want, text)
		}
	}
}

func TestRun_JobOutputTimestampsLines(t *testing.T) {
	base := t.TempDir()
	run, err := NewRun(base, ArgsSummary{})
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	stdout, stderr, err := run.JobOutput("deadbeef")
	if err != nil {
		t.Fatalf("JobOutput: %v", err)
	}
	if _, err := stdout.Write([]byte("building\n")); err != nil {
		t.Fatalf("writing stdout: %v", err)
	}
	if err := stdout.Close(); err != nil {
		t.Fatalf("closing stdout: %v", err)
	}
	if err := stderr.Close(); err != nil {
		t.Fatalf("closing stderr: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(run.Dir(), "output", "deadbeef_stdout"))
	if err != nil {
		t.Fatalf("reading stdout capture: %v", err)
	}
	if !strings.Contains(string(content), "building") {
		t.Errorf("stdout capture missing written line, got: %s", content)
	}
	if !strings.HasPrefix(string(content), "[") {
		t.Errorf("stdout capture line not timestamp-prefixed: %s", content)
	}
}

func TestRun_IterationWriterNumbersSequentially(t *testing.T) {
	base := t.TempDir()
	run, err := NewRun(base, ArgsSummary{})
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	if err := run.IterationWriter("bisect", "tree 1"); err != nil {
		t.Fatalf("IterationWriter: %v", err)
	}
	if err := run.IterationWriter("bisect", "tree 2"); err != nil {
		t.Fatalf("IterationWriter: %v", err)
	}

	first, err := os.ReadFile(filepath.Join(run.Dir(), "bisect", "0001"))
	if err != nil {
		t.Fatalf("reading first iteration file: %v", err)
	}
	if string(first) != "tree 1" {
		t.Errorf("first iteration file = %q, want %q", first, "tree 1")
	}

	second, err := os.ReadFile(filepath.Join(run.Dir(), "bisect", "0002"))
	if err != nil {
		t.Fatalf("reading second iteration file: %v", err)
	}
	if string(second) != "tree 2" {
		t.Errorf("second iteration file = %q, want %q", second, "tree 2")
	}
}
