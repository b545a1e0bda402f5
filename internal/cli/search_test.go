package cli

import (
	"testing"

	"github.com/apfelbeet/crs/internal/adag"
	"github.com/apfelbeet/crs/internal/bisect"
	"github.com/apfelbeet/crs/internal/rpa"
)

func threeCommitGraph() *adag.Adag[struct{}] {
	g := adag.New[struct{}]()
	source := g.AddNode("aaa", struct{}{})
	middle := g.AddNode("bbb", struct{}{})
	target := g.AddNode("ccc", struct{}{})
	g.AddEdge(source, middle)
	g.AddEdge(middle, target)
	g.Sources = []adag.NodeID{source}
	g.Targets = []adag.NodeID{target}
	return g
}

func TestBuildAlgorithm_ExrpaModes(t *testing.T) {
	modes := []string{
		"exrpa-long-bin", "exrpa-long-lin", "exrpa-long-mul",
		"exrpa-short-bin", "exrpa-short-lin", "exrpa-short-mul",
	}
	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			alg, err := buildAlgorithm(mode, threeCommitGraph(), true, true)
			if err != nil {
				t.Fatalf("buildAlgorithm(%q) error: %v", mode, err)
			}
			if _, ok := alg.(*rpa.RPA); !ok {
				t.Errorf("buildAlgorithm(%q) = %T, want *rpa.RPA", mode, alg)
			}
		})
	}
}

func TestBuildAlgorithm_Bisect(t *testing.T) {
	alg, err := buildAlgorithm("bisect", threeCommitGraph(), true, true)
	if err != nil {
		t.Fatalf("buildAlgorithm(bisect) error: %v", err)
	}
	if _, ok := alg.(*bisect.Bisect); !ok {
		t.Errorf("buildAlgorithm(bisect) = %T, want *bisect.Bisect", alg)
	}
}

func TestBuildAlgorithm_UnknownMode(t *testing.T) {
	if _, err := buildAlgorithm("not-a-mode", threeCommitGraph(), true, true); err == nil {
		t.Fatal("expected an error for an unrecognized search mode")
	}
	if _, err := buildAlgorithm("exrpa-long-bogus", threeCommitGraph(), true, true); err == nil {
		t.Fatal("expected an error for an unrecognized interval search kind")
	}
	if _, err := buildAlgorithm("exrpa-sideways-bin", threeCommitGraph(), true, true); err == nil {
		t.Fatal("expected an error for an unrecognized path selection")
	}
}
