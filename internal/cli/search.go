package cli

import (
	"strings"

	"github.com/apfelbeet/crs/internal/adag"
	"github.com/apfelbeet/crs/internal/bisect"
	crserrors "github.com/apfelbeet/crs/internal/errors"
	"github.com/apfelbeet/crs/internal/interval"
	"github.com/apfelbeet/crs/internal/pathselect"
	"github.com/apfelbeet/crs/internal/regression"
	"github.com/apfelbeet/crs/internal/rpa"
	"github.com/apfelbeet/crs/internal/rpaext"
)

// buildAlgorithm constructs the regression.RegressionAlgorithm named by
// mode over graph. mode is one of exrpa-{long,short}-{bin,lin,mul} or
// bisect; crsconfig.Validate has already rejected anything else by the
// time this runs, but an unrecognized mode is handled defensively rather
// than assumed impossible.
func buildAlgorithm(mode string, graph *adag.Adag[struct{}], propagate, extended bool) (regression.RegressionAlgorithm, error) {
	if mode == "bisect" {
		return bisect.New(graph), nil
	}

	parts := strings.Split(mode, "-")
	if len(parts) != 3 || parts[0] != "exrpa" {
		return nil, crserrors.UnknownSearchMode(mode)
	}

	var pathSel pathselect.PathSelection
	switch parts[1] {
	case "long":
		pathSel = pathselect.LongestPath{}
	case "short":
		pathSel = pathselect.ShortestPath{}
	default:
		return nil, crserrors.UnknownSearchMode(mode)
	}

	newSearch, err := newSearchFuncFor(parts[2], mode)
	if err != nil {
		return nil, err
	}

	settings := rpa.Settings{Propagate: propagate, ExtendedSearch: extended}
	return rpa.New(graph, settings, pathSel, newSearch), nil
}

func newSearchFuncFor(kind, mode string) (rpaext.NewSearchFunc, error) {
	switch kind {
	case "bin":
		return func(path []string) regression.PathAlgorithm {
			return interval.NewBinarySearch(path)
		}, nil
	case "lin":
		return func(path []string) regression.PathAlgorithm {
			return interval.NewLinearSearch(path)
		}, nil
	case "mul":
		return func(path []string) regression.PathAlgorithm {
			return interval.NewMultiplyingSearch(path)
		}, nil
	default:
		return nil, crserrors.UnknownSearchMode(mode)
	}
}
