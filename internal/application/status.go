package application

import (
	"strings"

	"github.com/ericfisherdev/mirror/internal/domain/model"
)

// DeriveTestStatus computes the "tests passed" verdict of a run. Signals are
// evaluated in a fixed priority order and the first one present decides:
//
//  1. pass_rate: passed iff pass_rate >= 1
//  2. passed/total counts: passed iff passed == total
//  3. decisions: passed iff every result is "pass" (case-insensitive)
//  4. status string: passed iff it equals "passed" (case-insensitive)
//  5. requirement coverage exactly 1: passed (heuristic, weakest signal)
//
// With no signal at all the run is reported as not passed.
func DeriveTestStatus(s model.StatusSignals) model.TestStatus {
	if s.PassRate != nil {
		return model.TestStatus{Passed: *s.PassRate >= 1, Source: model.SignalPassRate}
	}

	if s.Passed != nil && s.Total != nil {
		return model.TestStatus{Passed: *s.Passed == *s.Total, Source: model.SignalCounts}
	}

	if len(s.DecisionResults) > 0 {
		return model.TestStatus{Passed: allPass(s.DecisionResults), Source: model.SignalDecisions}
	}

	if s.Status != nil {
		return model.TestStatus{Passed: strings.EqualFold(*s.Status, "passed"), Source: model.SignalStatus}
	}

	// Unreliable on its own; kept last so any explicit signal overrides it.
	if s.RequirementCoverage != nil && *s.RequirementCoverage == 1 {
		return model.TestStatus{Passed: true, Source: model.SignalRequirementCoverage}
	}

	return model.TestStatus{Passed: false, Source: model.SignalNone}
}

func allPass(results []string) bool {
	for _, r := range results {
		if !strings.EqualFold(r, string(model.DecisionPass)) {
			return false
		}
	}
	return true
}

// DecisionResults returns the raw result strings of the given decisions.
func DecisionResults(decisions []model.Decision) []string {
	results := make([]string, 0, len(decisions))
	for _, d := range decisions {
		results = append(results, string(d.Result))
	}
	return results
}
