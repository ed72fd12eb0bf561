package application

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ericfisherdev/mirror/internal/domain/model"
)

// UnassignedModule groups requirements that have no catalog entry.
const UnassignedModule = "unassigned"

// Ratio returns num/den, or 0 when den is 0.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// FormatPercent renders a ratio as a whole-percent string, e.g. 0.856 -> "86%".
// Halves round up. Display only; comparisons use the unrounded value.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%d%%", int(math.Floor(v*100+0.5)))
}

// CoveredRequirements returns the set of requirement IDs covered in a run: a
// requirement is covered when its recorded verdict is pass or when at least
// one passing decision lists it in satisfies.
func CoveredRequirements(verdicts []model.RunRequirement, decisions []model.Decision) map[string]bool {
	covered := make(map[string]bool)
	for _, v := range verdicts {
		if v.Status == model.RequirementPass {
			covered[v.RequirementID] = true
		}
	}
	for _, d := range decisions {
		if !isPass(d.Result) {
			continue
		}
		for _, id := range d.Satisfies {
			covered[id] = true
		}
	}
	return covered
}

// TrackedRequirements merges the project catalog with every requirement the
// run mentions. Requirements without a catalog entry fall into
// UnassignedModule with weight 1.
func TrackedRequirements(catalog []model.RequirementSpec, verdicts []model.RunRequirement, decisions []model.Decision) []model.RequirementSpec {
	seen := make(map[string]bool, len(catalog))
	tracked := make([]model.RequirementSpec, 0, len(catalog))
	for _, spec := range catalog {
		if seen[spec.RequirementID] {
			continue
		}
		seen[spec.RequirementID] = true
		tracked = append(tracked, spec)
	}

	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		tracked = append(tracked, model.RequirementSpec{RequirementID: id, Module: UnassignedModule, RiskWeight: 1})
	}
	for _, v := range verdicts {
		add(v.RequirementID)
	}
	for _, d := range decisions {
		for _, id := range d.Satisfies {
			add(id)
		}
	}
	return tracked
}

type moduleKey struct {
	module string
	iface  string
}

// AggregateModuleCoverage rolls requirement coverage up per (module, interface).
// Weights are taken as given, so a row whose weights are all 0 has a
// risk-weighted coverage of 0. Rows are ordered by module, then interface.
func AggregateModuleCoverage(specs []model.RequirementSpec, covered map[string]bool) []model.ModuleCoverage {
	rows := make(map[moduleKey]*model.ModuleCoverage)
	for _, spec := range specs {
		key := moduleKey{module: spec.Module, iface: spec.Interface}
		row, ok := rows[key]
		if !ok {
			row = &model.ModuleCoverage{Module: spec.Module, Interface: spec.Interface}
			rows[key] = row
		}

		weight := spec.RiskWeight
		row.TotalReqs++
		row.TotalWeight += weight
		if covered[spec.RequirementID] {
			row.CoveredReqs++
			row.CoveredWeight += weight
		}
	}

	result := make([]model.ModuleCoverage, 0, len(rows))
	for _, row := range rows {
		row.Coverage = Ratio(float64(row.CoveredReqs), float64(row.TotalReqs))
		row.RiskWeighted = Ratio(row.CoveredWeight, row.TotalWeight)
		result = append(result, *row)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Module != result[j].Module {
			return result[i].Module < result[j].Module
		}
		return result[i].Interface < result[j].Interface
	})

	return result
}

func isPass(r model.DecisionResult) bool {
	return strings.EqualFold(string(r), string(model.DecisionPass))
}
