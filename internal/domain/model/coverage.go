package model

// Coverage holds the four coverage ratios of a run. A nil ratio was not
// reported by the producer.
type Coverage struct {
	Requirement   *float64             `json:"requirement,omitempty"`
	Temporal      *float64             `json:"temporal,omitempty"`
	Interface     *float64             `json:"interface,omitempty"`
	Risk          *float64             `json:"risk,omitempty"`
	ByRequirement []RequirementVerdict `json:"by_requirement,omitempty"`
}

// Ratio keys in the order they are validated and displayed.
const (
	RatioRequirement = "requirement"
	RatioTemporal    = "temporal"
	RatioInterface   = "interface"
	RatioRisk        = "risk"
)

// RatioKeys lists the coverage ratio keys.
var RatioKeys = []string{RatioRequirement, RatioTemporal, RatioInterface, RatioRisk}

// Ratio returns the ratio stored under key, or nil when absent or unknown.
func (c Coverage) Ratio(key string) *float64 {
	switch key {
	case RatioRequirement:
		return c.Requirement
	case RatioTemporal:
		return c.Temporal
	case RatioInterface:
		return c.Interface
	case RatioRisk:
		return c.Risk
	}
	return nil
}

// RequirementVerdict is the verdict recorded for one requirement in a run.
type RequirementVerdict struct {
	RequirementID string            `json:"id"`
	Result        RequirementStatus `json:"result"`
}

// RunRequirement is the stored denormalization of a requirement verdict.
type RunRequirement struct {
	RunID         int64
	RequirementID string
	Status        RequirementStatus
}

// RequirementSpec describes a tracked requirement of a project: which module
// and interface it belongs to and how much risk weight it carries.
type RequirementSpec struct {
	RequirementID string
	Module        string
	Interface     string
	RiskWeight    float64
}

// ModuleCoverage is the coverage rollup for one (module, interface) pair.
type ModuleCoverage struct {
	Module        string
	Interface     string
	TotalReqs     int
	CoveredReqs   int
	CoveredWeight float64
	TotalWeight   float64
	Coverage      float64
	RiskWeighted  float64
}
