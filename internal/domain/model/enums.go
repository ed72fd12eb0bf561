package model

// DecisionResult is the verdict emitted by an oracle.
type DecisionResult string

const (
	DecisionPass  DecisionResult = "pass"
	DecisionFail  DecisionResult = "fail"
	DecisionSkip  DecisionResult = "skip"
	DecisionError DecisionResult = "error"
)

// RequirementStatus is the verdict recorded for a single requirement.
type RequirementStatus string

const (
	RequirementPass    RequirementStatus = "pass"
	RequirementFail    RequirementStatus = "fail"
	RequirementUnknown RequirementStatus = "unknown"
	RequirementSkip    RequirementStatus = "skip"
)

// SignalSource names the signal that decided a run's test status.
type SignalSource string

const (
	SignalPassRate            SignalSource = "pass_rate"
	SignalCounts              SignalSource = "counts"
	SignalDecisions           SignalSource = "decisions"
	SignalStatus              SignalSource = "status"
	SignalRequirementCoverage SignalSource = "requirement_coverage"
	SignalNone                SignalSource = "none"
)
