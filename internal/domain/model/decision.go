package model

// Decision is one oracle's verdict on one run.
type Decision struct {
	Oracle    string
	Result    DecisionResult
	Satisfies []string
	Evidence  []string
	Message   string
}
