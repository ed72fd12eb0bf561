package driven

import "context"

// CommitState is the state of a commit status.
type CommitState string

const (
	CommitStateSuccess CommitState = "success"
	CommitStateFailure CommitState = "failure"
)

// CommitStatus is a single status attached to a commit on the code host.
type CommitStatus struct {
	Context     string
	State       CommitState
	Description string
	TargetURL   string
}

// CommitStatusPublisher defines the driven port for reporting run verdicts
// back to the code host.
type CommitStatusPublisher interface {
	PublishCommitStatus(ctx context.Context, repoFullName, commitSHA string, status CommitStatus) error
}
