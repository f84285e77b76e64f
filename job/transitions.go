package job

import "fmt"

// ApplicationStatus values mirror the applications.status check constraint.
//
//	pending ──► accepted ──► in-progress ──► completed
//	   │
//	   └──► rejected
//
// rejected and completed are terminal.
type ApplicationStatus string

const (
	ApplicationPending    ApplicationStatus = "pending"
	ApplicationAccepted   ApplicationStatus = "accepted"
	ApplicationRejected   ApplicationStatus = "rejected"
	ApplicationInProgress ApplicationStatus = "in-progress"
	ApplicationCompleted  ApplicationStatus = "completed"
)

var validTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationPending:    {ApplicationAccepted, ApplicationRejected},
	ApplicationAccepted:   {ApplicationInProgress},
	ApplicationInProgress: {ApplicationCompleted},
}

// ParseApplicationStatus converts a raw string, rejecting unknown values.
func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	st := ApplicationStatus(s)
	switch st {
	case ApplicationPending, ApplicationAccepted, ApplicationRejected, ApplicationInProgress, ApplicationCompleted:
		return st, nil
	}
	return "", &ValidationError{Field: "status", Msg: fmt.Sprintf("unknown application status %q", s)}
}

// IsTransitionAllowed reports whether from → to is an edge of the state machine.
func IsTransitionAllowed(from, to ApplicationStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s ApplicationStatus) bool {
	return len(validTransitions[s]) == 0
}

// IsActive reports whether the application still holds a slot on its job.
func IsActive(s ApplicationStatus) bool {
	return s == ApplicationAccepted || s == ApplicationInProgress
}
