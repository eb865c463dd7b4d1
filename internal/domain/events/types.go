package events

// EventType defines the type of event in the system
type EventType string

const (
	// Submission lifecycle events emitted by the approval pipeline
	SubmissionSubmitted EventType = "submission.submitted"
	SubmissionApproved  EventType = "submission.approved"
	SubmissionRejected  EventType = "submission.rejected"
	SubmissionTimedOut  EventType = "submission.timeout"
	SubmissionEscalated EventType = "submission.escalated"

	// System Events
	SystemStartup EventType = "system.startup"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}
