package nats

import (
	"time"
)

// SubmissionEvent is published to "brt.submissions.{code}" after every
// transaction submission, accepted or not.
type SubmissionEvent struct {
	// Transaction identifier returned by the submit operation
	ID string `json:"id"`

	// Outcome. Code is "ok" on success, the stable error code otherwise.
	Code    string `json:"code"`
	Error   string `json:"error,omitempty"`
	Network string `json:"network"`

	// Metadata
	SubmittedAt time.Time `json:"submitted_at"`
	PublishedAt time.Time `json:"published_at"`
}

// NewSubmissionEvent builds an event from a submit outcome. An empty code
// means the submission succeeded.
func NewSubmissionEvent(id, code string, err error, network string, submittedAt time.Time) *SubmissionEvent {
	event := &SubmissionEvent{
		ID:          id,
		Code:        code,
		Network:     network,
		SubmittedAt: submittedAt.UTC(),
		PublishedAt: time.Now().UTC(),
	}
	if event.Code == "" {
		event.Code = CodeOK
	}
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

// Subject returns the subject the event is published on.
func (e *SubmissionEvent) Subject() string {
	return SubjectPrefix + e.Code
}
