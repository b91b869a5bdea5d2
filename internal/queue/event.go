// Package queue defines message payloads exchanged over the message broker
// and the background consumers that process them.
package queue

// Queue names shared between publishers and consumers.
const (
    // EnrollmentConfirmedQueue carries audit events for committed
    // enrollments.
    EnrollmentConfirmedQueue = "enrollment.confirmed"
    // LedgerCompensationQueue carries counter corrections that could not
    // be applied synchronously (a release after a failed roster write, or
    // a decrement after a drop when the ledger was unreachable).
    LedgerCompensationQueue = "ledger.compensation"
)

// Compensation actions understood by the compensation consumer.
const (
    CompensationRelease   = "release"
    CompensationDecrement = "decrement"
)

// EnrollmentConfirmedEvent is published when an enrollment commits. It
// carries enough information for downstream consumers to log or notify
// without querying the primary database.
type EnrollmentConfirmedEvent struct {
    EnrollmentID uint64 `json:"enrollment_id"`
    CourseID     uint64 `json:"course_id"`
    StudentID    uint64 `json:"student_id"`
    CourseCode   string `json:"course_code"`
    CourseTitle  string `json:"course_title"`
    StudentNo    string `json:"student_no"`
    EnrolledAt   string `json:"enrolled_at"`
}

// LedgerCompensationEvent asks the compensation consumer to apply a
// deferred counter correction. The caller-visible outcome of the original
// request was already decided when this event was enqueued; the event only
// repairs the ledger side.
type LedgerCompensationEvent struct {
    CourseID    uint64 `json:"course_id"`
    Action      string `json:"action"` // release or decrement
    Reason      string `json:"reason"`
    RequestedAt string `json:"requested_at"`
}
