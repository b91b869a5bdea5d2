// Package service contains the enrollment domain logic that sits between
// the HTTP handlers and the storage components: the admission coordinator,
// the reconciliation job and the event publisher.
package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/iliyamo/course-enrollment/internal/model"
    "github.com/iliyamo/course-enrollment/internal/queue"
    "github.com/iliyamo/course-enrollment/internal/repository"
)

// ErrUpstreamUnavailable is returned when a ledger or roster call fails or
// times out. It is the only retryable error the coordinator surfaces;
// terminal outcomes keep their repository sentinels so callers can tell
// the two apart with errors.Is.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// CapacityLedger is the coordinator's view of the component that owns the
// (capacity, enrolled) pair. Both the MySQL ledger and the in-memory
// arena satisfy it. Implementations must be safe for concurrent use and
// linearizable per course ID.
type CapacityLedger interface {
    Reserve(ctx context.Context, courseID uint64) error
    Release(ctx context.Context, courseID uint64) error
    Decrement(ctx context.Context, courseID uint64) error
    Snapshot(ctx context.Context, courseID uint64) (repository.CourseCount, error)
}

// EnrollmentRoster is the coordinator's view of the component that owns
// membership records. Create must be atomic with respect to concurrent
// creates for the same (course, student) pair.
type EnrollmentRoster interface {
    Exists(ctx context.Context, courseID, studentID uint64) (bool, error)
    Create(ctx context.Context, courseID, studentID uint64) (*model.Enrollment, error)
    GetByID(ctx context.Context, id uint64) (*model.Enrollment, error)
    Delete(ctx context.Context, id uint64) error
    FindByCourse(ctx context.Context, courseID uint64) ([]model.Enrollment, error)
    FindByStudent(ctx context.Context, studentID uint64) ([]model.Enrollment, error)
}

// CompensationFunc enqueues a deferred ledger correction. Publishing to
// RabbitMQ satisfies it in production; tests inject a recording stub.
type CompensationFunc func(ctx context.Context, ev queue.LedgerCompensationEvent) error

// AdmissionCoordinator orchestrates enroll and drop across the ledger and
// the roster. The two components share no transaction, so every forward
// step has a compensating action: a reservation that cannot be paired
// with a roster record is released, and a roster delete whose decrement
// fails is repaired asynchronously. The coordinator holds no state of its
// own beyond the in-flight request.
type AdmissionCoordinator struct {
    ledger      CapacityLedger
    roster      EnrollmentRoster
    compensate  CompensationFunc
    callTimeout time.Duration
}

// NewAdmissionCoordinator wires a coordinator. callTimeout bounds every
// outbound ledger/roster call; a timeout is treated exactly like an
// explicit failure when deciding whether to roll back. compensate may be
// nil, in which case failed compensations are only logged and the
// reconciler remains the sole backstop.
func NewAdmissionCoordinator(ledger CapacityLedger, roster EnrollmentRoster, compensate CompensationFunc, callTimeout time.Duration) *AdmissionCoordinator {
    if ledger == nil || roster == nil {
        panic("nil dependency passed to NewAdmissionCoordinator")
    }
    if callTimeout <= 0 {
        callTimeout = 5 * time.Second
    }
    return &AdmissionCoordinator{
        ledger:      ledger,
        roster:      roster,
        compensate:  compensate,
        callTimeout: callTimeout,
    }
}

// Enroll admits a student into a course. The sequence is:
//
//  1. duplicate pre-check against the roster (terminal on hit),
//  2. reserve a seat in the ledger (terminal on full or unknown course),
//  3. create the membership record; on any roster failure the reservation
//     is released before the error is surfaced.
//
// The pre-check in step 1 is advisory only: the roster's unique index
// decides races, and a duplicate that slips past the pre-check comes back
// from step 3 as ErrDuplicateEnrollment after the reservation is undone.
// The caller never sees success unless the roster write committed.
func (a *AdmissionCoordinator) Enroll(ctx context.Context, courseID, studentID uint64) (*model.Enrollment, error) {
    cctx, cancel := context.WithTimeout(ctx, a.callTimeout)
    enrolled, err := a.roster.Exists(cctx, courseID, studentID)
    cancel()
    if err != nil {
        return nil, upstreamErr("roster existence check", err)
    }
    if enrolled {
        return nil, repository.ErrDuplicateEnrollment
    }

    cctx, cancel = context.WithTimeout(ctx, a.callTimeout)
    err = a.ledger.Reserve(cctx, courseID)
    cancel()
    if err != nil {
        if errors.Is(err, repository.ErrCourseNotFound) || errors.Is(err, repository.ErrCapacityExceeded) {
            return nil, err
        }
        return nil, upstreamErr("ledger reserve", err)
    }

    cctx, cancel = context.WithTimeout(ctx, a.callTimeout)
    rec, err := a.roster.Create(cctx, courseID, studentID)
    cancel()
    if err != nil {
        // The reservation is now unpaired; undo it before reporting the
        // roster failure. Whatever happens below, err — not success — is
        // what the caller sees.
        a.releaseReservation(ctx, courseID, err)
        if errors.Is(err, repository.ErrDuplicateEnrollment) {
            return nil, err
        }
        return nil, upstreamErr("roster create", err)
    }
    return rec, nil
}

// Drop removes an enrollment. The roster delete comes first because the
// roster is the source of truth for membership: once it succeeds the
// caller is unenrolled no matter what the ledger does. A failed decrement
// leaves the ledger overstated, which is repaired asynchronously via the
// compensation queue and, failing that, by the reconciler. It returns the
// record that was dropped.
func (a *AdmissionCoordinator) Drop(ctx context.Context, enrollmentID uint64) (*model.Enrollment, error) {
    cctx, cancel := context.WithTimeout(ctx, a.callTimeout)
    rec, err := a.roster.GetByID(cctx, enrollmentID)
    cancel()
    if err != nil {
        if errors.Is(err, repository.ErrEnrollmentNotFound) {
            return nil, err
        }
        return nil, upstreamErr("roster lookup", err)
    }

    cctx, cancel = context.WithTimeout(ctx, a.callTimeout)
    err = a.roster.Delete(cctx, enrollmentID)
    cancel()
    if err != nil {
        if errors.Is(err, repository.ErrEnrollmentNotFound) {
            // Lost a race with another drop of the same record.
            return nil, err
        }
        return nil, upstreamErr("roster delete", err)
    }

    cctx, cancel = context.WithTimeout(ctx, a.callTimeout)
    err = a.ledger.Decrement(cctx, rec.CourseID)
    cancel()
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrInvalidState):
            // Counter already at 0: ledger drifted below the roster.
            // Nothing to undo; the reconciler recomputes from the roster.
            log.Printf("admission: decrement for course %d found counter at 0; leaving to reconciliation", rec.CourseID)
        case errors.Is(err, repository.ErrCourseNotFound):
            log.Printf("admission: decrement for course %d skipped, course gone", rec.CourseID)
        default:
            a.enqueueCompensation(ctx, rec.CourseID, queue.CompensationDecrement,
                fmt.Sprintf("decrement after drop of enrollment %d failed: %v", enrollmentID, err))
        }
    }
    return rec, nil
}

// releaseReservation undoes a reservation after a failed roster write. It
// runs on a context detached from the caller's so that a request timeout
// cannot also starve the compensation. If the release itself fails the
// correction is enqueued for the compensation consumer.
func (a *AdmissionCoordinator) releaseReservation(ctx context.Context, courseID uint64, cause error) {
    dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.callTimeout)
    defer cancel()
    if err := a.ledger.Release(dctx, courseID); err != nil {
        log.Printf("admission: release for course %d failed (%v); queueing compensation", courseID, err)
        a.enqueueCompensation(ctx, courseID, queue.CompensationRelease,
            fmt.Sprintf("release after roster failure (%v) could not be applied: %v", cause, err))
    }
}

// enqueueCompensation hands a deferred correction to the compensation
// queue. Enqueue failures are logged but never escalate: the reconciler
// recomputes the count from the roster regardless.
func (a *AdmissionCoordinator) enqueueCompensation(ctx context.Context, courseID uint64, action, reason string) {
    if a.compensate == nil {
        log.Printf("admission: no compensation queue configured; %s for course %d waits for reconciliation", action, courseID)
        return
    }
    dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.callTimeout)
    defer cancel()
    ev := queue.LedgerCompensationEvent{
        CourseID:    courseID,
        Action:      action,
        Reason:      reason,
        RequestedAt: time.Now().UTC().Format(time.RFC3339),
    }
    if err := a.compensate(dctx, ev); err != nil {
        log.Printf("admission: enqueue %s compensation for course %d failed: %v; reconciliation will correct the count", action, courseID, err)
    }
}

// upstreamErr wraps a transport or storage failure so that callers can
// test errors.Is(err, ErrUpstreamUnavailable) while keeping the cause in
// the message.
func upstreamErr(op string, err error) error {
    return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, op, err)
}
