package service

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/iliyamo/course-enrollment/internal/repository"
)

// ReconcilerLedger is the slice of the capacity ledger the reconciler
// needs: a snapshot read and the conditional write used to correct drift.
type ReconcilerLedger interface {
    Snapshot(ctx context.Context, courseID uint64) (repository.CourseCount, error)
    CompareAndSetEnrolled(ctx context.Context, courseID uint64, old, corrected uint32) (bool, error)
}

// RosterCounter supplies the authoritative per-course enrollment count.
type RosterCounter interface {
    CountByCourse(ctx context.Context, courseID uint64) (int64, error)
}

// CourseLister enumerates the courses to reconcile.
type CourseLister interface {
    ListIDs(ctx context.Context) ([]uint64, error)
}

// Reconciler periodically recomputes each course's enrolled count from
// the roster and corrects the ledger when the two disagree. It is the
// backstop that bounds the inconsistency window left by partial failures
// in the enroll/drop protocol: a release that never landed, a decrement
// lost to a partition, a student delete that cascaded roster rows away.
//
// Corrections use compare-and-set against the enrolled value read in the
// same pass, so the job is idempotent and safe to run concurrently with
// live admission traffic; a lost CAS simply means the counter moved and
// the course is retried on the next tick.
type Reconciler struct {
    ledger   ReconcilerLedger
    roster   RosterCounter
    courses  CourseLister
    interval time.Duration
}

// NewReconciler wires a reconciliation job that runs every interval.
func NewReconciler(ledger ReconcilerLedger, roster RosterCounter, courses CourseLister, interval time.Duration) *Reconciler {
    if ledger == nil || roster == nil || courses == nil {
        panic("nil dependency passed to NewReconciler")
    }
    if interval <= 0 {
        interval = time.Minute
    }
    return &Reconciler{ledger: ledger, roster: roster, courses: courses, interval: interval}
}

// Run executes one pass immediately and then one per tick until the
// context is cancelled. Pass-level errors are logged, never fatal.
func (r *Reconciler) Run(ctx context.Context) {
    if _, err := r.ReconcileAll(ctx); err != nil {
        log.Printf("reconciler: initial pass failed: %v", err)
    }
    t := time.NewTicker(r.interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            if _, err := r.ReconcileAll(ctx); err != nil {
                log.Printf("reconciler: pass failed: %v", err)
            }
        }
    }
}

// ReconcileAll walks every course once and returns how many counters were
// corrected. Per-course failures are logged and do not stop the pass.
func (r *Reconciler) ReconcileAll(ctx context.Context) (int, error) {
    ids, err := r.courses.ListIDs(ctx)
    if err != nil {
        return 0, err
    }
    corrected := 0
    for _, id := range ids {
        fixed, err := r.ReconcileCourse(ctx, id)
        if err != nil {
            log.Printf("reconciler: course %d: %v", id, err)
            continue
        }
        if fixed {
            corrected++
        }
    }
    return corrected, nil
}

// ReconcileCourse brings one course's ledger count in line with the
// roster. It reports whether a correction was written. Every correction
// is logged with the prior and new values for audit.
func (r *Reconciler) ReconcileCourse(ctx context.Context, courseID uint64) (bool, error) {
    snap, err := r.ledger.Snapshot(ctx, courseID)
    if err != nil {
        if errors.Is(err, repository.ErrCourseNotFound) {
            // Course deleted between listing and snapshot.
            return false, nil
        }
        return false, err
    }
    n, err := r.roster.CountByCourse(ctx, courseID)
    if err != nil {
        return false, err
    }
    trueCount := uint32(n)
    if trueCount == snap.Enrolled {
        return false, nil
    }
    ok, err := r.ledger.CompareAndSetEnrolled(ctx, courseID, snap.Enrolled, trueCount)
    if err != nil {
        return false, err
    }
    if !ok {
        // Live traffic moved the counter since our snapshot; the next
        // pass re-evaluates from fresh values.
        return false, nil
    }
    log.Printf("reconciler: corrected course %d enrolled count %d -> %d (capacity %d)",
        courseID, snap.Enrolled, trueCount, snap.Capacity)
    return true, nil
}
