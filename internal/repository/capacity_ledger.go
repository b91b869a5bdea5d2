package repository

import (
    "context"
    "database/sql"
    "errors"
)

// CourseCount is the read-only capacity pair returned by Snapshot. It is
// used for diagnostics and reconciliation only; admission decisions are
// made inside the guarded UPDATE statements, never by comparing a
// previously fetched snapshot.
type CourseCount struct {
    Capacity uint32 `json:"capacity"`
    Enrolled uint32 `json:"enrolled"`
}

// CapacityLedgerRepo owns the (capacity, enrolled) pair on the courses
// table. Every mutation is a single guarded UPDATE whose WHERE clause
// re-checks the invariant, so the decision and the write are one atomic
// statement and the database serializes writers per course row. The
// enrolled column is never assigned directly anywhere else.
type CapacityLedgerRepo struct {
    db *sql.DB
}

// NewCapacityLedgerRepo returns a ledger bound to the given database.
func NewCapacityLedgerRepo(db *sql.DB) *CapacityLedgerRepo { return &CapacityLedgerRepo{db: db} }

// Reserve atomically increments the enrolled count when room remains.
// Under N concurrent callers with K free seats exactly K succeed; the
// rest receive ErrCapacityExceeded. ErrCourseNotFound is returned when
// the course row does not exist.
func (r *CapacityLedgerRepo) Reserve(ctx context.Context, courseID uint64) error {
    const q = `UPDATE courses SET enrolled = enrolled + 1 WHERE id = ? AND enrolled < capacity`
    res, err := r.db.ExecContext(ctx, q, courseID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 1 {
        return nil
    }
    // The guard rejected the write: distinguish a missing course from a
    // full one. The course row itself is immutable during admission so
    // this follow-up read does not race with the decision above.
    if err := r.exists(ctx, courseID); err != nil {
        return err
    }
    return ErrCapacityExceeded
}

// Release undoes one reservation after a failed roster write. The count
// is floored at 0: releasing an already-zero counter is a silent no-op
// because the paired reserve is known to have happened and reconciliation
// owns any remaining drift.
func (r *CapacityLedgerRepo) Release(ctx context.Context, courseID uint64) error {
    const q = `UPDATE courses SET enrolled = enrolled - 1 WHERE id = ? AND enrolled > 0`
    res, err := r.db.ExecContext(ctx, q, courseID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 1 {
        return nil
    }
    return r.exists(ctx, courseID)
}

// Decrement lowers the enrolled count on a normal drop. Unlike Release it
// reports ErrInvalidState when the count is already 0, because a drop of
// a roster-confirmed enrollment should always find a positive counter;
// a zero counter means the ledger has drifted below the roster.
func (r *CapacityLedgerRepo) Decrement(ctx context.Context, courseID uint64) error {
    const q = `UPDATE courses SET enrolled = enrolled - 1 WHERE id = ? AND enrolled > 0`
    res, err := r.db.ExecContext(ctx, q, courseID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 1 {
        return nil
    }
    if err := r.exists(ctx, courseID); err != nil {
        return err
    }
    return ErrInvalidState
}

// Snapshot returns the current capacity pair for diagnostics and
// reconciliation reads.
func (r *CapacityLedgerRepo) Snapshot(ctx context.Context, courseID uint64) (CourseCount, error) {
    const q = `SELECT capacity, enrolled FROM courses WHERE id = ?`
    var cc CourseCount
    err := r.db.QueryRowContext(ctx, q, courseID).Scan(&cc.Capacity, &cc.Enrolled)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return CourseCount{}, ErrCourseNotFound
        }
        return CourseCount{}, err
    }
    return cc, nil
}

// CompareAndSetEnrolled writes a corrected enrolled count only when the
// current value still equals old. It returns false without error when the
// guard fails, which means live traffic moved the counter since the
// caller's snapshot; the reconciler simply retries on its next pass.
func (r *CapacityLedgerRepo) CompareAndSetEnrolled(ctx context.Context, courseID uint64, old, corrected uint32) (bool, error) {
    const q = `UPDATE courses SET enrolled = ? WHERE id = ? AND enrolled = ?`
    res, err := r.db.ExecContext(ctx, q, corrected, courseID, old)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// exists reports ErrCourseNotFound when no course row matches the ID and
// nil otherwise.
func (r *CapacityLedgerRepo) exists(ctx context.Context, courseID uint64) error {
    var one int
    err := r.db.QueryRowContext(ctx, `SELECT 1 FROM courses WHERE id = ?`, courseID).Scan(&one)
    if errors.Is(err, sql.ErrNoRows) {
        return ErrCourseNotFound
    }
    return err
}
