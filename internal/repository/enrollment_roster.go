package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/course-enrollment/internal/model"
)

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// EnrollmentRosterRepo owns the membership records in the enrollments
// table. The table carries UNIQUE KEY (course_id, student_id), so Create
// is a compare-and-insert: the uniqueness check and the write are one
// atomic statement and a lost race surfaces as ErrDuplicateEnrollment.
// The roster, not the capacity counter, is the source of truth for
// whether a student is enrolled.
type EnrollmentRosterRepo struct {
    db *sql.DB
}

// NewEnrollmentRosterRepo returns a roster bound to the given database.
func NewEnrollmentRosterRepo(db *sql.DB) *EnrollmentRosterRepo { return &EnrollmentRosterRepo{db: db} }

// Exists reports whether a live enrollment record exists for the pair.
func (r *EnrollmentRosterRepo) Exists(ctx context.Context, courseID, studentID uint64) (bool, error) {
    var one int
    err := r.db.QueryRowContext(ctx,
        `SELECT 1 FROM enrollments WHERE course_id = ? AND student_id = ? LIMIT 1`,
        courseID, studentID).Scan(&one)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}

// Create inserts a membership record for the pair and returns the stored
// record. A unique key violation maps to ErrDuplicateEnrollment.
func (r *EnrollmentRosterRepo) Create(ctx context.Context, courseID, studentID uint64) (*model.Enrollment, error) {
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO enrollments (course_id, student_id) VALUES (?, ?)`,
        courseID, studentID)
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
            return nil, ErrDuplicateEnrollment
        }
        // Older deployments proxy the driver error; fall back to the
        // error text the way the user repository does.
        if strings.Contains(strings.ToLower(err.Error()), "1062") {
            return nil, ErrDuplicateEnrollment
        }
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    // Query back the full row to populate the DB-assigned timestamp.
    e := &model.Enrollment{ID: uint64(id)}
    err = r.db.QueryRowContext(ctx,
        `SELECT id, course_id, student_id, enrolled_at FROM enrollments WHERE id = ?`,
        e.ID).Scan(&e.ID, &e.CourseID, &e.StudentID, &e.EnrolledAt)
    if err != nil {
        return nil, err
    }
    return e, nil
}

// GetByID returns a single enrollment record or ErrEnrollmentNotFound.
func (r *EnrollmentRosterRepo) GetByID(ctx context.Context, id uint64) (*model.Enrollment, error) {
    var e model.Enrollment
    err := r.db.QueryRowContext(ctx,
        `SELECT id, course_id, student_id, enrolled_at FROM enrollments WHERE id = ?`,
        id).Scan(&e.ID, &e.CourseID, &e.StudentID, &e.EnrolledAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrEnrollmentNotFound
        }
        return nil, err
    }
    return &e, nil
}

// Delete removes a membership record by ID. ErrEnrollmentNotFound is
// returned when no row matched, so a racing double-drop is detected.
func (r *EnrollmentRosterRepo) Delete(ctx context.Context, id uint64) error {
    res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = ?`, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrEnrollmentNotFound
    }
    return nil
}

// FindByCourse returns all enrollment records for a course. No ordering
// beyond insertion order is promised to callers.
func (r *EnrollmentRosterRepo) FindByCourse(ctx context.Context, courseID uint64) ([]model.Enrollment, error) {
    return r.list(ctx, `SELECT id, course_id, student_id, enrolled_at FROM enrollments WHERE course_id = ?`, courseID)
}

// FindByStudent returns all enrollment records for a student.
func (r *EnrollmentRosterRepo) FindByStudent(ctx context.Context, studentID uint64) ([]model.Enrollment, error) {
    return r.list(ctx, `SELECT id, course_id, student_id, enrolled_at FROM enrollments WHERE student_id = ?`, studentID)
}

func (r *EnrollmentRosterRepo) list(ctx context.Context, q string, arg uint64) ([]model.Enrollment, error) {
    rows, err := r.db.QueryContext(ctx, q, arg)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Enrollment, 0)
    for rows.Next() {
        var e model.Enrollment
        if err := rows.Scan(&e.ID, &e.CourseID, &e.StudentID, &e.EnrolledAt); err != nil {
            return nil, err
        }
        out = append(out, e)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// CountByCourse returns the number of live enrollment records for a
// course. The reconciler uses this as the authoritative count.
func (r *EnrollmentRosterRepo) CountByCourse(ctx context.Context, courseID uint64) (int64, error) {
    var n int64
    err := r.db.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM enrollments WHERE course_id = ?`, courseID).Scan(&n)
    return n, err
}

// CountByCourseSince counts enrollments created at or after the given
// instant, backing the active-students endpoint.
func (r *EnrollmentRosterRepo) CountByCourseSince(ctx context.Context, courseID uint64, since time.Time) (int64, error) {
    var n int64
    err := r.db.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM enrollments WHERE course_id = ? AND enrolled_at >= ?`,
        courseID, since.UTC().Format("2006-01-02 15:04:05")).Scan(&n)
    return n, err
}

// StatusForStudents reports, for each given student ID, whether a live
// enrollment exists in the course. Students absent from the roster come
// back false, so the result always has one entry per requested ID.
func (r *EnrollmentRosterRepo) StatusForStudents(ctx context.Context, courseID uint64, studentIDs []uint64) (map[uint64]bool, error) {
    out := make(map[uint64]bool, len(studentIDs))
    for _, id := range studentIDs {
        out[id] = false
    }
    if len(studentIDs) == 0 {
        return out, nil
    }
    placeholders := make([]string, 0, len(studentIDs))
    args := make([]interface{}, 0, len(studentIDs)+1)
    args = append(args, courseID)
    for _, id := range studentIDs {
        placeholders = append(placeholders, "?")
        args = append(args, id)
    }
    q := `SELECT student_id FROM enrollments WHERE course_id = ? AND student_id IN (` +
        strings.Join(placeholders, ",") + `)`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var sid uint64
        if err := rows.Scan(&sid); err != nil {
            return nil, err
        }
        out[sid] = true
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
