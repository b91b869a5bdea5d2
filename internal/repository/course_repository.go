package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/course-enrollment/internal/model"
)

// CourseRepo provides CRUD operations for course master records. The
// capacity pair on the same rows is mutated only by the capacity ledger;
// this repository writes it exactly once, at insert time, when enrolled
// starts at 0.
type CourseRepo struct {
    db *sql.DB
}

// NewCourseRepo returns a CourseRepo bound to the given database.
func NewCourseRepo(db *sql.DB) *CourseRepo { return &CourseRepo{db: db} }

// Create inserts a new course with enrolled = 0 and populates the
// generated ID and timestamps on the passed struct. A unique key
// violation on the code column maps to ErrCodeExists.
func (r *CourseRepo) Create(ctx context.Context, c *model.Course) error {
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO courses (code, title, instructor_id, capacity, enrolled) VALUES (?, ?, ?, ?, 0)`,
        c.Code, c.Title, c.InstructorID, c.Capacity)
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
            return ErrCodeExists
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    c.ID = uint64(id)
    return r.db.QueryRowContext(ctx,
        `SELECT id, code, title, instructor_id, capacity, enrolled, created_at, updated_at FROM courses WHERE id = ?`,
        c.ID).Scan(&c.ID, &c.Code, &c.Title, &c.InstructorID, &c.Capacity, &c.Enrolled, &c.CreatedAt, &c.UpdatedAt)
}

// GetByID returns a course or ErrCourseNotFound.
func (r *CourseRepo) GetByID(ctx context.Context, id uint64) (*model.Course, error) {
    var c model.Course
    err := r.db.QueryRowContext(ctx,
        `SELECT id, code, title, instructor_id, capacity, enrolled, created_at, updated_at FROM courses WHERE id = ?`,
        id).Scan(&c.ID, &c.Code, &c.Title, &c.InstructorID, &c.Capacity, &c.Enrolled, &c.CreatedAt, &c.UpdatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrCourseNotFound
        }
        return nil, err
    }
    return &c, nil
}

// List returns all courses ordered by code.
func (r *CourseRepo) List(ctx context.Context) ([]model.Course, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, code, title, instructor_id, capacity, enrolled, created_at, updated_at FROM courses ORDER BY code`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Course, 0)
    for rows.Next() {
        var c model.Course
        if err := rows.Scan(&c.ID, &c.Code, &c.Title, &c.InstructorID, &c.Capacity, &c.Enrolled, &c.CreatedAt, &c.UpdatedAt); err != nil {
            return nil, err
        }
        out = append(out, c)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// ListIDs returns every course ID. The reconciler walks this list once
// per pass.
func (r *CourseRepo) ListIDs(ctx context.Context) ([]uint64, error) {
    rows, err := r.db.QueryContext(ctx, `SELECT id FROM courses ORDER BY id`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return ids, nil
}

// Update changes code, title, instructor and capacity. The enrolled
// column is deliberately absent from the SET list. Returns
// ErrCourseNotFound when no row matched and ErrCodeExists on a code
// collision.
func (r *CourseRepo) Update(ctx context.Context, c *model.Course) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE courses SET code = ?, title = ?, instructor_id = ?, capacity = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
        c.Code, c.Title, c.InstructorID, c.Capacity, c.ID)
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
            return ErrCodeExists
        }
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        // RowsAffected is also 0 when the update was a no-op; confirm
        // the row is really gone before reporting not found.
        var one int
        if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM courses WHERE id = ?`, c.ID).Scan(&one); errors.Is(err, sql.ErrNoRows) {
            return ErrCourseNotFound
        } else if err != nil {
            return err
        }
    }
    return nil
}

// Delete removes a course that has no live enrollments. The existence
// check and the delete are separate statements, so a concurrent enroll
// can still slip in between; the FK from enrollments to courses is the
// final guard and maps to ErrCourseHasEnrollments as well.
func (r *CourseRepo) Delete(ctx context.Context, id uint64) error {
    var n int64
    if err := r.db.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM enrollments WHERE course_id = ?`, id).Scan(&n); err != nil {
        return err
    }
    if n > 0 {
        return ErrCourseHasEnrollments
    }
    res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
    if err != nil {
        if strings.Contains(strings.ToLower(err.Error()), "foreign key") {
            return ErrCourseHasEnrollments
        }
        return err
    }
    if rows, _ := res.RowsAffected(); rows == 0 {
        return ErrCourseNotFound
    }
    return nil
}
