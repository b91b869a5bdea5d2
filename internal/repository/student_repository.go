package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/course-enrollment/internal/model"
)

// StudentRepo provides CRUD operations for student master records.
type StudentRepo struct {
    db *sql.DB
}

// NewStudentRepo returns a StudentRepo bound to the given database.
func NewStudentRepo(db *sql.DB) *StudentRepo { return &StudentRepo{db: db} }

// Create inserts a student and populates the generated ID and timestamp.
// A unique key violation on student_no maps to ErrStudentNoExists.
func (r *StudentRepo) Create(ctx context.Context, s *model.Student) error {
    s.StudentNo = strings.TrimSpace(s.StudentNo)
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO students (student_no, name, major) VALUES (?, ?, ?)`,
        s.StudentNo, s.Name, s.Major)
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
            return ErrStudentNoExists
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    s.ID = uint64(id)
    return r.db.QueryRowContext(ctx,
        `SELECT id, student_no, name, major, created_at FROM students WHERE id = ?`,
        s.ID).Scan(&s.ID, &s.StudentNo, &s.Name, &s.Major, &s.CreatedAt)
}

// GetByID returns a student or ErrStudentNotFound.
func (r *StudentRepo) GetByID(ctx context.Context, id uint64) (*model.Student, error) {
    var s model.Student
    err := r.db.QueryRowContext(ctx,
        `SELECT id, student_no, name, major, created_at FROM students WHERE id = ?`,
        id).Scan(&s.ID, &s.StudentNo, &s.Name, &s.Major, &s.CreatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrStudentNotFound
        }
        return nil, err
    }
    return &s, nil
}

// GetByStudentNo looks a student up by the external student number.
func (r *StudentRepo) GetByStudentNo(ctx context.Context, no string) (*model.Student, error) {
    var s model.Student
    err := r.db.QueryRowContext(ctx,
        `SELECT id, student_no, name, major, created_at FROM students WHERE student_no = ? LIMIT 1`,
        strings.TrimSpace(no)).Scan(&s.ID, &s.StudentNo, &s.Name, &s.Major, &s.CreatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrStudentNotFound
        }
        return nil, err
    }
    return &s, nil
}

// List returns all students ordered by student number.
func (r *StudentRepo) List(ctx context.Context) ([]model.Student, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, student_no, name, major, created_at FROM students ORDER BY student_no`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Student, 0)
    for rows.Next() {
        var s model.Student
        if err := rows.Scan(&s.ID, &s.StudentNo, &s.Name, &s.Major, &s.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// Delete removes a student by ID. Enrollments for the student are removed
// by the ON DELETE CASCADE on the roster's foreign key; callers that need
// the ledger corrected rely on the reconciler's next pass.
func (r *StudentRepo) Delete(ctx context.Context, id uint64) error {
    res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrStudentNotFound
    }
    return nil
}
