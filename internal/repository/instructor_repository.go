package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/iliyamo/course-enrollment/internal/model"
)

// InstructorRepo provides access to the instructors table. Instructors
// are lightweight master records created on demand when a course
// references one by name.
type InstructorRepo struct {
    db *sql.DB
}

// NewInstructorRepo returns an InstructorRepo bound to the given database.
func NewInstructorRepo(db *sql.DB) *InstructorRepo { return &InstructorRepo{db: db} }

// FindOrCreate returns the ID of the instructor with the given name,
// inserting a new row when none exists. A lost insert race is resolved by
// re-reading, so concurrent course creates referencing the same new
// instructor converge on one row.
func (r *InstructorRepo) FindOrCreate(ctx context.Context, name, email string) (uint64, error) {
    name = strings.TrimSpace(name)
    var id uint64
    err := r.db.QueryRowContext(ctx, `SELECT id FROM instructors WHERE name = ? LIMIT 1`, name).Scan(&id)
    if err == nil {
        return id, nil
    }
    if !errors.Is(err, sql.ErrNoRows) {
        return 0, err
    }
    res, err := r.db.ExecContext(ctx, `INSERT INTO instructors (name, email) VALUES (?, ?)`, name, email)
    if err != nil {
        if strings.Contains(strings.ToLower(err.Error()), "1062") {
            err = r.db.QueryRowContext(ctx, `SELECT id FROM instructors WHERE name = ? LIMIT 1`, name).Scan(&id)
            return id, err
        }
        return 0, err
    }
    n, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(n), nil
}

// GetByID returns an instructor row. Missing rows surface as
// sql.ErrNoRows since only handlers that already hold a valid foreign key
// call this.
func (r *InstructorRepo) GetByID(ctx context.Context, id uint64) (*model.Instructor, error) {
    var ins model.Instructor
    err := r.db.QueryRowContext(ctx,
        `SELECT id, name, email FROM instructors WHERE id = ?`, id).Scan(&ins.ID, &ins.Name, &ins.Email)
    if err != nil {
        return nil, err
    }
    return &ins, nil
}
