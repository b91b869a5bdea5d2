package model

import "time"

// Enrollment records a student's membership in a course. The roster table
// carries a unique index on (course_id, student_id) so that at most one
// live record exists per pair; enrollment creation relies on that index
// rather than a separate existence check.
//
// Fields:
//  ID         – primary key identifier.
//  CourseID   – course the student is enrolled in.
//  StudentID  – enrolled student.
//  EnrolledAt – when the membership record was created.
type Enrollment struct {
    ID         uint64    // enrollments.id
    CourseID   uint64    // enrollments.course_id
    StudentID  uint64    // enrollments.student_id
    EnrolledAt time.Time // enrollments.enrolled_at
}
