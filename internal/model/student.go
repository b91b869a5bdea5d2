package model

import "time"

// Student represents a row in the `students` table. The StudentNo field
// carries the external student number used by registrars; internal
// references (enrollments) always use the numeric ID.
//
// Fields:
//  ID        – primary key identifier.
//  StudentNo – unique external student number (e.g. 2023010042).
//  Name      – student's display name.
//  Major     – declared major, may be empty.
//  CreatedAt – timestamp of creation.
type Student struct {
    ID        uint64    // students.id
    StudentNo string    // students.student_no
    Name      string    // students.name
    Major     string    // students.major
    CreatedAt time.Time // students.created_at
}
