package model

import "time"

// Course represents a row in the `courses` table. The capacity pair
// (Capacity, Enrolled) is owned by the capacity ledger: Enrolled is only
// ever changed through the ledger's guarded increment/decrement statements
// or the reconciler's compare-and-set, never by a plain field update.
//
// Fields:
//  ID           – primary key identifier.
//  Code         – unique course code (e.g. CS101).
//  Title        – human readable course title.
//  InstructorID – foreign key into the instructors table.
//  Capacity     – maximum number of enrolled students; always positive.
//  Enrolled     – current enrolled count; 0 <= Enrolled <= Capacity.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type Course struct {
    ID           uint64    // courses.id
    Code         string    // courses.code
    Title        string    // courses.title
    InstructorID uint64    // courses.instructor_id
    Capacity     uint32    // courses.capacity
    Enrolled     uint32    // courses.enrolled
    CreatedAt    time.Time // courses.created_at
    UpdatedAt    time.Time // courses.updated_at
}

// Instructor represents a row in the `instructors` table. Instructors are
// created on demand when a course references one that does not exist yet.
//
// Fields:
//  ID    – primary key identifier.
//  Name  – instructor's display name.
//  Email – contact email; unique when present.
type Instructor struct {
    ID    uint64 // instructors.id
    Name  string // instructors.name
    Email string // instructors.email
}
