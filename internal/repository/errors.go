// Package repository defines error values that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// admission coordinator and handlers to distinguish between different
// failure scenarios without string matching. Terminal conditions
// (ErrCapacityExceeded, ErrDuplicateEnrollment, the not-found family)
// are reported to callers; ErrInvalidState signals counter drift and is
// handled by reconciliation rather than surfaced as a client error.
package repository

import "errors"

// ErrCourseNotFound is returned when a course lookup or a ledger
// operation references a course that does not exist.
var ErrCourseNotFound = errors.New("course not found")

// ErrStudentNotFound is returned when a student lookup fails.
var ErrStudentNotFound = errors.New("student not found")

// ErrEnrollmentNotFound is returned when an enrollment record is absent,
// either on lookup or when a delete matches no row.
var ErrEnrollmentNotFound = errors.New("enrollment not found")

// ErrCapacityExceeded is returned by the ledger when a reservation would
// push the enrolled count past the course capacity. Handlers should
// translate this into an HTTP 409 response.
var ErrCapacityExceeded = errors.New("course capacity exceeded")

// ErrDuplicateEnrollment is returned when a (course, student) pair already
// has a live enrollment record. The roster's unique index makes this
// detection atomic with respect to concurrent creates for the same pair.
var ErrDuplicateEnrollment = errors.New("student already enrolled in course")

// ErrInvalidState is returned when a decrement would drive the enrolled
// count negative. It indicates drift between the ledger and the roster,
// not a client error; the reconciler corrects it on its next pass.
var ErrInvalidState = errors.New("enrolled count out of range")

// ErrCourseHasEnrollments is returned when a course delete is refused
// because live enrollment records still reference it. Handlers should
// translate this into an HTTP 409 response.
var ErrCourseHasEnrollments = errors.New("course has active enrollments")

// ErrCodeExists is returned when creating or renaming a course would
// violate the unique course code constraint.
var ErrCodeExists = errors.New("course code already exists")

// ErrStudentNoExists is returned when creating a student with a student
// number that is already taken.
var ErrStudentNoExists = errors.New("student number already exists")
