package handler

import (
    "context"
    "errors"
    "log"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/course-enrollment/internal/queue"
    "github.com/iliyamo/course-enrollment/internal/repository"
    "github.com/iliyamo/course-enrollment/internal/service"
)

// EnrollmentHandler exposes the admission endpoints: enroll, drop and the
// roster reads. All capacity decisions are delegated to the coordinator;
// the handler only resolves identifiers, maps errors to status codes and
// publishes the audit event after a committed enroll.
type EnrollmentHandler struct {
    Coordinator *service.AdmissionCoordinator
    Roster      *repository.EnrollmentRosterRepo
    Courses     *repository.CourseRepo
    Students    *repository.StudentRepo
}

// NewEnrollmentHandler constructs an EnrollmentHandler.
func NewEnrollmentHandler(coord *service.AdmissionCoordinator, roster *repository.EnrollmentRosterRepo, courses *repository.CourseRepo, students *repository.StudentRepo) *EnrollmentHandler {
    return &EnrollmentHandler{Coordinator: coord, Roster: roster, Courses: courses, Students: students}
}

type enrollReq struct {
    CourseID  uint64 `json:"course_id"`
    StudentID uint64 `json:"student_id"`
    StudentNo string `json:"student_no"` // alternative to student_id
}

type statusReq struct {
    StudentIDs []uint64 `json:"student_ids"`
}

// Enroll admits a student into a course. The student may be identified by
// numeric ID or by student number; course existence is checked by the
// ledger reserve itself, so there is no separate course pre-read on the
// happy path.
//
// Status mapping: 201 on commit, 409 for duplicate or full, 404 for an
// unknown course or student, 503 when a dependency failed and the request
// may be retried.
func (h *EnrollmentHandler) Enroll(c echo.Context) error {
    var req enrollReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if req.CourseID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "course_id required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
    defer cancel()

    studentID := req.StudentID
    if studentID == 0 {
        if req.StudentNo == "" {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "student_id or student_no required"})
        }
        s, err := h.Students.GetByStudentNo(ctx, req.StudentNo)
        if err != nil {
            if errors.Is(err, repository.ErrStudentNotFound) {
                return c.JSON(http.StatusNotFound, echo.Map{"error": "student not found"})
            }
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "student lookup failed"})
        }
        studentID = s.ID
    } else {
        if _, err := h.Students.GetByID(ctx, studentID); err != nil {
            if errors.Is(err, repository.ErrStudentNotFound) {
                return c.JSON(http.StatusNotFound, echo.Map{"error": "student not found"})
            }
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "student lookup failed"})
        }
    }

    rec, err := h.Coordinator.Enroll(ctx, req.CourseID, studentID)
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrDuplicateEnrollment):
            return c.JSON(http.StatusConflict, echo.Map{"error": "already enrolled"})
        case errors.Is(err, repository.ErrCapacityExceeded):
            return c.JSON(http.StatusConflict, echo.Map{"error": "course is full"})
        case errors.Is(err, repository.ErrCourseNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
        case errors.Is(err, service.ErrUpstreamUnavailable):
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "enrollment temporarily unavailable, retry"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "enroll failed"})
        }
    }

    h.publishConfirmed(ctx, rec.ID, rec.CourseID, rec.StudentID, rec.EnrolledAt.UTC().Format(time.RFC3339))
    return c.JSON(http.StatusCreated, rec)
}

// Drop removes an enrollment by record ID and returns the dropped record.
func (h *EnrollmentHandler) Drop(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid enrollment id"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
    defer cancel()

    rec, err := h.Coordinator.Drop(ctx, id)
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrEnrollmentNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "enrollment not found"})
        case errors.Is(err, service.ErrUpstreamUnavailable):
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "drop temporarily unavailable, retry"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "drop failed"})
        }
    }
    return c.JSON(http.StatusOK, rec)
}

// ByCourse lists enrollment records for a course.
func (h *EnrollmentHandler) ByCourse(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    recs, err := h.Roster.FindByCourse(ctx, id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list enrollments failed"})
    }
    return c.JSON(http.StatusOK, recs)
}

// ByStudent lists enrollment records for a student.
func (h *EnrollmentHandler) ByStudent(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    recs, err := h.Roster.FindByStudent(ctx, id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list enrollments failed"})
    }
    return c.JSON(http.StatusOK, recs)
}

// ActiveCount reports how many students enrolled in the course within the
// last N days (default 14, query parameter ?days=N).
func (h *EnrollmentHandler) ActiveCount(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
    }
    days := 14
    if raw := c.QueryParam("days"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil || n < 1 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "days must be a positive integer"})
        }
        days = n
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if _, err := h.Courses.GetByID(ctx, id); err != nil {
        if errors.Is(err, repository.ErrCourseNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }

    since := time.Now().UTC().AddDate(0, 0, -days)
    n, err := h.Roster.CountByCourseSince(ctx, id, since)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"course_id": id, "days": days, "active_students": n})
}

// Status answers, for a batch of student IDs, whether each is enrolled in
// the course. Used by registrar tooling to diff class lists.
func (h *EnrollmentHandler) Status(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
    }
    var req statusReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if len(req.StudentIDs) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "student_ids required"})
    }
    if len(req.StudentIDs) > 500 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "at most 500 student_ids per request"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    status, err := h.Roster.StatusForStudents(ctx, id, req.StudentIDs)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "status query failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"course_id": id, "status": status})
}

// publishConfirmed emits the audit event for a committed enrollment. The
// course and student reads are best effort: a failure here degrades the
// event payload, never the admission result.
func (h *EnrollmentHandler) publishConfirmed(ctx context.Context, enrollmentID, courseID, studentID uint64, enrolledAt string) {
    ev := queue.EnrollmentConfirmedEvent{
        EnrollmentID: enrollmentID,
        CourseID:     courseID,
        StudentID:    studentID,
        EnrolledAt:   enrolledAt,
    }
    if course, err := h.Courses.GetByID(ctx, courseID); err == nil {
        ev.CourseCode = course.Code
        ev.CourseTitle = course.Title
    }
    if student, err := h.Students.GetByID(ctx, studentID); err == nil {
        ev.StudentNo = student.StudentNo
    }
    if err := service.PublishEnrollmentConfirmed(ctx, ev); err != nil {
        log.Printf("enrollment: audit publish for enrollment %d failed: %v", enrollmentID, err)
    }
}
