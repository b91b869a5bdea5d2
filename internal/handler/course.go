package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/course-enrollment/internal/model"
    "github.com/iliyamo/course-enrollment/internal/repository"
    "github.com/iliyamo/course-enrollment/internal/service"
)

// LedgerRegistrar is implemented by ledger backends that keep their own
// course table (the in-memory arena). The MySQL ledger reads the courses
// rows directly, so handlers hold a nil registrar in that mode.
type LedgerRegistrar interface {
    Register(courseID uint64, capacity, enrolled uint32)
    SetCapacity(courseID uint64, capacity uint32)
    Deregister(courseID uint64)
}

// CourseHandler owns the course master-data endpoints plus the capacity
// snapshot read.
type CourseHandler struct {
    Courses     *repository.CourseRepo
    Instructors *repository.InstructorRepo
    Ledger      service.CapacityLedger
    Cache       *repository.SnapshotCache
    Registrar   LedgerRegistrar // nil unless the arena backend is active
}

// NewCourseHandler constructs a CourseHandler. registrar may be nil.
func NewCourseHandler(courses *repository.CourseRepo, instructors *repository.InstructorRepo, ledger service.CapacityLedger, cache *repository.SnapshotCache, registrar LedgerRegistrar) *CourseHandler {
    return &CourseHandler{
        Courses:     courses,
        Instructors: instructors,
        Ledger:      ledger,
        Cache:       cache,
        Registrar:   registrar,
    }
}

type courseReq struct {
    Code            string `json:"code"`
    Title           string `json:"title"`
    InstructorName  string `json:"instructor_name"`
    InstructorEmail string `json:"instructor_email"`
    Capacity        uint32 `json:"capacity"`
}

// Create inserts a course, resolving the instructor by name (creating the
// row when it does not exist yet). Capacity must be positive; a course
// nobody can enroll in is a data-entry mistake, not a valid record.
func (h *CourseHandler) Create(c echo.Context) error {
    var req courseReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Code = strings.TrimSpace(req.Code)
    req.Title = strings.TrimSpace(req.Title)
    req.InstructorName = strings.TrimSpace(req.InstructorName)
    if req.Code == "" || req.Title == "" || req.InstructorName == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "code/title/instructor_name required"})
    }
    if req.Capacity == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    instructorID, err := h.Instructors.FindOrCreate(ctx, req.InstructorName, req.InstructorEmail)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resolve instructor failed"})
    }

    course := &model.Course{
        Code:         req.Code,
        Title:        req.Title,
        InstructorID: instructorID,
        Capacity:     req.Capacity,
    }
    if err := h.Courses.Create(ctx, course); err != nil {
        if errors.Is(err, repository.ErrCodeExists) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "course code already exists"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create course failed"})
    }
    if h.Registrar != nil {
        h.Registrar.Register(course.ID, course.Capacity, 0)
    }
    return c.JSON(http.StatusCreated, course)
}

// List returns all courses.
func (h *CourseHandler) List(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    courses, err := h.Courses.List(ctx)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list courses failed"})
    }
    return c.JSON(http.StatusOK, courses)
}

// Get returns one course by ID.
func (h *CourseHandler) Get(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    course, err := h.Courses.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrCourseNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    return c.JSON(http.StatusOK, course)
}

// Update changes course metadata and the capacity bound. The enrolled
// count is never written here; shrinking capacity below the current count
// simply stops new admissions until drops catch up.
func (h *CourseHandler) Update(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
    }
    var req courseReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Code = strings.TrimSpace(req.Code)
    req.Title = strings.TrimSpace(req.Title)
    req.InstructorName = strings.TrimSpace(req.InstructorName)
    if req.Code == "" || req.Title == "" || req.InstructorName == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "code/title/instructor_name required"})
    }
    if req.Capacity == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    instructorID, err := h.Instructors.FindOrCreate(ctx, req.InstructorName, req.InstructorEmail)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resolve instructor failed"})
    }

    course := &model.Course{
        ID:           id,
        Code:         req.Code,
        Title:        req.Title,
        InstructorID: instructorID,
        Capacity:     req.Capacity,
    }
    if err := h.Courses.Update(ctx, course); err != nil {
        switch {
        case errors.Is(err, repository.ErrCourseNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
        case errors.Is(err, repository.ErrCodeExists):
            return c.JSON(http.StatusConflict, echo.Map{"error": "course code already exists"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update course failed"})
        }
    }
    if h.Registrar != nil {
        h.Registrar.SetCapacity(id, req.Capacity)
    }
    h.Cache.Invalidate(ctx, id)

    updated, err := h.Courses.GetByID(ctx, id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reload course failed"})
    }
    return c.JSON(http.StatusOK, updated)
}

// Delete removes a course that has no enrollments left.
func (h *CourseHandler) Delete(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    if err := h.Courses.Delete(ctx, id); err != nil {
        switch {
        case errors.Is(err, repository.ErrCourseNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
        case errors.Is(err, repository.ErrCourseHasEnrollments):
            return c.JSON(http.StatusConflict, echo.Map{"error": "course still has enrollments"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete course failed"})
        }
    }
    if h.Registrar != nil {
        h.Registrar.Deregister(id)
    }
    h.Cache.Invalidate(ctx, id)
    return c.NoContent(http.StatusNoContent)
}

// Snapshot returns the course's (capacity, enrolled) pair as the ledger
// sees it. Responses may lag a concurrent admission by the cache TTL;
// clients that need the authoritative answer simply attempt to enroll.
func (h *CourseHandler) Snapshot(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if cc, ok := h.Cache.Get(ctx, id); ok {
        return c.JSON(http.StatusOK, echo.Map{"course_id": id, "capacity": cc.Capacity, "enrolled": cc.Enrolled, "cached": true})
    }
    cc, err := h.Ledger.Snapshot(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrCourseNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "snapshot failed"})
    }
    h.Cache.Put(ctx, id, cc)
    return c.JSON(http.StatusOK, echo.Map{"course_id": id, "capacity": cc.Capacity, "enrolled": cc.Enrolled, "cached": false})
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
    return strconv.ParseUint(c.Param(name), 10, 64)
}
