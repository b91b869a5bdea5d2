package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/course-enrollment/internal/model"
    "github.com/iliyamo/course-enrollment/internal/repository"
)

// StudentHandler owns the student master-data endpoints.
type StudentHandler struct {
    Students *repository.StudentRepo
}

// NewStudentHandler constructs a StudentHandler.
func NewStudentHandler(s *repository.StudentRepo) *StudentHandler {
    return &StudentHandler{Students: s}
}

type studentReq struct {
    StudentNo string `json:"student_no"`
    Name      string `json:"name"`
    Major     string `json:"major"`
}

// Create inserts a student record.
func (h *StudentHandler) Create(c echo.Context) error {
    var req studentReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.StudentNo = strings.TrimSpace(req.StudentNo)
    req.Name = strings.TrimSpace(req.Name)
    if req.StudentNo == "" || req.Name == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "student_no/name required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    s := &model.Student{StudentNo: req.StudentNo, Name: req.Name, Major: req.Major}
    if err := h.Students.Create(ctx, s); err != nil {
        if errors.Is(err, repository.ErrStudentNoExists) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "student number already exists"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create student failed"})
    }
    return c.JSON(http.StatusCreated, s)
}

// Get returns one student by ID.
func (h *StudentHandler) Get(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    s, err := h.Students.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrStudentNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "student not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    return c.JSON(http.StatusOK, s)
}

// List returns all students.
func (h *StudentHandler) List(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    students, err := h.Students.List(ctx)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list students failed"})
    }
    return c.JSON(http.StatusOK, students)
}

// Delete removes a student. Their enrollments go with them via the
// cascade; the next reconciliation pass pulls the course counters back in
// line.
func (h *StudentHandler) Delete(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    if err := h.Students.Delete(ctx, id); err != nil {
        if errors.Is(err, repository.ErrStudentNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "student not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete student failed"})
    }
    return c.NoContent(http.StatusNoContent)
}
