package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/course-enrollment/internal/handler"
    "github.com/iliyamo/course-enrollment/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    // Load balancers and monitoring probe this endpoint.
    e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies
// the necessary middleware. Unauthenticated operations live under
// /v1/auth, while the identity endpoint lives under the protected /v1
// group.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    // Refresh rotates the refresh token: the presented token is revoked
    // and a fresh pair is issued.
    g.POST("/refresh", a.Refresh)
    // Logout accepts a JSON body with a refresh_token and invalidates
    // that session. No JWT is required; holding the refresh token is
    // proof enough.
    g.POST("/logout", a.Logout)

    auth := e.Group("/v1")
    auth.Use(middleware.JWTAuth(jwtSecret))
    auth.Use(middleware.RequireRole(handler.RoleStudent, handler.RoleRegistrar))
    auth.GET("/me", a.Me)
}

// RegisterCourses registers the course master-data routes. Reads are open
// to both roles; writes are restricted to registrars.
func RegisterCourses(e *echo.Echo, h *handler.CourseHandler, jwtSecret string) {
    read := e.Group("/v1/courses")
    read.Use(middleware.JWTAuth(jwtSecret))
    read.Use(middleware.RequireRole(handler.RoleStudent, handler.RoleRegistrar))
    read.GET("", h.List)
    read.GET("/:id", h.Get)
    // The capacity snapshot is a diagnostics read; it may lag a
    // concurrent admission by the cache TTL.
    read.GET("/:id/capacity", h.Snapshot)

    write := e.Group("/v1/courses")
    write.Use(middleware.JWTAuth(jwtSecret))
    write.Use(middleware.RequireRole(handler.RoleRegistrar))
    write.POST("", h.Create)
    write.PUT("/:id", h.Update)
    write.DELETE("/:id", h.Delete)
}

// RegisterStudents registers the student master-data routes, all
// restricted to registrars.
func RegisterStudents(e *echo.Echo, h *handler.StudentHandler, jwtSecret string) {
    g := e.Group("/v1/students")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole(handler.RoleRegistrar))
    g.POST("", h.Create)
    g.GET("", h.List)
    g.GET("/:id", h.Get)
    g.DELETE("/:id", h.Delete)
}

// RegisterEnrollments registers the admission routes. Enroll and drop are
// open to both roles (students act on their own behalf, registrars on
// anyone's); the roster reads and the batch status check serve registrar
// tooling but are harmless to expose to students as well.
func RegisterEnrollments(e *echo.Echo, h *handler.EnrollmentHandler, jwtSecret string) {
    g := e.Group("/v1")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole(handler.RoleStudent, handler.RoleRegistrar))

    g.POST("/enrollments", h.Enroll)
    g.DELETE("/enrollments/:id", h.Drop)
    g.GET("/courses/:id/enrollments", h.ByCourse)
    g.GET("/students/:id/enrollments", h.ByStudent)
    g.GET("/courses/:id/active-students", h.ActiveCount)
    g.POST("/courses/:id/enrollment-status", h.Status)
}
