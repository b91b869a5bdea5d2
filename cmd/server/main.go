package main // Entry point package

import (
    "context"
    "log"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/course-enrollment/internal/config"
    "github.com/iliyamo/course-enrollment/internal/database"
    "github.com/iliyamo/course-enrollment/internal/handler"
    "github.com/iliyamo/course-enrollment/internal/middleware"
    "github.com/iliyamo/course-enrollment/internal/queue"
    "github.com/iliyamo/course-enrollment/internal/repository"
    "github.com/iliyamo/course-enrollment/internal/router"
    "github.com/iliyamo/course-enrollment/internal/service"
)

func main() {
    // Load .env if present; real deployments set the environment directly.
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Redis backs the rate limiter and the snapshot cache. nil means
    // unavailable: the limiter fails open and every snapshot read goes to
    // the ledger.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable; rate limiting and snapshot caching disabled")
    }

    // Repositories.
    users := repository.NewUserRepo(db)
    tokens := repository.NewTokenRepo(db)
    courses := repository.NewCourseRepo(db)
    instructors := repository.NewInstructorRepo(db)
    students := repository.NewStudentRepo(db)
    roster := repository.NewEnrollmentRosterRepo(db)
    cache := repository.NewSnapshotCache(rdb, "course:snapshot", cfg.SnapshotCacheTTL)

    // Capacity ledger: the MySQL guarded-update ledger by default, or the
    // in-memory arena (LEDGER_BACKEND=memory) seeded from the courses
    // table. The arena starts every counter at the roster's count, not the
    // possibly stale enrolled column, since the roster is the source of
    // truth after a restart.
    var ledger service.CapacityLedger
    var recLedger service.ReconcilerLedger
    var registrar handler.LedgerRegistrar
    switch cfg.LedgerBackend {
    case "memory":
        arena := repository.NewCapacityArena()
        seedArena(arena, courses, roster)
        ledger = arena
        recLedger = arena
        registrar = arena
    default:
        mysqlLedger := repository.NewCapacityLedgerRepo(db)
        ledger = mysqlLedger
        recLedger = mysqlLedger
    }

    coordinator := service.NewAdmissionCoordinator(ledger, roster, service.PublishLedgerCompensation, cfg.UpstreamTimeout)
    reconciler := service.NewReconciler(recLedger, roster, courses, cfg.ReconcileInterval)

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // Background workers: deferred ledger corrections, the audit log
    // writer and the periodic roster-vs-ledger reconciliation.
    go func() {
        if err := queue.StartCompensationConsumer(ledger); err != nil {
            log.Printf("compensation consumer stopped: %v", err)
        }
    }()
    go func() {
        if err := queue.StartEnrollmentAuditConsumer(); err != nil {
            log.Printf("enrollment audit consumer stopped: %v", err)
        }
    }()
    go reconciler.Run(ctx)

    e := echo.New()
    e.HideBanner = true

    rlCfg := config.LoadRateLimitConfig()
    if rlCfg.Enabled && rdb != nil {
        e.Use(middleware.NewTokenBucket(rlCfg, rdb))
    }

    router.RegisterRoutes(e)
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
    router.RegisterCourses(e, handler.NewCourseHandler(courses, instructors, ledger, cache, registrar), cfg.JWTSecret)
    router.RegisterStudents(e, handler.NewStudentHandler(students), cfg.JWTSecret)
    router.RegisterEnrollments(e, handler.NewEnrollmentHandler(coordinator, roster, courses, students), cfg.JWTSecret)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s, ledger=%s)", addr, cfg.Env, cfg.LedgerBackend)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}

// seedArena registers a counter for every course row, using the roster's
// live count as the starting enrolled value.
func seedArena(arena *repository.CapacityArena, courses *repository.CourseRepo, roster *repository.EnrollmentRosterRepo) {
    ctx := context.Background()
    rows, err := courses.List(ctx)
    if err != nil {
        log.Fatalf("seed arena: list courses: %v", err)
    }
    for _, c := range rows {
        n, err := roster.CountByCourse(ctx, c.ID)
        if err != nil {
            log.Fatalf("seed arena: count course %d: %v", c.ID, err)
        }
        arena.Register(c.ID, c.Capacity, uint32(n))
    }
    log.Printf("arena seeded with %d course counters", len(rows))
}
