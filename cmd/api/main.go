package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/cmlabs-hris/attendance-engine/internal/fixtures"
	appHTTP "github.com/cmlabs-hris/attendance-engine/internal/handler/http"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/recompute"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	complianceService "github.com/cmlabs-hris/attendance-engine/internal/service/compliance"
	notificationService "github.com/cmlabs-hris/attendance-engine/internal/service/notification"
	penaltyService "github.com/cmlabs-hris/attendance-engine/internal/service/penalty"
	scheduleService "github.com/cmlabs-hris/attendance-engine/internal/service/schedule"
	workentryService "github.com/cmlabs-hris/attendance-engine/internal/service/workentry"
)

const version = "v1.0.0"

// stores is the set of repositories behind one store driver.
type stores struct {
	locker        compliance.Locker
	employees     employee.EmployeeRepository
	attendances   attendance.AttendanceRepository
	workSchedules schedule.WorkScheduleRepository
	assignments   schedule.EmployeeScheduleAssignmentRepository
	penalties     leave.PenaltyRepository
	leaves        leave.LeaveRepository
	workEntries   workentry.WorkEntryRepository
	notifications notification.Repository
	close         func()
}

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()

	hub := sse.NewHub()
	notifService := notificationService.NewNotificationService(
		repos.notifications,
		repos.employees,
		repos.penalties,
		hub,
		notificationService.Config{
			BatchSize:     cfg.Notification.BatchSize,
			FlushInterval: cfg.Notification.FlushInterval,
			WorkerCount:   cfg.Notification.Workers,
		},
	)

	calendar := scheduleService.NewCalendarResolver(repos.employees, repos.workSchedules, repos.assignments)
	dispatcher := recompute.NewInline(cfg.Compliance.MaxReentrancyDepth)
	penaltyManager := penaltyService.NewPenaltyManager(repos.penalties, dispatcher)
	reconciler := workentryService.NewReconciler(repos.workEntries)

	pipeline := complianceService.NewComplianceService(
		cfg.Compliance,
		repos.locker,
		calendar,
		repos.employees,
		repos.attendances,
		repos.penalties,
		repos.leaves,
		penaltyManager,
		reconciler,
		notifService,
	)
	dispatcher.Bind(pipeline)

	queue := recompute.NewQueue(pipeline, recompute.QueueConfig{
		QueueSize:   cfg.Queue.Size,
		WorkerCount: cfg.Queue.Workers,
		Timeout:     cfg.Queue.Timeout,
	})

	scheduler := cron.NewScheduler(ctx)
	cron.NewReconcileJobs(repos.attendances, queue).RegisterJobs(scheduler)
	scheduler.Start()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret)
	complianceHandler := appHTTP.NewComplianceHandler(pipeline, queue, repos.attendances, repos.employees, repos.penalties, repos.workEntries)
	notificationHandler := appHTTP.NewNotificationHandler(notifService, JWTService)

	router := appHTTP.NewRouter(
		appHTTP.RouterConfig{
			Env:            cfg.App.Env,
			Version:        version,
			AllowedOrigins: cfg.App.AllowedOrigins,
			LogLevel:       cfg.SlogLevel(),
		},
		JWTService,
		complianceHandler,
		notificationHandler,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr, "store_driver", cfg.App.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			stop()
			shutdown(scheduler, queue, notifService)
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	// Producers stop before their consumers: cron feeds the queue, the
	// queue's passes feed notifications.
	shutdown(scheduler, queue, notifService)
	return nil
}

func shutdown(scheduler *cron.Scheduler, queue *recompute.Queue, notifService notification.Service) {
	scheduler.Stop()
	queue.Stop()
	notifService.Stop()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.App.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.NewStore()
		fixtures.SeedDemo(store, cfg.App.Timezone)
		slog.Warn("Using in-memory store; data is lost on restart",
			"company_id", fixtures.DemoCompanyID,
			"employee_id", fixtures.DemoEmployeeID)

		return &stores{
			locker:        store,
			employees:     memory.NewEmployeeRepository(store),
			attendances:   memory.NewAttendanceRepository(store),
			workSchedules: memory.NewWorkScheduleRepository(store),
			assignments:   memory.NewEmployeeScheduleAssignmentRepository(store),
			penalties:     memory.NewPenaltyRepository(store),
			leaves:        memory.NewLeaveRepository(store),
			workEntries:   memory.NewWorkEntryRepository(store),
			notifications: memory.NewNotificationRepository(store),
			close:         func() {},
		}, nil

	case config.StoreDriverPostgres:
		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolConfig{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}

		return &stores{
			locker:        postgresql.NewEmployeeLocker(db),
			employees:     postgresql.NewEmployeeRepository(db),
			attendances:   postgresql.NewAttendanceRepository(db),
			workSchedules: postgresql.NewWorkScheduleRepository(db),
			assignments:   postgresql.NewEmployeeScheduleAssignmentRepository(db),
			penalties:     postgresql.NewPenaltyRepository(db),
			leaves:        postgresql.NewLeaveRepository(db),
			workEntries:   postgresql.NewWorkEntryRepository(db),
			notifications: postgresql.NewNotificationRepository(db),
			close:         db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.App.StoreDriver)
	}
}
