package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/locvowork/employee_roster/internal/config"
	"github.com/locvowork/employee_roster/internal/handler"
	"github.com/locvowork/employee_roster/internal/logger"
	"github.com/locvowork/employee_roster/internal/metrics"
	"github.com/locvowork/employee_roster/internal/repository"
	"github.com/locvowork/employee_roster/internal/service"
	"github.com/locvowork/employee_roster/pkg/eventloop"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Echo    *echo.Echo
	Loop    *eventloop.Loop
	Session *service.RosterSession
	View    *handler.ConsoleView
	Metrics *metrics.Metrics
}

func NewApp() *App {
	e := echo.New()
	e.HideBanner = true
	return &App{
		Echo: e,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	// Load environment configuration
	if err := config.LoadEnvConfig(); err != nil {
		return fmt.Errorf("failed to load env config: %w", err)
	}
	cfg := config.DefaultEnvConfig

	// Initialize logging
	logger.InitLogging(cfg.LOG_FILE_PATH, cfg.LOG_LEVEL)
	logger.InfoLog(ctx, "Environment variables loaded successfully")

	// Initialize dependencies
	empRepo, err := repository.NewEmployeeRepository(cfg.EMPLOYEE_API_URL, repository.WithTimeout(cfg.EMPLOYEE_API_TIMEOUT))
	if err != nil {
		return fmt.Errorf("failed to initialize employee repository: %w", err)
	}

	a.Loop = eventloop.New(cfg.EVENT_QUEUE_SIZE)
	a.Loop.OnFault(func(err error) {
		logger.ErrorErr(ctx, err, "Roster callback failed")
	})
	a.Metrics = metrics.New()
	a.View = handler.NewConsoleView()
	a.Session = service.NewRosterSession(empRepo, a.Loop, a.View, service.WithRecorder(a.Metrics))

	rosterHandler := handler.NewRosterHandler(a.Session, a.View, a.Loop, handler.Config{
		SettleTimeout:    cfg.UI_SETTLE_TIMEOUT,
		Departments:      cfg.FILTER_DEPARTMENTS,
		Roles:            cfg.FILTER_ROLES,
		ExportLayoutPath: cfg.EXPORT_LAYOUT_PATH,
	})

	renderer, err := handler.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("failed to parse console templates: %w", err)
	}
	a.Echo.Renderer = renderer

	// Register Middlewares
	a.RegisterMiddlewares()

	// Register Routes
	a.RegisterRoutes(rosterHandler, cfg.METRICS_ENABLED)

	logger.InfoLog(ctx, "Roster console wired to %s", cfg.EMPLOYEE_API_URL)
	return nil
}

func (a *App) RegisterMiddlewares() {
	a.Echo.Use(middleware.Logger())
	a.Echo.Use(middleware.Recover())
	a.Echo.Use(middleware.RequestID())
}

func (a *App) RegisterRoutes(rosterHandler *handler.RosterHandler, metricsEnabled bool) {
	rosterHandler.Register(a.Echo)
	if metricsEnabled {
		a.Echo.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))
	}
}

// Run serves the console and drives the session loop until ctx is cancelled.
// The first page is loaded as soon as the loop is running.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.Loop.Post(func() { a.Session.Load() })
	})

	g.Go(func() error {
		addr := ":" + config.DefaultEnvConfig.APP_PORT
		logger.InfoLog(gctx, "Roster console listening on %s", addr)
		if err := a.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Echo.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
