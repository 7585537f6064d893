// Package server assembles the HTTP API from its stores and runs it.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/iliyamo/student-records/internal/config"
	"github.com/iliyamo/student-records/internal/database"
	"github.com/iliyamo/student-records/internal/handler"
	"github.com/iliyamo/student-records/internal/metrics"
	"github.com/iliyamo/student-records/internal/middleware"
	"github.com/iliyamo/student-records/internal/permission"
	"github.com/iliyamo/student-records/internal/queue"
	"github.com/iliyamo/student-records/internal/repository"
	"github.com/iliyamo/student-records/internal/router"
	"github.com/iliyamo/student-records/internal/service"
	"github.com/iliyamo/student-records/internal/utils"
)

// Deps are the collaborators the API is built from. Redis may be nil; the
// rate limiter and response cache then degrade.
type Deps struct {
	Users     service.UserStore
	Tokens    service.TokenStore
	Students  service.StudentStore
	Events    service.EventPublisher
	Redis     *redis.Client
	Registry  *prometheus.Registry
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// NewEcho wires services, handlers, middleware and routes.
func NewEcho(cfg config.Config, deps Deps, log logrus.FieldLogger) *echo.Echo {
	if deps.Events == nil {
		deps.Events = service.NopPublisher
	}
	collector := metrics.NewCollector(deps.Registry)
	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.JWTExpiresIn, cfg.JWTRefreshExpiresIn)

	authSvc := service.NewAuthService(deps.Users, deps.Tokens, issuer, log,
		service.WithBcryptCost(cfg.BcryptCost),
		service.WithEvents(deps.Events),
		service.WithMetrics(collector),
	)
	userSvc := service.NewUserService(deps.Users, deps.Events, cfg.BcryptCost, log)
	studentSvc := service.NewStudentService(deps.Students, deps.Events, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(log)
	e.Validator = handler.NewValidator()
	e.Use(
		echomw.Recover(),
		echomw.RequestID(),
		middleware.Metrics(collector),
		middleware.RequestLogger(log),
		middleware.NewTokenBucket(deps.RateLimit.Anonymous(), deps.Redis, log),
	)

	guards := router.Guards{Issuer: issuer, Table: permission.DefaultTable()}
	if deps.RateLimit.Enabled && deps.RateLimit.PerUser() {
		// user-keyed buckets need the identity JWTAuth puts on the context
		guards.Limit = middleware.NewTokenBucket(deps.RateLimit, deps.Redis, log)
	}
	cache := middleware.NewResponseCache(deps.Cache.WithPrefix("students"), deps.Redis, log)

	router.RegisterRoutes(e, metrics.Handler(deps.Registry))
	router.RegisterAuth(e, guards, handler.NewAuthHandler(authSvc, cfg.IsProduction()))
	router.RegisterUsers(e, guards, handler.NewUserHandler(userSvc))
	router.RegisterStudents(e, guards, handler.NewStudentHandler(studentSvc), cache)
	return e
}

// Server owns the echo instance and the connections behind it.
type Server struct {
	echo   *echo.Echo
	addr   string
	db     *bun.DB
	rdb    *redis.Client
	events *queue.AsyncPublisher
	broker *queue.Publisher
	log    logrus.FieldLogger
}

// New opens the database, Redis and the audit publisher and builds the API.
func New(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*Server, error) {
	db, err := database.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}

	s := &Server{addr: ":" + cfg.Port, db: db, log: log}
	s.rdb = config.NewRedisClient(log)

	var events service.EventPublisher = service.NopPublisher
	if cfg.RabbitMQURL != "" {
		s.broker = queue.NewPublisher(cfg.RabbitMQURL, log)
		s.events = queue.NewAsyncPublisher(s.broker, 1024, log)
		events = s.events
	} else {
		log.Info("RABBITMQ_URL not set, audit events disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s.echo = NewEcho(cfg, Deps{
		Users:     repository.NewUserRepo(db),
		Tokens:    repository.NewTokenRepo(db),
		Students:  repository.NewStudentRepo(db),
		Events:    events,
		Redis:     s.rdb,
		Registry:  reg,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
	}, log)
	s.echo.Server.ReadTimeout = 15 * time.Second
	s.echo.Server.WriteTimeout = 15 * time.Second
	s.echo.Server.IdleTimeout = 60 * time.Second
	return s, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.addr).Info("listening")
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, flushes queued audit events and
// closes the connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	if s.events != nil {
		s.events.Close()
	}
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
