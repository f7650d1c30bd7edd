package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	apihttp "github.com/commandx/backend/internal/api/http"
	"github.com/commandx/backend/internal/api/middleware"
	"github.com/commandx/backend/internal/infrastructure/config"
	"github.com/commandx/backend/internal/infrastructure/logging"
	"github.com/commandx/backend/internal/infrastructure/monitoring"
	"github.com/commandx/backend/internal/remote"
	"github.com/commandx/backend/internal/router"
	"github.com/commandx/backend/internal/store"
	"github.com/commandx/backend/internal/workspace"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Server owns the composed application: config, backends, router, HTTP
// engine and background jobs.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	engine  *gin.Engine
	pool    *remote.Pool
	store   *store.Store
	cron    *cron.Cron
	httpSrv *http.Server
}

// New wires the application together from configuration.
func New(cfg *config.Config, log *logging.Logger) (*Server, error) {
	metrics := monitoring.NewMetrics()

	source, err := LoadTargets(cfg.Server.TargetsFile)
	if err != nil {
		return nil, err
	}

	var snapshots *store.Store
	if cfg.Store.Enabled {
		snapshots, err = store.Open(cfg.Store.Path, log)
		if err != nil {
			return nil, err
		}
	}

	pool := remote.NewPool(&remote.SSHDialer{Timeout: cfg.Pool.ConnectTimeout},
		cfg.Pool, log.Named("pool"), metrics)
	commander := remote.NewCommander(pool, cfg.Pool.ExecTimeout)

	localOpts := []workspace.Option{
		workspace.WithClampHook(metrics.PathsClamped.Inc),
	}
	if cfg.Workspace.EscapePolicy == "reject" {
		localOpts = append(localOpts, workspace.WithRejectEscapes())
	}
	local := workspace.New(cfg.Workspace.BaseDir, log.Named("workspace"), localOpts...)

	dispatch := router.New(router.Config{
		Source:         source,
		Local:          local,
		Remote:         commander,
		ExecTimeout:    cfg.Workspace.ExecTimeout,
		InstallTimeout: cfg.Workspace.InstallTimeout,
		Log:            log.Named("router"),
		Metrics:        metrics,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(log.Named("http")))
	engine.Use(monitoring.Middleware(metrics))
	engine.Use(middleware.CORS(cfg.Server.AllowOrigins))
	if cfg.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(cfg.RateLimit))
	}

	apihttp.RegisterRoutes(engine, apihttp.NewHandlers(dispatch, snapshots, log.Named("api")))

	s := &Server{
		cfg:    cfg,
		log:    log,
		engine: engine,
		pool:   pool,
		store:  snapshots,
		cron:   cron.New(),
	}
	if err := s.scheduleJobs(dispatch, source); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) scheduleJobs(dispatch *router.Router, source *FileSource) error {
	_, err := s.cron.AddFunc(s.cfg.Pool.CleanupSchedule, func() {
		if n := s.pool.CleanupInactive(s.cfg.Pool.MaxIdle); n > 0 {
			s.log.Info("idle session sweep", zap.Int("evicted", n))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule session cleanup: %w", err)
	}

	if s.store == nil {
		return nil
	}
	_, err = s.cron.AddFunc(s.cfg.Store.SnapshotSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		for _, id := range source.IDs() {
			s.store.Record(id, dispatch.DetailedStats(ctx, id))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule metric snapshots: %w", err)
	}
	_, err = s.cron.AddFunc("@daily", func() {
		if n, err := s.store.Prune(s.cfg.Store.Retention); err != nil {
			s.log.Warn("snapshot prune failed", zap.Error(err))
		} else if n > 0 {
			s.log.Info("pruned old snapshots", zap.Int64("removed", n))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule snapshot prune: %w", err)
	}
	return nil
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully: stop accepting, drain requests, close the pool and store.
func (s *Server) Run(ctx context.Context) error {
	s.cron.Start()

	addr := net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.shutdown(context.Background())
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.shutdown(shutdownCtx)
	}
}

func (s *Server) shutdown(ctx context.Context) error {
	var firstErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}

	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	s.pool.CloseAll()
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
