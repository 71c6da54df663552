package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"container-tracker/containers/models"
	"container-tracker/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// ContainerStore is the persistence the handlers need; *repositories.Repository satisfies it.
type ContainerStore interface {
	List(ctx context.Context) ([]models.Container, error)
	Get(ctx context.Context, id uint) (*models.Container, error)
	NumberTaken(ctx context.Context, number string, excludeID uint) (bool, error)
	Create(ctx context.Context, container *models.Container) error
	Update(ctx context.Context, id uint, patch models.ContainerPatch) (*models.Container, error)
	Delete(ctx context.Context, id uint) (*models.Container, error)
	Search(ctx context.Context, number, isoCode string) ([]models.Container, error)
}

type Server struct {
	echo    *echo.Echo
	store   ContainerStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewServer(store ContainerStore, logger *zap.Logger, m *metrics.Metrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, store: store, logger: logger, metrics: m}

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(s.requestLogger())
	e.Use(s.observe)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	s.initContainerRoutes(e.Group("/api"))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API listening", zap.String("address", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Shutting down API")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				s.logger.Warn("Request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			s.logger.Debug("Request", fields...)
			return nil
		},
	})
}

func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTPRequest(c.Request().Method, route, strconv.Itoa(status), time.Since(start).Seconds())
		return err
	}
}
