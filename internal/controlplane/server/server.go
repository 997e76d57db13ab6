package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smsbot/gosms/internal/services"
	"github.com/smsbot/gosms/internal/store"
	"github.com/smsbot/gosms/pkg/logger"
)

// Server is the read-only ops surface over the stores and the monitor:
// order/user listings, monitor status and the sweep audit log.
type Server struct {
	st      *store.Store
	monitor *services.MonitorService
}

func New(st *store.Store, monitor *services.MonitorService) *Server {
	return &Server{st: st, monitor: monitor}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/orders", s.handleOrdersList)
	api.GET("/orders/active", s.handleActiveOrders)
	api.GET("/orders/:orderID", s.handleOrderGet)
	api.GET("/users/:userID/orders", s.handleUserOrders)
	api.GET("/monitor/status", s.handleMonitorStatus)
	api.GET("/sweeps", s.handleSweeps)

	return r
}

// StartAsync serves the admin API until ctx is cancelled.
func (s *Server) StartAsync(ctx context.Context, listenAddr string) (*http.Server, error) {
	srv := &http.Server{
		Addr:    listenAddr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-errCh:
		return nil, err
	case <-time.After(100 * time.Millisecond):
		logger.Infof("管理接口已启动: %s", listenAddr)
		return srv, nil
	}
}
